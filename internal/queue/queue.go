// Package queue decouples order intake from partner submission. Jobs carry
// only identifiers; workers reload state and credentials when the job runs,
// so no secrets ever sit in the queue.
package queue

import (
	"context"
	"time"
)

const (
	KindOrderSubmit   = "order_submit"
	KindMandateSubmit = "mandate_submit"
)

type Job struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	EntityID   string    `json:"entity_id"`
	ActorID    string    `json:"actor_id"`
	Operation  string    `json:"operation"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type Queue interface {
	// Enqueue adds a job, honouring ctx for deadline and cancellation.
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (*Job, error)
}

// Memory is a channel-backed Queue for tests and single-process deployments.
type Memory struct {
	ch chan Job
}

func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 1024
	}
	return &Memory{ch: make(chan Job, size)}
}

func (m *Memory) Enqueue(ctx context.Context, job Job) error {
	select {
	case m.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Dequeue(ctx context.Context) (*Job, error) {
	select {
	case job := <-m.ch:
		return &job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
