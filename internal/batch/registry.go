package batch

import (
	"context"
	"fmt"
	"sort"
)

// JobDef describes one registered background job. Run executes a single
// cycle; the job is expected to wrap itself in Tracker.TrackRun.
type JobDef struct {
	ID       string
	Name     string
	Schedule string
	Manual   bool
	Run      func(ctx context.Context) error
}

// Registry holds the jobs exposed over the operations API. Jobs are
// registered once during startup, so no locking is needed after that.
type Registry struct {
	jobs map[string]JobDef
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]JobDef)}
}

func (r *Registry) Register(job JobDef) {
	r.jobs[job.ID] = job
}

func (r *Registry) Get(id string) (JobDef, bool) {
	job, ok := r.jobs[id]
	return job, ok
}

func (r *Registry) List() []JobDef {
	jobs := make([]JobDef, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

// Trigger runs a job on demand. Only jobs flagged Manual can be triggered
// over the API.
func (r *Registry) Trigger(ctx context.Context, id string) error {
	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("unknown job %q", id)
	}
	if !job.Manual {
		return fmt.Errorf("job %q cannot be triggered manually", id)
	}
	return job.Run(ctx)
}
