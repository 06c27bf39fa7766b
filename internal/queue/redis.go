package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis is a Queue over a Redis list: LPUSH to enqueue, BRPOP to dequeue.
// Multiple gateway instances can share one list, which is what makes the
// worker pool horizontally scalable.
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(client *redis.Client, name string) *Redis {
	return &Redis{client: client, key: "queue:" + name}
}

func (q *Redis) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

func (q *Redis) Dequeue(ctx context.Context) (*Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Poll in short blocks so ctx cancellation is noticed promptly.
		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return nil, err
		}
		return &job, nil
	}
}
