package introduce

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Task is one queued patient follow-up job, enqueued by the upstream
// pipeline once the patient's follow-up form is prepared.
type Task struct {
	ID      string  `json:"id"`
	Patient Patient `json:"patient"`
}

// TaskQueue hands patient tasks to the worker.
type TaskQueue interface {
	Enqueue(ctx context.Context, task Task) error
	// Dequeue blocks up to wait for a task; a nil task with nil error
	// means nothing arrived in time.
	Dequeue(ctx context.Context, wait time.Duration) (*Task, error)
}

// RedisQueue is a TaskQueue backed by a Redis list shared with the rest of
// the pipeline.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a queue over the given list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

// Enqueue pushes the task onto the head of the list.
func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("introduce: encoding task: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("introduce: enqueueing task: %w", err)
	}
	return nil
}

// Dequeue pops from the tail of the list, blocking up to wait.
func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*Task, error) {
	res, err := q.client.BRPop(ctx, wait, q.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("introduce: dequeueing task: %w", err)
	}
	// BRPop returns [key, value].
	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("introduce: decoding task: %w", err)
	}
	return &task, nil
}

// MemoryQueue is a TaskQueue backed by a buffered channel, used in
// development and tests where no Redis is available.
type MemoryQueue struct {
	ch chan Task
}

// NewMemoryQueue creates a MemoryQueue with the provided buffer capacity.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{ch: make(chan Task, buffer)}
}

// Enqueue adds a task or blocks until ctx is done.
func (q *MemoryQueue) Enqueue(ctx context.Context, task Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	select {
	case q.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks until a task is available, wait elapses, or ctx is done.
func (q *MemoryQueue) Dequeue(ctx context.Context, wait time.Duration) (*Task, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case task := <-q.ch:
		return &task, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
