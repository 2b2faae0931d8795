package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue keeps jobs in a redis list. Failed jobs are pushed back until they run
// out of attempts, then parked on the dead list.
type RedisQueue struct {
	client      *redis.Client
	prefix      string
	maxAttempts int
	block       time.Duration
}

func NewRedisQueue(addr, password string, db int, prefix string, maxAttempts int) *RedisQueue {
	return NewRedisQueueFromClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), prefix, maxAttempts)
}

func NewRedisQueueFromClient(client *redis.Client, prefix string, maxAttempts int) *RedisQueue {
	if prefix == "" {
		prefix = "signflow"
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &RedisQueue{client: client, prefix: prefix, maxAttempts: maxAttempts, block: time.Second}
}

func (q *RedisQueue) queueKey() string { return q.prefix + ":jobs" }
func (q *RedisQueue) deadKey() string  { return q.prefix + ":jobs:dead" }

// Ping checks the connection.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) Enqueue(ctx context.Context, name string, payload map[string]any) error {
	return q.push(ctx, q.queueKey(), Task{ID: uuid.NewString(), Name: name, Payload: payload})
}

func (q *RedisQueue) EnqueueReindex(ctx context.Context, recordType, recordID string) error {
	return q.Enqueue(ctx, JobSearchReindex, map[string]any{"record_type": recordType, "record_id": recordID})
}

func (q *RedisQueue) push(ctx context.Context, key string, t Task) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	return q.client.RPush(ctx, key, b).Err()
}

// Next blocks briefly for the first task, then drains what is already queued up to limit.
func (q *RedisQueue) Next(ctx context.Context, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 1
	}
	res, err := q.client.BLPop(ctx, q.block, q.queueKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	raws := []string{res[1]}
	for len(raws) < limit {
		raw, err := q.client.LPop(ctx, q.queueKey()).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
	}
	tasks := make([]Task, 0, len(raws))
	for _, raw := range raws {
		var t Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			if err := q.client.RPush(ctx, q.deadKey(), raw).Err(); err != nil {
				return nil, err
			}
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (q *RedisQueue) Finish(ctx context.Context, t Task, runErr error) error {
	if runErr == nil {
		return nil
	}
	t.Attempts++
	if t.Attempts >= q.maxAttempts {
		return q.push(ctx, q.deadKey(), t)
	}
	return q.push(ctx, q.queueKey(), t)
}

// Dead returns the number of parked tasks.
func (q *RedisQueue) Dead(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.deadKey()).Result()
}
