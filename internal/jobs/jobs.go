// Package jobs runs the engine's background work: completion processing, completed
// webhooks and search reindexing.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// JobSearchReindex refreshes the search entry of one record.
const JobSearchReindex = "search_reindex"

// Handler runs one job.
type Handler func(ctx context.Context, payload map[string]any) error

// Task is a dequeued job.
type Task struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Payload  map[string]any `json:"payload"`
	Attempts int            `json:"attempts"`
}

// Source yields pending tasks and records their outcome.
type Source interface {
	Next(ctx context.Context, limit int) ([]Task, error)
	Finish(ctx context.Context, t Task, runErr error) error
}

// ErrUnknownJob is returned for tasks no handler is registered for.
var ErrUnknownJob = errors.New("unknown job")

func encodePayload(payload map[string]any) (string, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode job payload: %w", err)
	}
	return string(b), nil
}

func decodePayload(raw string) (map[string]any, error) {
	out := map[string]any{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode job payload: %w", err)
	}
	return out, nil
}
