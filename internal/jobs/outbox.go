package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"signflow/internal/domain"
	"signflow/internal/repo"
)

// Outbox queues jobs in the jobs table of the workspace database.
type Outbox struct {
	Repo        repo.Repo
	Now         func() time.Time
	MaxAttempts int
}

func (o Outbox) now() string {
	if o.Now != nil {
		return o.Now().UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func (o Outbox) Enqueue(ctx context.Context, name string, payload map[string]any) error {
	raw, err := encodePayload(payload)
	if err != nil {
		return err
	}
	now := o.now()
	return o.Repo.InsertJob(ctx, o.Repo.DB, domain.Job{
		ID:        uuid.NewString(),
		Name:      name,
		Payload:   raw,
		Status:    repo.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (o Outbox) EnqueueReindex(ctx context.Context, recordType, recordID string) error {
	return o.Enqueue(ctx, JobSearchReindex, map[string]any{"record_type": recordType, "record_id": recordID})
}

func (o Outbox) Next(ctx context.Context, limit int) ([]Task, error) {
	rows, err := o.Repo.ListJobs(ctx, repo.JobPending, limit)
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(rows))
	for _, j := range rows {
		payload, err := decodePayload(j.Payload)
		if err != nil {
			// A payload that never decodes can never run.
			if ferr := o.Repo.FinishJob(ctx, j.ID, err, 1); ferr != nil {
				return nil, ferr
			}
			continue
		}
		tasks = append(tasks, Task{ID: j.ID, Name: j.Name, Payload: payload, Attempts: j.Attempts})
	}
	return tasks, nil
}

func (o Outbox) Finish(ctx context.Context, t Task, runErr error) error {
	max := o.MaxAttempts
	if max <= 0 {
		max = 1
	}
	return o.Repo.FinishJob(ctx, t.ID, runErr, max)
}
