package jobs

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signflow/internal/db"
	"signflow/internal/domain"
	"signflow/internal/migrate"
	"signflow/internal/repo"
)

var fixedNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return conn
}

func TestOutboxRoundTrip(t *testing.T) {
	conn := openDB(t)
	ob := Outbox{Repo: repo.Repo{DB: conn}, Now: func() time.Time { return fixedNow }, MaxAttempts: 2}
	ctx := context.Background()

	require.NoError(t, ob.Enqueue(ctx, "ping", map[string]any{"n": 1}))
	tasks, err := ob.Next(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "ping", tasks[0].Name)
	assert.Equal(t, float64(1), tasks[0].Payload["n"])

	// first failure keeps it pending, second exhausts it
	require.NoError(t, ob.Finish(ctx, tasks[0], errors.New("boom")))
	tasks, err = ob.Next(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 1, tasks[0].Attempts)
	require.NoError(t, ob.Finish(ctx, tasks[0], errors.New("boom")))

	tasks, err = ob.Next(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	failed, err := ob.Repo.ListJobs(ctx, repo.JobFailed, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].LastError)
}

func TestOutboxEnqueueReindex(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs(sqlmock.AnyArg(), JobSearchReindex, `{"record_id":"s1","record_type":"Submitter"}`,
			repo.JobPending, 0, "2026-03-04T10:00:00Z", "2026-03-04T10:00:00Z").
		WillReturnResult(sqlmock.NewResult(1, 1))

	ob := Outbox{Repo: repo.Repo{DB: conn}, Now: func() time.Time { return fixedNow }}
	require.NoError(t, ob.EnqueueReindex(context.Background(), "Submitter", "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

type memSource struct {
	tasks    []Task
	finished map[string]error
}

func (m *memSource) Next(_ context.Context, limit int) ([]Task, error) {
	if limit > len(m.tasks) {
		limit = len(m.tasks)
	}
	out := m.tasks[:limit]
	m.tasks = m.tasks[limit:]
	return out, nil
}

func (m *memSource) Finish(_ context.Context, t Task, runErr error) error {
	if m.finished == nil {
		m.finished = map[string]error{}
	}
	m.finished[t.ID] = runErr
	return nil
}

func TestWorkerDrain(t *testing.T) {
	src := &memSource{tasks: []Task{
		{ID: "1", Name: "ok", Payload: map[string]any{"v": "a"}},
		{ID: "2", Name: "fail"},
		{ID: "3", Name: "missing"},
		{ID: "4", Name: "panics"},
	}}
	w := NewWorker(src, 0, 1, nil)
	var seen []string
	w.Handle("ok", func(_ context.Context, p map[string]any) error {
		seen = append(seen, p["v"].(string))
		return nil
	})
	w.Handle("fail", func(context.Context, map[string]any) error { return errors.New("nope") })
	w.Handle("panics", func(context.Context, map[string]any) error { panic("bad") })

	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []string{"a"}, seen)
	assert.NoError(t, src.finished["1"])
	assert.EqualError(t, src.finished["2"], "nope")
	assert.ErrorIs(t, src.finished["3"], ErrUnknownJob)
	assert.ErrorContains(t, src.finished["4"], "panicked")
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	w := NewWorker(&memSource{}, 5, 1, nil)
	w.Interval = 10 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, w.Run(ctx))
}

func TestSearchReindexer(t *testing.T) {
	conn := openDB(t)
	r := repo.Repo{DB: conn}
	ctx := context.Background()
	now := fixedNow.Format(time.RFC3339)

	require.NoError(t, r.UpsertAccount(ctx, conn, domain.Account{ID: "acc", Name: "Acme", Timezone: "UTC", Locale: "en", CreatedAt: now}))
	require.NoError(t, r.InsertTemplate(ctx, conn, domain.Template{ID: "tpl", AccountID: "acc", Name: "NDA", CreatedAt: now}))
	require.NoError(t, r.InsertSubmission(ctx, conn, domain.Submission{ID: "sub", AccountID: "acc", TemplateID: "tpl", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, r.InsertSubmitter(ctx, conn, domain.Submitter{
		ID: "p1", SubmissionID: "sub", AccountID: "acc", UUID: "role-a",
		Name: "Ann", Email: "ann@example.com",
		Values:    map[string]any{"b": []any{"x", "y"}, "a": "hello", "c": ""},
		CreatedAt: now, UpdatedAt: now,
	}))

	h := SearchReindexer{Repo: r}
	require.NoError(t, h.Handle(ctx, map[string]any{"record_type": "Submitter", "record_id": "p1"}))
	body, err := r.GetSearchEntry(ctx, "Submitter", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Ann ann@example.com hello x y", body)

	require.NoError(t, h.Handle(ctx, map[string]any{"record_type": "Submission", "record_id": "sub"}))
	body, err = r.GetSearchEntry(ctx, "Submission", "sub")
	require.NoError(t, err)
	assert.Equal(t, "Ann ann@example.com hello x y", body)

	assert.Error(t, h.Handle(ctx, map[string]any{"record_type": "Template", "record_id": "tpl"}))
	assert.Error(t, h.Handle(ctx, map[string]any{}))
}
