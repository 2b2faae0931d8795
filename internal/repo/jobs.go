package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"signflow/internal/domain"
)

const (
	JobPending = "pending"
	JobDone    = "done"
	JobFailed  = "failed"
)

func (r Repo) InsertAttachment(ctx context.Context, q DBTX, a domain.Attachment) error {
	var meta any
	if len(a.Metadata) > 0 {
		m, err := marshalJSON(a.Metadata)
		if err != nil {
			return err
		}
		meta = m
	}
	_, err := q.ExecContext(ctx, `INSERT INTO attachments(uuid,record_type,record_id,name,metadata_json,created_at) VALUES (?,?,?,?,?,?)`,
		a.UUID, a.RecordType, a.RecordID, a.Name, meta, a.CreatedAt)
	return err
}

func (r Repo) GetAttachment(ctx context.Context, id string) (domain.Attachment, error) {
	var (
		a    domain.Attachment
		meta sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, `SELECT uuid,record_type,record_id,name,metadata_json,created_at FROM attachments WHERE uuid=?`, id).
		Scan(&a.UUID, &a.RecordType, &a.RecordID, &a.Name, &meta, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &a.Metadata); err != nil {
			return a, fmt.Errorf("attachment metadata: %w", err)
		}
	}
	return a, nil
}

func (r Repo) InsertJob(ctx context.Context, q DBTX, j domain.Job) error {
	if j.Status == "" {
		j.Status = JobPending
	}
	_, err := q.ExecContext(ctx, `INSERT INTO jobs(id,name,payload_json,status,attempts,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		j.ID, j.Name, j.Payload, j.Status, j.Attempts, j.CreatedAt, j.UpdatedAt)
	return err
}

// ListJobs returns jobs by status, oldest first.
func (r Repo) ListJobs(ctx context.Context, status string, limit int) ([]domain.Job, error) {
	qb := sq.Select("id", "name", "payload_json", "status", "attempts", "COALESCE(last_error,'')", "created_at", "updated_at").
		From("jobs").OrderBy("created_at", "id")
	if status != "" {
		qb = qb.Where(sq.Eq{"status": status})
	}
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Job
	for rows.Next() {
		var j domain.Job
		if err := rows.Scan(&j.ID, &j.Name, &j.Payload, &j.Status, &j.Attempts, &j.LastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, rows.Err()
}

// FinishJob records the outcome of one attempt. A nil runErr marks the job done.
func (r Repo) FinishJob(ctx context.Context, id string, runErr error, maxAttempts int) error {
	qb := sq.Update("jobs").Set("attempts", sq.Expr("attempts + 1")).Set("updated_at", nowString()).Where(sq.Eq{"id": id})
	if runErr == nil {
		qb = qb.Set("status", JobDone).Set("last_error", nil)
	} else {
		qb = qb.Set("last_error", runErr.Error()).
			Set("status", sq.Expr("CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END", maxAttempts, JobFailed, JobPending))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
