package repo

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"signflow/internal/domain"
)

const eventColumns = "id,ts,type,submission_id,COALESCE(submitter_id,''),COALESCE(ip,''),COALESCE(user_agent,''),payload_json"

// EventExists reports whether the submitter already has an event of the given type.
func (r Repo) EventExists(ctx context.Context, q DBTX, submitterID, evtType string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM submission_events WHERE submitter_id=? AND type=? LIMIT 1`, submitterID, evtType).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SubmissionEventExists is EventExists scoped to the whole submission.
func (r Repo) SubmissionEventExists(ctx context.Context, q DBTX, submissionID, evtType string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM submission_events WHERE submission_id=? AND type=? LIMIT 1`, submissionID, evtType).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// EventFilters narrows LatestEvents. Before pages backwards by event id.
type EventFilters struct {
	SubmissionID string
	SubmitterID  string
	Type         string
	Before       int64
	Limit        int
}

// LatestEvents returns matching events, newest first.
func (r Repo) LatestEvents(ctx context.Context, f EventFilters) ([]domain.SubmissionEvent, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	qb := sq.Select(eventColumns).From("submission_events").OrderBy("id DESC").Limit(uint64(f.Limit))
	if f.SubmissionID != "" {
		qb = qb.Where(sq.Eq{"submission_id": f.SubmissionID})
	}
	if f.SubmitterID != "" {
		qb = qb.Where(sq.Eq{"submitter_id": f.SubmitterID})
	}
	if f.Type != "" {
		qb = qb.Where(sq.Eq{"type": f.Type})
	}
	if f.Before > 0 {
		qb = qb.Where(sq.Lt{"id": f.Before})
	}
	return r.queryEvents(ctx, qb)
}

// EventsAfter returns events with ids greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.SubmissionEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	qb := sq.Select(eventColumns).From("submission_events").OrderBy("id ASC").Limit(uint64(limit))
	if cursor > 0 {
		qb = qb.Where(sq.Gt{"id": cursor})
	}
	return r.queryEvents(ctx, qb)
}

func (r Repo) queryEvents(ctx context.Context, qb sq.SelectBuilder) ([]domain.SubmissionEvent, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.SubmissionEvent
	for rows.Next() {
		var e domain.SubmissionEvent
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.SubmissionID, &e.SubmitterID, &e.IP, &e.UserAgent, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event id.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM submission_events`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
