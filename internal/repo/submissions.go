package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"signflow/internal/domain"
)

const submitterColumns = `id,submission_id,account_id,uuid,COALESCE(name,''),COALESCE(email,''),COALESCE(phone,''),values_json,
opened_at,completed_at,declined_at,COALESCE(ip,''),COALESCE(user_agent,''),COALESCE(timezone,''),created_at,updated_at`

func (r Repo) InsertSubmission(ctx context.Context, q DBTX, s domain.Submission) error {
	fields, submitters, schema, err := snapshotJSON(s)
	if err != nil {
		return err
	}
	order := s.SubmittersOrder
	if order == "" {
		order = "random"
	}
	_, err = q.ExecContext(ctx, `INSERT INTO submissions(id,account_id,template_id,template_fields_json,template_submitters_json,template_schema_json,submitters_order,archived_at,expires_at,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.AccountID, s.TemplateID, fields, submitters, schema, order,
		nullableStringPtr(s.ArchivedAt), nullableStringPtr(s.ExpiresAt), s.CreatedAt, s.UpdatedAt)
	return err
}

// snapshotJSON encodes the frozen template parts; an unfrozen submission stores NULLs.
func snapshotJSON(s domain.Submission) (fields, submitters, schema any, err error) {
	if !s.Frozen() {
		return nil, nil, nil, nil
	}
	if fields, err = marshalJSON(s.TemplateFields); err != nil {
		return
	}
	if submitters, err = marshalJSON(s.TemplateSubmitters); err != nil {
		return
	}
	schema, err = marshalJSON(s.TemplateSchema)
	return
}

// UpdateSubmission persists the template snapshot, ordering and gates.
func (r Repo) UpdateSubmission(ctx context.Context, q DBTX, s domain.Submission) error {
	fields, submitters, schema, err := snapshotJSON(s)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `UPDATE submissions SET template_fields_json=?,template_submitters_json=?,template_schema_json=?,
submitters_order=?,archived_at=?,expires_at=?,updated_at=? WHERE id=?`,
		fields, submitters, schema, s.SubmittersOrder, nullableStringPtr(s.ArchivedAt), nullableStringPtr(s.ExpiresAt), s.UpdatedAt, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSubmission loads a submission with its live parties.
func (r Repo) GetSubmission(ctx context.Context, q DBTX, id string) (domain.Submission, error) {
	var (
		s                          domain.Submission
		fields, submitters, schema sql.NullString
		archived, expires          sql.NullString
	)
	err := q.QueryRowContext(ctx, `SELECT id,account_id,template_id,template_fields_json,template_submitters_json,template_schema_json,
submitters_order,archived_at,expires_at,created_at,updated_at FROM submissions WHERE id=?`, id).
		Scan(&s.ID, &s.AccountID, &s.TemplateID, &fields, &submitters, &schema, &s.SubmittersOrder, &archived, &expires, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.ArchivedAt = stringPtr(archived)
	s.ExpiresAt = stringPtr(expires)
	if fields.Valid {
		if err := json.Unmarshal([]byte(fields.String), &s.TemplateFields); err != nil {
			return s, fmt.Errorf("submission fields: %w", err)
		}
	}
	if submitters.Valid {
		if err := json.Unmarshal([]byte(submitters.String), &s.TemplateSubmitters); err != nil {
			return s, fmt.Errorf("submission submitters: %w", err)
		}
	}
	if schema.Valid {
		if err := json.Unmarshal([]byte(schema.String), &s.TemplateSchema); err != nil {
			return s, fmt.Errorf("submission schema: %w", err)
		}
	}
	parties, err := r.ListSubmitters(ctx, q, SubmitterFilters{SubmissionID: s.ID})
	if err != nil {
		return s, err
	}
	s.Submitters = parties
	return s, nil
}

// --- submitters ---

func (r Repo) InsertSubmitter(ctx context.Context, q DBTX, sub domain.Submitter) error {
	vals, err := marshalJSON(valuesOrEmpty(sub.Values))
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO submitters(id,submission_id,account_id,uuid,name,email,phone,values_json,opened_at,completed_at,declined_at,ip,user_agent,timezone,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sub.ID, sub.SubmissionID, sub.AccountID, sub.UUID, nullable(sub.Name), nullable(sub.Email), nullable(sub.Phone), vals,
		nullableStringPtr(sub.OpenedAt), nullableStringPtr(sub.CompletedAt), nullableStringPtr(sub.DeclinedAt),
		nullable(sub.IP), nullable(sub.UserAgent), nullable(sub.Timezone), sub.CreatedAt, sub.UpdatedAt)
	return err
}

// UpdateSubmitter persists values and lifecycle stamps. completed_at is never cleared.
func (r Repo) UpdateSubmitter(ctx context.Context, q DBTX, sub domain.Submitter) error {
	vals, err := marshalJSON(valuesOrEmpty(sub.Values))
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `UPDATE submitters SET name=?,email=?,phone=?,values_json=?,opened_at=?,
completed_at=COALESCE(completed_at,?),declined_at=?,ip=?,user_agent=?,timezone=?,updated_at=? WHERE id=?`,
		nullable(sub.Name), nullable(sub.Email), nullable(sub.Phone), vals, nullableStringPtr(sub.OpenedAt),
		nullableStringPtr(sub.CompletedAt), nullableStringPtr(sub.DeclinedAt), nullable(sub.IP), nullable(sub.UserAgent),
		nullable(sub.Timezone), sub.UpdatedAt, sub.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetSubmitter(ctx context.Context, q DBTX, id string) (domain.Submitter, error) {
	row := q.QueryRowContext(ctx, `SELECT `+submitterColumns+` FROM submitters WHERE id=?`, id)
	sub, err := scanSubmitter(row)
	if err == sql.ErrNoRows {
		return sub, ErrNotFound
	}
	return sub, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmitter(row scanner) (domain.Submitter, error) {
	var (
		sub                           domain.Submitter
		vals                          string
		opened, completed, declined sql.NullString
	)
	if err := row.Scan(&sub.ID, &sub.SubmissionID, &sub.AccountID, &sub.UUID, &sub.Name, &sub.Email, &sub.Phone, &vals,
		&opened, &completed, &declined, &sub.IP, &sub.UserAgent, &sub.Timezone, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return sub, err
	}
	sub.OpenedAt = stringPtr(opened)
	sub.CompletedAt = stringPtr(completed)
	sub.DeclinedAt = stringPtr(declined)
	sub.Values = map[string]any{}
	if strings.TrimSpace(vals) != "" {
		if err := json.Unmarshal([]byte(vals), &sub.Values); err != nil {
			return sub, fmt.Errorf("submitter values: %w", err)
		}
	}
	return sub, nil
}

// SubmitterFilters narrows ListSubmitters.
type SubmitterFilters struct {
	SubmissionID string
	AccountID    string
	Email        string
	Status       string
	Limit        int
}

func (r Repo) ListSubmitters(ctx context.Context, q DBTX, f SubmitterFilters) ([]domain.Submitter, error) {
	qb := sq.Select(submitterColumns).From("submitters").OrderBy("created_at", "id")
	if f.SubmissionID != "" {
		qb = qb.Where(sq.Eq{"submission_id": f.SubmissionID})
	}
	if f.AccountID != "" {
		qb = qb.Where(sq.Eq{"account_id": f.AccountID})
	}
	if f.Email != "" {
		qb = qb.Where(sq.Eq{"email": f.Email})
	}
	switch f.Status {
	case "":
	case "completed":
		qb = qb.Where(sq.NotEq{"completed_at": nil})
	case "declined":
		qb = qb.Where(sq.NotEq{"declined_at": nil})
	case "opened":
		qb = qb.Where(sq.And{sq.NotEq{"opened_at": nil}, sq.Eq{"completed_at": nil}, sq.Eq{"declined_at": nil}})
	case "awaiting":
		qb = qb.Where(sq.Eq{"opened_at": nil, "completed_at": nil, "declined_at": nil})
	default:
		return nil, fmt.Errorf("invalid status filter %q", f.Status)
	}
	if f.Limit > 0 {
		qb = qb.Limit(uint64(f.Limit))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Submitter
	for rows.Next() {
		sub, err := scanSubmitter(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, sub)
	}
	return res, rows.Err()
}

// UpsertSearchEntry stores the flattened searchable text of a record.
func (r Repo) UpsertSearchEntry(ctx context.Context, recordType, recordID, body string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO search_entries(record_type,record_id,body,updated_at) VALUES (?,?,?,?)
ON CONFLICT(record_type,record_id) DO UPDATE SET body=excluded.body, updated_at=excluded.updated_at`,
		recordType, recordID, body, nowString())
	return err
}

func (r Repo) GetSearchEntry(ctx context.Context, recordType, recordID string) (string, error) {
	var body string
	err := r.DB.QueryRowContext(ctx, `SELECT body FROM search_entries WHERE record_type=? AND record_id=?`, recordType, recordID).Scan(&body)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return body, err
}

func valuesOrEmpty(v map[string]any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	return v
}
