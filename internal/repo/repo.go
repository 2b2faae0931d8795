package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"signflow/internal/domain"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// --- accounts ---

func (r Repo) UpsertAccount(ctx context.Context, q DBTX, a domain.Account) error {
	if a.CreatedAt == "" {
		a.CreatedAt = nowString()
	}
	_, err := q.ExecContext(ctx, `INSERT INTO accounts(id,name,timezone,locale,created_at) VALUES (?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, timezone=excluded.timezone, locale=excluded.locale`,
		a.ID, a.Name, a.Timezone, a.Locale, a.CreatedAt)
	return err
}

func (r Repo) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	var a domain.Account
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,timezone,locale,created_at FROM accounts WHERE id=?`, id).
		Scan(&a.ID, &a.Name, &a.Timezone, &a.Locale, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

// SingleAccount returns the only account of the workspace.
func (r Repo) SingleAccount(ctx context.Context) (domain.Account, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,timezone,locale,created_at FROM accounts`)
	if err != nil {
		return domain.Account{}, err
	}
	defer rows.Close()
	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Timezone, &a.Locale, &a.CreatedAt); err != nil {
			return domain.Account{}, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return domain.Account{}, err
	}
	if len(accounts) == 0 {
		return domain.Account{}, ErrNotFound
	}
	if len(accounts) > 1 {
		return domain.Account{}, fmt.Errorf("multiple accounts exist; specify --account")
	}
	return accounts[0], nil
}

func (r Repo) UpsertAccountConfig(ctx context.Context, q DBTX, accountID, key string, value any) error {
	payload, err := marshalJSON(value)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO account_configs(account_id,key,value_json,updated_at) VALUES (?,?,?,?)
ON CONFLICT(account_id,key) DO UPDATE SET value_json=excluded.value_json, updated_at=excluded.updated_at`,
		accountID, key, payload, nowString())
	return err
}

// InsertAccountConfigIfMissing seeds a config without overriding an existing value.
func (r Repo) InsertAccountConfigIfMissing(ctx context.Context, q DBTX, accountID, key string, value any) error {
	payload, err := marshalJSON(value)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT OR IGNORE INTO account_configs(account_id,key,value_json,updated_at) VALUES (?,?,?,?)`,
		accountID, key, payload, nowString())
	return err
}

// ListAccountConfigs returns the configs of the account restricted to keys (all when empty).
func (r Repo) ListAccountConfigs(ctx context.Context, accountID string, keys []string) ([]domain.AccountConfig, error) {
	qb := sq.Select("account_id", "key", "value_json").From("account_configs").
		Where(sq.Eq{"account_id": accountID}).OrderBy("key")
	if len(keys) > 0 {
		qb = qb.Where(sq.Eq{"key": keys})
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
	var res []domain.AccountConfig
	for rows.Next() {
		var c domain.AccountConfig
		var payload string
		if err := rows.Scan(&c.AccountID, &c.Key, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &c.Value); err != nil {
			return nil, fmt.Errorf("account config %s: %w", c.Key, err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// --- templates ---

func (r Repo) InsertTemplate(ctx context.Context, q DBTX, t domain.Template) error {
	fields, err := marshalJSON(t.Fields)
	if err != nil {
		return err
	}
	submitters, err := marshalJSON(t.Submitters)
	if err != nil {
		return err
	}
	schema, err := marshalJSON(t.Schema)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO templates(id,account_id,name,fields_json,submitters_json,schema_json,archived_at,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, t.AccountID, t.Name, fields, submitters, schema, nullableStringPtr(t.ArchivedAt), t.CreatedAt)
	return err
}

func (r Repo) GetTemplate(ctx context.Context, q DBTX, id string) (domain.Template, error) {
	var (
		t                          domain.Template
		fields, submitters, schema string
		archived                   sql.NullString
	)
	err := q.QueryRowContext(ctx, `SELECT id,account_id,name,fields_json,submitters_json,schema_json,archived_at,created_at FROM templates WHERE id=?`, id).
		Scan(&t.ID, &t.AccountID, &t.Name, &fields, &submitters, &schema, &archived, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.ArchivedAt = stringPtr(archived)
	if err := json.Unmarshal([]byte(fields), &t.Fields); err != nil {
		return t, fmt.Errorf("template fields: %w", err)
	}
	if err := json.Unmarshal([]byte(submitters), &t.Submitters); err != nil {
		return t, fmt.Errorf("template submitters: %w", err)
	}
	if err := json.Unmarshal([]byte(schema), &t.Schema); err != nil {
		return t, fmt.Errorf("template schema: %w", err)
	}
	return t, nil
}

func (r Repo) ArchiveTemplate(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE templates SET archived_at=? WHERE id=? AND archived_at IS NULL`, nowString(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListTemplates(ctx context.Context, accountID string) ([]domain.Template, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM templates WHERE account_id=? ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	res := make([]domain.Template, 0, len(ids))
	for _, id := range ids {
		t, err := r.GetTemplate(ctx, r.DB, id)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}
