package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signflow/internal/domain"
)

func newMock(t *testing.T) (Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return Repo{DB: db}, mock
}

func TestGetAccountNotFound(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id,name,timezone,locale,created_at FROM accounts WHERE id=?`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "timezone", "locale", "created_at"}))

	_, err := r.GetAccount(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSingleAccountRejectsAmbiguity(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id,name,timezone,locale,created_at FROM accounts`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "timezone", "locale", "created_at"}).
			AddRow("a", "A", "UTC", "en", "2026-01-01T00:00:00Z").
			AddRow("b", "B", "UTC", "en", "2026-01-01T00:00:00Z"))

	_, err := r.SingleAccount(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple accounts")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAccountConfigsDecodesValues(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(`SELECT account_id, key, value_json FROM account_configs WHERE .+ ORDER BY key`).
		WithArgs("acc", "allow_to_decline", "policy_links").
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "key", "value_json"}).
			AddRow("acc", "allow_to_decline", "false").
			AddRow("acc", "policy_links", `["https://example.com/terms"]`))

	configs, err := r.ListAccountConfigs(context.Background(), "acc", []string{"allow_to_decline", "policy_links"})
	require.NoError(t, err)
	assert.Equal(t, []domain.AccountConfig{
		{AccountID: "acc", Key: "allow_to_decline", Value: false},
		{AccountID: "acc", Key: "policy_links", Value: []any{"https://example.com/terms"}},
	}, configs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAccountConfigsBadJSON(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(`SELECT account_id, key, value_json FROM account_configs`).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "key", "value_json"}).
			AddRow("acc", "form_completed_message", "{broken"))

	_, err := r.ListAccountConfigs(context.Background(), "acc", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account config form_completed_message")
}

func TestArchiveTemplateNotFound(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE templates SET archived_at=? WHERE id=? AND archived_at IS NULL`)).
		WithArgs(sqlmock.AnyArg(), "tpl").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, r.ArchiveTemplate(context.Background(), "tpl"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWritesInsideTransactionRollBack(t *testing.T) {
	r, mock := newMock(t)
	boom := errors.New("disk full")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO accounts(id,name,timezone,locale,created_at)`)).
		WithArgs("acc", "Acme", "UTC", "en", sqlmock.AnyArg()).
		WillReturnError(boom)
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	err = r.UpsertAccount(ctx, tx, domain.Account{ID: "acc", Name: "Acme", Timezone: "UTC", Locale: "en"})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}
