package templates

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signflow/internal/db"
	"signflow/internal/domain"
	"signflow/internal/migrate"
	"signflow/internal/repo"
)

const validTemplate = `{
  "id": "tpl-1",
  "name": "Consent",
  "submitters": [
    {"uuid": "parent", "name": "Parent"},
    {"uuid": "child", "name": "Child", "optional_invite_by_uuid": "parent"}
  ],
  "fields": [
    {"uuid": "dob", "submitter_uuid": "parent", "type": "date", "required": true},
    {"uuid": "sig", "submitter_uuid": "child", "type": "signature",
     "conditions": [{"field_uuid": "dob", "action": "age_less_than", "value": 16}]}
  ]
}`

func newImporter(t *testing.T) *Importer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	r := repo.Repo{DB: conn}
	require.NoError(t, r.UpsertAccount(context.Background(), conn, domain.Account{ID: "acc", Name: "Acme", Timezone: "UTC", Locale: "en"}))
	im, err := NewImporter(r)
	require.NoError(t, err)
	im.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return im
}

func TestImportStoresTemplate(t *testing.T) {
	im := newImporter(t)
	ctx := context.Background()
	tmpl, err := im.Import(ctx, "acc", []byte(validTemplate))
	require.NoError(t, err)
	assert.Equal(t, "tpl-1", tmpl.ID)

	got, err := im.Repo.GetTemplate(ctx, im.Repo.DB, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "acc", got.AccountID)
	assert.Equal(t, "2026-01-02T03:04:05Z", got.CreatedAt)
	require.Len(t, got.Fields, 2)
	assert.Equal(t, "age_less_than", got.Fields[1].Conditions[0].Action)
	assert.Equal(t, "parent", got.Submitters[1].OptionalInviteByUUID)
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	im := newImporter(t)
	cases := map[string]string{
		"not json":       `{`,
		"missing name":   `{"fields": [], "submitters": [{"uuid": "a"}]}`,
		"no submitters":  `{"name": "x", "fields": [], "submitters": []}`,
		"bad field type": `{"name": "x", "submitters": [{"uuid": "a"}], "fields": [{"uuid": "f", "submitter_uuid": "a", "type": "laser"}]}`,
		"bad operation":  `{"name": "x", "submitters": [{"uuid": "a"}], "fields": [{"uuid": "f", "submitter_uuid": "a", "type": "text", "conditions": [{"field_uuid": "f", "action": "empty", "operation": "xor"}]}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := im.Parse([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestCheckCrossReferences(t *testing.T) {
	tmpl := domain.Template{
		Submitters: []domain.TemplateSubmitter{
			{UUID: "a"},
			{UUID: "a"},
			{UUID: "b", InviteByUUID: "ghost", Conditions: []domain.Condition{{FieldUUID: "nope", Action: "empty"}}},
		},
		Fields: []domain.Field{
			{UUID: "f1", SubmitterUUID: "a", Type: "text"},
			{UUID: "f1", SubmitterUUID: "z", Type: "text", Conditions: []domain.Condition{{FieldUUID: "f1", Action: "not_empty"}}},
		},
	}
	err := Check(tmpl)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "duplicate submitter uuid a")
	assert.Contains(t, msg, "duplicate field uuid f1")
	assert.Contains(t, msg, "unknown submitter z")
	assert.Contains(t, msg, "invited by unknown submitter ghost")
	assert.Contains(t, msg, "unknown field nope")
	assert.Contains(t, msg, "references itself")

	assert.NoError(t, Check(domain.Template{
		Submitters: []domain.TemplateSubmitter{{UUID: "a"}},
		Fields:     []domain.Field{{UUID: "f", SubmitterUUID: "a", Type: "text"}},
	}))
}
