package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signflow/internal/engine"
	"signflow/internal/jobs"
)

func TestOpenSeedsAccountFromConfig(t *testing.T) {
	ws := t.TempDir()
	cfg := "account:\n  id: acme\n  name: Acme\n  timezone: Europe/Amsterdam\n  locale: nl\nform:\n  allow_to_decline: false\n"
	require.NoError(t, os.WriteFile(filepath.Join(ws, "signflow.yml"), []byte(cfg), 0o644))

	ctx := context.Background()
	rt, err := Open(ctx, Options{Workspace: ws})
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, "acme", rt.AccountID)
	acc, err := rt.Engine.Repo.GetAccount(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Amsterdam", acc.Timezone)
	assert.Equal(t, "nl", acc.Locale)

	configs, err := rt.Engine.Repo.ListAccountConfigs(ctx, "acme", []string{engine.KeyAllowToDecline, engine.KeyReuseSignature})
	require.NoError(t, err)
	got := map[string]any{}
	for _, c := range configs {
		got[c.Key] = c.Value
	}
	assert.Equal(t, false, got[engine.KeyAllowToDecline])
	assert.Equal(t, true, got[engine.KeyReuseSignature])

	_, isOutbox := rt.Source.(jobs.Outbox)
	assert.True(t, isOutbox)
}

func TestResolveAccountPrefersSingleAccount(t *testing.T) {
	ws := t.TempDir()
	ctx := context.Background()
	rt, err := Open(ctx, Options{Workspace: ws, Account: "first"})
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	rt, err = Open(ctx, Options{Workspace: ws})
	require.NoError(t, err)
	defer rt.Close()
	assert.Equal(t, "first", rt.AccountID)
}

func TestWorkerRegistersEngineJobs(t *testing.T) {
	rt, err := Open(context.Background(), Options{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer rt.Close()

	w := rt.Worker(map[string]jobs.Handler{"extra": func(context.Context, map[string]any) error { return nil }})
	for _, name := range []string{engine.JobProcessSubmitterCompletion, jobs.JobSearchReindex, "extra"} {
		assert.Contains(t, w.Handlers, name)
	}
}
