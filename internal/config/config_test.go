package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signflow/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Formulas.MaxDepth)
	assert.Equal(t, 2, cfg.Formulas.MaxRounds)
	assert.Equal(t, 16, cfg.Invites.GuardianAgeThreshold)
	assert.Equal(t, 7, cfg.Phone.MinDigits)
	assert.Equal(t, 15, cfg.Phone.MaxDigits)
	assert.Equal(t, true, cfg.Form["allow_to_decline"])
	ttl, err := cfg.Auth.TTL()
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, ttl)
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
account:
  locale: nl
  timezone: Europe/Amsterdam
form:
  require_signing_reason: true
webhooks:
  - url: https://example.test/hook
    events: [form.completed]
`))
	require.NoError(t, err)
	assert.Equal(t, "nl", cfg.Account.Locale)
	assert.Equal(t, "default", cfg.Account.ID)
	assert.Equal(t, true, cfg.Form["require_signing_reason"])
	assert.Equal(t, true, cfg.Form["allow_typed_signature"])
	require.Len(t, cfg.Webhooks, 1)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"locale":   "account:\n  locale: fr\n",
		"redis":    "jobs:\n  backend: redis\n",
		"phone":    "phone:\n  min_digits: 9\n  max_digits: 8\n",
		"webhook":  "webhooks:\n  - events: [form.completed]\n",
		"ttl":      "auth:\n  token_ttl: soon\n",
		"backend":  "jobs:\n  backend: kafka\n",
		"timezone": "account:\n  timezone: Mars/Olympus\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.FromYAML([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "en", cfg.Account.Locale)
}

func TestLoadFromWorkspace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte("invites:\n  guardian_age_threshold: 18\n"), 0o644))
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 18, cfg.Invites.GuardianAgeThreshold)
}
