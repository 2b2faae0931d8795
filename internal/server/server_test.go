package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signflow/internal/config"
	"signflow/internal/db"
	"signflow/internal/domain"
	"signflow/internal/engine"
	"signflow/internal/engine/auth"
	"signflow/internal/migrate"
)

const testSecret = "test-secret"

var testNow = time.Date(2026, 5, 6, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv     *httptest.Server
	engine  engine.Engine
	signer  domain.Submitter
	witness domain.Submitter
}

func newTestEnv(t *testing.T, hooks ...config.WebhookConfig) *testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	cfg := config.Default()
	cfg.Webhooks = hooks
	e, err := engine.New(conn, cfg)
	require.NoError(t, err)
	e.Now = func() time.Time { return testNow }

	ctx := context.Background()
	require.NoError(t, e.Repo.UpsertAccount(ctx, conn, domain.Account{ID: "default", Name: "Acme", Timezone: "UTC", Locale: "en"}))
	require.NoError(t, e.Repo.InsertTemplate(ctx, conn, domain.Template{
		ID:        "tpl",
		AccountID: "default",
		Name:      "Agreement",
		Submitters: []domain.TemplateSubmitter{
			{UUID: "signer", Name: "Signer"},
			{UUID: "witness", Name: "Witness"},
		},
		Fields: []domain.Field{
			{UUID: "name", SubmitterUUID: "signer", Type: domain.FieldText, Required: true},
			{UUID: "note", SubmitterUUID: "signer", Type: domain.FieldText},
			{UUID: "seen", SubmitterUUID: "witness", Type: domain.FieldCheckbox},
		},
		CreatedAt: testNow.Format(time.RFC3339),
	}))
	submission, err := e.CreateSubmission(ctx, engine.SubmissionCreateOptions{
		TemplateID: "tpl",
		Parties: []engine.SubmissionParty{
			{UUID: "signer", Email: "signer@example.com"},
			{UUID: "witness", Email: "witness@example.com"},
		},
	})
	require.NoError(t, err)
	require.Len(t, submission.Submitters, 2)

	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{Secret: testSecret}})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	env := &testEnv{srv: srv, engine: e}
	for _, sub := range submission.Submitters {
		switch sub.UUID {
		case "signer":
			env.signer = sub
		case "witness":
			env.witness = sub
		}
	}
	return env
}

func (env *testEnv) token(t *testing.T, submitterID string) string {
	t.Helper()
	tok, err := auth.Issue(testSecret, submitterID, "", time.Hour, time.Now())
	require.NoError(t, err)
	return tok
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return res, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthSkipsAuth(t *testing.T) {
	env := newTestEnv(t)
	res, body := doJSON(t, http.MethodGet, env.srv.URL+"/v0/health", "", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestFormTokenRequired(t *testing.T) {
	env := newTestEnv(t)
	url := env.srv.URL + "/v0/submitters/" + env.signer.ID

	res, body := doJSON(t, http.MethodGet, url, "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "unauthorized", errorCode(body))

	res, body = doJSON(t, http.MethodGet, url, "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "invalid_credentials", errorCode(body))

	res, body = doJSON(t, http.MethodGet, url, env.token(t, env.witness.ID), nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "forbidden", errorCode(body))

	res, body = doJSON(t, http.MethodGet, url, env.token(t, env.signer.ID), nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "awaiting", body["status"])
}

func TestSubmitValuesAndComplete(t *testing.T) {
	env := newTestEnv(t)
	url := env.srv.URL + "/v0/submitters/" + env.signer.ID + "/values"
	tok := env.token(t, env.signer.ID)

	res, body := doJSON(t, http.MethodPost, url, tok, SubmitValuesRequest{Values: map[string]any{"note": "draft"}})
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Equal(t, "opened", body["status"])

	res, body = doJSON(t, http.MethodPost, url, tok, SubmitValuesRequest{Completed: true})
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, "required_field", errorCode(body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "name", details["field_uuid"])

	res, body = doJSON(t, http.MethodPost, url, tok, SubmitValuesRequest{Values: map[string]any{"name": "Ann"}, Completed: true})
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Equal(t, "completed", body["status"])
	vals := body["values"].(map[string]any)
	assert.Equal(t, "Ann", vals["name"])
	assert.Equal(t, "draft", vals["note"])

	res, body = doJSON(t, http.MethodPost, url, tok, SubmitValuesRequest{Values: map[string]any{"note": "late"}})
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "already_completed", errorCode(body))

	res, body = doJSON(t, http.MethodGet, env.srv.URL+"/v0/submitters/"+env.signer.ID+"/events", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	items := body["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "complete_form", items[0].(map[string]any)["type"])
	assert.Equal(t, "start_form", items[1].(map[string]any)["type"])
}

func TestSubmitRejectsForeignField(t *testing.T) {
	env := newTestEnv(t)
	url := env.srv.URL + "/v0/submitters/" + env.signer.ID + "/values"
	res, body := doJSON(t, http.MethodPost, url, env.token(t, env.signer.ID), SubmitValuesRequest{Values: map[string]any{"seen": true}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, "validation_failed", errorCode(body))
}

func TestDecline(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, env.witness.ID)
	base := env.srv.URL + "/v0/submitters/" + env.witness.ID

	res, body := doJSON(t, http.MethodPost, base+"/decline", tok, DeclineRequest{Reason: "not me"})
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Equal(t, "declined", body["status"])

	res, body = doJSON(t, http.MethodPost, base+"/values", tok, SubmitValuesRequest{Values: map[string]any{"seen": true}})
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "declined", errorCode(body))
}

func TestFormConfigs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.engine.Repo.UpsertAccountConfig(ctx, env.engine.DB, "default", engine.KeyAllowToDecline, false))
	require.NoError(t, env.engine.Repo.UpsertAccountConfig(ctx, env.engine.DB, "default", "brand_color", "#0af"))

	url := env.srv.URL + "/v0/submitters/" + env.signer.ID + "/form-configs?extra_keys=brand_color"
	res, body := doJSON(t, http.MethodGet, url, env.token(t, env.signer.ID), nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Equal(t, false, body["with_decline"])
	assert.Equal(t, true, body["with_typed_signature"])
	assert.Equal(t, false, body["require_signing_reason"])
	assert.Equal(t, "#0af", body["brand_color"])
}

type capturedHook struct {
	mu      sync.Mutex
	events  []string
	secrets []string
}

func (c *capturedHook) handler(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	c.mu.Lock()
	c.events = append(c.events, r.Header.Get("X-Signflow-Event"))
	c.secrets = append(c.secrets, r.Header.Get("X-Signflow-Secret"))
	c.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func TestWebhookDispatch(t *testing.T) {
	hook := &capturedHook{}
	target := httptest.NewServer(http.HandlerFunc(hook.handler))
	defer target.Close()

	env := newTestEnv(t, config.WebhookConfig{URL: target.URL, Secret: "s"})
	ctx := context.Background()
	d := NewWebhookDispatcher(env.engine, nil)
	d.DispatchAll(ctx) // pins the cursor before any event exists

	_, err := env.engine.Submit(ctx, env.signer.ID, engine.SubmitInput{Values: map[string]any{"name": "Ann"}, Completed: true}, engine.RequestContext{}, true)
	require.NoError(t, err)
	_, err = env.engine.Submit(ctx, env.witness.ID, engine.SubmitInput{Completed: true}, engine.RequestContext{}, true)
	require.NoError(t, err)
	d.DispatchAll(ctx)

	submission, err := env.engine.GetSubmission(ctx, env.signer.SubmissionID)
	require.NoError(t, err)
	require.NoError(t, d.DeliverSubmissionCompleted(ctx, map[string]any{"submission_id": submission.ID}))
	assert.Error(t, d.DeliverSubmissionCompleted(ctx, map[string]any{}))

	hook.mu.Lock()
	defer hook.mu.Unlock()
	assert.Equal(t, []string{
		WebhookFormStarted, WebhookFormCompleted,
		WebhookFormStarted, WebhookFormCompleted,
		WebhookSubmissionCompleted,
	}, hook.events)
	assert.Equal(t, "s", hook.secrets[0])
}

func TestWebhookFilter(t *testing.T) {
	assert.True(t, newEventFilter(nil).match("anything"))
	f := newEventFilter([]string{" form.completed ", ""})
	assert.True(t, f.match(WebhookFormCompleted))
	assert.False(t, f.match(WebhookFormStarted))
	assert.Equal(t, "", webhookEventType("invite_party"))
}

func TestSubmitterFromPath(t *testing.T) {
	id, ok := submitterFromPath("/v0", "/v0/submitters/abc/values")
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
	_, ok = submitterFromPath("/v0", "/v0/health")
	assert.False(t, ok)
}
