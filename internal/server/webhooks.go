package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"signflow/internal/config"
	"signflow/internal/engine"
	"signflow/internal/events"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// Outbound event names.
const (
	WebhookFormStarted         = "form.started"
	WebhookFormCompleted       = "form.completed"
	WebhookFormDeclined        = "form.declined"
	WebhookSubmissionCompleted = "submission.completed"
)

// webhookEventType maps a tracking event to its outbound name. submission.completed
// is sent by the send_completed_webhook job, not by the poller.
func webhookEventType(evtType string) string {
	switch evtType {
	case events.StartForm:
		return WebhookFormStarted
	case events.CompleteForm:
		return WebhookFormCompleted
	case events.DeclineForm:
		return WebhookFormDeclined
	default:
		return ""
	}
}

// WebhookDispatcher posts party events to the configured webhooks.
type WebhookDispatcher struct {
	engine   engine.Engine
	webhooks []config.WebhookConfig
	client   *http.Client
	logger   *zap.Logger
	interval time.Duration
	mu       sync.Mutex
	cursors  map[int]int64
}

func NewWebhookDispatcher(e engine.Engine, logger *zap.Logger) *WebhookDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	var hooks []config.WebhookConfig
	if e.Config != nil {
		hooks = e.Config.Webhooks
	}
	return &WebhookDispatcher{
		engine:   e,
		webhooks: hooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		logger:   logger,
		interval: defaultWebhookInterval,
		cursors:  make(map[int]int64),
	}
}

// Run polls the event log until ctx is done.
func (d *WebhookDispatcher) Run(ctx context.Context) {
	if len(d.webhooks) == 0 {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		d.DispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchAll delivers pending events to every enabled webhook once.
func (d *WebhookDispatcher) DispatchAll(ctx context.Context) {
	for i, hook := range d.webhooks {
		if !hookEnabled(hook) {
			continue
		}
		d.dispatchWebhook(ctx, i, hook)
	}
}

func hookEnabled(hook config.WebhookConfig) bool {
	if hook.Enabled != nil && !*hook.Enabled {
		return false
	}
	return strings.TrimSpace(hook.URL) != ""
}

func (d *WebhookDispatcher) dispatchWebhook(ctx context.Context, idx int, hook config.WebhookConfig) {
	cursor := d.cursorFor(ctx, idx)
	evts, err := d.engine.Repo.EventsAfter(ctx, defaultWebhookBatch, cursor)
	if err != nil {
		d.logger.Warn("webhook: fetch events failed", zap.Error(err))
		return
	}
	filter := newEventFilter(hook.Events)
	for _, evt := range evts {
		name := webhookEventType(evt.Type)
		if name == "" || !filter.match(name) {
			d.setCursor(idx, evt.ID)
			continue
		}
		body := webhookEvent{
			ID:           evt.ID,
			Type:         name,
			TS:           evt.TS,
			SubmissionID: evt.SubmissionID,
			SubmitterID:  evt.SubmitterID,
		}
		body.Payload, body.PayloadRaw = splitPayload(evt.Payload)
		if sub, err := d.engine.GetSubmitter(ctx, evt.SubmitterID); err == nil {
			resp := submitterResponse(sub)
			body.Submitter = &resp
		}
		if err := d.post(ctx, hook, fmt.Sprintf("%d", evt.ID), body); err != nil {
			d.logger.Warn("webhook: delivery failed",
				zap.String("url", hook.URL), zap.Int64("event_id", evt.ID), zap.Error(err))
			return
		}
		d.setCursor(idx, evt.ID)
	}
}

// cursorFor starts a webhook at the newest event, so only events after startup are sent.
func (d *WebhookDispatcher) cursorFor(ctx context.Context, idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur, err := d.engine.Repo.LatestEventID(ctx)
	if err != nil {
		d.logger.Warn("webhook: init cursor failed", zap.Error(err))
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *WebhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

// DeliverSubmissionCompleted is the send_completed_webhook job handler.
func (d *WebhookDispatcher) DeliverSubmissionCompleted(ctx context.Context, payload map[string]any) error {
	submissionID, _ := payload["submission_id"].(string)
	if submissionID == "" {
		return fmt.Errorf("%s: submission_id missing", engine.JobSendCompletedWebhook)
	}
	submission, err := d.engine.GetSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	now := time.Now
	if d.engine.Now != nil {
		now = d.engine.Now
	}
	body := webhookEvent{
		Type:         WebhookSubmissionCompleted,
		TS:           now().UTC().Format(time.RFC3339),
		SubmissionID: submission.ID,
		Submitters:   make([]SubmitterResponse, 0, len(submission.Submitters)),
	}
	for _, sub := range submission.Submitters {
		body.Submitters = append(body.Submitters, submitterResponse(sub))
	}
	var errs []error
	for _, hook := range d.webhooks {
		if !hookEnabled(hook) || !newEventFilter(hook.Events).match(WebhookSubmissionCompleted) {
			continue
		}
		if err := d.post(ctx, hook, "submission-"+submission.ID, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hook.URL, err))
		}
	}
	return errors.Join(errs...)
}

type webhookEvent struct {
	ID           int64               `json:"id,omitempty"`
	Type         string              `json:"type"`
	TS           string              `json:"ts"`
	SubmissionID string              `json:"submission_id"`
	SubmitterID  string              `json:"submitter_id,omitempty"`
	Payload      json.RawMessage     `json:"payload,omitempty"`
	PayloadRaw   string              `json:"payload_raw,omitempty"`
	Submitter    *SubmitterResponse  `json:"submitter,omitempty"`
	Submitters   []SubmitterResponse `json:"submitters,omitempty"`
}

func splitPayload(raw string) (json.RawMessage, string) {
	if raw == "" {
		return json.RawMessage("{}"), ""
	}
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw), ""
	}
	return json.RawMessage("{}"), raw
}

func (d *WebhookDispatcher) post(ctx context.Context, hook config.WebhookConfig, delivery string, body webhookEvent) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	client := d.client
	if timeout != d.client.Timeout {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signflow-Event", body.Type)
	req.Header.Set("X-Signflow-Delivery", delivery)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Signflow-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(evts []string) eventFilter {
	if len(evts) == 0 {
		return eventFilter{all: true}
	}
	set := make(map[string]struct{}, len(evts))
	for _, evt := range evts {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
