package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Tracking event types.
const (
	StartForm            = "start_form"
	CompleteForm         = "complete_form"
	InviteParty          = "invite_party"
	DeclineForm          = "decline_form"
	CompleteVerification = "complete_verification"
	SubmissionCompleted  = "submission.completed"
)

// Execer is the subset of *sql.Tx the writer needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Writer struct {
	Now func() time.Time
}

type Payload map[string]any

// RequestMeta is the request metadata stored alongside an event.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Record appends a tracking event for a submitter inside the caller's transaction.
func (w Writer) Record(ctx context.Context, tx Execer, submissionID, submitterID, evtType string, meta RequestMeta, payload Payload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO submission_events(ts,type,submission_id,submitter_id,ip,user_agent,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, submissionID, nullable(submitterID), nullable(meta.IP), nullable(meta.UserAgent), string(data))
	if err != nil {
		return fmt.Errorf("record %s event: %w", evtType, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
