package signflowsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the signflow party API on behalf of one party. FormToken is
// the bearer token issued for that party.
type Client struct {
	BaseURL     string
	SubmitterID string
	FormToken   string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, submitterID, formToken string) *Client {
	return &Client{
		BaseURL:     baseURL,
		SubmitterID: submitterID,
		FormToken:   formToken,
		Timeout:     10 * time.Second,
	}
}

// Submitter is a party with its collected values.
type Submitter struct {
	ID           string         `json:"id"`
	SubmissionID string         `json:"submission_id"`
	UUID         string         `json:"uuid"`
	Name         string         `json:"name,omitempty"`
	Email        string         `json:"email,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	Status       string         `json:"status"`
	Values       map[string]any `json:"values"`
	OpenedAt     *string        `json:"opened_at,omitempty"`
	CompletedAt  *string        `json:"completed_at,omitempty"`
	DeclinedAt   *string        `json:"declined_at,omitempty"`
	UpdatedAt    string         `json:"updated_at"`
}

// SubmitOptions tunes a value submission.
type SubmitOptions struct {
	Completed      bool   `json:"completed,omitempty"`
	CastBoolean    bool   `json:"cast_boolean,omitempty"`
	CastNumber     bool   `json:"cast_number,omitempty"`
	NormalizePhone bool   `json:"normalize_phone,omitempty"`
	WithReason     string `json:"with_reason,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
}

// Party names a slot to invite and, optionally, who fills it.
type Party struct {
	UUID  string `json:"uuid"`
	Email string `json:"email,omitempty"`
}

// InviteResult lists the parties created by an invite.
type InviteResult struct {
	Completed bool        `json:"completed"`
	Created   []Submitter `json:"created"`
	Submitter Submitter   `json:"submitter"`
}

// Event is a tracking log entry.
type Event struct {
	ID           int64           `json:"id"`
	TS           string          `json:"ts"`
	Type         string          `json:"type"`
	SubmissionID string          `json:"submission_id"`
	SubmitterID  string          `json:"submitter_id,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code is the server's error code when the
// body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Submitter fetches the party.
func (c *Client) Submitter(ctx context.Context) (Submitter, error) {
	var resp Submitter
	err := c.do(ctx, http.MethodGet, c.partyPath(""), nil, &resp)
	return resp, err
}

// Submit saves values and, with opts.Completed, completes the form.
func (c *Client) Submit(ctx context.Context, vals map[string]any, opts SubmitOptions) (Submitter, error) {
	body := struct {
		Values map[string]any `json:"values,omitempty"`
		SubmitOptions
	}{Values: vals, SubmitOptions: opts}
	var resp Submitter
	err := c.do(ctx, http.MethodPost, c.partyPath("values"), body, &resp)
	return resp, err
}

// Invite adds the given parties to the submission.
func (c *Client) Invite(ctx context.Context, parties []Party) (InviteResult, error) {
	body := map[string]any{"submitters": parties}
	var resp InviteResult
	err := c.do(ctx, http.MethodPost, c.partyPath("invite"), body, &resp)
	return resp, err
}

// Decline refuses to sign.
func (c *Client) Decline(ctx context.Context, reason string) (Submitter, error) {
	body := map[string]any{"reason": reason}
	var resp Submitter
	err := c.do(ctx, http.MethodPost, c.partyPath("decline"), body, &resp)
	return resp, err
}

// FormConfigs returns the account toggles for the party's form.
func (c *Client) FormConfigs(ctx context.Context, extraKeys ...string) (map[string]any, error) {
	endpoint := c.partyPath("form-configs")
	if len(extraKeys) > 0 {
		q := url.Values{}
		for _, k := range extraKeys {
			q.Add("extra_keys", k)
		}
		endpoint += "?" + q.Encode()
	}
	resp := map[string]any{}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// EventsPage returns a page of the party's events, newest first.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := c.partyPath("events")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.FormToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.FormToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) partyPath(p string) string {
	base := fmt.Sprintf("v0/submitters/%s", url.PathEscape(c.SubmitterID))
	if p == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
