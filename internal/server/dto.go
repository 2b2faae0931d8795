package server

import (
	"encoding/json"

	"signflow/internal/domain"
	"signflow/internal/engine"
)

// Request payloads

type SubmitValuesRequest struct {
	Values         map[string]any `json:"values,omitempty"`
	Completed      bool           `json:"completed,omitempty"`
	CastBoolean    bool           `json:"cast_boolean,omitempty"`
	CastNumber     bool           `json:"cast_number,omitempty"`
	NormalizePhone bool           `json:"normalize_phone,omitempty"`
	WithReason     string         `json:"with_reason,omitempty" doc:"uuid of the reason field for the submitted signature"`
	Timezone       string         `json:"timezone,omitempty"`
}

type InvitePartyRequest struct {
	UUID  string `json:"uuid" minLength:"1"`
	Email string `json:"email,omitempty"`
}

type InviteRequest struct {
	Submitters []InvitePartyRequest `json:"submitters"`
}

type DeclineRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Response payloads

type SubmitterResponse struct {
	ID           string         `json:"id"`
	SubmissionID string         `json:"submission_id"`
	UUID         string         `json:"uuid"`
	Name         string         `json:"name,omitempty"`
	Email        string         `json:"email,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	Status       string         `json:"status" enum:"awaiting,opened,completed,declined"`
	Values       map[string]any `json:"values"`
	OpenedAt     *string        `json:"opened_at,omitempty" format:"date-time"`
	CompletedAt  *string        `json:"completed_at,omitempty" format:"date-time"`
	DeclinedAt   *string        `json:"declined_at,omitempty" format:"date-time"`
	UpdatedAt    string         `json:"updated_at" format:"date-time"`
}

type InviteResponse struct {
	Completed bool                `json:"completed"`
	Created   []SubmitterResponse `json:"created"`
	Submitter SubmitterResponse   `json:"submitter"`
}

type EventResponse struct {
	ID           int64           `json:"id"`
	TS           string          `json:"ts" format:"date-time"`
	Type         string          `json:"type"`
	SubmissionID string          `json:"submission_id"`
	SubmitterID  string          `json:"submitter_id,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func submitterResponse(s domain.Submitter) SubmitterResponse {
	vals := s.Values
	if vals == nil {
		vals = map[string]any{}
	}
	return SubmitterResponse{
		ID:           s.ID,
		SubmissionID: s.SubmissionID,
		UUID:         s.UUID,
		Name:         s.Name,
		Email:        s.Email,
		Phone:        s.Phone,
		Status:       s.Status(),
		Values:       vals,
		OpenedAt:     s.OpenedAt,
		CompletedAt:  s.CompletedAt,
		DeclinedAt:   s.DeclinedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func inviteResponse(res engine.InviteResult) InviteResponse {
	out := InviteResponse{
		Completed: res.Completed,
		Created:   make([]SubmitterResponse, 0, len(res.Created)),
		Submitter: submitterResponse(res.Submitter),
	}
	for _, s := range res.Created {
		out.Created = append(out.Created, submitterResponse(s))
	}
	return out
}

func eventResponse(evt domain.SubmissionEvent) EventResponse {
	out := EventResponse{
		ID:           evt.ID,
		TS:           evt.TS,
		Type:         evt.Type,
		SubmissionID: evt.SubmissionID,
		SubmitterID:  evt.SubmitterID,
	}
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		out.Payload = json.RawMessage(evt.Payload)
	}
	return out
}
