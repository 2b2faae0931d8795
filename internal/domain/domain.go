package domain

import "strings"

// Field types referenced by the completion engine.
const (
	FieldText          = "text"
	FieldDate          = "date"
	FieldSignature     = "signature"
	FieldStamp         = "stamp"
	FieldCheckbox      = "checkbox"
	FieldSelect        = "select"
	FieldPhone         = "phone"
	FieldVerification  = "verification"
	FieldPayment       = "payment"
	FieldHeading       = "heading"
	FieldStrikethrough = "strikethrough"
)

const SubmittersOrderPreserved = "preserved"

type Option struct {
	UUID  string `json:"uuid"`
	Value string `json:"value,omitempty"`
}

type Area struct {
	AttachmentUUID string  `json:"attachment_uuid"`
	Page           int     `json:"page"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	W              float64 `json:"w"`
	H              float64 `json:"h"`
}

// Condition gates a field (or a party slot, or a document) on another field's value.
// Operation "or" folds with the previous result; anything else is AND.
type Condition struct {
	FieldUUID string `json:"field_uuid"`
	Action    string `json:"action"`
	Value     any    `json:"value,omitempty"`
	Operation string `json:"operation,omitempty"`
}

type Field struct {
	UUID          string         `json:"uuid"`
	SubmitterUUID string         `json:"submitter_uuid"`
	Name          string         `json:"name,omitempty"`
	Type          string         `json:"type"`
	Required      bool           `json:"required,omitempty"`
	Readonly      bool           `json:"readonly,omitempty"`
	DefaultValue  string         `json:"default_value,omitempty"`
	Options       []Option       `json:"options,omitempty"`
	Areas         []Area         `json:"areas,omitempty"`
	Conditions    []Condition    `json:"conditions,omitempty"`
	Preferences   map[string]any `json:"preferences,omitempty"`
}

// Preference returns a string preference or "" when unset.
func (f Field) Preference(key string) string {
	v, _ := f.Preferences[key].(string)
	return v
}

// Formula returns the trimmed formula preference.
func (f Field) Formula() string {
	return strings.TrimSpace(f.Preference("formula"))
}

// Clone deep-copies the mutable parts of the field.
func (f Field) Clone() Field {
	out := f
	out.Options = append([]Option(nil), f.Options...)
	out.Areas = append([]Area(nil), f.Areas...)
	out.Conditions = append([]Condition(nil), f.Conditions...)
	if f.Preferences != nil {
		out.Preferences = make(map[string]any, len(f.Preferences))
		for k, v := range f.Preferences {
			out.Preferences[k] = v
		}
	}
	return out
}

// SchemaDocument is one attached document of a template; its conditions decide whether
// the document is part of this submission.
type SchemaDocument struct {
	AttachmentUUID string      `json:"attachment_uuid"`
	Name           string      `json:"name,omitempty"`
	Conditions     []Condition `json:"conditions,omitempty"`
}

// TemplateSubmitter describes a party slot on a template.
type TemplateSubmitter struct {
	UUID                 string      `json:"uuid"`
	Name                 string      `json:"name"`
	InviteByUUID         string      `json:"invite_by_uuid,omitempty"`
	OptionalInviteByUUID string      `json:"optional_invite_by_uuid,omitempty"`
	Conditions           []Condition `json:"conditions,omitempty"`
}

type Template struct {
	ID         string              `json:"id"`
	AccountID  string              `json:"account_id"`
	Name       string              `json:"name"`
	Fields     []Field             `json:"fields"`
	Submitters []TemplateSubmitter `json:"submitters"`
	Schema     []SchemaDocument    `json:"schema,omitempty"`
	ArchivedAt *string             `json:"archived_at,omitempty" format:"date-time"`
	CreatedAt  string              `json:"created_at" format:"date-time"`
}

type Submission struct {
	ID                 string              `json:"id"`
	AccountID          string              `json:"account_id"`
	TemplateID         string              `json:"template_id"`
	TemplateFields     []Field             `json:"template_fields,omitempty"`
	TemplateSubmitters []TemplateSubmitter `json:"template_submitters,omitempty"`
	TemplateSchema     []SchemaDocument    `json:"template_schema,omitempty"`
	SubmittersOrder    string              `json:"submitters_order,omitempty"`
	ArchivedAt         *string             `json:"archived_at,omitempty" format:"date-time"`
	ExpiresAt          *string             `json:"expires_at,omitempty" format:"date-time"`
	CreatedAt          string              `json:"created_at" format:"date-time"`
	UpdatedAt          string              `json:"updated_at" format:"date-time"`

	// Submitters are the live parties, loaded alongside the submission.
	Submitters []Submitter `json:"submitters,omitempty"`
}

// Frozen reports whether the template snapshot has been copied onto the submission.
func (s Submission) Frozen() bool {
	return len(s.TemplateFields) > 0
}

// FieldIndex maps field uuid to field. Conditions are resolved through it, never
// through per-party state.
func (s Submission) FieldIndex() map[string]Field {
	idx := make(map[string]Field, len(s.TemplateFields))
	for _, f := range s.TemplateFields {
		idx[f.UUID] = f
	}
	return idx
}

// PartyDescriptor looks up the template party slot for a role uuid.
func (s Submission) PartyDescriptor(uuid string) (TemplateSubmitter, bool) {
	for _, ts := range s.TemplateSubmitters {
		if ts.UUID == uuid {
			return ts, true
		}
	}
	return TemplateSubmitter{}, false
}

// HasParty reports whether a live party exists for the role uuid.
func (s Submission) HasParty(uuid string) bool {
	for _, sub := range s.Submitters {
		if sub.UUID == uuid {
			return true
		}
	}
	return false
}

// Submitter is one live party. UUID is the template role it fills.
type Submitter struct {
	ID           string         `json:"id"`
	SubmissionID string         `json:"submission_id"`
	AccountID    string         `json:"account_id"`
	UUID         string         `json:"uuid"`
	Name         string         `json:"name,omitempty"`
	Email        string         `json:"email,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	Values       map[string]any `json:"values"`
	OpenedAt     *string        `json:"opened_at,omitempty" format:"date-time"`
	CompletedAt  *string        `json:"completed_at,omitempty" format:"date-time"`
	DeclinedAt   *string        `json:"declined_at,omitempty" format:"date-time"`
	IP           string         `json:"ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Timezone     string         `json:"timezone,omitempty"`
	CreatedAt    string         `json:"created_at" format:"date-time"`
	UpdatedAt    string         `json:"updated_at" format:"date-time"`
}

func (s Submitter) Completed() bool { return s.CompletedAt != nil }
func (s Submitter) Declined() bool  { return s.DeclinedAt != nil }

// Status is derived; completed and declined are terminal.
func (s Submitter) Status() string {
	switch {
	case s.CompletedAt != nil:
		return "completed"
	case s.DeclinedAt != nil:
		return "declined"
	case s.OpenedAt != nil:
		return "opened"
	default:
		return "awaiting"
	}
}

// Clone copies the submitter including its value map.
func (s Submitter) Clone() Submitter {
	out := s
	out.Values = CloneValues(s.Values)
	return out
}

// CloneValues shallow-copies a value map; slices are copied too.
func CloneValues(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case []any:
			out[k] = append([]any(nil), t...)
		case []string:
			out[k] = append([]string(nil), t...)
		default:
			out[k] = v
		}
	}
	return out
}

type SubmissionEvent struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts" format:"date-time"`
	Type         string `json:"type"`
	SubmissionID string `json:"submission_id"`
	SubmitterID  string `json:"submitter_id,omitempty"`
	IP           string `json:"ip,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
	Payload      string `json:"payload_json"`
}

type Account struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Timezone  string `json:"timezone"`
	Locale    string `json:"locale"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type AccountConfig struct {
	AccountID string `json:"account_id"`
	Key       string `json:"key"`
	Value     any    `json:"value"`
}

type Attachment struct {
	UUID       string         `json:"uuid"`
	RecordType string         `json:"record_type"`
	RecordID   string         `json:"record_id"`
	Name       string         `json:"name"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  string         `json:"created_at" format:"date-time"`
}

type Job struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Payload   string `json:"payload_json"`
	Status    string `json:"status" enum:"pending,done,failed"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}
