// Package templates imports template definitions into the workspace.
package templates

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"signflow/internal/domain"
	"signflow/internal/repo"
)

const schemaURL = "https://signflow.local/schemas/template.schema.json"

//go:embed template.schema.json
var schemaJSON string

// Importer validates template documents and stores them.
type Importer struct {
	Repo   repo.Repo
	Now    func() time.Time
	schema *jsonschema.Schema
}

func NewImporter(r repo.Repo) (*Importer, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, bytes.NewReader([]byte(schemaJSON))); err != nil {
		return nil, fmt.Errorf("template schema load failed: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("template schema compile failed: %w", err)
	}
	return &Importer{Repo: r, Now: time.Now, schema: compiled}, nil
}

// Parse validates raw against the template schema and the cross-reference rules and
// returns the decoded template.
func (im *Importer) Parse(raw []byte) (domain.Template, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return domain.Template{}, fmt.Errorf("template is not valid JSON: %w", err)
	}
	if err := im.schema.Validate(doc); err != nil {
		return domain.Template{}, fmt.Errorf("template schema: %w", err)
	}
	var t domain.Template
	if err := json.Unmarshal(raw, &t); err != nil {
		return domain.Template{}, fmt.Errorf("decode template: %w", err)
	}
	if err := Check(t); err != nil {
		return domain.Template{}, err
	}
	return t, nil
}

// Import parses raw and stores it for the account. A missing id is generated.
func (im *Importer) Import(ctx context.Context, accountID string, raw []byte) (domain.Template, error) {
	t, err := im.Parse(raw)
	if err != nil {
		return domain.Template{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.AccountID = accountID
	t.ArchivedAt = nil
	now := time.Now
	if im.Now != nil {
		now = im.Now
	}
	t.CreatedAt = now().UTC().Format(time.RFC3339)
	if err := im.Repo.InsertTemplate(ctx, im.Repo.DB, t); err != nil {
		return domain.Template{}, fmt.Errorf("insert template: %w", err)
	}
	return t, nil
}

// Check enforces what the schema cannot: unique uuids, owners and invite links that
// name existing slots, and conditions that point at existing fields.
func Check(t domain.Template) error {
	var errs []error
	slots := map[string]bool{}
	for _, s := range t.Submitters {
		if slots[s.UUID] {
			errs = append(errs, fmt.Errorf("duplicate submitter uuid %s", s.UUID))
		}
		slots[s.UUID] = true
	}
	fields := map[string]bool{}
	for _, f := range t.Fields {
		if fields[f.UUID] {
			errs = append(errs, fmt.Errorf("duplicate field uuid %s", f.UUID))
		}
		fields[f.UUID] = true
		if !slots[f.SubmitterUUID] {
			errs = append(errs, fmt.Errorf("field %s: unknown submitter %s", f.UUID, f.SubmitterUUID))
		}
	}
	checkConds := func(owner string, conds []domain.Condition) {
		for _, c := range conds {
			if !fields[c.FieldUUID] {
				errs = append(errs, fmt.Errorf("%s: condition references unknown field %s", owner, c.FieldUUID))
			}
		}
	}
	for _, f := range t.Fields {
		checkConds("field "+f.UUID, f.Conditions)
		for _, c := range f.Conditions {
			if c.FieldUUID == f.UUID {
				errs = append(errs, fmt.Errorf("field %s: condition references itself", f.UUID))
			}
		}
	}
	for _, s := range t.Submitters {
		checkConds("submitter "+s.UUID, s.Conditions)
		for _, link := range []string{s.InviteByUUID, s.OptionalInviteByUUID} {
			if link != "" && !slots[link] {
				errs = append(errs, fmt.Errorf("submitter %s: invited by unknown submitter %s", s.UUID, link))
			}
			if link == s.UUID {
				errs = append(errs, fmt.Errorf("submitter %s: invites itself", s.UUID))
			}
		}
	}
	for _, d := range t.Schema {
		checkConds("document "+d.AttachmentUUID, d.Conditions)
	}
	return errors.Join(errs...)
}
