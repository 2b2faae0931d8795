package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"signflow/internal/domain"
	"signflow/internal/events"
	"signflow/internal/repo"
)

// SubmissionParty seeds one party when a submission is created.
type SubmissionParty struct {
	UUID  string `json:"uuid" validate:"required"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty"`
}

type SubmissionCreateOptions struct {
	ID         string
	TemplateID string
	Parties    []SubmissionParty
	ExpiresAt  string
}

// CreateSubmission opens a submission of a template with its first parties. The
// template snapshot is taken on the first form update.
func (e Engine) CreateSubmission(ctx context.Context, opts SubmissionCreateOptions) (domain.Submission, error) {
	if strings.TrimSpace(opts.TemplateID) == "" {
		return domain.Submission{}, errors.New("template is required")
	}
	if len(opts.Parties) == 0 {
		return domain.Submission{}, errors.New("at least one party is required")
	}
	for _, p := range opts.Parties {
		if err := inviteValidator.Struct(p); err != nil {
			return domain.Submission{}, fmt.Errorf("invalid party %s: %w", p.UUID, err)
		}
	}
	tmpl, err := e.Repo.GetTemplate(ctx, e.DB, opts.TemplateID)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("template %s: %w", opts.TemplateID, err)
	}
	if tmpl.ArchivedAt != nil {
		return domain.Submission{}, fmt.Errorf("template %s is archived", tmpl.ID)
	}
	slots := map[string]bool{}
	for _, ts := range tmpl.Submitters {
		slots[ts.UUID] = true
	}
	seen := map[string]bool{}
	for _, p := range opts.Parties {
		if !slots[p.UUID] {
			return domain.Submission{}, fmt.Errorf("party %s is not a slot of template %s", p.UUID, tmpl.ID)
		}
		if seen[p.UUID] {
			return domain.Submission{}, fmt.Errorf("party %s listed twice", p.UUID)
		}
		seen[p.UUID] = true
	}

	now := e.nowString()
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	s := domain.Submission{
		ID:         id,
		AccountID:  tmpl.AccountID,
		TemplateID: tmpl.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if opts.ExpiresAt != "" {
		exp := opts.ExpiresAt
		s.ExpiresAt = &exp
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Submission{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertSubmission(ctx, tx, s); err != nil {
		return domain.Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	for _, p := range opts.Parties {
		sub := domain.Submitter{
			ID:           uuid.NewString(),
			SubmissionID: s.ID,
			AccountID:    s.AccountID,
			UUID:         p.UUID,
			Name:         p.Name,
			Email:        p.Email,
			Phone:        p.Phone,
			Values:       map[string]any{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := e.Repo.InsertSubmitter(ctx, tx, sub); err != nil {
			return domain.Submission{}, fmt.Errorf("insert party %s: %w", p.UUID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Submission{}, err
	}
	return e.Repo.GetSubmission(ctx, e.DB, s.ID)
}

// ListSubmitters lists parties with optional filters.
func (e Engine) ListSubmitters(ctx context.Context, f repo.SubmitterFilters) ([]domain.Submitter, error) {
	return e.Repo.ListSubmitters(ctx, e.DB, f)
}

// RecordVerification marks a party's identity as verified.
func (e Engine) RecordVerification(ctx context.Context, submitterID string, rc RequestContext) error {
	sub, err := e.Repo.GetSubmitter(ctx, e.DB, submitterID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.events().Record(ctx, tx, sub.SubmissionID, sub.ID, events.CompleteVerification, rc.meta(), nil); err != nil {
		return err
	}
	return tx.Commit()
}
