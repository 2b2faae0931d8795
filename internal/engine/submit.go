package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"signflow/internal/domain"
	"signflow/internal/engine/values"
	"signflow/internal/events"
)

// SubmitInput is one form update from a party.
type SubmitInput struct {
	Values map[string]any
	values.CastFlags
	// Completed signals completion intent.
	Completed bool
	// WithReason names the reason field uuid of the submitted signature.
	WithReason string
}

// Submit merges a form update into the party and, with completion intent, completes
// it. The only errors returned are *RequiredFieldError and *ValidationError.
func (e Engine) Submit(ctx context.Context, submitterID string, in SubmitInput, rc RequestContext, validateRequired bool) (domain.Submitter, error) {
	sub, err := e.submit(ctx, submitterID, in, rc, validateRequired)
	if err != nil {
		return domain.Submitter{}, boundary(err)
	}
	return sub, nil
}

func (e Engine) submit(ctx context.Context, submitterID string, in SubmitInput, rc RequestContext, validateRequired bool) (domain.Submitter, error) {
	party, submission, err := e.load(ctx, submitterID)
	if err != nil {
		return domain.Submitter{}, err
	}
	if err := e.checkOpen(party, submission); err != nil {
		return domain.Submitter{}, err
	}
	s, err := e.Settings(ctx, submission.AccountID)
	if err != nil {
		return domain.Submitter{}, err
	}
	submission, err = e.prepare(ctx, party, submission, rc, true)
	if err != nil {
		return domain.Submitter{}, err
	}

	submitted := values.Normalize(in.Values, in.CastFlags)
	party.Values = domain.MergeValues(party.Values, submitted)
	now := e.nowString()
	if party.OpenedAt == nil {
		party.OpenedAt = &now
	}
	var stamps []domain.Attachment
	if in.Completed {
		if stamps, err = e.assignCompleted(ctx, submission, &party, rc, s, validateRequired); err != nil {
			return domain.Submitter{}, err
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Submitter{}, err
	}
	defer tx.Rollback()

	current, err := e.Repo.GetSubmitter(ctx, tx, party.ID)
	if err != nil {
		return domain.Submitter{}, err
	}
	if current.Completed() {
		return domain.Submitter{}, &ValidationError{Message: ErrAlreadyCompleted.Error(), Err: ErrAlreadyCompleted}
	}
	fresh, err := e.Repo.GetSubmission(ctx, tx, submission.ID)
	if err != nil {
		return domain.Submitter{}, err
	}
	if reason := strings.TrimSpace(in.WithReason); reason != "" {
		if err := applySignatureReason(&fresh, party, submitted, reason, s); err != nil {
			return domain.Submitter{}, err
		}
	}
	if err := e.validateValues(submitted, fresh.FieldIndex(), party, s); err != nil {
		return domain.Submitter{}, err
	}
	if in.Completed {
		if err := e.events().Record(ctx, tx, submission.ID, party.ID, events.CompleteForm, rc.meta(), nil); err != nil {
			return domain.Submitter{}, err
		}
	}
	party.UpdatedAt = now
	if err := e.Repo.UpdateSubmitter(ctx, tx, party); err != nil {
		return domain.Submitter{}, fmt.Errorf("update submitter: %w", err)
	}
	for _, stamp := range stamps {
		if err := e.Stamps.SaveStamp(ctx, tx, stamp); err != nil {
			return domain.Submitter{}, err
		}
	}
	fresh.UpdatedAt = now
	if err := e.Repo.UpdateSubmission(ctx, tx, fresh); err != nil {
		return domain.Submitter{}, fmt.Errorf("update submission: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Submitter{}, err
	}

	if party.Completed() {
		e.reindex(ctx, "Submitter", party.ID)
		e.enqueue(ctx, JobProcessSubmitterCompletion, map[string]any{"submitter_id": party.ID})
	}
	return party, nil
}

// checkOpen refuses updates to terminal parties and closed submissions.
func (e Engine) checkOpen(party domain.Submitter, submission domain.Submission) error {
	switch {
	case party.Completed():
		return &ValidationError{Message: ErrAlreadyCompleted.Error(), Err: ErrAlreadyCompleted}
	case party.Declined():
		return &ValidationError{Message: ErrDeclined.Error(), Err: ErrDeclined}
	case submission.ArchivedAt != nil || e.expired(submission):
		return &ValidationError{Message: ErrSubmissionClosed.Error(), Err: ErrSubmissionClosed}
	}
	return nil
}

// prepare freezes the template onto the submission and, when track is set, records the
// party's start_form event once.
func (e Engine) prepare(ctx context.Context, party domain.Submitter, submission domain.Submission, rc RequestContext, track bool) (domain.Submission, error) {
	started := true
	if track {
		var err error
		started, err = e.Repo.EventExists(ctx, e.DB, party.ID, events.StartForm)
		if err != nil {
			return submission, err
		}
	}
	if submission.Frozen() && started {
		return submission, nil
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return submission, err
	}
	defer tx.Rollback()
	if !submission.Frozen() {
		tmpl, err := e.Repo.GetTemplate(ctx, tx, submission.TemplateID)
		if err != nil {
			return submission, fmt.Errorf("template %s: %w", submission.TemplateID, err)
		}
		freeze(&submission, tmpl)
		submission.UpdatedAt = e.nowString()
		if err := e.Repo.UpdateSubmission(ctx, tx, submission); err != nil {
			return submission, fmt.Errorf("freeze template: %w", err)
		}
	}
	if !started {
		if err := e.events().Record(ctx, tx, submission.ID, party.ID, events.StartForm, rc.meta(), nil); err != nil {
			return submission, err
		}
	}
	return submission, tx.Commit()
}

// freeze copies the template's fields, party slots and documents onto the submission
// so later template edits do not reach it.
func freeze(submission *domain.Submission, tmpl domain.Template) {
	submission.TemplateFields = make([]domain.Field, len(tmpl.Fields))
	for i, f := range tmpl.Fields {
		submission.TemplateFields[i] = f.Clone()
	}
	submission.TemplateSubmitters = append([]domain.TemplateSubmitter(nil), tmpl.Submitters...)
	submission.TemplateSchema = append([]domain.SchemaDocument(nil), tmpl.Schema...)
}

// assignCompleted stamps completion and computes the final value set: defaults, then
// pruning, then formula rounds (each followed by pruning) until no formula value
// changes or the round cap is hit. It returns the stamps still to be stored.
func (e Engine) assignCompleted(ctx context.Context, submission domain.Submission, party *domain.Submitter, rc RequestContext, s Settings, validateRequired bool) ([]domain.Attachment, error) {
	now := e.nowString()
	party.CompletedAt = &now
	party.IP = rc.IP
	party.UserAgent = rc.UserAgent
	party.Timezone = rc.Timezone

	vals, stamps, err := e.ResolveDefaults(ctx, submission, *party, s)
	if err != nil {
		return nil, err
	}
	party.Values = vals
	vals, required := e.Prune(submission, *party, s)
	party.Values = vals

	rounds := s.MaxFormulaRounds
	if rounds <= 0 {
		rounds = 2
	}
	for round := 0; round < rounds; round++ {
		computed, err := e.ResolveFormulas(submission, *party, s)
		if err != nil {
			return nil, err
		}
		if !overlayChanged(party.Values, computed) {
			break
		}
		party.Values = domain.MergeValues(party.Values, computed)
		party.Values, required = e.Prune(submission, *party, s)
	}
	e.replaceDateSentinel(party.Values, s)

	for _, uuid := range required {
		if domain.IsPresent(party.Values[uuid]) {
			continue
		}
		if validateRequired {
			return nil, &RequiredFieldError{FieldUUID: uuid}
		}
		e.logger().Warn("required field left blank",
			zap.String("submitter_id", party.ID),
			zap.String("field_uuid", uuid))
	}
	return keptStamps(stamps, party.Values), nil
}

// keptStamps drops stamps whose field was pruned from the final values.
func keptStamps(stamps []domain.Attachment, vals map[string]any) []domain.Attachment {
	refs := make(map[string]bool, len(vals))
	for _, v := range vals {
		if ref, ok := v.(string); ok {
			refs[ref] = true
		}
	}
	var out []domain.Attachment
	for _, a := range stamps {
		if refs[a.UUID] {
			out = append(out, a)
		}
	}
	return out
}
