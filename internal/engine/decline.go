package engine

import (
	"context"
	"fmt"
	"strings"

	"signflow/internal/domain"
	"signflow/internal/events"
)

// Decline moves an in-progress party to declined. Completed or declined parties and
// closed submissions are refused.
func (e Engine) Decline(ctx context.Context, submitterID, reason string, rc RequestContext) (domain.Submitter, error) {
	party, submission, err := e.load(ctx, submitterID)
	if err != nil {
		return domain.Submitter{}, boundary(err)
	}
	if err := e.checkOpen(party, submission); err != nil {
		return domain.Submitter{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Submitter{}, boundary(err)
	}
	defer tx.Rollback()

	current, err := e.Repo.GetSubmitter(ctx, tx, party.ID)
	if err != nil {
		return domain.Submitter{}, boundary(err)
	}
	if err := e.checkOpen(current, submission); err != nil {
		return domain.Submitter{}, err
	}
	now := e.nowString()
	current.DeclinedAt = &now
	current.UpdatedAt = now
	if current.OpenedAt == nil {
		current.OpenedAt = &now
	}
	payload := events.Payload{}
	if r := strings.TrimSpace(reason); r != "" {
		payload["reason"] = r
	}
	if err := e.events().Record(ctx, tx, submission.ID, current.ID, events.DeclineForm, rc.meta(), payload); err != nil {
		return domain.Submitter{}, boundary(err)
	}
	if err := e.Repo.UpdateSubmitter(ctx, tx, current); err != nil {
		return domain.Submitter{}, boundary(fmt.Errorf("update submitter: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return domain.Submitter{}, boundary(err)
	}
	return current, nil
}
