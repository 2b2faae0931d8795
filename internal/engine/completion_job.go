package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"signflow/internal/events"
)

// ProcessSubmitterCompletion runs after a party completes. Once every party of the
// submission has completed it records submission.completed (once) and schedules the
// completed webhook.
func (e Engine) ProcessSubmitterCompletion(ctx context.Context, payload map[string]any) error {
	submitterID, _ := payload["submitter_id"].(string)
	if submitterID == "" {
		return fmt.Errorf("%s: submitter_id missing", JobProcessSubmitterCompletion)
	}
	party, submission, err := e.load(ctx, submitterID)
	if err != nil {
		return err
	}
	if !party.Completed() {
		return nil
	}
	for _, sub := range submission.Submitters {
		if !sub.Completed() {
			e.logger().Debug("submission still awaiting parties",
				zap.String("submission_id", submission.ID), zap.String("pending_submitter_id", sub.ID))
			return nil
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	done, err := e.Repo.SubmissionEventExists(ctx, tx, submission.ID, events.SubmissionCompleted)
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	if err := e.events().Record(ctx, tx, submission.ID, party.ID, events.SubmissionCompleted, events.RequestMeta{},
		events.Payload{"submitters": len(submission.Submitters)}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.logger().Info("submission completed", zap.String("submission_id", submission.ID))
	e.reindex(ctx, "Submission", submission.ID)
	e.enqueue(ctx, JobSendCompletedWebhook, map[string]any{"submission_id": submission.ID})
	return nil
}
