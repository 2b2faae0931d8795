package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"signflow/internal/domain"
	"signflow/internal/engine/conditions"
	"signflow/internal/events"
)

// InviteParty is one party slot the inviting party filled in.
type InviteParty struct {
	UUID  string `json:"uuid" validate:"required"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// Cascade is the outcome of ResolveCascade. ToInvite includes the required parties
// reached only through hidden optional parties.
type Cascade struct {
	ToInvite         []domain.TemplateSubmitter
	ToInviteOptional []domain.TemplateSubmitter
	Cascaded         []domain.TemplateSubmitter
}

// CascadeInput is everything ResolveCascade looks at.
type CascadeInput struct {
	Submission       domain.Submission
	Party            domain.Submitter
	Submitted        []InviteParty
	TemplateArchived bool
	Expired          bool
	Settings         Settings
}

// InviteResult reports the parties created by Invite and whether the inviting party
// was completed.
type InviteResult struct {
	Created   []domain.Submitter `json:"created"`
	Completed bool               `json:"completed"`
	Submitter domain.Submitter   `json:"submitter"`
}

var inviteValidator = validator.New()

// ResolveCascade decides which party slots the submitting party must invite now. It
// refuses with ErrInviteRefused when the party or submission is closed, or when an
// opted-in optional party gated on the applicant being under the guardian age has no
// email.
func (e Engine) ResolveCascade(in CascadeInput) (Cascade, error) {
	party, submission := in.Party, in.Submission
	if inviteClosed(party, submission, in.Expired, in.TemplateArchived) {
		return Cascade{}, ErrInviteRefused
	}
	submitted := make(map[string]InviteParty, len(in.Submitted))
	for _, p := range in.Submitted {
		submitted[p.UUID] = p
	}

	var out Cascade
	for _, slot := range submission.TemplateSubmitters {
		if submission.HasParty(slot.UUID) {
			continue
		}
		if slot.InviteByUUID == party.UUID {
			out.ToInvite = append(out.ToInvite, slot)
		}
		if slot.OptionalInviteByUUID == party.UUID {
			out.ToInviteOptional = append(out.ToInviteOptional, slot)
		}
	}

	for _, slot := range out.ToInviteOptional {
		attrs, ok := submitted[slot.UUID]
		if !ok {
			continue
		}
		if strings.TrimSpace(attrs.Email) == "" && e.underGuardianAge(submission, party, slot, in.Settings) {
			return Cascade{}, fmt.Errorf("%w: %s requires an email", ErrInviteRefused, slot.Name)
		}
	}

	hidden := map[string]bool{}
	for _, slot := range out.ToInviteOptional {
		if _, ok := submitted[slot.UUID]; !ok {
			hidden[slot.UUID] = true
		}
	}
	if len(hidden) > 0 {
		for _, slot := range submission.TemplateSubmitters {
			if hidden[slot.InviteByUUID] && !submission.HasParty(slot.UUID) {
				out.Cascaded = append(out.Cascaded, slot)
			}
		}
		out.ToInvite = append(out.ToInvite, out.Cascaded...)
	}
	return out, nil
}

func inviteClosed(party domain.Submitter, submission domain.Submission, expired, templateArchived bool) bool {
	return party.Declined() || party.Completed() || submission.ArchivedAt != nil || expired || templateArchived
}

// underGuardianAge locates the birthdate field gating the optional slot (an
// age_less_than condition at the guardian threshold on the slot's fields, or on the
// slot itself) and reports whether the applicant is younger than the threshold.
func (e Engine) underGuardianAge(submission domain.Submission, party domain.Submitter, slot domain.TemplateSubmitter, s Settings) bool {
	threshold := s.GuardianAgeThreshold
	if threshold <= 0 {
		threshold = 16
	}
	birthdateUUID := guardianCondition(ownedFields(submission, slot.UUID), slot, threshold)
	if birthdateUUID == "" {
		return false
	}
	raw := mergeParties(submission, party, party.Values)[birthdateUUID]
	if domain.IsBlank(raw) {
		return false
	}
	age, ok := conditions.AgeFromDate(fmt.Sprint(raw), e.today(s)())
	return ok && age < threshold
}

func guardianCondition(fields []domain.Field, slot domain.TemplateSubmitter, threshold int) string {
	match := func(conds []domain.Condition) string {
		for _, c := range conds {
			if conditions.ParseAction(c.Action) == conditions.ActionAgeLessThan && conditions.IntValue(c.Value) == threshold {
				return c.FieldUUID
			}
		}
		return ""
	}
	for _, f := range fields {
		if id := match(f.Conditions); id != "" {
			return id
		}
	}
	return match(slot.Conditions)
}

// Invite creates the parties the submitting party is responsible for and, when every
// required slot is filled, completes the submitting party's form.
func (e Engine) Invite(ctx context.Context, submitterID string, parties []InviteParty, rc RequestContext) (InviteResult, error) {
	for _, p := range parties {
		if err := inviteValidator.Struct(p); err != nil {
			return InviteResult{}, &ValidationError{Message: fmt.Sprintf("invalid party %s: %v", p.UUID, err), Err: err}
		}
	}
	party, submission, err := e.load(ctx, submitterID)
	if err != nil {
		return InviteResult{}, boundary(err)
	}
	tmpl, err := e.Repo.GetTemplate(ctx, e.DB, submission.TemplateID)
	if err != nil {
		return InviteResult{}, boundary(err)
	}
	if inviteClosed(party, submission, e.expired(submission), tmpl.ArchivedAt != nil) {
		return InviteResult{}, ErrInviteRefused
	}
	s, err := e.Settings(ctx, submission.AccountID)
	if err != nil {
		return InviteResult{}, boundary(err)
	}
	submission, err = e.prepare(ctx, party, submission, rc, false)
	if err != nil {
		return InviteResult{}, boundary(err)
	}
	cascade, err := e.ResolveCascade(CascadeInput{
		Submission:       submission,
		Party:            party,
		Submitted:        parties,
		TemplateArchived: tmpl.ArchivedAt != nil,
		Expired:          e.expired(submission),
		Settings:         s,
	})
	if err != nil {
		return InviteResult{}, err
	}

	created, err := e.createInvited(ctx, party, submission, cascade, parties, rc)
	if err != nil {
		return InviteResult{}, boundary(err)
	}
	res := InviteResult{Created: created, Submitter: party}

	submission, err = e.Repo.GetSubmission(ctx, e.DB, submission.ID)
	if err != nil {
		return res, boundary(err)
	}
	for _, slot := range cascade.ToInvite {
		if !submission.HasParty(slot.UUID) {
			e.logger().Info("invite left required party uninvited",
				zap.String("submitter_id", party.ID), zap.String("party_uuid", slot.UUID))
			return res, ErrInviteIncomplete
		}
	}
	completed, err := e.Submit(ctx, party.ID, SubmitInput{Completed: true}, rc, false)
	if err != nil {
		return res, err
	}
	res.Submitter = completed
	res.Completed = true
	return res, nil
}

func (e Engine) createInvited(ctx context.Context, inviter domain.Submitter, submission domain.Submission, cascade Cascade, parties []InviteParty, rc RequestContext) ([]domain.Submitter, error) {
	emails := make(map[string]string, len(parties))
	for _, p := range parties {
		emails[p.UUID] = strings.TrimSpace(p.Email)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := e.nowString()
	var created []domain.Submitter
	seen := map[string]bool{}
	slots := append(append([]domain.TemplateSubmitter(nil), cascade.ToInvite...), cascade.ToInviteOptional...)
	for _, slot := range slots {
		email := emails[slot.UUID]
		if email == "" || seen[slot.UUID] {
			continue
		}
		seen[slot.UUID] = true
		sub := domain.Submitter{
			ID:           uuid.NewString(),
			SubmissionID: submission.ID,
			AccountID:    inviter.AccountID,
			UUID:         slot.UUID,
			Email:        email,
			Values:       map[string]any{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := e.Repo.InsertSubmitter(ctx, tx, sub); err != nil {
			return nil, fmt.Errorf("create party %s: %w", slot.UUID, err)
		}
		if err := e.events().Record(ctx, tx, submission.ID, inviter.ID, events.InviteParty, rc.meta(),
			events.Payload{"uuid": inviter.UUID, "invited_uuid": slot.UUID, "invited_id": sub.ID}); err != nil {
			return nil, err
		}
		created = append(created, sub)
	}

	fresh, err := e.Repo.GetSubmission(ctx, tx, submission.ID)
	if err != nil {
		return nil, err
	}
	fresh.SubmittersOrder = domain.SubmittersOrderPreserved
	fresh.UpdatedAt = now
	if err := e.Repo.UpdateSubmission(ctx, tx, fresh); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

// IsInviteRefusal reports whether err is a refused or incomplete invitation.
func IsInviteRefusal(err error) bool {
	return errors.Is(err, ErrInviteRefused) || errors.Is(err, ErrInviteIncomplete)
}
