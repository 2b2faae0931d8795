package engine

import (
	"context"
	"fmt"

	"signflow/internal/domain"
	"signflow/internal/events"
	"signflow/internal/i18n"
)

// ResolveDefaults fills the party's blank values with computed defaults: generated
// stamps, the verification marker and substituted default_value templates. Values the
// party already has always win. Generated stamps are returned unsaved; the caller
// stores them in the transaction that persists the values.
func (e Engine) ResolveDefaults(ctx context.Context, submission domain.Submission, party domain.Submitter, s Settings) (map[string]any, []domain.Attachment, error) {
	attrs := partyAttributes(party, submission)
	defaults := map[string]any{}
	var stamps []domain.Attachment
	for _, field := range ownedFields(submission, party.UUID) {
		switch field.Type {
		case domain.FieldStamp:
			if domain.IsPresent(party.Values[field.UUID]) || e.Stamps == nil {
				continue
			}
			withLogo, _ := field.Preferences["with_logo"].(bool)
			if _, set := field.Preferences["with_logo"]; !set {
				withLogo = true
			}
			stamp := e.Stamps.NewStamp(party, withLogo)
			stamps = append(stamps, stamp)
			defaults[field.UUID] = stamp.UUID
		case domain.FieldVerification:
			verified, err := e.Repo.EventExists(ctx, e.DB, party.ID, events.CompleteVerification)
			if err != nil {
				return nil, nil, fmt.Errorf("lookup verification: %w", err)
			}
			switch {
			case verified:
				defaults[field.UUID] = i18n.New("en").T(i18n.KeyVerified)
			case field.Required:
				return nil, nil, &ValidationError{Message: s.translator().T(i18n.KeyIDNotVerified)}
			}
		default:
			if domain.IsBlank(field.DefaultValue) {
				continue
			}
			defaults[field.UUID] = e.Substitute(field.DefaultValue, attrs, s, true)
		}
	}
	return domain.MergeValues(domain.CompactBlank(defaults), party.Values), stamps, nil
}
