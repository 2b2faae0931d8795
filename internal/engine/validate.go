package engine

import (
	"sort"

	"signflow/internal/domain"
	"signflow/internal/engine/values"
	"signflow/internal/i18n"
	"signflow/internal/phonelength"
)

// validateValues checks every submitted value against its field. A value for a field
// owned by another party is rejected outright.
func (e Engine) validateValues(submitted map[string]any, index map[string]domain.Field, party domain.Submitter, s Settings) error {
	keys := make([]string, 0, len(submitted))
	for k := range submitted {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		field, ok := index[key]
		if !ok {
			continue
		}
		if field.SubmitterUUID != party.UUID {
			return validationf("Field %s does not belong to submitter %s", key, party.UUID)
		}
		if err := e.validateValue(submitted[key], field, s); err != nil {
			return err
		}
	}
	return nil
}

func (e Engine) validateValue(v any, field domain.Field, s Settings) error {
	if domain.IsBlank(v) {
		return nil
	}
	if field.Type == domain.FieldPhone {
		return e.validatePhoneLength(values.String(v), field, s)
	}
	return nil
}

func (e Engine) validatePhoneLength(raw string, field domain.Field, s Settings) error {
	number := values.NormalizePhone(raw)
	digits := phonelength.Digits(number)
	if digits == "" {
		return nil
	}
	tr := s.translator()
	minDigits, maxDigits := s.PhoneMinDigits, s.PhoneMaxDigits
	if minDigits <= 0 {
		minDigits = phonelength.Default.Min
	}
	if maxDigits <= 0 {
		maxDigits = phonelength.Default.Max
	}
	phones := e.Phones
	if phones == nil {
		phones = phonelength.New()
	}
	dial, ok := phones.ExtractDialCode(digits)
	if !ok {
		if len(digits) < minDigits || len(digits) > maxDigits {
			return &ValidationError{Message: tr.T(i18n.KeyPhoneLength, minDigits, maxDigits)}
		}
		return nil
	}
	if phones.ValidLength(digits, dial) {
		return nil
	}
	rule, _ := phones.LookupRules(dial)
	country := field.Preference("country_name")
	if country == "" {
		country = rule.Country
	}
	if country == "" {
		country = "+" + dial
	}
	return &ValidationError{Message: tr.T(i18n.KeyPhoneLengthCountry, country, rule.Min, rule.Max)}
}

// applySignatureReason links the submitted signature to its reason field and inserts
// the read-only reason field right after the signature when it is not there yet.
func applySignatureReason(submission *domain.Submission, party domain.Submitter, submitted map[string]any, reasonUUID string, s Settings) error {
	sigIdx := -1
	for i, f := range submission.TemplateFields {
		if f.UUID == reasonUUID || f.SubmitterUUID != party.UUID {
			continue
		}
		if _, ok := submitted[f.UUID]; !ok {
			continue
		}
		if sigIdx == -1 || (f.Type == domain.FieldSignature && submission.TemplateFields[sigIdx].Type != domain.FieldSignature) {
			sigIdx = i
		}
	}
	if sigIdx == -1 {
		return validationf("no submitted field to attach reason %s to", reasonUUID)
	}
	sig := submission.TemplateFields[sigIdx].Clone()
	if sig.Preferences == nil {
		sig.Preferences = map[string]any{}
	}
	sig.Preferences["reason_field_uuid"] = reasonUUID
	submission.TemplateFields[sigIdx] = sig

	for _, f := range submission.TemplateFields {
		if f.UUID == reasonUUID {
			return nil
		}
	}
	reason := domain.Field{
		UUID:          reasonUUID,
		SubmitterUUID: party.UUID,
		Type:          domain.FieldText,
		Name:          s.translator().T(i18n.KeyReason),
		Readonly:      true,
	}
	fields := make([]domain.Field, 0, len(submission.TemplateFields)+1)
	fields = append(fields, submission.TemplateFields[:sigIdx+1]...)
	fields = append(fields, reason)
	fields = append(fields, submission.TemplateFields[sigIdx+1:]...)
	submission.TemplateFields = fields
	return nil
}
