package engine

import (
	"context"

	"signflow/internal/domain"
)

// Account config keys read by the signing form.
const (
	KeyFormCompletedButton    = "form_completed_button"
	KeyFormCompletedMessage   = "form_completed_message"
	KeyFormWithConfetti       = "form_with_confetti"
	KeyWithSignatureID        = "with_signature_id"
	KeyAllowToDecline         = "allow_to_decline"
	KeyRequireSigningReason   = "require_signing_reason"
	KeyReuseSignature         = "reuse_signature"
	KeyAllowToPartialDownload = "allow_to_partial_download"
	KeyAllowTypedSignature    = "allow_typed_signature"
	KeyWithSubmitterTimezone  = "with_submitter_timezone"
	KeyWithSignatureIDReason  = "with_signature_id_reason"
	KeyPolicyLinks            = "policy_links"
)

var formConfigKeys = []string{
	KeyFormCompletedButton, KeyFormCompletedMessage, KeyFormWithConfetti, KeyWithSignatureID,
	KeyAllowToDecline, KeyRequireSigningReason, KeyReuseSignature, KeyAllowToPartialDownload,
	KeyAllowTypedSignature, KeyWithSubmitterTimezone, KeyWithSignatureIDReason, KeyPolicyLinks,
}

// FormConfigs projects the account toggles a party's form needs. Most toggles default
// on and only an explicit false turns them off; require_signing_reason and
// with_submitter_timezone default off. extraKeys are projected raw.
func (e Engine) FormConfigs(ctx context.Context, submitterID string, extraKeys []string) (map[string]any, error) {
	sub, err := e.Repo.GetSubmitter(ctx, e.DB, submitterID)
	if err != nil {
		return nil, err
	}
	configs, err := e.Repo.ListAccountConfigs(ctx, sub.AccountID, append(append([]string(nil), formConfigKeys...), extraKeys...))
	if err != nil {
		return nil, err
	}
	return ProjectFormConfigs(configs, extraKeys), nil
}

// ProjectFormConfigs is the pure projection behind FormConfigs.
func ProjectFormConfigs(configs []domain.AccountConfig, extraKeys []string) map[string]any {
	byKey := make(map[string]any, len(configs))
	for _, c := range configs {
		byKey[c.Key] = c.Value
	}
	notFalse := func(key string) bool {
		v, ok := byKey[key].(bool)
		return !ok || v
	}
	isTrue := func(key string) bool {
		v, ok := byKey[key].(bool)
		return ok && v
	}
	orEmpty := func(key string) any {
		if v, ok := byKey[key]; ok && v != nil {
			return v
		}
		return map[string]any{}
	}

	attrs := map[string]any{
		"completed_button":         orEmpty(KeyFormCompletedButton),
		"completed_message":        orEmpty(KeyFormCompletedMessage),
		"with_typed_signature":     notFalse(KeyAllowTypedSignature),
		"with_confetti":            notFalse(KeyFormWithConfetti),
		"prefill_signature":        false,
		"reuse_signature":          notFalse(KeyReuseSignature),
		"with_decline":             notFalse(KeyAllowToDecline),
		"with_partial_download":    notFalse(KeyAllowToPartialDownload),
		"with_signature_id":        notFalse(KeyWithSignatureID),
		"require_signing_reason":   isTrue(KeyRequireSigningReason),
		"enforce_signing_order":    true,
		"with_submitter_timezone":  isTrue(KeyWithSubmitterTimezone),
		"with_signature_id_reason": notFalse(KeyWithSignatureIDReason),
		"policy_links":             byKey[KeyPolicyLinks],
	}
	for _, key := range extraKeys {
		attrs[key] = byKey[key]
	}
	return attrs
}
