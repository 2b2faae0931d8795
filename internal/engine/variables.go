package engine

import (
	"regexp"
	"strconv"
	"time"

	"signflow/internal/domain"
)

var variableRe = regexp.MustCompile(`\{\{?(\w+)\}\}?`)

// DateSentinel is replaced by the submit date once the final values are known.
const DateSentinel = "{{date}}"

// PartyAttributes are the party values placeholders may reference.
type PartyAttributes struct {
	SubmissionID string
	Role         string
	Email        string
	Phone        string
	Name         string
}

func partyAttributes(sub domain.Submitter, submission domain.Submission) PartyAttributes {
	attrs := PartyAttributes{
		SubmissionID: sub.SubmissionID,
		Email:        sub.Email,
		Phone:        sub.Phone,
		Name:         sub.Name,
	}
	if desc, ok := submission.PartyDescriptor(sub.UUID); ok {
		attrs.Role = desc.Name
	}
	return attrs
}

// Substitute resolves {{...}} placeholders in a templated default value. Time and
// date placeholders resolve only when withTime is set; unknown or empty ones are left
// as written. Non-string values pass through untouched.
func (e Engine) Substitute(value any, attrs PartyAttributes, s Settings, withTime bool) any {
	str, ok := value.(string)
	if !ok {
		return value
	}
	if domain.IsBlank(str) {
		return nil
	}
	now := e.now().In(s.location())
	return variableRe.ReplaceAllStringFunc(str, func(match string) string {
		key := variableRe.FindStringSubmatch(match)[1]
		switch key {
		case "id":
			return orPlaceholder(attrs.SubmissionID, match)
		case "time":
			if !withTime {
				return match
			}
			return s.translator().LongTime(now)
		case "hour", "minute", "day", "month", "year":
			if !withTime {
				return match
			}
			return clockPart(now, key)
		case "date":
			if !withTime {
				return match
			}
			return now.Format(time.DateOnly)
		case "role":
			return orPlaceholder(attrs.Role, match)
		case "email":
			return orPlaceholder(attrs.Email, match)
		case "phone":
			return orPlaceholder(attrs.Phone, match)
		case "name":
			return orPlaceholder(attrs.Name, match)
		default:
			return match
		}
	})
}

func clockPart(t time.Time, key string) string {
	switch key {
	case "hour":
		return strconv.Itoa(t.Hour())
	case "minute":
		return t.Format("04")
	case "day":
		return strconv.Itoa(t.Day())
	case "month":
		return strconv.Itoa(int(t.Month()))
	default:
		return strconv.Itoa(t.Year())
	}
}

func orPlaceholder(v, placeholder string) string {
	if v == "" {
		return placeholder
	}
	return v
}

// replaceDateSentinel swaps literal {{date}} values for today's date in the account zone.
func (e Engine) replaceDateSentinel(values map[string]any, s Settings) {
	today := e.now().In(s.location()).Format(time.DateOnly)
	for k, v := range values {
		if str, ok := v.(string); ok && str == DateSentinel {
			values[k] = today
		}
	}
}
