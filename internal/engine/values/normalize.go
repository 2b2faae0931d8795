package values

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"signflow/internal/domain"
)

// CastFlags select one coercion for a submitted batch. Callers set at most one;
// when several are set, boolean wins over number, number over phone.
type CastFlags struct {
	Boolean bool `json:"cast_boolean,omitempty"`
	Number  bool `json:"cast_number,omitempty"`
	Phone   bool `json:"normalize_phone,omitempty"`
}

// Normalize coerces raw submitted values. It never fails.
func Normalize(raw map[string]any, flags CastFlags) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		switch {
		case flags.Boolean:
			out[k] = castBoolean(v)
		case flags.Number:
			out[k] = castNumber(v)
		case flags.Phone:
			out[k] = NormalizePhone(String(v))
		default:
			out[k] = compactArray(v)
		}
	}
	return out
}

func castBoolean(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	default:
		return false
	}
}

func castNumber(v any) any {
	if s, ok := v.(string); ok && s == "" {
		return nil
	}
	if v == nil {
		return nil
	}
	f, _ := ToFloat(v)
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// NormalizePhone keeps digits and a leading plus sign.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func compactArray(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			if domain.IsPresent(item) {
				out = append(out, item)
			}
		}
		return out
	case []string:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if domain.IsPresent(item) {
				out = append(out, item)
			}
		}
		return out
	default:
		return v
	}
}

// ToFloat reads a number out of a value. Strings are parsed by their longest numeric
// prefix; anything unparsable yields 0 and false.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		return ToFloat(string(t))
	case bool:
		return 0, false
	case string:
		return leadingFloat(t)
	default:
		return 0, false
	}
}

func leadingFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	seenDigit, seenDot := false, false
scan:
	for end < len(s) {
		ch := s[end]
		switch {
		case ch >= '0' && ch <= '9':
			seenDigit = true
		case ch == '.' && !seenDot:
			seenDot = true
		case (ch == '-' || ch == '+') && end == 0:
		default:
			break scan
		}
		end++
	}
	if !seenDigit {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// String renders a scalar value as submitted text.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
