// Package phonelength validates the local-number length of international phone numbers
// by dial code.
package phonelength

import "strings"

// Rule is the permitted local digit count for a dial code.
type Rule struct {
	Min     int
	Max     int
	Country string
}

// Default applies when no dial code is recognized (E.164 bounds).
var Default = Rule{Min: 7, Max: 15}

// Table is the lookup collaborator used by per-value validation.
type Table struct {
	rules map[string]Rule
}

// New returns the built-in table.
func New() Table {
	return Table{rules: table}
}

// LookupRules returns the rule for a dial code.
func (t Table) LookupRules(dialCode string) (Rule, bool) {
	r, ok := t.rules[dialCode]
	return r, ok
}

// ExtractDialCode detects the dial code from the leading digits, preferring the
// longest known prefix.
func (t Table) ExtractDialCode(number string) (string, bool) {
	digits := Digits(number)
	for _, n := range []int{3, 2, 1} {
		if len(digits) < n {
			continue
		}
		if _, ok := t.rules[digits[:n]]; ok {
			return digits[:n], true
		}
	}
	return "", false
}

// ValidLength reports whether the local part after dialCode fits the rule.
func (t Table) ValidLength(number, dialCode string) bool {
	rule, ok := t.rules[dialCode]
	if !ok {
		rule = Default
	}
	local := strings.TrimPrefix(Digits(number), dialCode)
	return len(local) >= rule.Min && len(local) <= rule.Max
}

// Digits strips everything but 0-9.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
