package conditions

import (
	"fmt"
	"time"

	"signflow/internal/domain"
)

// Action is the closed set of condition actions the evaluator understands.
type Action int

const (
	ActionUnknown Action = iota
	ActionEmpty
	ActionNotEmpty
	ActionEqual
	ActionNotEqual
	ActionAgeLessThan
	ActionAgeGreaterThan
)

// ParseAction maps an action name (including its aliases) onto Action.
func ParseAction(name string) Action {
	switch name {
	case "empty", "unchecked":
		return ActionEmpty
	case "not_empty", "checked":
		return ActionNotEmpty
	case "equal", "contains":
		return ActionEqual
	case "not_equal", "does_not_contain":
		return ActionNotEqual
	case "age_less_than":
		return ActionAgeLessThan
	case "age_greater_than":
		return ActionAgeGreaterThan
	default:
		return ActionUnknown
	}
}

func (a Action) String() string {
	switch a {
	case ActionEmpty:
		return "empty"
	case ActionNotEmpty:
		return "not_empty"
	case ActionEqual:
		return "equal"
	case ActionNotEqual:
		return "not_equal"
	case ActionAgeLessThan:
		return "age_less_than"
	case ActionAgeGreaterThan:
		return "age_greater_than"
	default:
		return "unknown"
	}
}

// Evaluator decides field visibility from conditions. It holds no state besides the clock
// and the label used for options without an explicit value.
type Evaluator struct {
	Now         func() time.Time
	OptionLabel func(position int) string
}

func (e Evaluator) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Evaluator) optionLabel(position int) string {
	if e.OptionLabel != nil {
		return e.OptionLabel(position)
	}
	return fmt.Sprintf("Option %d", position)
}

// Evaluate reports whether the field is currently active given the known values.
func (e Evaluator) Evaluate(field domain.Field, values map[string]any, index map[string]domain.Field) bool {
	return e.Holds(field.Conditions, values, index)
}

// Holds folds a condition list left to right. An "or" condition replaces the last
// accumulated result with (last || current); any false left in the fold rejects.
func (e Evaluator) Holds(conds []domain.Condition, values map[string]any, index map[string]domain.Field) bool {
	if len(conds) == 0 {
		return true
	}
	acc := make([]bool, 0, len(conds))
	for _, c := range conds {
		result := e.Check(c, values, index)
		if c.Operation == "or" && len(acc) > 0 {
			last := acc[len(acc)-1]
			acc[len(acc)-1] = last || result
			continue
		}
		acc = append(acc, result)
	}
	for _, r := range acc {
		if !r {
			return false
		}
	}
	return true
}

// Check evaluates one condition.
func (e Evaluator) Check(c domain.Condition, values map[string]any, index map[string]domain.Field) bool {
	value := values[c.FieldUUID]
	switch ParseAction(c.Action) {
	case ActionEmpty:
		return domain.IsBlank(value)
	case ActionNotEmpty:
		return domain.IsPresent(value)
	case ActionEqual:
		label, ok := e.resolveOption(c, index)
		if !ok {
			return false
		}
		return contains(domain.WrapStrings(value), label)
	case ActionNotEqual:
		label, ok := e.resolveOption(c, index)
		if !ok {
			return false
		}
		return !contains(domain.WrapStrings(value), label)
	case ActionAgeLessThan, ActionAgeGreaterThan:
		return e.checkAge(c, values, index)
	case ActionUnknown:
		return true
	}
	return true
}

func (e Evaluator) resolveOption(c domain.Condition, index map[string]domain.Field) (string, bool) {
	field, ok := index[c.FieldUUID]
	if !ok {
		return "", false
	}
	optionUUID, _ := c.Value.(string)
	for i, opt := range field.Options {
		if opt.UUID != optionUUID {
			continue
		}
		if domain.IsPresent(opt.Value) {
			return opt.Value, true
		}
		return e.optionLabel(i + 1), true
	}
	return "", false
}

func (e Evaluator) checkAge(c domain.Condition, values map[string]any, index map[string]domain.Field) bool {
	field, ok := index[c.FieldUUID]
	if !ok || field.Type != domain.FieldDate {
		return false
	}
	raw := values[c.FieldUUID]
	if domain.IsBlank(raw) {
		return false
	}
	age, ok := AgeFromDate(fmt.Sprint(raw), e.now())
	if !ok {
		return false
	}
	threshold := IntValue(c.Value)
	if threshold == 0 {
		return false
	}
	if ParseAction(c.Action) == ActionAgeLessThan {
		return age < threshold
	}
	return age > threshold
}

// ReferencesOtherParty reports whether any condition of the field points at a field
// owned by a party other than partyUUID.
func ReferencesOtherParty(field domain.Field, partyUUID string, index map[string]domain.Field) bool {
	for _, c := range field.Conditions {
		if index[c.FieldUUID].SubmitterUUID != partyUUID {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
