package conditions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signflow/internal/domain"
	"signflow/internal/engine/conditions"
)

var today = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func evaluator() conditions.Evaluator {
	return conditions.Evaluator{Now: func() time.Time { return today }}
}

func testIndex() map[string]domain.Field {
	return map[string]domain.Field{
		"name":  {UUID: "name", SubmitterUUID: "a", Type: domain.FieldText},
		"agree": {UUID: "agree", SubmitterUUID: "a", Type: domain.FieldCheckbox},
		"color": {UUID: "color", SubmitterUUID: "a", Type: domain.FieldSelect, Options: []domain.Option{
			{UUID: "opt-red", Value: "Red"},
			{UUID: "opt-blank"},
		}},
		"birth": {UUID: "birth", SubmitterUUID: "a", Type: domain.FieldDate},
		"note":  {UUID: "note", SubmitterUUID: "b", Type: domain.FieldText},
	}
}

func TestEmptyConditionsAreVisible(t *testing.T) {
	ev := evaluator()
	assert.True(t, ev.Evaluate(domain.Field{UUID: "x"}, nil, testIndex()))
	assert.True(t, ev.Holds(nil, map[string]any{"name": ""}, testIndex()))
}

func TestBlankAndPresentActions(t *testing.T) {
	ev := evaluator()
	idx := testIndex()
	cases := []struct {
		action string
		value  any
		want   bool
	}{
		{"empty", nil, true},
		{"empty", "   ", true},
		{"empty", []any{}, true},
		{"empty", "x", false},
		{"unchecked", false, true},
		{"checked", true, true},
		{"not_empty", "x", true},
		{"not_empty", 0.0, true},
		{"not_empty", []any{}, false},
	}
	for _, tc := range cases {
		got := ev.Check(domain.Condition{FieldUUID: "name", Action: tc.action}, map[string]any{"name": tc.value}, idx)
		assert.Equalf(t, tc.want, got, "%s %#v", tc.action, tc.value)
	}
}

func TestOptionActions(t *testing.T) {
	ev := evaluator()
	idx := testIndex()
	red := domain.Condition{FieldUUID: "color", Action: "equal", Value: "opt-red"}
	assert.True(t, ev.Check(red, map[string]any{"color": "Red"}, idx))
	assert.True(t, ev.Check(red, map[string]any{"color": []any{"Blue", "Red"}}, idx))
	assert.False(t, ev.Check(red, map[string]any{"color": "Blue"}, idx))

	synthesized := domain.Condition{FieldUUID: "color", Action: "contains", Value: "opt-blank"}
	assert.True(t, ev.Check(synthesized, map[string]any{"color": "Option 2"}, idx))

	notRed := domain.Condition{FieldUUID: "color", Action: "not_equal", Value: "opt-red"}
	assert.True(t, ev.Check(notRed, map[string]any{"color": "Blue"}, idx))
	assert.False(t, ev.Check(notRed, map[string]any{"color": "Red"}, idx))
}

func TestUnresolvableReferencesFailClosed(t *testing.T) {
	ev := evaluator()
	idx := testIndex()
	for _, action := range []string{"equal", "contains", "not_equal", "does_not_contain"} {
		assert.False(t, ev.Check(domain.Condition{FieldUUID: "missing", Action: action, Value: "opt-red"}, nil, idx), action)
		assert.False(t, ev.Check(domain.Condition{FieldUUID: "color", Action: action, Value: "opt-missing"}, nil, idx), action)
	}
	assert.False(t, ev.Check(domain.Condition{FieldUUID: "missing", Action: "age_less_than", Value: 16}, map[string]any{"missing": "2020-01-01"}, idx))
}

func TestUnknownActionFailsOpen(t *testing.T) {
	ev := evaluator()
	assert.Equal(t, conditions.ActionUnknown, conditions.ParseAction("starts_with"))
	assert.True(t, ev.Check(domain.Condition{FieldUUID: "name", Action: "starts_with"}, nil, testIndex()))
}

func TestFoldCombinesOrWithPreviousOnly(t *testing.T) {
	ev := evaluator()
	idx := testIndex()
	values := map[string]any{"name": "Ann"}
	// false AND (false OR true) -> false: the leading false is never overridden
	conds := []domain.Condition{
		{FieldUUID: "agree", Action: "checked"},
		{FieldUUID: "note", Action: "not_empty"},
		{FieldUUID: "name", Action: "not_empty", Operation: "or"},
	}
	assert.False(t, ev.Holds(conds, values, idx))

	// (false OR true) -> true
	conds = []domain.Condition{
		{FieldUUID: "agree", Action: "checked"},
		{FieldUUID: "name", Action: "not_empty", Operation: "or"},
	}
	assert.True(t, ev.Holds(conds, values, idx))

	// leading or behaves like a plain condition
	conds = []domain.Condition{{FieldUUID: "name", Action: "empty", Operation: "or"}}
	assert.False(t, ev.Holds(conds, values, idx))
}

func TestAgeBoundaries(t *testing.T) {
	ev := evaluator()
	idx := testIndex()
	check := func(action, birth string, threshold any) bool {
		return ev.Check(domain.Condition{FieldUUID: "birth", Action: action, Value: threshold}, map[string]any{"birth": birth}, idx)
	}
	exactly16 := "2008-06-15"
	assert.False(t, check("age_less_than", exactly16, 16))
	assert.False(t, check("age_greater_than", exactly16, 16))

	sixteenAndADay := "2008-06-14"
	assert.False(t, check("age_less_than", sixteenAndADay, 16))

	oneDayShort := "2008-06-16"
	assert.True(t, check("age_less_than", oneDayShort, 16))
	assert.True(t, check("age_less_than", oneDayShort, "16"))

	assert.False(t, check("age_less_than", oneDayShort, 0), "zero threshold is not configured")
	assert.False(t, check("age_less_than", "", 16))
	assert.False(t, check("age_less_than", "not a date", 16))
	assert.True(t, check("age_greater_than", "1990-01-01", 18))
}

func TestAgeRequiresDateField(t *testing.T) {
	ev := evaluator()
	idx := testIndex()
	c := domain.Condition{FieldUUID: "name", Action: "age_less_than", Value: 16}
	assert.False(t, ev.Check(c, map[string]any{"name": "2020-01-01"}, idx))
}

func TestAgeFromDate(t *testing.T) {
	age, ok := conditions.AgeFromDate("2008-02-29", time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 17, age)

	age, ok = conditions.AgeFromDate("2008-02-29", time.Date(2025, 2, 27, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 16, age)

	age, ok = conditions.AgeFromDate("15.06.2014", today)
	require.True(t, ok)
	assert.Equal(t, 10, age)

	_, ok = conditions.AgeFromDate("yesterday", today)
	assert.False(t, ok)
}

func TestIntValue(t *testing.T) {
	assert.Equal(t, 16, conditions.IntValue("16"))
	assert.Equal(t, 16, conditions.IntValue("16 years"))
	assert.Equal(t, 16, conditions.IntValue(16.9))
	assert.Equal(t, 0, conditions.IntValue(nil))
	assert.Equal(t, 0, conditions.IntValue("abc"))
}

func TestReferencesOtherParty(t *testing.T) {
	idx := testIndex()
	own := domain.Field{UUID: "f", SubmitterUUID: "a", Conditions: []domain.Condition{{FieldUUID: "name", Action: "not_empty"}}}
	other := domain.Field{UUID: "g", SubmitterUUID: "a", Conditions: []domain.Condition{{FieldUUID: "note", Action: "not_empty"}}}
	assert.False(t, conditions.ReferencesOtherParty(own, "a", idx))
	assert.True(t, conditions.ReferencesOtherParty(other, "a", idx))
}
