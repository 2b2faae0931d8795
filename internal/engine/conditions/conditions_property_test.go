//go:build property
// +build property

package conditions_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"signflow/internal/domain"
	"signflow/internal/engine/conditions"
)

// Property: a chain of not_empty conditions equals the left fold of its truth values.
func TestFoldMatchesReference(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("fold matches reference", prop.ForAll(
		func(present []bool, ors []bool) bool {
			n := len(present)
			if len(ors) < n {
				n = len(ors)
			}
			values := map[string]any{}
			idx := map[string]domain.Field{}
			conds := make([]domain.Condition, 0, n)
			var acc []bool
			for i := 0; i < n; i++ {
				key := string(rune('a' + i%26))
				key = key + string(rune('0'+i/26))
				idx[key] = domain.Field{UUID: key, Type: domain.FieldText}
				if present[i] {
					values[key] = "x"
				}
				c := domain.Condition{FieldUUID: key, Action: "not_empty"}
				if ors[i] {
					c.Operation = "or"
				}
				conds = append(conds, c)
				if ors[i] && len(acc) > 0 {
					acc[len(acc)-1] = acc[len(acc)-1] || present[i]
				} else {
					acc = append(acc, present[i])
				}
			}
			want := true
			for _, r := range acc {
				want = want && r
			}
			return conditions.Evaluator{}.Holds(conds, values, idx) == want
		},
		gen.SliceOf(gen.Bool()),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

// Property: age_less_than(16) is true exactly for birth dates after today minus 16 years.
func TestAgeBoundaryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("age threshold boundary", prop.ForAll(
		func(dayOffset int, offsetDays int) bool {
			today := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, dayOffset)
			boundary := today.AddDate(-16, 0, 0)
			birth := boundary.AddDate(0, 0, offsetDays)
			ev := conditions.Evaluator{Now: func() time.Time { return today }}
			idx := map[string]domain.Field{"b": {UUID: "b", Type: domain.FieldDate}}
			c := domain.Condition{FieldUUID: "b", Action: "age_less_than", Value: 16}
			got := ev.Check(c, map[string]any{"b": birth.Format("2006-01-02")}, idx)
			return got == (offsetDays > 0)
		},
		gen.IntRange(0, 15000),
		gen.IntRange(-30, 30),
	))

	properties.TestingRun(t)
}
