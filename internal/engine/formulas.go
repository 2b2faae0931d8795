package engine

import (
	"fmt"
	"regexp"

	"signflow/internal/domain"
	"signflow/internal/engine/conditions"
	"signflow/internal/engine/values"
	"signflow/internal/i18n"
)

var formulaRefRe = regexp.MustCompile(`\{\{(.*?)\}\}`)

// NormalizeFormula inlines references to other formula fields, recursively. A nested
// formula whose field is currently hidden contributes 0. Past the configured depth the
// formula is treated as an infinite loop.
func (e Engine) NormalizeFormula(formula string, index map[string]domain.Field, vals map[string]any, s Settings) (string, error) {
	return e.normalizeFormula(formula, index, vals, s, e.evaluator(s), 0)
}

func (e Engine) normalizeFormula(formula string, index map[string]domain.Field, vals map[string]any, s Settings, ev conditions.Evaluator, depth int) (string, error) {
	maxDepth := s.MaxFormulaDepth
	if maxDepth <= 0 {
		maxDepth = 10
	}
	if depth > maxDepth {
		return "", &ValidationError{Message: s.translator().T(i18n.KeyFormulaInfiniteLoop), Err: ErrFormulaInfiniteLoop}
	}
	var firstErr error
	out := formulaRefRe.ReplaceAllStringFunc(formula, func(match string) string {
		if firstErr != nil {
			return match
		}
		uuid := formulaRefRe.FindStringSubmatch(match)[1]
		field, ok := index[uuid]
		nested := field.Formula()
		if !ok || nested == "" {
			return match
		}
		if !ev.Evaluate(field, vals, index) {
			return "0"
		}
		inner, err := e.normalizeFormula(nested, index, vals, s, ev, depth+1)
		if err != nil {
			firstErr = err
			return match
		}
		return "(" + inner + ")"
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// ResolveFormulas computes the party's formula fields over the merged values of every
// party (when there are several), overlaid with results computed earlier in the pass.
func (e Engine) ResolveFormulas(submission domain.Submission, party domain.Submitter, s Settings) (map[string]any, error) {
	if e.Formulas == nil {
		return nil, nil
	}
	index := submission.FieldIndex()
	var base map[string]any
	computed := map[string]any{}
	for _, field := range ownedFields(submission, party.UUID) {
		if field.Type == domain.FieldPayment || field.Formula() == "" {
			continue
		}
		if base == nil {
			if len(submission.TemplateSubmitters) > 1 {
				base = mergeParties(submission, party, party.Values)
			} else {
				base = party.Values
			}
		}
		normalized, err := e.normalizeFormula(field.Formula(), index, base, s, e.evaluator(s), 0)
		if err != nil {
			return nil, err
		}
		result, err := e.Formulas.Evaluate(normalized, domain.MergeValues(base, domain.CompactBlank(computed)))
		if err != nil {
			return nil, fmt.Errorf("formula %s: %w", field.UUID, err)
		}
		computed[field.UUID] = result
	}
	return domain.CompactBlank(computed), nil
}

// overlayChanged reports whether applying next onto current would change any value.
func overlayChanged(current, next map[string]any) bool {
	for k, v := range next {
		if !sameValue(current[k], v) {
			return true
		}
	}
	return false
}

func sameValue(a, b any) bool {
	fa, okA := values.ToFloat(a)
	fb, okB := values.ToFloat(b)
	if okA && okB {
		if _, isStr := a.(string); !isStr {
			if _, isStr := b.(string); !isStr {
				return fa == fb
			}
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
