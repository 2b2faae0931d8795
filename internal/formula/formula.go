// Package formula evaluates numeric field formulas. Field references are written as
// {{field_uuid}} and resolve to the numeric value of that field (0 when absent or
// not numeric).
package formula

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"signflow/internal/engine/values"
)

const varName = "v"

var (
	placeholderRe = regexp.MustCompile(`\{\{(.*?)\}\}`)
	numberRe      = regexp.MustCompile(`(^|[^\w.])(\d+)(\.\d+)?`)
)

var ErrEmptyFormula = errors.New("formula is empty")

// Evaluator compiles formulas into CEL programs over a map(string, double) of field
// values and caches them by expression.
type Evaluator struct {
	env   *cel.Env
	cache map[string]cel.Program
	mu    sync.RWMutex
}

func New() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable(varName, cel.MapType(cel.StringType, cel.DoubleType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL env: %w", err)
	}
	return &Evaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

// Evaluate computes the formula against the field values.
func (e *Evaluator) Evaluate(formula string, fieldValues map[string]any) (float64, error) {
	if strings.TrimSpace(formula) == "" {
		return 0, ErrEmptyFormula
	}
	expr, refs := Translate(formula)
	prg, err := e.program(expr)
	if err != nil {
		return 0, err
	}
	activation := make(map[string]float64, len(refs))
	for _, ref := range refs {
		f, _ := values.ToFloat(fieldValues[ref])
		activation[ref] = f
	}
	out, _, err := prg.Eval(map[string]any{varName: activation})
	if err != nil {
		return 0, fmt.Errorf("formula eval: %w", err)
	}
	var result float64
	switch v := out.Value().(type) {
	case float64:
		result = v
	case int64:
		result = float64(v)
	case uint64:
		result = float64(v)
	default:
		return 0, fmt.Errorf("formula result is not numeric: %T", v)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("formula result is not finite")
	}
	return result, nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.cache[expr]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit = e.cache[expr]; hit {
		return prg, nil
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("formula compile: %w", issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("formula program: %w", err)
	}
	e.cache[expr] = prg
	return prg, nil
}

// Translate rewrites a formula into a CEL expression. Placeholders become map lookups
// and integer literals become doubles so mixed arithmetic type-checks.
func Translate(formula string) (string, []string) {
	var (
		b    strings.Builder
		refs []string
		seen = map[string]bool{}
	)
	last := 0
	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(formula, -1) {
		b.WriteString(widenNumbers(formula[last:loc[0]]))
		ref := strings.TrimSpace(formula[loc[2]:loc[3]])
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
		fmt.Fprintf(&b, "%s[%q]", varName, ref)
		last = loc[1]
	}
	b.WriteString(widenNumbers(formula[last:]))
	return b.String(), refs
}

func widenNumbers(segment string) string {
	return numberRe.ReplaceAllStringFunc(segment, func(m string) string {
		sub := numberRe.FindStringSubmatch(m)
		if sub[3] != "" {
			return m
		}
		return sub[1] + sub[2] + ".0"
	})
}
