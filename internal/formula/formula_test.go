package formula_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signflow/internal/formula"
)

func TestTranslate(t *testing.T) {
	expr, refs := formula.Translate("{{a1}} * 2 + ({{b}} - 1.5) / {{a1}}")
	assert.Equal(t, `v["a1"] * 2.0 + (v["b"] - 1.5) / v["a1"]`, expr)
	assert.Equal(t, []string{"a1", "b"}, refs)
}

func TestEvaluate(t *testing.T) {
	ev, err := formula.New()
	require.NoError(t, err)

	got, err := ev.Evaluate("{{qty}} * {{price}} + 1", map[string]any{"qty": "3", "price": 2.5})
	require.NoError(t, err)
	assert.Equal(t, 8.5, got)

	got, err = ev.Evaluate("{{missing}} + 4", nil)
	require.NoError(t, err)
	assert.Equal(t, 4.0, got)

	got, err = ev.Evaluate("{{name}} + 1", map[string]any{"name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	// cached program is reused with new values
	got, err = ev.Evaluate("{{qty}} * {{price}} + 1", map[string]any{"qty": int64(2), "price": 2.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, got)
}

func TestEvaluateErrors(t *testing.T) {
	ev, err := formula.New()
	require.NoError(t, err)

	_, err = ev.Evaluate("   ", nil)
	assert.ErrorIs(t, err, formula.ErrEmptyFormula)

	_, err = ev.Evaluate("{{a}} +", nil)
	assert.Error(t, err)

	_, err = ev.Evaluate("{{a}} / {{b}}", map[string]any{"a": 1})
	assert.Error(t, err)
}
