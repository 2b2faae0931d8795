package values_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"signflow/internal/engine/values"
)

func TestNormalizeBoolean(t *testing.T) {
	out := values.Normalize(map[string]any{"a": "true", "b": "false", "c": "yes", "d": true}, values.CastFlags{Boolean: true})
	assert.Equal(t, map[string]any{"a": true, "b": false, "c": false, "d": true}, out)
}

func TestNormalizeNumber(t *testing.T) {
	out := values.Normalize(map[string]any{
		"int":     "42",
		"float":   "4.5",
		"whole":   "7.0",
		"blank":   "",
		"junk":    "abc",
		"prefix":  "12kg",
		"decoded": 3.0,
	}, values.CastFlags{Number: true})
	assert.Equal(t, int64(42), out["int"])
	assert.Equal(t, 4.5, out["float"])
	assert.Equal(t, int64(7), out["whole"])
	assert.Nil(t, out["blank"])
	assert.Equal(t, int64(0), out["junk"])
	assert.Equal(t, int64(12), out["prefix"])
	assert.Equal(t, int64(3), out["decoded"])
}

func TestNormalizePhone(t *testing.T) {
	out := values.Normalize(map[string]any{"p": "+31 (6) 1234-5678", "q": "06 12+34"}, values.CastFlags{Phone: true})
	assert.Equal(t, "+31612345678", out["p"])
	assert.Equal(t, "061234", out["q"])
}

func TestNormalizePassThrough(t *testing.T) {
	out := values.Normalize(map[string]any{
		"list": []any{"a", "", nil, "b", "  "},
		"text": "hello",
		"num":  5.0,
	}, values.CastFlags{})
	assert.Equal(t, []any{"a", "b"}, out["list"])
	assert.Equal(t, "hello", out["text"])
	assert.Equal(t, 5.0, out["num"])
}

func TestBooleanWinsOverOtherFlags(t *testing.T) {
	out := values.Normalize(map[string]any{"a": "true"}, values.CastFlags{Boolean: true, Number: true, Phone: true})
	assert.Equal(t, true, out["a"])
}

func TestToFloat(t *testing.T) {
	f, ok := values.ToFloat("3.25")
	assert.True(t, ok)
	assert.Equal(t, 3.25, f)
	_, ok = values.ToFloat("n/a")
	assert.False(t, ok)
	_, ok = values.ToFloat(true)
	assert.False(t, ok)
}
