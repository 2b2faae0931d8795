package phonelength_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signflow/internal/phonelength"
)

func TestExtractDialCodePrefersLongestPrefix(t *testing.T) {
	tbl := phonelength.New()
	cases := map[string]string{
		"+31612345678":  "31",
		"3112345":       "31",
		"+12025550123":  "1",
		"+420123456789": "420",
		"+972501234567": "972",
	}
	for number, want := range cases {
		got, ok := tbl.ExtractDialCode(number)
		require.True(t, ok, number)
		assert.Equal(t, want, got, number)
	}
	_, ok := tbl.ExtractDialCode("+")
	assert.False(t, ok)
}

func TestValidLength(t *testing.T) {
	tbl := phonelength.New()
	assert.True(t, tbl.ValidLength("31612345678", "31"))
	assert.False(t, tbl.ValidLength("3112345", "31"))
	assert.True(t, tbl.ValidLength("+4915112345678", "49"))
	assert.False(t, tbl.ValidLength("+431234", "43"))
}

func TestLookupRules(t *testing.T) {
	rule, ok := phonelength.New().LookupRules("31")
	require.True(t, ok)
	assert.Equal(t, phonelength.Rule{Min: 9, Max: 9, Country: "Netherlands"}, rule)
	_, ok = phonelength.New().LookupRules("999")
	assert.False(t, ok)
}
