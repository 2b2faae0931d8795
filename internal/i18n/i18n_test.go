package i18n_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"signflow/internal/i18n"
)

func TestTranslate(t *testing.T) {
	en := i18n.New("en")
	assert.Equal(t, "Verified", en.T(i18n.KeyVerified))
	assert.Equal(t, "Option 3", en.OptionLabel(3))
	assert.Equal(t, "Phone number for Netherlands must be between 9 and 9 digits (without country code)",
		en.T(i18n.KeyPhoneLengthCountry, "Netherlands", 9, 9))

	nl := i18n.New("nl-NL")
	assert.Equal(t, language.Dutch, nl.Tag())
	assert.Equal(t, "Reden", nl.T(i18n.KeyReason))
}

func TestUnknownLocaleFallsBackToEnglish(t *testing.T) {
	assert.Equal(t, language.English, i18n.Match("xx"))
	assert.Equal(t, language.English, i18n.Match(""))
	assert.Equal(t, "Reason", i18n.New("de").T(i18n.KeyReason))
}

func TestLongTime(t *testing.T) {
	ts := time.Date(2024, 6, 5, 9, 7, 0, 0, time.UTC)
	assert.Equal(t, "June 05, 2024 09:07", i18n.New("en").LongTime(ts))
	assert.Equal(t, "5 juni 2024 09:07", i18n.New("nl").LongTime(ts))
}
