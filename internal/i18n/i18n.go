// Package i18n holds the few localized strings the form engine renders into values and
// validation messages.
package i18n

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	KeyVerified            = "verified"
	KeyOption              = "option"
	KeyReason              = "reason"
	KeyPhoneLength         = "phone_number_length_invalid"
	KeyPhoneLengthCountry  = "phone_number_length_invalid_for_country"
	KeyIDNotVerified       = "id_not_verified"
	KeyFormulaInfiniteLoop = "formula_infinite_loop"
)

var supported = []language.Tag{language.English, language.Dutch}

var messages = map[language.Tag]map[string]string{
	language.English: {
		KeyVerified:            "Verified",
		KeyOption:              "Option",
		KeyReason:              "Reason",
		KeyPhoneLength:         "Phone number must be between %d and %d digits",
		KeyPhoneLengthCountry:  "Phone number for %s must be between %d and %d digits (without country code)",
		KeyIDNotVerified:       "ID Not Verified",
		KeyFormulaInfiniteLoop: "Formula infinite loop",
	},
	language.Dutch: {
		KeyVerified:            "Geverifieerd",
		KeyOption:              "Optie",
		KeyReason:              "Reden",
		KeyPhoneLength:         "Telefoonnummer moet tussen %d en %d cijfers bevatten",
		KeyPhoneLengthCountry:  "Telefoonnummer voor %s moet tussen %d en %d cijfers bevatten (zonder landcode)",
		KeyIDNotVerified:       "ID niet geverifieerd",
		KeyFormulaInfiniteLoop: "Formule bevat een oneindige lus",
	},
}

var dutchMonths = [...]string{"januari", "februari", "maart", "april", "mei", "juni", "juli",
	"augustus", "september", "oktober", "november", "december"}

var cat = mustCatalog()

func mustCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range messages {
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(fmt.Sprintf("i18n: %s/%s: %v", tag, key, err))
			}
		}
	}
	return b
}

// Translator renders messages for one locale.
type Translator struct {
	tag     language.Tag
	printer *message.Printer
}

// New picks the closest supported locale; unknown locales fall back to English.
func New(locale string) Translator {
	tag := Match(locale)
	return Translator{tag: tag, printer: message.NewPrinter(tag, message.Catalog(cat))}
}

// Match resolves a locale string to a supported tag.
func Match(locale string) language.Tag {
	if strings.TrimSpace(locale) == "" {
		return language.English
	}
	base, _ := language.Make(strings.ReplaceAll(locale, "_", "-")).Base()
	for _, tag := range supported {
		if b, _ := tag.Base(); b == base {
			return tag
		}
	}
	return language.English
}

func (t Translator) Tag() language.Tag { return t.tag }

// T renders a message by key.
func (t Translator) T(key string, args ...any) string {
	if t.printer == nil {
		return New("en").T(key, args...)
	}
	return t.printer.Sprintf(key, args...)
}

// OptionLabel is the synthesized label of an option without an explicit value.
func (t Translator) OptionLabel(position int) string {
	return fmt.Sprintf("%s %d", t.T(KeyOption), position)
}

// LongTime renders the long date-time format of the locale.
func (t Translator) LongTime(ts time.Time) string {
	if t.tag == language.Dutch {
		return fmt.Sprintf("%d %s %d %02d:%02d", ts.Day(), dutchMonths[ts.Month()-1], ts.Year(), ts.Hour(), ts.Minute())
	}
	return ts.Format("January 02, 2006 15:04")
}
