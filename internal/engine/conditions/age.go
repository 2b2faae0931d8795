package conditions

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02.01.2006",
	"02/01/2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDate accepts the date renderings a date field can carry. Only the calendar
// date is kept.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// AgeFromDate returns completed years between the date and today. The anniversary of a
// Feb 29 birth date falls on Feb 28 in common years.
func AgeFromDate(s string, today time.Time) (int, bool) {
	birth, ok := ParseDate(s)
	if !ok {
		return 0, false
	}
	t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	age := t.Year() - birth.Year()
	if t.Before(anniversary(birth, birth.Year()+age)) {
		age--
	}
	return age, true
}

func anniversary(birth time.Time, year int) time.Time {
	day := birth.Day()
	if birth.Month() == time.February && day == 29 && !isLeap(year) {
		day = 28
	}
	return time.Date(year, birth.Month(), day, 0, 0, 0, 0, time.UTC)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// IntValue converts a threshold into an int the lenient way: leading digits of a
// string, truncated floats, zero otherwise.
func IntValue(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0
		}
		return int(t)
	case json.Number:
		return IntValue(string(t))
	case string:
		s := strings.TrimSpace(t)
		end := 0
		for end < len(s) {
			ch := s[end]
			if (ch >= '0' && ch <= '9') || (end == 0 && (ch == '-' || ch == '+')) {
				end++
				continue
			}
			break
		}
		n, err := strconv.Atoi(s[:end])
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
