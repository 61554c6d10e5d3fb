package service

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/boddenberg/sellernotes-bot-go/internal/textfold"
)

// czechDays maps folded Czech day keywords to the English names used by
// time.Weekday.
var czechDays = map[string]string{
	"pondeli": "monday",
	"utery":   "tuesday",
	"streda":  "wednesday",
	"ctvrtek": "thursday",
	"patek":   "friday",
	"sobota":  "saturday",
	"nedele":  "sunday",
	"vcera":   "yesterday",
	"dnes":    "today",
}

// dayToEnglish folds phrase and translates Czech keywords. Unknown
// phrases are returned lowercased so English names still match.
func dayToEnglish(phrase string) string {
	key := textfold.Fold(phrase)
	if en, ok := czechDays[key]; ok {
		return en
	}
	return strings.ToLower(strings.TrimSpace(phrase))
}

// ResolveDayPhrase turns a day reference into a calendar date (midnight in
// today's location). Weekday names resolve to the most recent such day
// within [today-6, today]; today itself matches its own name.
func ResolveDayPhrase(phrase string, today time.Time) (time.Time, bool) {
	y, m, d := today.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, today.Location())

	token := dayToEnglish(phrase)
	switch token {
	case "":
		return time.Time{}, false
	case "yesterday":
		return day.AddDate(0, 0, -1), true
	case "today":
		return day, true
	}

	for i := 0; i < 7; i++ {
		if strings.ToLower(day.Weekday().String()) == token {
			return day, true
		}
		day = day.AddDate(0, 0, -1)
	}
	return time.Time{}, false
}

// ============================================================
// Strict calendar dates
// ============================================================

var czechLayouts = []string{
	"2. 1. 2006 15:04:05",
	"2. 1. 2006 15:04",
	"2. 1. 2006",
	"2.1.2006 15:04:05",
	"2.1.2006 15:04",
	"2.1.2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var (
	spaces   = regexp.MustCompile(`\s+`)
	digitsRe = regexp.MustCompile(`^[0-9]+$`)
)

// yearlessLayouts are day and month only; the year is taken from now.
var yearlessLayouts = []string{
	"2. 1.",
	"2.1.",
}

// ParseStrictDate parses an explicit calendar date written the Czech way
// ("3. 11. 2016", "3.11.2016", "3. 11.") or in a machine format, in the
// location of now. Bare numbers are never treated as dates and neither is
// anything that resolves to a year before 1.
func ParseStrictDate(text string, now time.Time) (time.Time, bool) {
	loc := now.Location()
	s := spaces.ReplaceAllString(strings.TrimSpace(text), " ")
	if s == "" || digitsRe.MatchString(s) {
		return time.Time{}, false
	}
	if !strings.ContainsAny(s, "0123456789") {
		return time.Time{}, false
	}

	for _, layout := range czechLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	for _, layout := range yearlessLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return withYear(t, now.Year())
		}
	}

	t, err := dateparse.ParseIn(s, loc, dateparse.PreferMonthFirst(false))
	if err != nil || t.Year() < 1 {
		return time.Time{}, false
	}
	return t, true
}

// withYear moves a day and month parsed without a year into year. It fails
// for 29. 2. outside leap years.
func withYear(t time.Time, year int) (time.Time, bool) {
	d := time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	if d.Month() != t.Month() || d.Day() != t.Day() {
		return time.Time{}, false
	}
	return d, true
}

// FormatCzechDate is the short display form, e.g. "3. 11. 2016".
func FormatCzechDate(t time.Time) string {
	return t.Format("2. 1. 2006")
}

// FormatCzechDateTime adds the time of day.
func FormatCzechDateTime(t time.Time) string {
	return t.Format("2. 1. 2006 15:04:05")
}
