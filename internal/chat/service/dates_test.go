package service

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, prague)
}

func TestResolveDayPhrase(t *testing.T) {
	tests := []struct {
		phrase string
		want   time.Time
		ok     bool
	}{
		{"včera", day(2016, 11, 2), true},
		{"Vcera", day(2016, 11, 2), true},
		{"dnes", day(2016, 11, 3), true},
		{"čtvrtek", day(2016, 11, 3), true},
		{"středa", day(2016, 11, 2), true},
		{"pondělí", day(2016, 10, 31), true},
		{"PONDELI", day(2016, 10, 31), true},
		{"pátek", day(2016, 10, 28), true},
		{"sobota", day(2016, 10, 29), true},
		{"neděle", day(2016, 10, 30), true},
		{"Monday", day(2016, 10, 31), true},
		{"yesterday", day(2016, 11, 2), true},
		{"  úterý ", day(2016, 11, 1), true},
		{"zítra", time.Time{}, false},
		{"nonsense", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tt := range tests {
		got, ok := ResolveDayPhrase(tt.phrase, thursday)
		if ok != tt.ok {
			t.Errorf("ResolveDayPhrase(%q) ok = %v, want %v", tt.phrase, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("ResolveDayPhrase(%q) = %s, want %s", tt.phrase, got, tt.want)
		}
	}
}

func TestResolveDayPhrase_WindowIsOneWeek(t *testing.T) {
	for _, phrase := range []string{"pondělí", "úterý", "středa", "čtvrtek", "pátek", "sobota", "neděle"} {
		got, ok := ResolveDayPhrase(phrase, thursday)
		if !ok {
			t.Fatalf("%s not resolved", phrase)
		}
		diff := day(2016, 11, 3).Sub(got)
		if diff < 0 || diff > 6*24*time.Hour {
			t.Errorf("%s resolved outside [today-6, today]: %s", phrase, got)
		}
	}
}

func TestParseStrictDate(t *testing.T) {
	tests := []struct {
		text string
		want time.Time
		ok   bool
	}{
		{"3. 11. 2016", day(2016, 11, 3), true},
		{"3.11.2016", day(2016, 11, 3), true},
		{"3.  11.   2016", day(2016, 11, 3), true},
		{"3. 11. 2016 9:05", time.Date(2016, 11, 3, 9, 5, 0, 0, prague), true},
		{"2016-11-03", day(2016, 11, 3), true},
		{"03/11/2016", day(2016, 11, 3), true},
		{"3. 11.", day(2016, 11, 3), true},
		{"28.10.", day(2016, 10, 28), true},
		{"29. 2.", day(2016, 2, 29), true},
		{"2/3", time.Time{}, false},
		{"1.2.3", time.Time{}, false},
		{"12", time.Time{}, false},
		{"pondělí", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseStrictDate(tt.text, thursday)
		if ok != tt.ok {
			t.Errorf("ParseStrictDate(%q) ok = %v, want %v", tt.text, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("ParseStrictDate(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestParseStrictDate_YearlessOutsideLeapYear(t *testing.T) {
	now := time.Date(2017, 3, 1, 10, 0, 0, 0, prague)
	if got, ok := ParseStrictDate("29. 2.", now); ok {
		t.Errorf("29. 2. accepted in 2017 as %s", got)
	}
	got, ok := ParseStrictDate("28. 2.", now)
	if !ok || !got.Equal(time.Date(2017, 2, 28, 0, 0, 0, 0, prague)) {
		t.Errorf("28. 2. = %s, %v", got, ok)
	}
}

func TestFormatCzechDate(t *testing.T) {
	if got := FormatCzechDate(thursday); got != "3. 11. 2016" {
		t.Errorf("got %q", got)
	}
	if got := FormatCzechDateTime(thursday); got != "3. 11. 2016 14:30:15" {
		t.Errorf("got %q", got)
	}
}
