package queryparse

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
)

// Recognized relative-date vocabulary, French and English. Checked in
// order; "next" phrases come before their "this" counterparts so that
// "mois prochain" is not swallowed by the "ce mois" check.
var (
	todayWords     = []string{"today", "aujourd'hui", "ce soir", "tonight"}
	tomorrowWords  = []string{"tomorrow", "demain"}
	weekendWords   = []string{"this weekend", "ce week-end", "weekend", "week-end"}
	thisWeekWords  = []string{"this week", "cette semaine"}
	nextWeekWords  = []string{"next week", "la semaine prochaine", "semaine prochaine"}
	nextMonthWords = []string{"next month", "le mois prochain", "mois prochain"}
	thisMonthWords = []string{"this month", "ce mois"}
)

// ParseTemporal extracts a half-open UTC date range [start, end) from the
// question's relative-date vocabulary, falling back to free-date parsing.
// Both bounds are nil when the question carries no usable date.
func (p *Parser) ParseTemporal(question string) (*time.Time, *time.Time) {
	now := p.Now().In(p.Location)
	return parseTemporalAt(question, now)
}

func parseTemporalAt(question string, now time.Time) (*time.Time, *time.Time) {
	lower := strings.ToLower(question)

	containsAny := func(words []string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	midnight := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
	span := func(start, end time.Time) (*time.Time, *time.Time) {
		s := start.UTC()
		e := end.UTC()
		return &s, &e
	}

	switch {
	case containsAny(todayWords):
		start := midnight(now)
		return span(start, start.AddDate(0, 0, 1))

	case containsAny(tomorrowWords):
		start := midnight(now.AddDate(0, 0, 1))
		return span(start, start.AddDate(0, 0, 1))

	case containsAny(weekendWords):
		// Monday-based weekday so Saturday is day 5. Go's % keeps the
		// sign, so normalize: on Sunday the phrase means next weekend.
		weekday := (int(now.Weekday()) + 6) % 7
		daysUntilSaturday := ((5-weekday)%7 + 7) % 7
		// Saturday afternoon already: target the following weekend.
		if daysUntilSaturday == 0 && now.Hour() > 12 {
			daysUntilSaturday = 7
		}
		saturday := midnight(now.AddDate(0, 0, daysUntilSaturday))
		return span(saturday, saturday.AddDate(0, 0, 2))

	case containsAny(thisWeekWords):
		start := midnight(now)
		return span(start, start.AddDate(0, 0, 7))

	case containsAny(nextWeekWords):
		weekday := (int(now.Weekday()) + 6) % 7
		daysUntilMonday := (7 - weekday) % 7
		if daysUntilMonday == 0 {
			daysUntilMonday = 7
		}
		monday := midnight(now.AddDate(0, 0, daysUntilMonday))
		return span(monday, monday.AddDate(0, 0, 7))

	case containsAny(nextMonthWords):
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
		return span(start, start.AddDate(0, 0, 30))

	case containsAny(thisMonthWords):
		start := midnight(now)
		return span(start, start.AddDate(0, 0, 30))
	}

	return searchExplicitDate(question, now)
}

// frenchMonths maps French month names onto the English forms dateparse
// understands.
var frenchMonths = map[string]string{
	"janvier":   "January",
	"février":   "February",
	"fevrier":   "February",
	"mars":      "March",
	"avril":     "April",
	"mai":       "May",
	"juin":      "June",
	"juillet":   "July",
	"août":      "August",
	"aout":      "August",
	"septembre": "September",
	"octobre":   "October",
	"novembre":  "November",
	"décembre":  "December",
	"decembre":  "December",
}

var yearOnlyPattern = regexp.MustCompile(`^\d{4}$`)

// searchExplicitDate scans token windows for a parseable calendar date
// ("15 mars 2026", "2026-03-15"). Windows without a digit are skipped to
// avoid the parser inventing dates from prose, and a bare year never counts
// as a date: "concerts en 2026" carries no day to anchor a range on.
func searchExplicitDate(question string, now time.Time) (*time.Time, *time.Time) {
	tokens := strings.Fields(question)

	for size := 3; size >= 1; size-- {
		for i := 0; i+size <= len(tokens); i++ {
			window := strings.Join(tokens[i:i+size], " ")
			if !containsDigit(window) || yearOnlyPattern.MatchString(window) {
				continue
			}
			parsed, err := dateparse.ParseIn(translateMonths(window), now.Location())
			if err != nil {
				continue
			}
			// Reject implausible years from partial matches.
			if parsed.Year() < now.Year()-1 || parsed.Year() > now.Year()+2 {
				continue
			}
			start := parsed.UTC()
			end := parsed.AddDate(0, 0, 1).UTC()
			return &start, &end
		}
	}
	return nil, nil
}

// translateMonths rewrites French month names so windows like "15 mars 2026"
// parse.
func translateMonths(window string) string {
	fields := strings.Fields(window)
	changed := false
	for i, f := range fields {
		if en, ok := frenchMonths[strings.ToLower(f)]; ok {
			fields[i] = en
			changed = true
		}
	}
	if !changed {
		return window
	}
	return strings.Join(fields, " ")
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
