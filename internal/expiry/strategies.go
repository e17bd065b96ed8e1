package expiry

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// PartialDate holds the fields a date rule managed to extract. Zero means
// "not found" and leaves the accumulator's default in place.
type PartialDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateRule is one date format. Parse must be pure.
type DateRule struct {
	Name  string
	Parse func(s string) (PartialDate, bool)
}

// DefaultDateRules are tried in order; the first rule that matches wins.
var DefaultDateRules = []DateRule{
	{Name: "slash", Parse: parseSlashDate},
	{Name: "iso", Parse: parseISODate},
	{Name: "text", Parse: parseTextDate},
}

var (
	slashDateRe = regexp.MustCompile(`^\s*(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`)
	isoDateRe   = regexp.MustCompile(`^\s*(\d{4})-(\d{2})-(\d{2})\s*$`)
	dayRunRe    = regexp.MustCompile(`(?:^|\D)(\d{1,2})(?:\D|$)`)
	yearRunRe   = regexp.MustCompile(`(?:^|\D)(20\d{2})(?:\D|$)`)
	monthAbbrRe = regexp.MustCompile(`\b(ene|feb|mar|abr|may|jun|jul|ago|sep|set|oct|nov|dic)`)
	timeRe      = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?`)
)

var spanishMonths = map[string]time.Month{
	"ene": time.January,
	"feb": time.February,
	"mar": time.March,
	"abr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"ago": time.August,
	"sep": time.September,
	"set": time.September, // "setiembre"
	"oct": time.October,
	"nov": time.November,
	"dic": time.December,
}

// parseSlashDate reads a leading D[D]/M[M] with an optional /YY or /YYYY.
func parseSlashDate(s string) (PartialDate, bool) {
	m := slashDateRe.FindStringSubmatch(s)
	if m == nil {
		return PartialDate{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if !validDay(day) || !validMonth(month) {
		return PartialDate{}, false
	}

	p := PartialDate{Day: day, Month: time.Month(month)}
	if m[3] != "" {
		year, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
		p.Year = year
	}
	return p, true
}

// parseISODate reads an exact YYYY-MM-DD.
func parseISODate(s string) (PartialDate, bool) {
	m := isoDateRe.FindStringSubmatch(s)
	if m == nil {
		return PartialDate{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if !validDay(day) || !validMonth(month) {
		return PartialDate{}, false
	}
	return PartialDate{Year: year, Month: time.Month(month), Day: day}, true
}

// parseTextDate picks the pieces it can find out of free Spanish text such as
// "sábado 5 de abril" or "Dic 24, 2026". Each piece is independent. A month
// abbreviation must start a word, so "confirmar" carries no month while the
// leftmost hit wins ("martes 5 de enero" reads as March).
func parseTextDate(s string) (PartialDate, bool) {
	var p PartialDate
	folded := fold(s)

	if m := dayRunRe.FindStringSubmatch(folded); m != nil {
		if day, _ := strconv.Atoi(m[1]); validDay(day) {
			p.Day = day
		}
	}
	if m := monthAbbrRe.FindStringSubmatch(folded); m != nil {
		p.Month = spanishMonths[m[1]]
	}
	if m := yearRunRe.FindStringSubmatch(folded); m != nil {
		p.Year, _ = strconv.Atoi(m[1])
	}

	return p, p != PartialDate{}
}

// parseTimeOfDay reads H[H][:MM] with am/pm adjustment.
func parseTimeOfDay(s string) (hour, minute int, ok bool) {
	m := timeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}

	marker := strings.ToLower(strings.ReplaceAll(s, ".", ""))
	switch {
	case strings.Contains(marker, "pm") && hour < 12:
		hour += 12
	case strings.Contains(marker, "am") && hour == 12:
		hour = 0
	}

	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func validDay(d int) bool   { return d >= 1 && d <= 31 }
func validMonth(m int) bool { return m >= 1 && m <= 12 }
