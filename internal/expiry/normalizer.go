package expiry

import (
	"strings"
	"time"
)

// GraceWindow keeps an event with a start time visible for its estimated
// duration after it begins.
const GraceWindow = 8 * time.Hour

const (
	endOfDayHour   = 23
	endOfDayMinute = 59
)

// Decision is the outcome of evaluating one event date.
type Decision struct {
	Rule     string    // date rule that matched; empty when none did
	HasDate  bool      // false when the date string was empty
	HasTime  bool      // a time string was supplied
	Instant  time.Time // composed event instant
	Deadline time.Time // Instant plus the grace window when HasTime
	Passed   bool
}

// Normalizer evaluates free-text event dates. The zero value uses the
// default rules and GraceWindow.
type Normalizer struct {
	Grace time.Duration
	Rules []DateRule
}

// instant accumulates calendar fields. It is passed by value so each rule
// application yields a new value.
type instant struct {
	year   int
	month  time.Month
	day    int
	hour   int
	minute int
}

func defaultsFor(now time.Time) instant {
	return instant{
		year:   now.Year(),
		month:  now.Month(),
		day:    now.Day(),
		hour:   endOfDayHour,
		minute: endOfDayMinute,
	}
}

func (in instant) withDate(p PartialDate) instant {
	if p.Year != 0 {
		in.year = p.Year
	}
	if p.Month != 0 {
		in.month = p.Month
	}
	if p.Day != 0 {
		in.day = p.Day
	}
	return in
}

func (in instant) withTime(hour, minute int) instant {
	in.hour, in.minute = hour, minute
	return in
}

// at composes the instant in loc, clamping the day to the month's length.
func (in instant) at(loc *time.Location) time.Time {
	if last := daysIn(in.year, in.month, loc); in.day > last {
		in.day = last
	}
	return time.Date(in.year, in.month, in.day, in.hour, in.minute, 0, 0, loc)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// Evaluate decides whether the event described by date and clock has lapsed
// at now. An empty clock means no time was given. The result depends only on
// the arguments.
func (n Normalizer) Evaluate(date, clock string, now time.Time) Decision {
	date = strings.TrimSpace(date)
	if date == "" {
		return Decision{}
	}

	rules := n.Rules
	if rules == nil {
		rules = DefaultDateRules
	}
	grace := n.Grace
	if grace <= 0 {
		grace = GraceWindow
	}

	d := Decision{HasDate: true}
	acc := defaultsFor(now)
	for _, rule := range rules {
		if p, ok := rule.Parse(date); ok {
			acc = acc.withDate(p)
			d.Rule = rule.Name
			break
		}
	}

	clock = strings.TrimSpace(clock)
	if clock != "" {
		d.HasTime = true
		if h, m, ok := parseTimeOfDay(clock); ok {
			acc = acc.withTime(h, m)
		}
	}

	d.Instant = acc.at(now.Location())
	d.Deadline = d.Instant
	if d.HasTime {
		d.Deadline = d.Instant.Add(grace)
	}
	d.Passed = now.After(d.Deadline)
	return d
}

// Passed reports whether the event has lapsed using the default Normalizer.
func Passed(date, clock string, now time.Time) bool {
	return Normalizer{}.Evaluate(date, clock, now).Passed
}
