package daypattern

import (
	"strings"
	"time"
	"unicode"
)

// Set is a bitmask of weekdays keyed by time.Weekday.
type Set uint8

// Canonical patterns accepted for newly created schedules.
const (
	MWF   = "M-W-F"
	TTH   = "T-TH"
	MTTHF = "M-T-TH-F"
	MT    = "M-T"
	THF   = "TH-F"
	SAT   = "SAT"
	SUN   = "SUN"
)

var canonical = []string{MWF, TTH, MTTHF, MT, THF, SAT, SUN}

// tokenDays maps every known token to its weekdays. Canonical patterns are
// split into single-day tokens; legacy rows may carry compound tokens such
// as "MWF" or "TTH" that never contain a separator.
var tokenDays = map[string][]time.Weekday{
	"M":   {time.Monday},
	"MON": {time.Monday},
	"T":   {time.Tuesday},
	"TUE": {time.Tuesday},
	"W":   {time.Wednesday},
	"WED": {time.Wednesday},
	"TH":  {time.Thursday},
	"THU": {time.Thursday},
	"F":   {time.Friday},
	"FRI": {time.Friday},
	"SAT": {time.Saturday},
	"SUN": {time.Sunday},

	"MWF":    {time.Monday, time.Wednesday, time.Friday},
	"TTH":    {time.Tuesday, time.Thursday},
	"MTWTHF": {time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	"MW":     {time.Monday, time.Wednesday},
	"WF":     {time.Wednesday, time.Friday},
	"MTH":    {time.Monday, time.Thursday},
	"TF":     {time.Tuesday, time.Friday},
}

// Of builds a set from the given weekdays.
func Of(days ...time.Weekday) Set {
	var s Set
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

// Has reports whether the weekday is part of the set.
func (s Set) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

// Intersects reports whether both sets share at least one weekday.
func (s Set) Intersects(other Set) bool {
	return s&other != 0
}

// Empty reports whether the set holds no weekday.
func (s Set) Empty() bool {
	return s == 0
}

// Days returns the weekdays in Monday..Sunday order.
func (s Set) Days() []time.Weekday {
	order := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}
	days := make([]time.Weekday, 0, len(order))
	for _, d := range order {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

func (s Set) String() string {
	days := s.Days()
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()[:3]
	}
	return strings.Join(names, ",")
}

// Parse converts a day pattern into its weekday set. Tokens are separated by
// any non-letter character. Unknown tokens contribute no days, so a corrupt
// pattern degrades to an empty set instead of failing.
func Parse(raw string) Set {
	tokens := strings.FieldsFunc(Normalize(raw), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	var s Set
	for _, token := range tokens {
		s |= Of(tokenDays[token]...)
	}
	return s
}

// Overlap reports whether two patterns share at least one weekday.
func Overlap(a, b string) bool {
	return Parse(a).Intersects(Parse(b))
}

// Normalize trims and upper-cases a raw pattern.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// IsCanonical reports whether the pattern is one new schedules may use.
func IsCanonical(raw string) bool {
	p := Normalize(raw)
	for _, c := range canonical {
		if p == c {
			return true
		}
	}
	return false
}

// Canonical lists the patterns accepted for new schedules.
func Canonical() []string {
	out := make([]string, len(canonical))
	copy(out, canonical)
	return out
}
