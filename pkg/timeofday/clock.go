package timeofday

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Clock is a wall-clock time of day expressed in minutes since midnight.
// It carries no date component.
type Clock int

// MinutesPerDay bounds valid Clock values to [0, MinutesPerDay).
const MinutesPerDay = 24 * 60

var layouts = []string{"15:04:05", "15:04", "3:04 PM", "3:04PM", "03:04 PM", "03:04PM"}

// New builds a Clock from an hour and minute.
func New(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// Parse reads a time of day in 24-hour ("07:30", "07:30:00") or 12-hour
// ("7:30 AM") form. Seconds are truncated.
func Parse(raw string) (Clock, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return 0, fmt.Errorf("empty time value")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return New(t.Hour(), t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("unrecognised time value %q", raw)
}

// MustParse is Parse that panics on error. Intended for constants and tests.
func MustParse(raw string) Clock {
	c, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// Hour returns the hour component.
func (c Clock) Hour() int { return int(c) / 60 }

// Minute returns the minute component.
func (c Clock) Minute() int { return int(c) % 60 }

// Valid reports whether the clock lies within a single day.
func (c Clock) Valid() bool {
	return c >= 0 && c < MinutesPerDay
}

// Before reports whether c is strictly earlier than other.
func (c Clock) Before(other Clock) bool { return c < other }

// After reports whether c is strictly later than other.
func (c Clock) After(other Clock) bool { return c > other }

// String renders the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Format renders the clock with a time layout, e.g. "3:04 PM".
func (c Clock) Format(layout string) string {
	return time.Date(2000, time.January, 1, c.Hour(), c.Minute(), 0, 0, time.UTC).Format(layout)
}

// Overlaps reports whether [startA, endA) and [startB, endB) intersect.
// Back-to-back intervals do not overlap.
func Overlaps(startA, endA, startB, endB Clock) bool {
	return startA < endB && startB < endA
}

// Scan implements sql.Scanner for TIME columns.
func (c *Clock) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*c = 0
		return nil
	case time.Time:
		*c = New(v.Hour(), v.Minute())
		return nil
	case []byte:
		return c.scanString(string(v))
	case string:
		return c.scanString(v)
	case int64:
		*c = Clock(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into timeofday.Clock", src)
	}
}

func (c *Clock) scanString(raw string) error {
	// lib/pq may hand back "07:30:00" or "0000-01-01T07:30:00Z".
	if idx := strings.IndexByte(raw, 'T'); idx >= 0 && len(raw) > idx+1 {
		raw = strings.TrimSuffix(raw[idx+1:], "Z")
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value implements driver.Valuer.
func (c Clock) Value() (driver.Value, error) {
	return fmt.Sprintf("%02d:%02d:00", c.Hour(), c.Minute()), nil
}

// MarshalJSON renders the clock as "HH:MM".
func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts any form understood by Parse.
func (c *Clock) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("time of day must be a string: %w", err)
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
