// Package timerange converts between HH:MM clock strings and minute offsets
// and answers half-open interval overlap questions.
package timerange

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the exclusive upper bound for a clock offset; 24:00 is accepted as end of day.
const MinutesPerDay = 24 * 60

// Range is a half-open [Start, End) interval in minutes from midnight.
type Range struct {
	Start int
	End   int
}

// ToMinutes parses "HH:MM" into minutes from midnight. "24:00" is allowed.
func ToMinutes(clock string) (int, error) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", clock)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", clock, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", clock, err)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock time %q out of range", clock)
	}
	return h*60 + m, nil
}

// FromMinutes formats minutes from midnight as zero-padded "HH:MM".
func FromMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Parse builds a Range from two clock strings. The range must be non-empty.
func Parse(start, end string) (Range, error) {
	s, err := ToMinutes(start)
	if err != nil {
		return Range{}, err
	}
	e, err := ToMinutes(end)
	if err != nil {
		return Range{}, err
	}
	if e <= s {
		return Range{}, fmt.Errorf("range %s-%s is empty", start, end)
	}
	return Range{Start: s, End: e}, nil
}

// Len is the range length in minutes.
func (r Range) Len() int {
	return r.End - r.Start
}

func (r Range) String() string {
	return FromMinutes(r.Start) + "-" + FromMinutes(r.End)
}

// Overlaps reports whether a and b share any minute: a.Start < b.End && a.End > b.Start.
func Overlaps(a, b Range) bool {
	return a.Start < b.End && a.End > b.Start
}

// OverlapsTime is Overlaps for absolute instants.
func OverlapsTime(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// MinuteOfDay returns t's offset from midnight in t's own location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// At returns the instant whose wall clock in loc reads minutes past midnight
// on date's calendar day, so it agrees with MinuteOfDay across DST changes.
// 1440 is midnight of the following day.
func At(date time.Time, minutes int, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, minutes/60, minutes%60, 0, 0, loc)
}
