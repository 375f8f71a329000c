package availability

import (
	"time"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/pkg/timerange"
)

// HasConflict is the bulk check: does candidate overlap any busy interval.
func HasConflict(candidate timerange.Range, busy []timerange.Range) bool {
	for _, b := range busy {
		if timerange.Overlaps(candidate, b) {
			return true
		}
	}
	return false
}

// busyRanges projects appointments onto date's clock in loc, clamping
// appointments that start before or end after that day.
func busyRanges(appointments []*model.Appointment, date time.Time, loc *time.Location) []timerange.Range {
	dayStart := timerange.At(date, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	out := make([]timerange.Range, 0, len(appointments))
	for _, a := range appointments {
		if a.Status == model.AppointmentStatusCancelled {
			continue
		}
		if !timerange.OverlapsTime(a.StartTime, a.EndTime, dayStart, dayEnd) {
			continue
		}
		start, end := 0, timerange.MinutesPerDay
		if a.StartTime.After(dayStart) {
			start = timerange.MinuteOfDay(a.StartTime.In(loc))
		}
		if a.EndTime.Before(dayEnd) {
			end = timerange.MinuteOfDay(a.EndTime.In(loc))
			if a.EndTime.In(loc).Second() > 0 || a.EndTime.In(loc).Nanosecond() > 0 {
				end++
			}
		}
		if end > start {
			out = append(out, timerange.Range{Start: start, End: end})
		}
	}
	return out
}
