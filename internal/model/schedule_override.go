package model

import (
	"time"

	"github.com/google/uuid"
)

type OverrideType string

const (
	OverrideAvailable   OverrideType = "available"
	OverrideUnavailable OverrideType = "unavailable"
)

// ScheduleOverride is a professional-specific exception covering the
// inclusive calendar range [StartDate, EndDate].
type ScheduleOverride struct {
	Base
	TenantID       uuid.UUID    `db:"tenant_id" json:"tenant_id"`
	ProfessionalID uuid.UUID    `db:"professional_id" json:"professional_id"`
	StartDate      time.Time    `db:"start_date" json:"start_date"`
	EndDate        time.Time    `db:"end_date" json:"end_date"`
	Type           OverrideType `db:"type" json:"type"`
	StartClock     *string      `db:"start_time" json:"start_time,omitempty"`
	EndClock       *string      `db:"end_time" json:"end_time,omitempty"`
	Reason         *string      `db:"reason" json:"reason,omitempty"`
}

// HasHours reports whether the override carries its own clock range.
func (o *ScheduleOverride) HasHours() bool {
	return o.StartClock != nil && o.EndClock != nil && *o.StartClock != "" && *o.EndClock != ""
}

// Covers reports whether the calendar date falls inside the override.
func (o *ScheduleOverride) Covers(date time.Time) bool {
	d := CivilDate(date)
	return !d.Before(CivilDate(o.StartDate)) && !d.After(CivilDate(o.EndDate))
}

// SpanDays is the number of calendar days covered.
func (o *ScheduleOverride) SpanDays() int {
	return int(CivilDate(o.EndDate).Sub(CivilDate(o.StartDate)).Hours()/24) + 1
}

// CivilDate drops the clock and zone, keeping only the calendar day as midnight UTC.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"
