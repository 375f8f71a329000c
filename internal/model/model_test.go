package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "15551234567", NormalizePhone("+1 (555) 123-4567"))
	assert.Equal(t, "", NormalizePhone("n/a"))
}

func TestBusinessHoursScan(t *testing.T) {
	var h BusinessHours
	require.NoError(t, h.Scan([]byte(`{"monday":[{"start":"09:00","end":"12:00"},{"start":"13:00","end":"18:00"}]}`)))

	monday := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	assert.Len(t, h.For(monday), 2)
	assert.Empty(t, h.For(monday.AddDate(0, 0, 6)))

	assert.Error(t, h.Scan(42))
}

func TestScheduleOverrideCovers(t *testing.T) {
	o := &ScheduleOverride{
		StartDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
	}
	assert.True(t, o.Covers(time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC)))
	assert.True(t, o.Covers(time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC)))
	assert.False(t, o.Covers(time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 3, o.SpanDays())
	assert.False(t, o.HasHours())
}

func TestAppointmentStatusValid(t *testing.T) {
	assert.True(t, AppointmentStatusNoShow.Valid())
	assert.False(t, AppointmentStatus("pending").Valid())
}

func TestTenantLocationFallback(t *testing.T) {
	assert.Equal(t, time.UTC, (&Tenant{Timezone: "Not/AZone"}).Location())
	assert.Equal(t, time.UTC, (*Tenant)(nil).Location())
}
