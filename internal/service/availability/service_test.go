package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository/memory"
	"github.com/jwalitptl/salon-api/pkg/logger"
	"github.com/jwalitptl/salon-api/pkg/metrics"
)

var (
	monday = time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)
	sunday = time.Date(2030, 3, 3, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	store        *memory.Store
	svc          *Service
	tenant       *model.Tenant
	professional *model.Professional
}

func weekdayHours(start, end string) model.BusinessHours {
	hours := model.BusinessHours{}
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday"} {
		hours[day] = []model.ClockRange{{Start: start, End: end}}
	}
	return hours
}

func newFixture(t *testing.T, hours model.BusinessHours) *fixture {
	t.Helper()
	store := memory.New()
	tenant := store.AddTenant(&model.Tenant{Name: "Studio", Timezone: "UTC", BusinessHours: hours})
	professional := store.AddProfessional(&model.Professional{TenantID: tenant.ID, Name: "Ana", Active: true})

	svc := NewService(
		store.TenantRepository(),
		store.ScheduleOverrideRepository(),
		store.AppointmentRepository(),
		DefaultConfig(),
		logger.NewNop(),
		metrics.NewNop(),
	).WithClock(func() time.Time { return time.Date(2030, 3, 1, 8, 0, 0, 0, time.UTC) })

	return &fixture{store: store, svc: svc, tenant: tenant, professional: professional}
}

func (f *fixture) book(start time.Time, minutes int, status model.AppointmentStatus) *model.Appointment {
	return f.store.AddAppointment(&model.Appointment{
		TenantID:       f.tenant.ID,
		ProfessionalID: f.professional.ID,
		StartTime:      start,
		EndTime:        start.Add(time.Duration(minutes) * time.Minute),
		Status:         status,
		TotalDuration:  minutes,
	})
}

func clock(s string) *string { return &s }

func slotMap(slots []model.Slot) map[string]bool {
	out := make(map[string]bool, len(slots))
	for _, s := range slots {
		out[s.Time] = s.Available
	}
	return out
}

func TestGetAvailableSlotsConflictMasking(t *testing.T) {
	f := newFixture(t, weekdayHours("09:00", "18:00"))
	f.book(monday.Add(10*time.Hour), 30, model.AppointmentStatusScheduled)

	slots := f.svc.GetAvailableSlots(context.Background(), f.tenant.ID, f.professional.ID, monday, 30, 30)

	require.Len(t, slots, 18)
	got := slotMap(slots)
	assert.False(t, got["10:00"])
	assert.True(t, got["09:30"])
	assert.True(t, got["10:30"])
	assert.Equal(t, "09:00", slots[0].Time)
	assert.Equal(t, "17:30", slots[len(slots)-1].Time)
}

func TestGetAvailableSlotsIgnoresCancelledAppointments(t *testing.T) {
	f := newFixture(t, weekdayHours("09:00", "18:00"))
	f.book(monday.Add(10*time.Hour), 30, model.AppointmentStatusCancelled)

	got := slotMap(f.svc.GetAvailableSlots(context.Background(), f.tenant.ID, f.professional.ID, monday, 30, 30))
	assert.True(t, got["10:00"])
}

func TestGetAvailableSlotsDurationAwareLastSlot(t *testing.T) {
	f := newFixture(t, weekdayHours("09:00", "18:00"))

	slots := f.svc.GetAvailableSlots(context.Background(), f.tenant.ID, f.professional.ID, monday, 60, 30)

	require.NotEmpty(t, slots)
	assert.Equal(t, "17:00", slots[len(slots)-1].Time)
	assert.Len(t, slots, 17)
}

func TestGetAvailableSlotsLongAppointmentBlocksSeveralStarts(t *testing.T) {
	f := newFixture(t, weekdayHours("09:00", "18:00"))
	f.book(monday.Add(11*time.Hour), 90, model.AppointmentStatusConfirmed)

	got := slotMap(f.svc.GetAvailableSlots(context.Background(), f.tenant.ID, f.professional.ID, monday, 60, 30))
	assert.True(t, got["10:00"])
	assert.False(t, got["10:30"])
	assert.False(t, got["11:00"])
	assert.False(t, got["12:00"])
	assert.True(t, got["12:30"])
}

func TestGetAvailableSlotsOverrideOnClosedSunday(t *testing.T) {
	f := newFixture(t, weekdayHours("09:00", "18:00"))
	f.store.AddOverride(&model.ScheduleOverride{
		TenantID:       f.tenant.ID,
		ProfessionalID: f.professional.ID,
		StartDate:      sunday,
		EndDate:        sunday,
		Type:           model.OverrideAvailable,
		StartClock:     clock("10:00"),
		EndClock:       clock("14:00"),
	})

	slots := f.svc.GetAvailableSlots(context.Background(), f.tenant.ID, f.professional.ID, sunday, 30, 30)

	times := make([]string, 0, len(slots))
	for _, s := range slots {
		assert.True(t, s.Available)
		times = append(times, s.Time)
	}
	assert.Equal(t, []string{"10:00", "10:30", "11:00", "11:30", "12:00", "12:30", "13:00", "13:30"}, times)
}

func TestGetAvailableSlotsClosedDay(t *testing.T) {
	f := newFixture(t, weekdayHours("09:00", "18:00"))
	f.book(monday.Add(10*time.Hour), 30, model.AppointmentStatusScheduled)
	f.store.AddOverride(&model.ScheduleOverride{
		TenantID:       f.tenant.ID,
		ProfessionalID: f.professional.ID,
		StartDate:      monday.AddDate(0, 0, -1),
		EndDate:        monday.AddDate(0, 0, 2),
		Type:           model.OverrideUnavailable,
	})

	slots := f.svc.GetAvailableSlots(context.Background(), f.tenant.ID, f.professional.ID, monday, 30, 30)
	assert.Empty(t, slots)
	assert.NotNil(t, slots)
}

func TestGetAvailableSlotsSplitDay(t *testing.T) {
	f := newFixture(t, model.BusinessHours{
		"monday": {{Start: "09:00", End: "12:00"}, {Start: "13:00", End: "15:00"}},
	})

	slots := f.svc.GetAvailableSlots(context.Background(), f.tenant.ID, f.professional.ID, monday, 60, 30)

	times := make([]string, 0, len(slots))
	for _, s := range slots {
		times = append(times, s.Time)
	}
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00", "13:00", "13:30", "14:00"}, times)
}

func TestGetAvailableSlotsDefaultStep(t *testing.T) {
	f := newFixture(t, weekdayHours("09:00", "10:00"))

	slots := f.svc.GetAvailableSlots(context.Background(), f.tenant.ID, f.professional.ID, monday, 30, 0)
	assert.Len(t, slots, 2)
}

func TestGetAvailableSlotsFailsClosed(t *testing.T) {
	f := newFixture(t, weekdayHours("09:00", "18:00"))
	boom := errors.New("connection reset")

	for _, op := range []string{"tenants.Get", "overrides.ListCovering", "appointments.ListActiveBetween"} {
		t.Run(op, func(t *testing.T) {
			f.store.Fail(op, boom)
			defer f.store.Fail(op, nil)

			slots := f.svc.GetAvailableSlots(context.Background(), f.tenant.ID, f.professional.ID, monday, 30, 30)
			assert.Empty(t, slots)
		})
	}
}

func TestGetAvailableSlotsUnknownTenant(t *testing.T) {
	f := newFixture(t, weekdayHours("09:00", "18:00"))
	assert.Empty(t, f.svc.GetAvailableSlots(context.Background(), uuid.New(), f.professional.ID, monday, 30, 30))
}

func TestGetAvailableSlotsMasksPastStarts(t *testing.T) {
	f := newFixture(t, weekdayHours("09:00", "12:00"))
	f.svc.WithClock(func() time.Time { return monday.Add(10*time.Hour + 15*time.Minute) })

	got := slotMap(f.svc.GetAvailableSlots(context.Background(), f.tenant.ID, f.professional.ID, monday, 30, 30))
	assert.False(t, got["09:00"])
	assert.False(t, got["10:00"])
	assert.True(t, got["10:30"])

	yesterday := f.svc.GetAvailableSlots(context.Background(), f.tenant.ID, f.professional.ID, monday.AddDate(0, 0, -2), 30, 30)
	for _, s := range yesterday {
		assert.False(t, s.Available)
	}
}

func TestSlotGridAgreesWithPointCheck(t *testing.T) {
	f := newFixture(t, weekdayHours("09:00", "13:00"))
	f.book(monday.Add(10*time.Hour), 45, model.AppointmentStatusScheduled)
	ctx := context.Background()

	for _, slot := range f.svc.GetAvailableSlots(ctx, f.tenant.ID, f.professional.ID, monday, 30, 15) {
		start, err := time.Parse("15:04", slot.Time)
		require.NoError(t, err)
		at := monday.Add(time.Duration(start.Hour())*time.Hour + time.Duration(start.Minute())*time.Minute)

		assert.Equal(t, slot.Available, f.svc.IsSlotAvailable(ctx, f.tenant.ID, f.professional.ID, at, 30, nil), slot.Time)
	}
}

func TestIsSlotAvailable(t *testing.T) {
	f := newFixture(t, weekdayHours("09:00", "18:00"))
	existing := f.book(monday.Add(10*time.Hour), 60, model.AppointmentStatusScheduled)
	ctx := context.Background()

	assert.False(t, f.svc.IsSlotAvailable(ctx, f.tenant.ID, f.professional.ID, monday.Add(10*time.Hour+30*time.Minute), 30, nil))
	assert.True(t, f.svc.IsSlotAvailable(ctx, f.tenant.ID, f.professional.ID, monday.Add(11*time.Hour), 30, nil))
	assert.True(t, f.svc.IsSlotAvailable(ctx, f.tenant.ID, f.professional.ID, monday.Add(9*time.Hour), 60, nil))

	// rescheduling an appointment against itself
	assert.True(t, f.svc.IsSlotAvailable(ctx, f.tenant.ID, f.professional.ID, monday.Add(10*time.Hour+30*time.Minute), 60, &existing.ID))
	assert.False(t, f.svc.IsSlotAvailable(ctx, f.tenant.ID, f.professional.ID, monday.Add(11*time.Hour), 0, nil))
}

func TestIsSlotAvailableRespectsUnavailableOverride(t *testing.T) {
	f := newFixture(t, weekdayHours("09:00", "18:00"))
	f.store.AddOverride(&model.ScheduleOverride{
		TenantID:       f.tenant.ID,
		ProfessionalID: f.professional.ID,
		StartDate:      monday,
		EndDate:        monday,
		Type:           model.OverrideUnavailable,
	})

	assert.False(t, f.svc.IsSlotAvailable(context.Background(), f.tenant.ID, f.professional.ID, monday.Add(11*time.Hour), 30, nil))
}

func TestIsSlotAvailableFailsClosed(t *testing.T) {
	f := newFixture(t, weekdayHours("09:00", "18:00"))
	f.store.Fail("appointments.HasOverlap", errors.New("timeout"))

	assert.False(t, f.svc.IsSlotAvailable(context.Background(), f.tenant.ID, f.professional.ID, monday.Add(11*time.Hour), 30, nil))
}

func TestGetNextAvailableDate(t *testing.T) {
	f := newFixture(t, weekdayHours("09:00", "18:00"))
	f.store.AddOverride(&model.ScheduleOverride{
		TenantID:       f.tenant.ID,
		ProfessionalID: f.professional.ID,
		StartDate:      monday,
		EndDate:        monday.AddDate(0, 0, 2),
		Type:           model.OverrideUnavailable,
	})

	next := f.svc.GetNextAvailableDate(context.Background(), f.tenant.ID, f.professional.ID, 60, &monday)
	require.NotNil(t, next)
	assert.Equal(t, monday.AddDate(0, 0, 3), *next)
}

func TestGetNextAvailableDateSkipsFullyBookedDay(t *testing.T) {
	f := newFixture(t, weekdayHours("09:00", "11:00"))
	f.book(monday.Add(9*time.Hour), 120, model.AppointmentStatusScheduled)

	next := f.svc.GetNextAvailableDate(context.Background(), f.tenant.ID, f.professional.ID, 30, &monday)
	require.NotNil(t, next)
	assert.Equal(t, monday.AddDate(0, 0, 1), *next)
}

func TestGetNextAvailableDateNoneWithinWindow(t *testing.T) {
	f := newFixture(t, model.BusinessHours{})

	assert.Nil(t, f.svc.GetNextAvailableDate(context.Background(), f.tenant.ID, f.professional.ID, 30, &monday))
	assert.Equal(t, 30, f.store.Calls("overrides.ListCovering"))
}

func TestGetNextAvailableDateDefaultsToToday(t *testing.T) {
	f := newFixture(t, weekdayHours("09:00", "18:00"))
	f.svc.WithClock(func() time.Time { return time.Date(2030, 3, 2, 20, 0, 0, 0, time.UTC) }) // saturday evening

	next := f.svc.GetNextAvailableDate(context.Background(), f.tenant.ID, f.professional.ID, 30, nil)
	require.NotNil(t, next)
	assert.Equal(t, monday, *next)
}
