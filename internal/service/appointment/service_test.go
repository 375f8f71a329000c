package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
	"github.com/jwalitptl/salon-api/internal/repository/memory"
	"github.com/jwalitptl/salon-api/internal/service/audit"
	"github.com/jwalitptl/salon-api/internal/service/availability"
	"github.com/jwalitptl/salon-api/internal/service/booking"
	"github.com/jwalitptl/salon-api/pkg/logger"
	"github.com/jwalitptl/salon-api/pkg/metrics"
)

var (
	start = time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC)
	staff = model.Actor{Type: model.ActorStaff}
)

type fixture struct {
	store        *memory.Store
	svc          *Service
	tenant       *model.Tenant
	professional *model.Professional
	checker      *availability.Service
	trail        *audit.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	tenant := store.AddTenant(&model.Tenant{Name: "Studio", Timezone: "UTC"})
	professional := store.AddProfessional(&model.Professional{TenantID: tenant.ID, Name: "Ana", Active: true})

	log := logger.NewNop()
	m := metrics.NewNop()
	checker := availability.NewService(store.TenantRepository(), store.ScheduleOverrideRepository(),
		store.AppointmentRepository(), availability.DefaultConfig(), log, m)
	trail := audit.NewService(store.AppointmentEventRepository(), store.OutboxRepository(), log, m)

	svc := NewService(
		store.AppointmentRepository(),
		store.ClientRepository(),
		store.ProfessionalRepository(),
		checker,
		trail,
		nil,
		Config{},
		log,
		m,
	)
	return &fixture{store: store, svc: svc, tenant: tenant, professional: professional, checker: checker, trail: trail}
}

// withAppointments rebuilds the service over a different appointment repository.
func (f *fixture) withAppointments(repo repository.AppointmentRepository) *Service {
	return NewService(repo, f.store.ClientRepository(), f.store.ProfessionalRepository(),
		f.checker, f.trail, nil, Config{}, logger.NewNop(), metrics.NewNop())
}

// cancelAfterRead cancels the appointment right after the first Get returns,
// as if another request won the race.
type cancelAfterRead struct {
	repository.AppointmentRepository
	fired bool
}

func (r *cancelAfterRead) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Appointment, error) {
	appt, err := r.AppointmentRepository.Get(ctx, tenantID, id)
	if err == nil && !r.fired {
		r.fired = true
		if err := r.AppointmentRepository.UpdateStatus(ctx, tenantID, id, model.AppointmentStatusCancelled); err != nil {
			return nil, err
		}
	}
	return appt, err
}

func (f *fixture) addAppointment(at time.Time, status model.AppointmentStatus) *model.Appointment {
	return f.store.AddAppointment(&model.Appointment{
		TenantID:       f.tenant.ID,
		ProfessionalID: f.professional.ID,
		StartTime:      at,
		EndTime:        at.Add(45 * time.Minute),
		Status:         status,
		TotalDuration:  45,
		TotalPrice:     60,
	})
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.AppointmentStatus
		want     bool
	}{
		{model.AppointmentStatusScheduled, model.AppointmentStatusScheduled, true},
		{model.AppointmentStatusScheduled, model.AppointmentStatusConfirmed, true},
		{model.AppointmentStatusScheduled, model.AppointmentStatusCancelled, true},
		{model.AppointmentStatusScheduled, model.AppointmentStatusNoShow, true},
		{model.AppointmentStatusScheduled, model.AppointmentStatusCompleted, false},
		{model.AppointmentStatusConfirmed, model.AppointmentStatusCompleted, true},
		{model.AppointmentStatusConfirmed, model.AppointmentStatusScheduled, false},
		{model.AppointmentStatusCompleted, model.AppointmentStatusScheduled, false},
		{model.AppointmentStatusCompleted, model.AppointmentStatusCompleted, true},
		{model.AppointmentStatusCancelled, model.AppointmentStatusConfirmed, false},
		{model.AppointmentStatusNoShow, model.AppointmentStatusCompleted, false},
		{model.AppointmentStatusScheduled, "archived", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestUpdateStatusAuditsEveryAcceptedChange(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(start, model.AppointmentStatusScheduled)
	ctx := context.Background()

	details, err := f.svc.UpdateStatus(ctx, f.tenant.ID, appt.ID, model.AppointmentStatusScheduled, staff)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusScheduled, details.Status)

	details, err = f.svc.UpdateStatus(ctx, f.tenant.ID, appt.ID, model.AppointmentStatusConfirmed, staff)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, details.Status)

	events := f.store.Events()
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, model.EventStatusChanged, e.EventType)
		assert.Equal(t, model.ActorStaff, e.ActorType)
	}
	assert.Equal(t, "scheduled", events[0].Payload["from"])
	assert.Equal(t, "scheduled", events[0].Payload["to"])
	assert.Equal(t, "scheduled", events[1].Payload["from"])
	assert.Equal(t, "confirmed", events[1].Payload["to"])
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(start, model.AppointmentStatusCompleted)

	_, err := f.svc.UpdateStatus(context.Background(), f.tenant.ID, appt.ID, model.AppointmentStatusScheduled, staff)

	var transition *InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, model.AppointmentStatusCompleted, transition.From)
	assert.Equal(t, model.AppointmentStatusScheduled, transition.To)
	assert.Equal(t, 0, f.store.Calls("appointments.UpdateStatus"))
	assert.Empty(t, f.store.Events())
}

func TestUpdateStatusErrors(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(start, model.AppointmentStatusScheduled)

	_, err := f.svc.UpdateStatus(context.Background(), f.tenant.ID, uuid.New(), model.AppointmentStatusConfirmed, staff)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.UpdateStatus(context.Background(), f.tenant.ID, appt.ID, "archived", staff)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.UpdateStatus(context.Background(), uuid.New(), appt.ID, model.AppointmentStatusConfirmed, staff)
	assert.ErrorIs(t, err, ErrNotFound, "appointments are scoped to their tenant")
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(start, model.AppointmentStatusConfirmed)
	ctx := context.Background()

	details, err := f.svc.Cancel(ctx, f.tenant.ID, appt.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, details.Status)

	_, err = f.svc.Cancel(ctx, f.tenant.ID, appt.ID, staff)
	require.NoError(t, err)

	events := f.store.Events()
	require.Len(t, events, 1, "cancelling twice records one event")
	assert.Equal(t, model.EventCancelled, events[0].EventType)
	assert.Equal(t, "confirmed", events[0].Payload["from"])
}

func TestCancelFreesTheInterval(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(start, model.AppointmentStatusScheduled)
	other := f.addAppointment(start.Add(2*time.Hour), model.AppointmentStatusScheduled)

	_, err := f.svc.Cancel(context.Background(), f.tenant.ID, appt.ID, staff)
	require.NoError(t, err)

	newStart := start.Add(15 * time.Minute)
	_, err = f.svc.Update(context.Background(), f.tenant.ID, other.ID, model.AppointmentPatch{StartTime: &newStart}, staff)
	assert.NoError(t, err)
}

func TestCancelRejectsFinishedAppointments(t *testing.T) {
	f := newFixture(t)
	for _, status := range []model.AppointmentStatus{model.AppointmentStatusCompleted, model.AppointmentStatusNoShow} {
		appt := f.addAppointment(start.AddDate(0, 0, len(status)), status)
		_, err := f.svc.Cancel(context.Background(), f.tenant.ID, appt.ID, staff)
		var transition *InvalidTransitionError
		assert.ErrorAs(t, err, &transition, string(status))
	}
	assert.Empty(t, f.store.Events())
}

func TestUpdateNoOpRecordsNothing(t *testing.T) {
	f := newFixture(t)
	notes := "bring reference photo"
	appt := f.addAppointment(start, model.AppointmentStatusScheduled)
	appt.Notes = &notes
	f.store.AddAppointment(appt)

	same := notes
	sameStart := start.In(time.FixedZone("BRT", -3*3600))
	details, err := f.svc.Update(context.Background(), f.tenant.ID, appt.ID, model.AppointmentPatch{
		StartTime:      &sameStart,
		ProfessionalID: &f.professional.ID,
		Notes:          &same,
	}, staff)
	require.NoError(t, err)
	assert.Equal(t, start, details.StartTime)
	assert.Empty(t, f.store.Events())
	assert.Equal(t, 0, f.store.Calls("appointments.Update"))
}

func TestUpdateRecordsChangedFieldsOnly(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(start, model.AppointmentStatusScheduled)
	client := f.store.AddClient(&model.Client{TenantID: f.tenant.ID, Name: "Maria", Phone: "5511987654321"})
	notes := "first visit"

	details, err := f.svc.Update(context.Background(), f.tenant.ID, appt.ID, model.AppointmentPatch{
		ClientID: &client.ID,
		Notes:    &notes,
	}, staff)
	require.NoError(t, err)
	require.NotNil(t, details.Client)
	assert.Equal(t, client.ID, details.Client.ID)

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventUpdated, events[0].EventType)
	assert.Len(t, events[0].Payload, 2)
	assert.Equal(t, model.JSONMap{"old": nil, "new": "first visit"}, events[0].Payload["notes"])
	assert.Equal(t, model.JSONMap{"old": nil, "new": client.ID.String()}, events[0].Payload["client_id"])
}

func TestUpdateReschedule(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(start, model.AppointmentStatusScheduled)

	// Overlaps its own current interval only.
	newStart := start.Add(30 * time.Minute)
	details, err := f.svc.Update(context.Background(), f.tenant.ID, appt.ID, model.AppointmentPatch{StartTime: &newStart}, staff)
	require.NoError(t, err)
	assert.Equal(t, newStart, details.StartTime)
	assert.Equal(t, newStart.Add(45*time.Minute), details.EndTime)

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Payload, "start_time")
	assert.Contains(t, events[0].Payload, "end_time")
}

func TestUpdateRescheduleConflict(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(start, model.AppointmentStatusScheduled)
	f.addAppointment(start.Add(2*time.Hour), model.AppointmentStatusConfirmed)

	newStart := start.Add(90 * time.Minute)
	_, err := f.svc.Update(context.Background(), f.tenant.ID, appt.ID, model.AppointmentPatch{StartTime: &newStart}, staff)

	var conflict *booking.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)
	assert.Empty(t, f.store.Events())

	stored, err := f.svc.Get(context.Background(), f.tenant.ID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, start, stored.StartTime)
}

func TestUpdateReassignProfessional(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(start, model.AppointmentStatusScheduled)
	busy := f.store.AddProfessional(&model.Professional{TenantID: f.tenant.ID, Name: "Bia", Active: true})
	f.store.AddAppointment(&model.Appointment{
		TenantID:       f.tenant.ID,
		ProfessionalID: busy.ID,
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		Status:         model.AppointmentStatusScheduled,
		TotalDuration:  60,
	})
	free := f.store.AddProfessional(&model.Professional{TenantID: f.tenant.ID, Name: "Cris", Active: true})
	inactive := f.store.AddProfessional(&model.Professional{TenantID: f.tenant.ID, Name: "Dani", Active: false})

	_, err := f.svc.Update(context.Background(), f.tenant.ID, appt.ID, model.AppointmentPatch{ProfessionalID: &busy.ID}, staff)
	var conflict *booking.ConflictError
	assert.ErrorAs(t, err, &conflict)

	_, err = f.svc.Update(context.Background(), f.tenant.ID, appt.ID, model.AppointmentPatch{ProfessionalID: &inactive.ID}, staff)
	assert.ErrorIs(t, err, booking.ErrProfessionalNotFound)

	details, err := f.svc.Update(context.Background(), f.tenant.ID, appt.ID, model.AppointmentPatch{ProfessionalID: &free.ID}, staff)
	require.NoError(t, err)
	assert.Equal(t, free.ID, details.ProfessionalID)
}

func TestUpdateRescheduleFinishedAppointment(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(start, model.AppointmentStatusCompleted)
	newStart := start.Add(time.Hour)

	_, err := f.svc.Update(context.Background(), f.tenant.ID, appt.ID, model.AppointmentPatch{StartTime: &newStart}, staff)
	assert.ErrorIs(t, err, ErrNotReschedulable)

	notes := "paid in cash"
	_, err = f.svc.Update(context.Background(), f.tenant.ID, appt.ID, model.AppointmentPatch{Notes: &notes}, staff)
	assert.NoError(t, err, "notes stay editable")
}

func TestUpdateAuditFailureKeepsMutation(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(start, model.AppointmentStatusScheduled)
	f.store.Fail("events.Create", errors.New("audit down"))
	notes := "allergic to latex"

	details, err := f.svc.Update(context.Background(), f.tenant.ID, appt.ID, model.AppointmentPatch{Notes: &notes}, staff)
	require.NoError(t, err)
	require.NotNil(t, details.Notes)
	assert.Equal(t, notes, *details.Notes)
	assert.Empty(t, f.store.Events())
	require.Len(t, f.store.OutboxEvents(), 1)
	assert.Equal(t, model.OutboxAppointmentEventRetry, f.store.OutboxEvents()[0].EventType)
}

func TestUpdateDoesNotRevertConcurrentCancel(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(start, model.AppointmentStatusScheduled)
	svc := f.withAppointments(&cancelAfterRead{AppointmentRepository: f.store.AppointmentRepository()})
	notes := "running late"

	_, err := svc.Update(context.Background(), f.tenant.ID, appt.ID, model.AppointmentPatch{Notes: &notes}, staff)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.ErrorIs(t, err, repository.ErrStale)
	assert.Empty(t, f.store.Events())

	stored, err := f.svc.Get(context.Background(), f.tenant.ID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, stored.Status)
	assert.Nil(t, stored.Notes)

	// A fresh read sees the cancellation and the edit goes through.
	details, err := f.svc.Update(context.Background(), f.tenant.ID, appt.ID, model.AppointmentPatch{Notes: &notes}, staff)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, details.Status)
	require.NotNil(t, details.Notes)
	assert.Equal(t, notes, *details.Notes)
}

func TestUpdateStorageFailurePropagates(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(start, model.AppointmentStatusScheduled)
	dbErr := errors.New("connection reset")
	f.store.Fail("appointments.Update", dbErr)
	notes := "x"

	_, err := f.svc.Update(context.Background(), f.tenant.ID, appt.ID, model.AppointmentPatch{Notes: &notes}, staff)
	assert.ErrorIs(t, err, dbErr)
	assert.Empty(t, f.store.Events())
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(start, model.AppointmentStatusScheduled)

	details, err := f.svc.Get(context.Background(), f.tenant.ID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, details.ID)

	details, err = f.svc.Get(context.Background(), f.tenant.ID, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, details)

	f.store.Fail("appointments.GetDetails", repository.ErrConflict)
	_, err = f.svc.Get(context.Background(), f.tenant.ID, appt.ID)
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	first := f.addAppointment(start, model.AppointmentStatusScheduled)
	f.addAppointment(start.Add(time.Hour), model.AppointmentStatusCancelled)
	third := f.addAppointment(start.Add(2*time.Hour), model.AppointmentStatusScheduled)

	scheduled := model.AppointmentStatusScheduled
	got, err := f.svc.List(context.Background(), &model.AppointmentFilter{TenantID: f.tenant.ID, Status: &scheduled})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, third.ID, got[1].ID)

	got, err = f.svc.List(context.Background(), &model.AppointmentFilter{TenantID: uuid.New()})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	bogus := model.AppointmentStatus("archived")
	_, err = f.svc.List(context.Background(), &model.AppointmentFilter{TenantID: f.tenant.ID, Status: &bogus})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(start, model.AppointmentStatusScheduled)

	require.NoError(t, f.svc.Delete(context.Background(), f.tenant.ID, appt.ID))
	assert.Equal(t, 0, f.store.AppointmentCount())
	assert.Empty(t, f.store.Events(), "deletes are not audited")

	assert.ErrorIs(t, f.svc.Delete(context.Background(), f.tenant.ID, appt.ID), ErrNotFound)
}

func TestListEvents(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(start, model.AppointmentStatusScheduled)
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, f.tenant.ID, appt.ID, model.AppointmentStatusConfirmed, staff)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, f.tenant.ID, appt.ID, staff)
	require.NoError(t, err)

	events, err := f.svc.ListEvents(ctx, f.tenant.ID, appt.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventStatusChanged, events[0].EventType)
	assert.Equal(t, model.EventCancelled, events[1].EventType)

	_, err = f.svc.ListEvents(ctx, f.tenant.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
