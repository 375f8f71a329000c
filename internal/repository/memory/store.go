// Package memory implements the repository interfaces over maps. It backs
// service and handler tests and mirrors the Postgres constraints that the
// services rely on (interval exclusion, unique client phone).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
	"github.com/jwalitptl/salon-api/pkg/timerange"
)

// Store holds every table. Use Fail to inject an error for a named operation,
// e.g. "appointments.CreateServices".
type Store struct {
	mu sync.Mutex

	tenants       map[uuid.UUID]*model.Tenant
	overrides     []*model.ScheduleOverride
	services      map[uuid.UUID]*model.Service
	professionals map[uuid.UUID]*model.Professional
	clients       map[uuid.UUID]*model.Client
	appointments  map[uuid.UUID]*model.Appointment
	items         map[uuid.UUID][]*model.AppointmentService
	events        []*model.AppointmentEvent
	outbox        []*model.OutboxEvent
	deadLetters   []*model.OutboxEvent

	failures map[string]error
	calls    map[string]int
}

func New() *Store {
	return &Store{
		tenants:       map[uuid.UUID]*model.Tenant{},
		services:      map[uuid.UUID]*model.Service{},
		professionals: map[uuid.UUID]*model.Professional{},
		clients:       map[uuid.UUID]*model.Client{},
		appointments:  map[uuid.UUID]*model.Appointment{},
		items:         map[uuid.UUID][]*model.AppointmentService{},
		failures:      map[string]error{},
		calls:         map[string]int{},
	}
}

// Fail makes op return err until cleared with a nil err.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Calls returns how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// enter records the call and returns the injected failure, if any. Callers hold mu.
func (s *Store) enter(op string) error {
	s.calls[op]++
	return s.failures[op]
}

// Seeding helpers

func (s *Store) AddTenant(t *model.Tenant) *model.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.tenants[t.ID] = t
	return t
}

func (s *Store) AddOverride(o *model.ScheduleOverride) *model.ScheduleOverride {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	s.overrides = append(s.overrides, o)
	return o
}

func (s *Store) AddService(svc *model.Service) *model.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc.ID == uuid.Nil {
		svc.ID = uuid.New()
	}
	s.services[svc.ID] = svc
	return svc
}

func (s *Store) AddProfessional(p *model.Professional) *model.Professional {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.professionals[p.ID] = p
	return p
}

func (s *Store) AddClient(c *model.Client) *model.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	s.clients[c.ID] = c
	return c
}

func (s *Store) AddAppointment(a *model.Appointment) *model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.appointments[a.ID] = a
	return a
}

// Inspection helpers

func (s *Store) AppointmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.appointments)
}

func (s *Store) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Store) Events() []*model.AppointmentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.AppointmentEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Store) OutboxEvents() []*model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.OutboxEvent, len(s.outbox))
	copy(out, s.outbox)
	return out
}

func (s *Store) DeadLetters() []*model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.OutboxEvent, len(s.deadLetters))
	copy(out, s.deadLetters)
	return out
}

// Repository views

func (s *Store) TenantRepository() repository.TenantRepository { return tenantRepo{s} }
func (s *Store) ScheduleOverrideRepository() repository.ScheduleOverrideRepository {
	return overrideRepo{s}
}
func (s *Store) ServiceRepository() repository.ServiceRepository           { return serviceRepo{s} }
func (s *Store) ProfessionalRepository() repository.ProfessionalRepository { return professionalRepo{s} }
func (s *Store) ClientRepository() repository.ClientRepository             { return clientRepo{s} }
func (s *Store) AppointmentRepository() repository.AppointmentRepository   { return appointmentRepo{s} }
func (s *Store) AppointmentEventRepository() repository.AppointmentEventRepository {
	return eventRepo{s}
}
func (s *Store) OutboxRepository() repository.OutboxRepository { return outboxRepo{s} }

type tenantRepo struct{ s *Store }

func (r tenantRepo) Get(_ context.Context, id uuid.UUID) (*model.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("tenants.Get"); err != nil {
		return nil, err
	}
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, fmt.Errorf("failed to get tenant: %w", repository.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

type overrideRepo struct{ s *Store }

func (r overrideRepo) ListCovering(_ context.Context, tenantID, professionalID uuid.UUID, date time.Time) ([]*model.ScheduleOverride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("overrides.ListCovering"); err != nil {
		return nil, err
	}
	var out []*model.ScheduleOverride
	for _, o := range r.s.overrides {
		if o.TenantID == tenantID && o.ProfessionalID == professionalID && o.Covers(date) {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r overrideRepo) HasUnavailable(_ context.Context, tenantID, professionalID uuid.UUID, date time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("overrides.HasUnavailable"); err != nil {
		return false, err
	}
	for _, o := range r.s.overrides {
		if o.TenantID == tenantID && o.ProfessionalID == professionalID &&
			o.Type == model.OverrideUnavailable && o.Covers(date) {
			return true, nil
		}
	}
	return false, nil
}

type serviceRepo struct{ s *Store }

func (r serviceRepo) GetActiveByIDs(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*model.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("services.GetActiveByIDs"); err != nil {
		return nil, err
	}
	seen := map[uuid.UUID]bool{}
	var out []*model.Service
	for _, id := range ids {
		svc, ok := r.s.services[id]
		if !ok || seen[id] || svc.TenantID != tenantID || !svc.Active {
			continue
		}
		seen[id] = true
		cp := *svc
		out = append(out, &cp)
	}
	return out, nil
}

type professionalRepo struct{ s *Store }

func (r professionalRepo) Get(_ context.Context, tenantID, id uuid.UUID) (*model.Professional, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("professionals.Get"); err != nil {
		return nil, err
	}
	p, ok := r.s.professionals[id]
	if !ok || p.TenantID != tenantID {
		return nil, fmt.Errorf("failed to get professional: %w", repository.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

type clientRepo struct{ s *Store }

func (r clientRepo) Get(_ context.Context, tenantID, id uuid.UUID) (*model.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("clients.Get"); err != nil {
		return nil, err
	}
	c, ok := r.s.clients[id]
	if !ok || c.TenantID != tenantID {
		return nil, fmt.Errorf("failed to get client: %w", repository.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r clientRepo) GetByPhone(_ context.Context, tenantID uuid.UUID, phone string) (*model.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("clients.GetByPhone"); err != nil {
		return nil, err
	}
	for _, c := range r.s.clients {
		if c.TenantID == tenantID && c.Phone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("failed to get client by phone: %w", repository.ErrNotFound)
}

func (r clientRepo) Upsert(_ context.Context, client *model.Client) (*model.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("clients.Upsert"); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for _, c := range r.s.clients {
		if c.TenantID != client.TenantID || c.Phone != client.Phone {
			continue
		}
		changed := c.Name != client.Name
		if client.Email != nil && (c.Email == nil || *c.Email != *client.Email) {
			email := *client.Email
			c.Email = &email
			changed = true
		}
		c.Name = client.Name
		if changed {
			c.UpdatedAt = now
		}
		cp := *c
		return &cp, nil
	}

	stored := *client
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.s.clients[stored.ID] = &stored
	cp := stored
	return &cp, nil
}

type appointmentRepo struct{ s *Store }

func (r appointmentRepo) overlapsLocked(a *model.Appointment, excludeID uuid.UUID) bool {
	for _, other := range r.s.appointments {
		if other.ID == excludeID || other.TenantID != a.TenantID || other.ProfessionalID != a.ProfessionalID ||
			other.Status == model.AppointmentStatusCancelled || a.Status == model.AppointmentStatusCancelled {
			continue
		}
		if timerange.OverlapsTime(other.StartTime, other.EndTime, a.StartTime, a.EndTime) {
			return true
		}
	}
	return false
}

func (r appointmentRepo) Create(_ context.Context, a *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("appointments.Create"); err != nil {
		return err
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if r.overlapsLocked(a, a.ID) {
		return fmt.Errorf("failed to create appointment: %w", repository.ErrConflict)
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	r.s.appointments[a.ID] = &cp
	return nil
}

func (r appointmentRepo) CreateServices(_ context.Context, items []*model.AppointmentService) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("appointments.CreateServices"); err != nil {
		return err
	}
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		cp := *item
		r.s.items[item.AppointmentID] = append(r.s.items[item.AppointmentID], &cp)
	}
	return nil
}

func (r appointmentRepo) Get(_ context.Context, tenantID, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("appointments.Get"); err != nil {
		return nil, err
	}
	a, ok := r.s.appointments[id]
	if !ok || a.TenantID != tenantID {
		return nil, fmt.Errorf("failed to get appointment: %w", repository.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (r appointmentRepo) GetDetails(_ context.Context, tenantID, id uuid.UUID) (*model.AppointmentDetails, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("appointments.GetDetails"); err != nil {
		return nil, err
	}
	a, ok := r.s.appointments[id]
	if !ok || a.TenantID != tenantID {
		return nil, fmt.Errorf("failed to get appointment: %w", repository.ErrNotFound)
	}
	details := &model.AppointmentDetails{Appointment: *a}
	if p, ok := r.s.professionals[a.ProfessionalID]; ok {
		details.Professional = model.ProfessionalSummary{ID: p.ID, Name: p.Name}
	}
	if a.ClientID != nil {
		if c, ok := r.s.clients[*a.ClientID]; ok {
			details.Client = &model.ClientSummary{ID: c.ID, Name: c.Name, Phone: c.Phone, Email: c.Email}
		}
	}
	items := append([]*model.AppointmentService(nil), r.s.items[id]...)
	sort.Slice(items, func(i, j int) bool { return items[i].OrderIndex < items[j].OrderIndex })
	details.Services = items
	return details, nil
}

func (r appointmentRepo) List(_ context.Context, f *model.AppointmentFilter) ([]*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("appointments.List"); err != nil {
		return nil, err
	}
	var out []*model.Appointment
	for _, a := range r.s.appointments {
		switch {
		case a.TenantID != f.TenantID,
			f.ProfessionalID != nil && a.ProfessionalID != *f.ProfessionalID,
			f.ClientID != nil && (a.ClientID == nil || *a.ClientID != *f.ClientID),
			f.Status != nil && a.Status != *f.Status,
			f.From != nil && !a.EndTime.After(*f.From),
			f.To != nil && !a.StartTime.Before(*f.To):
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })

	page := f.Pagination.Normalize()
	if page.Offset >= len(out) {
		return nil, nil
	}
	end := page.Offset + page.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[page.Offset:end], nil
}

func (r appointmentRepo) ListActiveBetween(_ context.Context, tenantID, professionalID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("appointments.ListActiveBetween"); err != nil {
		return nil, err
	}
	var out []*model.Appointment
	for _, a := range r.s.appointments {
		if a.TenantID == tenantID && a.ProfessionalID == professionalID &&
			a.Status != model.AppointmentStatusCancelled &&
			timerange.OverlapsTime(a.StartTime, a.EndTime, from, to) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r appointmentRepo) HasOverlap(_ context.Context, tenantID, professionalID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("appointments.HasOverlap"); err != nil {
		return false, err
	}
	probe := &model.Appointment{
		TenantID:       tenantID,
		ProfessionalID: professionalID,
		StartTime:      start,
		EndTime:        end,
		Status:         model.AppointmentStatusScheduled,
	}
	exclude := uuid.Nil
	if excludeID != nil {
		exclude = *excludeID
	}
	return r.overlapsLocked(probe, exclude), nil
}

func (r appointmentRepo) Update(_ context.Context, a *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("appointments.Update"); err != nil {
		return err
	}
	existing, ok := r.s.appointments[a.ID]
	if !ok || existing.TenantID != a.TenantID {
		return fmt.Errorf("appointment: %w", repository.ErrNotFound)
	}
	if !existing.UpdatedAt.Equal(a.UpdatedAt) {
		return fmt.Errorf("appointment %s: %w", a.ID, repository.ErrStale)
	}
	candidate := *existing
	candidate.ClientID = a.ClientID
	candidate.ProfessionalID = a.ProfessionalID
	candidate.StartTime = a.StartTime
	candidate.EndTime = a.EndTime
	candidate.Notes = a.Notes
	if r.overlapsLocked(&candidate, a.ID) {
		return fmt.Errorf("failed to update appointment: %w", repository.ErrConflict)
	}
	candidate.UpdatedAt = touch(existing.UpdatedAt)
	a.UpdatedAt = candidate.UpdatedAt
	r.s.appointments[a.ID] = &candidate
	return nil
}

func (r appointmentRepo) UpdateStatus(_ context.Context, tenantID, id uuid.UUID, status model.AppointmentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("appointments.UpdateStatus"); err != nil {
		return err
	}
	a, ok := r.s.appointments[id]
	if !ok || a.TenantID != tenantID {
		return fmt.Errorf("appointment: %w", repository.ErrNotFound)
	}
	a.Status = status
	a.UpdatedAt = touch(a.UpdatedAt)
	return nil
}

// touch returns a timestamp strictly after prev so guarded updates always see a change.
func touch(prev time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func (r appointmentRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("appointments.Delete"); err != nil {
		return err
	}
	a, ok := r.s.appointments[id]
	if !ok || a.TenantID != tenantID {
		return fmt.Errorf("appointment: %w", repository.ErrNotFound)
	}
	delete(r.s.items, id)
	delete(r.s.appointments, id)
	return nil
}

// ItemCount returns the number of line items stored for an appointment.
func (s *Store) ItemCount(appointmentID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items[appointmentID])
}

type eventRepo struct{ s *Store }

func (r eventRepo) Create(_ context.Context, e *model.AppointmentEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("events.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.events {
		if existing.ID == e.ID {
			return nil
		}
	}
	cp := *e
	r.s.events = append(r.s.events, &cp)
	return nil
}

func (r eventRepo) ListByAppointment(_ context.Context, tenantID, appointmentID uuid.UUID) ([]*model.AppointmentEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("events.ListByAppointment"); err != nil {
		return nil, err
	}
	var out []*model.AppointmentEvent
	for _, e := range r.s.events {
		if e.TenantID == tenantID && e.AppointmentID == appointmentID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) find(id uuid.UUID) *model.OutboxEvent {
	for _, e := range r.s.outbox {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (r outboxRepo) Create(_ context.Context, e *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("outbox.Create"); err != nil {
		return err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Status = model.OutboxStatusPending
	e.CreatedAt = time.Now().UTC()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	r.s.outbox = append(r.s.outbox, &cp)
	return nil
}

func (r outboxRepo) GetPendingEventsWithLock(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("outbox.GetPendingEventsWithLock"); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var out []*model.OutboxEvent
	for _, e := range r.s.outbox {
		if len(out) >= limit {
			break
		}
		due := e.RetryAt == nil || !e.RetryAt.After(now)
		if (e.Status == model.OutboxStatusPending || e.Status == model.OutboxStatusRetry) && due {
			e.Status = model.OutboxStatusProcessing
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r outboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("outbox.MarkProcessed"); err != nil {
		return err
	}
	e := r.find(id)
	if e == nil {
		return fmt.Errorf("outbox event: %w", repository.ErrNotFound)
	}
	now := time.Now().UTC()
	e.Status = model.OutboxStatusProcessed
	e.ProcessedAt = &now
	e.ErrorMessage = nil
	return nil
}

func (r outboxRepo) MarkRetry(_ context.Context, id uuid.UUID, msg string, retryAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("outbox.MarkRetry"); err != nil {
		return err
	}
	e := r.find(id)
	if e == nil {
		return fmt.Errorf("outbox event: %w", repository.ErrNotFound)
	}
	e.Status = model.OutboxStatusRetry
	e.ErrorMessage = &msg
	e.RetryCount++
	e.RetryAt = &retryAt
	return nil
}

func (r outboxRepo) MoveToDeadLetter(_ context.Context, event *model.OutboxEvent, msg string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("outbox.MoveToDeadLetter"); err != nil {
		return err
	}
	e := r.find(event.ID)
	if e == nil {
		return fmt.Errorf("outbox event: %w", repository.ErrNotFound)
	}
	e.Status = model.OutboxStatusFailed
	e.ErrorMessage = &msg
	cp := *e
	r.s.deadLetters = append(r.s.deadLetters, &cp)
	return nil
}

func (r outboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("outbox.DeleteProcessedBefore"); err != nil {
		return 0, err
	}
	var kept []*model.OutboxEvent
	var deleted int64
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.s.outbox = kept
	return deleted, nil
}
