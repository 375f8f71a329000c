package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
	"github.com/jwalitptl/salon-api/internal/service/audit"
	"github.com/jwalitptl/salon-api/internal/service/booking"
	"github.com/jwalitptl/salon-api/pkg/lock"
	"github.com/jwalitptl/salon-api/pkg/logger"
	"github.com/jwalitptl/salon-api/pkg/metrics"
)

var (
	ErrNotFound         = errors.New("appointment not found")
	ErrInvalidStatus    = errors.New("unknown appointment status")
	ErrNotReschedulable = errors.New("only scheduled or confirmed appointments can be rescheduled")
	// ErrConcurrentUpdate means the appointment changed between read and write.
	ErrConcurrentUpdate = errors.New("appointment was modified concurrently")
)

// Trail is the audit log as seen by the lifecycle.
type Trail interface {
	Record(ctx context.Context, entry audit.Entry)
	List(ctx context.Context, tenantID, appointmentID uuid.UUID) ([]*model.AppointmentEvent, error)
}

type Config struct {
	LockTTL time.Duration
}

type Service struct {
	appointments  repository.AppointmentRepository
	clients       repository.ClientRepository
	professionals repository.ProfessionalRepository
	checker       booking.SlotChecker
	trail         Trail
	locker        lock.Locker
	config        Config
	logger        *logger.Logger
	metrics       *metrics.Metrics
}

func NewService(
	appointments repository.AppointmentRepository,
	clients repository.ClientRepository,
	professionals repository.ProfessionalRepository,
	checker booking.SlotChecker,
	trail Trail,
	locker lock.Locker,
	config Config,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	if locker == nil {
		locker = lock.NopLocker{}
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 10 * time.Second
	}
	return &Service{
		appointments:  appointments,
		clients:       clients,
		professionals: professionals,
		checker:       checker,
		trail:         trail,
		locker:        locker,
		config:        config,
		logger:        logger,
		metrics:       metrics,
	}
}

// Get returns the hydrated appointment, or nil when it does not exist.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.AppointmentDetails, error) {
	details, err := s.appointments.GetDetails(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return details, nil
}

func (s *Service) List(ctx context.Context, filter *model.AppointmentFilter) ([]*model.Appointment, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	appointments, err := s.appointments.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	if appointments == nil {
		appointments = []*model.Appointment{}
	}
	return appointments, nil
}

// UpdateStatus moves the appointment to status. Every accepted call is
// audited, including a rewrite of the current status.
func (s *Service) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status model.AppointmentStatus, actor model.Actor) (*model.AppointmentDetails, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	current, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, status) {
		return nil, &InvalidTransitionError{From: current.Status, To: status}
	}

	if err := s.appointments.UpdateStatus(ctx, tenantID, id, status); err != nil {
		return nil, s.mapNotFound(err, "failed to update appointment status")
	}
	s.metrics.StatusTransitions.WithLabelValues(string(current.Status), string(status)).Inc()

	s.trail.Record(ctx, audit.Entry{
		TenantID:      tenantID,
		AppointmentID: id,
		Type:          model.EventStatusChanged,
		Actor:         actor,
		Payload: model.JSONMap{
			"from": string(current.Status),
			"to":   string(status),
		},
	})
	return s.reload(ctx, tenantID, id)
}

// Cancel soft-cancels the appointment. Line items are kept. Cancelling an
// already cancelled appointment returns it unchanged and records nothing.
// Completed and no-show appointments cannot be cancelled; Cancel returns an
// *InvalidTransitionError for them.
func (s *Service) Cancel(ctx context.Context, tenantID, id uuid.UUID, actor model.Actor) (*model.AppointmentDetails, error) {
	current, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if current.Status == model.AppointmentStatusCancelled {
		return s.reload(ctx, tenantID, id)
	}
	if !CanTransition(current.Status, model.AppointmentStatusCancelled) {
		return nil, &InvalidTransitionError{From: current.Status, To: model.AppointmentStatusCancelled}
	}

	if err := s.appointments.UpdateStatus(ctx, tenantID, id, model.AppointmentStatusCancelled); err != nil {
		return nil, s.mapNotFound(err, "failed to cancel appointment")
	}
	s.metrics.StatusTransitions.WithLabelValues(string(current.Status), string(model.AppointmentStatusCancelled)).Inc()

	s.trail.Record(ctx, audit.Entry{
		TenantID:      tenantID,
		AppointmentID: id,
		Type:          model.EventCancelled,
		Actor:         actor,
		Payload:       model.JSONMap{"from": string(current.Status)},
	})
	return s.reload(ctx, tenantID, id)
}

// Update applies patch. Only fields whose value actually changes are written
// and reported in the updated event; a patch that changes nothing records no
// event. Moving the start time or the professional re-checks the interval
// with the appointment itself excluded.
func (s *Service) Update(ctx context.Context, tenantID, id uuid.UUID, patch model.AppointmentPatch, actor model.Actor) (*model.AppointmentDetails, error) {
	current, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	next := *current
	changes := model.JSONMap{}

	if patch.StartTime != nil && !patch.StartTime.Equal(current.StartTime) {
		next.StartTime = patch.StartTime.UTC()
		next.EndTime = next.StartTime.Add(time.Duration(next.TotalDuration) * time.Minute)
		changes["start_time"] = diff(current.StartTime.Format(time.RFC3339), next.StartTime.Format(time.RFC3339))
		changes["end_time"] = diff(current.EndTime.Format(time.RFC3339), next.EndTime.Format(time.RFC3339))
	}

	if patch.ProfessionalID != nil && *patch.ProfessionalID != current.ProfessionalID {
		professional, err := s.professionals.Get(ctx, tenantID, *patch.ProfessionalID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, booking.ErrProfessionalNotFound
			}
			return nil, fmt.Errorf("failed to load professional: %w", err)
		}
		if !professional.Active {
			return nil, booking.ErrProfessionalNotFound
		}
		next.ProfessionalID = professional.ID
		changes["professional_id"] = diff(current.ProfessionalID.String(), next.ProfessionalID.String())
	}

	if patch.ClientID != nil && (current.ClientID == nil || *patch.ClientID != *current.ClientID) {
		client, err := s.clients.Get(ctx, tenantID, *patch.ClientID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, booking.ErrClientNotFound
			}
			return nil, fmt.Errorf("failed to load client: %w", err)
		}
		next.ClientID = &client.ID
		changes["client_id"] = diff(optionalID(current.ClientID), client.ID.String())
	}

	if patch.Notes != nil && (current.Notes == nil || *patch.Notes != *current.Notes) {
		notes := *patch.Notes
		next.Notes = &notes
		changes["notes"] = diff(optionalString(current.Notes), notes)
	}

	if len(changes) == 0 {
		return s.reload(ctx, tenantID, id)
	}

	_, moved := changes["start_time"]
	_, reassigned := changes["professional_id"]
	if moved || reassigned {
		err = s.reschedule(ctx, &next)
	} else {
		err = s.appointments.Update(ctx, &next)
	}
	if err != nil {
		var conflict *booking.ConflictError
		if errors.As(err, &conflict) || errors.Is(err, ErrNotReschedulable) {
			return nil, err
		}
		if errors.Is(err, repository.ErrStale) {
			return nil, fmt.Errorf("%w: %w", ErrConcurrentUpdate, err)
		}
		return nil, s.mapNotFound(err, "failed to update appointment")
	}

	s.trail.Record(ctx, audit.Entry{
		TenantID:      tenantID,
		AppointmentID: id,
		Type:          model.EventUpdated,
		Actor:         actor,
		Payload:       changes,
	})
	return s.reload(ctx, tenantID, id)
}

// reschedule writes a moved appointment under the professional's booking lock.
func (s *Service) reschedule(ctx context.Context, next *model.Appointment) error {
	if Terminal(next.Status) {
		return ErrNotReschedulable
	}

	conflict := func(err error, source string) error {
		s.metrics.BookingConflicts.WithLabelValues(source).Inc()
		return &booking.ConflictError{
			ProfessionalID: next.ProfessionalID,
			Start:          next.StartTime,
			End:            next.EndTime,
			Err:            err,
		}
	}

	key := booking.LockKey(next.TenantID, next.ProfessionalID)
	release, err := s.locker.Acquire(ctx, key, s.config.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return conflict(booking.ErrBookingInProgress, "lock")
		}
		return fmt.Errorf("failed to lock professional schedule: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release booking lock", "key", key, "error", err.Error())
		}
	}()

	if !s.checker.IsSlotAvailable(ctx, next.TenantID, next.ProfessionalID, next.StartTime, next.TotalDuration, &next.ID) {
		return conflict(booking.ErrSlotUnavailable, "reschedule")
	}
	if err := s.appointments.Update(ctx, next); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return conflict(err, "constraint")
		}
		return err
	}
	return nil
}

// Delete hard-deletes the appointment and its line items. It is not audited.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.appointments.Delete(ctx, tenantID, id); err != nil {
		return s.mapNotFound(err, "failed to delete appointment")
	}
	s.logger.Info("Appointment deleted",
		"appointment_id", id.String(),
		"tenant_id", tenantID.String())
	return nil
}

// ListEvents returns the audit trail of an appointment, oldest first.
func (s *Service) ListEvents(ctx context.Context, tenantID, id uuid.UUID) ([]*model.AppointmentEvent, error) {
	if _, err := s.load(ctx, tenantID, id); err != nil {
		return nil, err
	}
	events, err := s.trail.List(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*model.AppointmentEvent{}
	}
	return events, nil
}

func (s *Service) load(ctx context.Context, tenantID, id uuid.UUID) (*model.Appointment, error) {
	appointment, err := s.appointments.Get(ctx, tenantID, id)
	if err != nil {
		return nil, s.mapNotFound(err, "failed to get appointment")
	}
	return appointment, nil
}

func (s *Service) reload(ctx context.Context, tenantID, id uuid.UUID) (*model.AppointmentDetails, error) {
	details, err := s.appointments.GetDetails(ctx, tenantID, id)
	if err != nil {
		return nil, s.mapNotFound(err, "failed to fetch appointment")
	}
	return details, nil
}

func (s *Service) mapNotFound(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func diff(before, after any) model.JSONMap {
	return model.JSONMap{"old": before, "new": after}
}

func optionalID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
