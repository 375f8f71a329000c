package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
	"github.com/jwalitptl/salon-api/internal/service/audit"
	"github.com/jwalitptl/salon-api/pkg/lock"
	"github.com/jwalitptl/salon-api/pkg/logger"
	"github.com/jwalitptl/salon-api/pkg/metrics"
)

// SlotChecker is the point availability check.
type SlotChecker interface {
	IsSlotAvailable(ctx context.Context, tenantID, professionalID uuid.UUID, start time.Time, totalDuration int, excludeID *uuid.UUID) bool
}

// Recorder appends audit events on a best-effort basis.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

type Config struct {
	LockTTL time.Duration
}

// CreateBookingInput identifies the client either by ClientID or by
// ClientName + ClientPhone (found or created by phone). Neither means walk-in.
type CreateBookingInput struct {
	TenantID       uuid.UUID
	ProfessionalID uuid.UUID
	ServiceIDs     []uuid.UUID
	StartTime      time.Time
	ClientID       *uuid.UUID
	ClientName     string
	ClientPhone    string
	ClientEmail    *string
	Notes          *string
	Actor          model.Actor
}

// Service is the booking transaction coordinator.
type Service struct {
	appointments  repository.AppointmentRepository
	clients       repository.ClientRepository
	services      repository.ServiceRepository
	professionals repository.ProfessionalRepository
	checker       SlotChecker
	recorder      Recorder
	locker        lock.Locker
	config        Config
	logger        *logger.Logger
	metrics       *metrics.Metrics
}

func NewService(
	appointments repository.AppointmentRepository,
	clients repository.ClientRepository,
	services repository.ServiceRepository,
	professionals repository.ProfessionalRepository,
	checker SlotChecker,
	recorder Recorder,
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
		services:      services,
		professionals: professionals,
		checker:       checker,
		recorder:      recorder,
		locker:        locker,
		config:        config,
		logger:        logger,
		metrics:       metrics,
	}
}

// CreateBooking persists an appointment with its line items and returns the
// hydrated result. A failure after the appointment row is written deletes it
// again, so callers never observe an appointment without line items.
func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (*model.AppointmentDetails, error) {
	if in.StartTime.IsZero() {
		return nil, ErrInvalidStartTime
	}

	professional, err := s.professionals.Get(ctx, in.TenantID, in.ProfessionalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfessionalNotFound
		}
		return nil, fmt.Errorf("failed to load professional: %w", err)
	}
	if !professional.Active {
		return nil, ErrProfessionalNotFound
	}

	clientID, err := s.resolveClient(ctx, in)
	if err != nil {
		return nil, err
	}

	selected, err := s.loadServices(ctx, in.TenantID, in.ServiceIDs)
	if err != nil {
		return nil, err
	}

	appointment := &model.Appointment{
		Base:           model.Base{ID: uuid.New()},
		TenantID:       in.TenantID,
		ClientID:       clientID,
		ProfessionalID: in.ProfessionalID,
		StartTime:      in.StartTime.UTC(),
		Status:         model.AppointmentStatusScheduled,
		Notes:          in.Notes,
	}
	items := make([]*model.AppointmentService, 0, len(selected))
	for i, svc := range selected {
		appointment.TotalDuration += svc.Duration
		appointment.TotalPrice += svc.Price
		items = append(items, &model.AppointmentService{
			ID:            uuid.New(),
			AppointmentID: appointment.ID,
			ServiceID:     svc.ID,
			ServiceName:   svc.Name,
			Price:         svc.Price,
			Duration:      svc.Duration,
			OrderIndex:    i,
		})
	}
	appointment.EndTime = appointment.StartTime.Add(time.Duration(appointment.TotalDuration) * time.Minute)

	if err := s.persist(ctx, appointment, items); err != nil {
		return nil, err
	}
	s.metrics.BookingsCreated.Inc()

	serviceIDs := make([]string, len(selected))
	for i, svc := range selected {
		serviceIDs[i] = svc.ID.String()
	}
	payload := model.JSONMap{
		"service_ids":     serviceIDs,
		"professional_id": appointment.ProfessionalID.String(),
	}
	if clientID != nil {
		payload["client_id"] = clientID.String()
	}
	s.recorder.Record(ctx, audit.Entry{
		TenantID:      in.TenantID,
		AppointmentID: appointment.ID,
		Type:          model.EventCreated,
		Actor:         in.Actor,
		Payload:       payload,
	})

	details, err := s.appointments.GetDetails(ctx, in.TenantID, appointment.ID)
	if err != nil {
		s.logger.Error(err, "Appointment committed but could not be read back",
			"appointment_id", appointment.ID.String(),
			"tenant_id", in.TenantID.String())
		return nil, fmt.Errorf("%w: %w", ErrFetchCreated, err)
	}
	return details, nil
}

// persist runs check-then-insert under the professional lock. The database
// exclusion constraint backs the check when the lock is unavailable or expired.
func (s *Service) persist(ctx context.Context, appointment *model.Appointment, items []*model.AppointmentService) error {
	conflict := func(err error, source string) error {
		s.metrics.BookingConflicts.WithLabelValues(source).Inc()
		return &ConflictError{
			ProfessionalID: appointment.ProfessionalID,
			Start:          appointment.StartTime,
			End:            appointment.EndTime,
			Err:            err,
		}
	}

	key := LockKey(appointment.TenantID, appointment.ProfessionalID)
	release, err := s.locker.Acquire(ctx, key, s.config.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return conflict(ErrBookingInProgress, "lock")
		}
		return fmt.Errorf("failed to lock professional schedule: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release booking lock", "key", key, "error", err.Error())
		}
	}()

	if !s.checker.IsSlotAvailable(ctx, appointment.TenantID, appointment.ProfessionalID, appointment.StartTime, appointment.TotalDuration, nil) {
		return conflict(ErrSlotUnavailable, "precheck")
	}

	if err := s.appointments.Create(ctx, appointment); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return conflict(err, "constraint")
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	if err := s.appointments.CreateServices(ctx, items); err != nil {
		itemsErr := fmt.Errorf("failed to create appointment services: %w", err)
		if delErr := s.appointments.Delete(context.WithoutCancel(ctx), appointment.TenantID, appointment.ID); delErr != nil {
			s.metrics.CompensationFailures.Inc()
			s.logger.Error(delErr, "compensating delete failed",
				"appointment_id", appointment.ID.String(),
				"tenant_id", appointment.TenantID.String())
			return errors.Join(itemsErr, fmt.Errorf("%w: %w", ErrCompensationFailed, delErr))
		}
		return itemsErr
	}
	return nil
}

// LockKey names the lock serializing writes to one professional's schedule.
func LockKey(tenantID, professionalID uuid.UUID) string {
	return tenantID.String() + ":" + professionalID.String()
}

func (s *Service) resolveClient(ctx context.Context, in CreateBookingInput) (*uuid.UUID, error) {
	if in.ClientID != nil {
		client, err := s.clients.Get(ctx, in.TenantID, *in.ClientID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrClientNotFound
			}
			return nil, fmt.Errorf("failed to load client: %w", err)
		}
		return &client.ID, nil
	}

	name := strings.TrimSpace(in.ClientName)
	phone := model.NormalizePhone(in.ClientPhone)
	if name == "" && phone == "" {
		return nil, nil
	}
	if name == "" || phone == "" {
		return nil, ErrInvalidClient
	}

	var email *string
	if in.ClientEmail != nil && strings.TrimSpace(*in.ClientEmail) != "" {
		e := strings.TrimSpace(*in.ClientEmail)
		email = &e
	}

	client, err := s.clients.Upsert(ctx, &model.Client{
		TenantID: in.TenantID,
		Name:     name,
		Phone:    phone,
		Email:    email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve client: %w", err)
	}
	return &client.ID, nil
}

// loadServices returns the active services in selection order. Unknown ids are skipped.
func (s *Service) loadServices(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*model.Service, error) {
	return SelectServices(ctx, s.services, tenantID, ids)
}

// SelectServices returns the active services in selection order, one entry per
// occurrence in ids, so a repeated id is booked (and timed) twice. Unknown or
// inactive ids are skipped; ErrNoValidServices is returned when none remain.
func SelectServices(ctx context.Context, repo repository.ServiceRepository, tenantID uuid.UUID, ids []uuid.UUID) ([]*model.Service, error) {
	if len(ids) == 0 {
		return nil, ErrNoValidServices
	}
	found, err := repo.GetActiveByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load services: %w", err)
	}

	byID := make(map[uuid.UUID]*model.Service, len(found))
	for _, svc := range found {
		byID[svc.ID] = svc
	}
	selected := make([]*model.Service, 0, len(ids))
	for _, id := range ids {
		if svc, ok := byID[id]; ok {
			selected = append(selected, svc)
		}
	}
	if len(selected) == 0 {
		return nil, ErrNoValidServices
	}
	return selected, nil
}
