package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
	"github.com/jwalitptl/salon-api/pkg/logger"
	"github.com/jwalitptl/salon-api/pkg/metrics"
	"github.com/jwalitptl/salon-api/pkg/timerange"
)

type Config struct {
	DefaultStep int // minutes
	MaxScanDays int
}

func DefaultConfig() Config {
	return Config{DefaultStep: 30, MaxScanDays: 30}
}

// Service answers availability questions. Every read fails closed: storage
// errors are logged and reported as "no availability".
type Service struct {
	tenants      repository.TenantRepository
	overrides    repository.ScheduleOverrideRepository
	appointments repository.AppointmentRepository
	config       Config
	logger       *logger.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewService(
	tenants repository.TenantRepository,
	overrides repository.ScheduleOverrideRepository,
	appointments repository.AppointmentRepository,
	config Config,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	if config.DefaultStep <= 0 {
		config.DefaultStep = 30
	}
	if config.MaxScanDays <= 0 {
		config.MaxScanDays = 30
	}
	return &Service{
		tenants:      tenants,
		overrides:    overrides,
		appointments: appointments,
		config:       config,
		logger:       logger,
		metrics:      metrics,
		now:          time.Now,
	}
}

// WithClock replaces the clock used for past-slot filtering and the default scan start.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetAvailableSlots lists the step-aligned start times on date (a calendar day in
// the tenant's timezone) for a booking of totalDuration minutes. step <= 0 uses
// the configured default.
func (s *Service) GetAvailableSlots(ctx context.Context, tenantID, professionalID uuid.UUID, date time.Time, totalDuration, step int) []model.Slot {
	if totalDuration <= 0 {
		return []model.Slot{}
	}
	if step <= 0 {
		step = s.config.DefaultStep
	}

	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		s.failClosed(err, "get_slots", "Failed to load tenant for availability", tenantID, professionalID)
		return []model.Slot{}
	}
	return s.slotsForTenant(ctx, tenant, professionalID, date, totalDuration, step)
}

func (s *Service) slotsForTenant(ctx context.Context, tenant *model.Tenant, professionalID uuid.UUID, date time.Time, totalDuration, step int) []model.Slot {
	loc := tenant.Location()
	day := model.CivilDate(date)

	overrides, err := s.overrides.ListCovering(ctx, tenant.ID, professionalID, day)
	if err != nil {
		s.failClosed(err, "get_slots", "Failed to load schedule overrides", tenant.ID, professionalID)
		return []model.Slot{}
	}

	open, err := ResolveOpenRanges(tenant.BusinessHours, overrides, day)
	if err != nil {
		s.failClosed(err, "get_slots", "Failed to resolve schedule", tenant.ID, professionalID)
		return []model.Slot{}
	}
	if len(open) == 0 {
		return []model.Slot{}
	}

	dayStart := timerange.At(day, 0, loc)
	booked, err := s.appointments.ListActiveBetween(ctx, tenant.ID, professionalID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		s.failClosed(err, "get_slots", "Failed to load appointments for availability", tenant.ID, professionalID)
		return []model.Slot{}
	}

	slots := GenerateSlots(open, step, totalDuration, busyRanges(booked, day, loc))
	s.maskPast(slots, day, loc)
	return slots
}

// maskPast marks slots that already started as unavailable.
func (s *Service) maskPast(slots []model.Slot, day time.Time, loc *time.Location) {
	now := s.now().In(loc)
	today := model.CivilDate(now)
	switch {
	case day.After(today):
		return
	case day.Before(today):
		for i := range slots {
			slots[i].Available = false
		}
	default:
		current := timerange.MinuteOfDay(now)
		for i := range slots {
			start, err := timerange.ToMinutes(slots[i].Time)
			if err != nil || start < current {
				slots[i].Available = false
			}
		}
	}
}

// IsSlotAvailable is the authoritative point check for a single interval. It
// returns true only when no unavailable override covers the day and no
// non-cancelled appointment (other than excludeID) overlaps the interval.
func (s *Service) IsSlotAvailable(ctx context.Context, tenantID, professionalID uuid.UUID, start time.Time, totalDuration int, excludeID *uuid.UUID) bool {
	if totalDuration <= 0 {
		return false
	}

	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		s.failClosed(err, "is_slot_available", "Failed to load tenant for point check", tenantID, professionalID)
		return false
	}

	day := model.CivilDate(start.In(tenant.Location()))
	blocked, err := s.overrides.HasUnavailable(ctx, tenantID, professionalID, day)
	if err != nil {
		s.failClosed(err, "is_slot_available", "Failed to check schedule overrides", tenantID, professionalID)
		return false
	}
	if blocked {
		return false
	}

	end := start.Add(time.Duration(totalDuration) * time.Minute)
	taken, err := s.appointments.HasOverlap(ctx, tenantID, professionalID, start, end, excludeID)
	if err != nil {
		s.failClosed(err, "is_slot_available", "Failed to check appointment conflicts", tenantID, professionalID)
		return false
	}
	return !taken
}

// GetNextAvailableDate scans forward one day at a time from startFrom (today in
// the tenant's timezone when nil) and returns the first day with an available
// slot, or nil when none is found within the scan window.
func (s *Service) GetNextAvailableDate(ctx context.Context, tenantID, professionalID uuid.UUID, totalDuration int, startFrom *time.Time) *time.Time {
	if totalDuration <= 0 {
		return nil
	}

	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		s.failClosed(err, "next_available_date", "Failed to load tenant for date scan", tenantID, professionalID)
		return nil
	}

	from := model.CivilDate(s.now().In(tenant.Location()))
	if startFrom != nil {
		from = model.CivilDate(*startFrom)
	}

	for i := 0; i < s.config.MaxScanDays; i++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		day := from.AddDate(0, 0, i)
		for _, slot := range s.slotsForTenant(ctx, tenant, professionalID, day, totalDuration, s.config.DefaultStep) {
			if slot.Available {
				return &day
			}
		}
	}
	return nil
}

func (s *Service) failClosed(err error, operation, msg string, tenantID, professionalID uuid.UUID) {
	s.metrics.AvailabilityFailures.WithLabelValues(operation).Inc()
	s.logger.Error(err, msg,
		"tenant_id", tenantID.String(),
		"professional_id", professionalID.String())
}
