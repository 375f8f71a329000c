package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoValidServices      = errors.New("no valid services found")
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrClientNotFound       = errors.New("client not found")
	ErrInvalidClient        = errors.New("client name and phone are required")
	ErrInvalidStartTime     = errors.New("start time is required")
	ErrSlotUnavailable      = errors.New("time slot is not available")
	ErrBookingInProgress    = errors.New("another booking for this professional is in progress")
	ErrFetchCreated         = errors.New("failed to fetch created appointment")
	ErrCompensationFailed   = errors.New("compensating delete failed")
)

// ConflictError reports that the requested interval is taken. Err is
// ErrSlotUnavailable when the pre-check caught it, ErrBookingInProgress when the
// professional lock was held, or the storage conflict raised by the database
// exclusion constraint.
type ConflictError struct {
	ProfessionalID uuid.UUID
	Start          time.Time
	End            time.Time
	Err            error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("booking conflict for professional %s at %s-%s: %v",
		e.ProfessionalID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}
