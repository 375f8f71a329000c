package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

// Valid reports whether s is a known status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusConfirmed, AppointmentStatusCompleted,
		AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// Appointment is a booked interval for one professional. EndTime is always
// StartTime + TotalDuration minutes.
type Appointment struct {
	Base
	TenantID       uuid.UUID         `db:"tenant_id" json:"tenant_id"`
	ClientID       *uuid.UUID        `db:"client_id" json:"client_id,omitempty"`
	ProfessionalID uuid.UUID         `db:"professional_id" json:"professional_id"`
	StartTime      time.Time         `db:"start_time" json:"start_time"`
	EndTime        time.Time         `db:"end_time" json:"end_time"`
	Status         AppointmentStatus `db:"status" json:"status"`
	TotalDuration  int               `db:"total_duration" json:"total_duration"`
	TotalPrice     float64           `db:"total_price" json:"total_price"`
	Notes          *string           `db:"notes" json:"notes,omitempty"`
}

// AppointmentService is a line item snapshotting a service at booking time.
type AppointmentService struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	ServiceID     uuid.UUID `db:"service_id" json:"service_id"`
	ServiceName   string    `db:"service_name_at_booking" json:"service_name"`
	Price         float64   `db:"price_at_booking" json:"price"`
	Duration      int       `db:"duration_at_booking" json:"duration"`
	OrderIndex    int       `db:"order_index" json:"order_index"`
}

type ClientSummary struct {
	ID    uuid.UUID `db:"id" json:"id"`
	Name  string    `db:"name" json:"name"`
	Phone string    `db:"phone" json:"phone"`
	Email *string   `db:"email" json:"email,omitempty"`
}

type ProfessionalSummary struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Name string    `db:"name" json:"name"`
}

// AppointmentDetails is the hydrated read shape returned by every mutation.
type AppointmentDetails struct {
	Appointment
	Client       *ClientSummary        `json:"client,omitempty"`
	Professional ProfessionalSummary   `json:"professional"`
	Services     []*AppointmentService `json:"services"`
}

// AppointmentPatch carries the fields of a partial update; nil means untouched.
type AppointmentPatch struct {
	StartTime      *time.Time `json:"start_time"`
	ProfessionalID *uuid.UUID `json:"professional_id"`
	ClientID       *uuid.UUID `json:"client_id"`
	Notes          *string    `json:"notes"`
}

type AppointmentFilter struct {
	TenantID       uuid.UUID
	ProfessionalID *uuid.UUID
	ClientID       *uuid.UUID
	Status         *AppointmentStatus
	From           *time.Time
	To             *time.Time
	Pagination
}
