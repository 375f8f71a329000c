package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentEventType string

const (
	EventCreated       AppointmentEventType = "created"
	EventUpdated       AppointmentEventType = "updated"
	EventStatusChanged AppointmentEventType = "status_changed"
	EventCancelled     AppointmentEventType = "cancelled"
)

type ActorType string

const (
	ActorStaff  ActorType = "staff"
	ActorClient ActorType = "client"
)

// Actor identifies who performed a mutation.
type Actor struct {
	Type ActorType  `json:"type"`
	ID   *uuid.UUID `json:"id,omitempty"`
}

// AppointmentEvent is an append-only audit record.
type AppointmentEvent struct {
	ID            uuid.UUID            `db:"id" json:"id"`
	TenantID      uuid.UUID            `db:"tenant_id" json:"tenant_id"`
	AppointmentID uuid.UUID            `db:"appointment_id" json:"appointment_id"`
	EventType     AppointmentEventType `db:"event_type" json:"event_type"`
	ActorType     ActorType            `db:"actor_type" json:"actor_type"`
	ActorID       *uuid.UUID           `db:"actor_id" json:"actor_id,omitempty"`
	Payload       JSONMap              `db:"payload" json:"payload,omitempty"`
	CreatedAt     time.Time            `db:"created_at" json:"created_at"`
}
