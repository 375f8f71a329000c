package model

import (
	"github.com/google/uuid"
)

type Service struct {
	Base
	TenantID uuid.UUID `db:"tenant_id" json:"tenant_id"`
	Name     string    `db:"name" json:"name"`
	Duration int       `db:"duration" json:"duration"` // in minutes
	Price    float64   `db:"price" json:"price"`
	Active   bool      `db:"active" json:"active"`
}
