package model

import (
	"github.com/google/uuid"
)

type Professional struct {
	Base
	TenantID uuid.UUID `db:"tenant_id" json:"tenant_id"`
	Name     string    `db:"name" json:"name"`
	Active   bool      `db:"active" json:"active"`
}
