package model

import (
	"strings"

	"github.com/google/uuid"
)

type Client struct {
	Base
	TenantID uuid.UUID `db:"tenant_id" json:"tenant_id"`
	Name     string    `db:"name" json:"name"`
	Phone    string    `db:"phone" json:"phone"`
	Email    *string   `db:"email" json:"email,omitempty"`
}

// NormalizePhone keeps digits only; phone is the client de-duplication key.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
