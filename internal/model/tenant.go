package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ClockRange is an open interval of the day in "HH:MM" form.
type ClockRange struct {
	Start string `json:"start" validate:"required,clock"`
	End   string `json:"end" validate:"required,clock"`
}

// BusinessHours maps a lower-case weekday name (sunday..saturday) to its open ranges.
// A missing or empty day is closed.
type BusinessHours map[string][]ClockRange

// WeekdayKey returns the BusinessHours key for a weekday.
func WeekdayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// For returns the ranges configured for the weekday of date.
func (h BusinessHours) For(date time.Time) []ClockRange {
	return h[WeekdayKey(date.Weekday())]
}

func (h BusinessHours) Value() (driver.Value, error) {
	if h == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(h)
}

func (h *BusinessHours) Scan(src interface{}) error {
	if src == nil {
		*h = BusinessHours{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into BusinessHours", src)
	}
	return json.Unmarshal(data, h)
}

type Tenant struct {
	Base
	Name          string        `db:"name" json:"name"`
	Slug          string        `db:"slug" json:"slug"`
	Timezone      string        `db:"timezone" json:"timezone"`
	BusinessHours BusinessHours `db:"business_hours" json:"business_hours"`
}

// Location resolves the tenant timezone, defaulting to UTC when unset or unknown.
func (t *Tenant) Location() *time.Location {
	if t == nil || t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
