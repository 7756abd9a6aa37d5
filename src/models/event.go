package models

import (
	"time"

	"vetap/src/types"
)

type Event struct {
	ID       uint              `gorm:"primarykey" json:"id"`
	Name     string            `json:"name,omitempty"`
	StartsAt time.Time         `json:"starts_at,omitempty"`
	EndsAt   time.Time         `json:"ends_at,omitempty"`
	Status   types.EventStatus `gorm:"default:'draft'" json:"status,omitempty"`
	Zones    types.StringArray `gorm:"type:jsonb" json:"zones,omitempty"`

	Gates  []Gate  `json:"gates,omitempty"`
	Guests []Guest `json:"guests,omitempty"`
	Passes []Pass  `json:"passes,omitempty"`

	types.Timestamps
}

// HasZone reports whether zone is part of the event's zone set. Events
// with no zones accept any zone label on gates and passes.
func (e *Event) HasZone(zone string) bool {
	if len(e.Zones) == 0 {
		return true
	}
	for _, z := range e.Zones {
		if z == zone {
			return true
		}
	}
	return false
}
