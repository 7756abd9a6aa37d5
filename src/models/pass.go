package models

import (
	"time"

	"vetap/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Pass is the single-use credential issued to one guest. Status only
// ever moves unused->used or (unused|used)->revoked; once used, the
// first-use fields never change again.
type Pass struct {
	ID              uuid.UUID        `gorm:"primarykey;type:uuid" json:"id"`
	GuestID         uint             `json:"guest_id,omitempty"`
	EventID         uint             `json:"event_id,omitempty"`
	SecretToken     string           `json:"-"`
	Status          types.PassStatus `gorm:"default:'unused'" json:"status,omitempty"`
	AllowedZone     *string          `json:"allowed_zone,omitempty"`
	FirstUsedAt     *time.Time       `json:"first_used_at,omitempty"`
	FirstUsedGateID *uint            `json:"first_used_gate_id,omitempty"`

	Guest Guest `json:"guest,omitempty"`
	Event Event `json:"event,omitempty"`

	types.Timestamps
}

func (p *Pass) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
