package models

import "vetap/src/types"

type Guest struct {
	ID       uint            `gorm:"primarykey" json:"id"`
	EventID  uint            `json:"event_id,omitempty"`
	FullName string          `json:"full_name,omitempty"`
	Type     types.GuestType `gorm:"default:'Regular'" json:"type,omitempty"`
	Email    string          `json:"email,omitempty"`
	Phone    string          `json:"phone,omitempty"`

	Event  Event  `json:"event,omitempty"`
	Passes []Pass `json:"passes,omitempty"`

	types.Timestamps
}
