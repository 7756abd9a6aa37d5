package models

import "vetap/src/types"

type Gate struct {
	ID          uint    `gorm:"primarykey" json:"id"`
	EventID     uint    `json:"event_id,omitempty"`
	Name        string  `json:"name,omitempty"`
	AllowedZone *string `json:"allowed_zone,omitempty"`

	Event Event `json:"event,omitempty"`

	types.Timestamps
}
