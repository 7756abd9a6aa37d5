package models

import (
	"log"
	"time"

	"vetap/src/lib"
	"vetap/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScanLog is the append-only audit trail of verification attempts.
// PassID is null when the payload never matched a stored pass.
type ScanLog struct {
	ID        uuid.UUID           `gorm:"primarykey;type:uuid" json:"id"`
	EventID   uint                `json:"event_id,omitempty"`
	PassID    *uuid.UUID          `gorm:"type:uuid" json:"pass_id,omitempty"`
	GateID    *uint               `json:"gate_id,omitempty"`
	Result    types.CheckInResult `json:"result,omitempty"`
	Detail    string              `json:"detail,omitempty"`
	ScannedAt time.Time           `json:"scanned_at,omitempty"`

	types.Timestamps
}

func (s *ScanLog) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func CheckInValidProducer(payload map[string]any) error {
	payload["signal"] = types.SIGNAL_CHECKIN_VALID
	err := lib.KafkaProduceMessage("checkins_valid_producer", "checkins-valid", payload)
	if err != nil {
		log.Printf("Error on producing message: %s\n", err.Error())
		return err
	}
	return nil
}

func CheckInInvalidProducer(payload map[string]any) error {
	payload["signal"] = types.SIGNAL_CHECKIN_INVALID
	err := lib.KafkaProduceMessage("checkins_invalid_producer", "checkins-invalid", payload)
	if err != nil {
		log.Printf("Error on producing message: %s\n", err.Error())
		return err
	}
	return nil
}
