package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, err := jsonbBytes(value)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *StringArray) Scan(value any) error {
	b, err := jsonbBytes(value)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

// jsonbBytes normalizes driver output; postgres hands back []byte,
// sqlite hands back string.
func jsonbBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return []byte("null"), nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("unsupported jsonb source type")
	}
}

type EventStatus string

const (
	EVENT_DRAFT    EventStatus = "draft"
	EVENT_ACTIVE   EventStatus = "active"
	EVENT_ARCHIVED EventStatus = "archived"
)

type PassStatus string

const (
	PASS_UNUSED  PassStatus = "unused"
	PASS_USED    PassStatus = "used"
	PASS_REVOKED PassStatus = "revoked"
)

type GuestType string

const (
	GUEST_VIP     GuestType = "VIP"
	GUEST_REGULAR GuestType = "Regular"
	GUEST_STAFF   GuestType = "Staff"
	GUEST_MEDIA   GuestType = "Media"
	GUEST_OTHER   GuestType = "Other"
)

// CheckInResult is the externally visible vocabulary a scan attempt
// resolves to. Infrastructure failures are not results; they surface as
// errors so the gate client knows to retry.
type CheckInResult string

const (
	CHECKIN_VALID            CheckInResult = "valid"
	CHECKIN_ALREADY_USED     CheckInResult = "already_used"
	CHECKIN_INVALID          CheckInResult = "invalid"
	CHECKIN_EXPIRED          CheckInResult = "expired"
	CHECKIN_REVOKED          CheckInResult = "revoked"
	CHECKIN_NOT_ALLOWED_ZONE CheckInResult = "not_allowed_zone"
)

const (
	SIGNAL_CHECKIN_VALID   = "on_check_in_valid"
	SIGNAL_CHECKIN_INVALID = "on_check_in_invalid"
)

type CreateEventRequestBody struct {
	Name     string   `json:"name" binding:"required"`
	StartsAt string   `json:"starts_at" binding:"required,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
	EndsAt   string   `json:"ends_at" binding:"required,bookabledate,gtdate=StartsAt" time_format:"2006-01-02 15:04:05 -07:00"`
	Zones    []string `json:"zones,omitempty"`
	Publish  bool     `json:"publish,omitempty"`
}

type UpdateEventRequestBody struct {
	Name     *string   `json:"name,omitempty"`
	StartsAt *string   `json:"starts_at,omitempty" binding:"omitempty" time_format:"2006-01-02 15:04:05 -07:00"`
	EndsAt   *string   `json:"ends_at,omitempty" binding:"omitempty" time_format:"2006-01-02 15:04:05 -07:00"`
	Zones    *[]string `json:"zones,omitempty"`
}

type CreateGateRequestBody struct {
	Name        string  `json:"name" binding:"required"`
	AllowedZone *string `json:"allowed_zone,omitempty"`
}

type CreateGuestRequestBody struct {
	FullName string    `json:"full_name" binding:"required"`
	Type     GuestType `json:"type,omitempty"`
	Email    string    `json:"email,omitempty"`
	Phone    string    `json:"phone,omitempty"`
}

type IssuePassRequestBody struct {
	AllowedZone *string `json:"allowed_zone,omitempty"`
}

type VerifyCheckInRequestBody struct {
	QRRawValue string  `json:"qr_raw_value" binding:"required"`
	EventID    uint    `json:"event_id" binding:"required"`
	GateID     *uint   `json:"gate_id,omitempty"`
}

type VerifyCheckInResponse struct {
	Result  CheckInResult       `json:"result"`
	Guest   *CheckInGuestInfo   `json:"guest,omitempty"`
	Pass    *CheckInPassInfo    `json:"pass,omitempty"`
	Message string              `json:"message,omitempty"`
}

type CheckInGuestInfo struct {
	FullName string    `json:"full_name"`
	Type     GuestType `json:"type,omitempty"`
}

type CheckInPassInfo struct {
	ID          string     `json:"id"`
	FirstUsedAt *time.Time `json:"first_used_at,omitempty"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type Env string

const (
	Local      Env = "local"
	Test       Env = "test"
	Production Env = "production"
)
