package utils

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"time"

	"vetap/src/codec"
	"vetap/src/config"
	"vetap/src/db"
	"vetap/src/lib"
	"vetap/src/models"
	"vetap/src/types"

	"github.com/google/uuid"
	"github.com/yeqown/go-qrcode"
	"gorm.io/gorm"
)

// GenerateSecretToken mints the opaque per-pass secret. 16 random
// bytes, hex encoded, matching the fixed payload field width.
func GenerateSecretToken() (string, error) {
	buf := make([]byte, codec.SecretTokenLen/2)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func CreateNewEvent(params *types.CreateEventRequestBody) (uint, error) {
	startsAt, err := time.Parse(config.TIME_PARSE_FORMAT, params.StartsAt)
	if err != nil {
		return 0, err
	}
	endsAt, err := time.Parse(config.TIME_PARSE_FORMAT, params.EndsAt)
	if err != nil {
		return 0, err
	}
	status := types.EVENT_DRAFT
	if params.Publish {
		status = types.EVENT_ACTIVE
	}
	event := models.Event{
		Name:     params.Name,
		StartsAt: startsAt,
		EndsAt:   endsAt,
		Status:   status,
		Zones:    types.StringArray(params.Zones),
	}
	db := db.GetDb()
	if err := db.Create(&event).Error; err != nil {
		return 0, err
	}
	return event.ID, nil
}

// IssuePass creates a fresh pass for a guest and returns it together
// with the scannable payload. Any live pass the guest already holds is
// revoked in the same transaction, so at most one pass per guest can
// ever claim entry.
func IssuePass(guestId uint, allowedZone *string) (*models.Pass, string, error) {
	secret, err := GenerateSecretToken()
	if err != nil {
		return nil, "", err
	}
	key, err := config.GetSigningKey()
	if err != nil {
		log.Printf("Could not read signing key: %s\n", err.Error())
		return nil, "", err
	}

	pass := models.Pass{
		ID:          uuid.New(),
		GuestID:     guestId,
		SecretToken: secret,
		Status:      types.PASS_UNUSED,
		AllowedZone: allowedZone,
	}
	db := db.GetDb()
	err = db.Transaction(func(tx *gorm.DB) error {
		var guest models.Guest
		if err := tx.Where(&models.Guest{ID: guestId}).Preload("Event").First(&guest).Error; err != nil {
			return err
		}
		if guest.Event.Status == types.EVENT_ARCHIVED {
			return errors.New("cannot issue passes for an archived event")
		}
		if allowedZone != nil && !guest.Event.HasZone(*allowedZone) {
			return fmt.Errorf("event has no zone named %q", *allowedZone)
		}
		if err := tx.
			Model(&models.Pass{}).
			Where("guest_id = ? AND status <> ?", guestId, types.PASS_REVOKED).
			Update("status", types.PASS_REVOKED).
			Error; err != nil {
			return err
		}
		pass.EventID = guest.EventID
		if err := tx.Create(&pass).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	payload := codec.Encode(pass.ID.String(), secret, key)
	return &pass, payload, nil
}

// RenderPassCode writes the QR image for a pass to the temp dir and
// caches the file path, mirroring how e-ticket codes are served.
func RenderPassCode(pass *models.Pass) (string, error) {
	key, err := config.GetSigningKey()
	if err != nil {
		return "", err
	}
	payload := codec.Encode(pass.ID.String(), pass.SecretToken, key)

	filename := fmt.Sprintf("passcode_%s", pass.ID.String())
	rd := lib.GetRedisClient()
	if rd != nil {
		cached, err := rd.Get(context.Background(), filename).Result()
		if err == nil && cached != "" {
			if _, err := os.Stat(cached); err == nil {
				return cached, nil
			}
		}
	}

	tempdir := os.Getenv("TEMP_DIR")
	filepath := path.Join(tempdir, fmt.Sprintf("%s.jpeg", filename))
	qrc, err := qrcode.New(payload)
	if err != nil {
		return "", err
	}
	if err := qrc.Save(filepath); err != nil {
		log.Printf("Could not save qrcode to file [%s]: %s\n", filepath, err.Error())
		return "", err
	}
	if rd != nil {
		rd.SetEx(context.Background(), filename, filepath, 2*time.Hour)
	}
	return filepath, nil
}
