package verifier

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"vetap/src/codec"
	"vetap/src/config"
	"vetap/src/ledger"
	"vetap/src/lib"
	"vetap/src/models"
	"vetap/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStorageUnavailable tells the gate client to retry; it is the only
// failure that is not a definitive scan result. Retrying a claim that
// actually landed is safe, the retry just reads back already_used.
var ErrStorageUnavailable = errors.New("storage unavailable")

type NotifyFunc func(payload map[string]any) error

// Downstream webhook dispatch. Swapped out in tests.
var (
	ValidSignal   NotifyFunc = models.CheckInValidProducer
	InvalidSignal NotifyFunc = models.CheckInInvalidProducer
)

type VerifyRequest struct {
	RawPayload string
	EventID    uint
	GateID     *uint
}

const eventCacheTTL = time.Minute

func cachedEvent(db *gorm.DB, eventId uint) (*models.Event, error) {
	key := fmt.Sprintf("event::%d", eventId)
	rd := lib.GetRedisClient()
	if rd != nil {
		val, err := rd.Get(context.Background(), key).Result()
		if err == nil {
			var event models.Event
			if err := json.Unmarshal([]byte(val), &event); err == nil {
				return &event, nil
			}
		}
	}
	var event models.Event
	if err := db.Where(&models.Event{ID: eventId}).First(&event).Error; err != nil {
		return nil, err
	}
	if rd != nil {
		if raw, err := json.Marshal(&event); err == nil {
			if err := rd.SetEx(context.Background(), key, string(raw), eventCacheTTL).Err(); err != nil {
				log.Printf("Error caching event [%d]: %s\n", eventId, err.Error())
			}
		}
	}
	return &event, nil
}

// InvalidateEventCache drops the cached row after an organizer edit.
func InvalidateEventCache(eventId uint) {
	rd := lib.GetRedisClient()
	if rd == nil {
		return
	}
	rd.Del(context.Background(), fmt.Sprintf("event::%d", eventId))
}

func appendScanLog(db *gorm.DB, eventId uint, passId *uuid.UUID, gateId *uint, result types.CheckInResult, detail string, now time.Time) {
	entry := models.ScanLog{
		EventID:   eventId,
		PassID:    passId,
		GateID:    gateId,
		Result:    result,
		Detail:    detail,
		ScannedAt: now,
	}
	// A failed audit write never changes the result the operator sees.
	if err := db.Create(&entry).Error; err != nil {
		log.Printf("Error writing scan log for event [%d]: %s\n", eventId, err.Error())
	}
}

func emitSignal(result types.CheckInResult, req *VerifyRequest, pass *models.Pass) {
	payload := map[string]any{
		"result":   string(result),
		"event_id": req.EventID,
	}
	if req.GateID != nil {
		payload["gate_id"] = *req.GateID
	}
	if pass != nil {
		payload["pass_id"] = pass.ID.String()
		payload["guest_id"] = pass.GuestID
	}
	notify := InvalidSignal
	if result == types.CHECKIN_VALID {
		notify = ValidSignal
	}
	go func() {
		if err := notify(payload); err != nil {
			log.Printf("Error emitting check-in signal: %s\n", err.Error())
		}
	}()
}

// Verify runs one scan attempt end to end: decode, time window, zone,
// claim, audit log, signal. Decode and zone failures short-circuit
// before the ledger is touched.
func Verify(db *gorm.DB, req *VerifyRequest, now time.Time) (*types.VerifyCheckInResponse, error) {
	key, err := config.GetSigningKey()
	if err != nil {
		log.Printf("Could not read signing key: %s\n", err.Error())
		return nil, ErrStorageUnavailable
	}

	passIdStr, secretToken, err := codec.DecodeAndVerify(req.RawPayload, key)
	if err != nil {
		appendScanLog(db, req.EventID, nil, req.GateID, types.CHECKIN_INVALID, err.Error(), now)
		emitSignal(types.CHECKIN_INVALID, req, nil)
		return &types.VerifyCheckInResponse{Result: types.CHECKIN_INVALID, Message: "Pass could not be verified"}, nil
	}
	passId := uuid.MustParse(passIdStr)

	event, err := cachedEvent(db, req.EventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			appendScanLog(db, req.EventID, &passId, req.GateID, types.CHECKIN_INVALID, "event not found", now)
			emitSignal(types.CHECKIN_INVALID, req, nil)
			return &types.VerifyCheckInResponse{Result: types.CHECKIN_INVALID, Message: "Pass could not be verified"}, nil
		}
		return nil, ErrStorageUnavailable
	}

	grace := config.GraceWindow()
	if event.Status != types.EVENT_ACTIVE ||
		now.Before(event.StartsAt.Add(-grace)) ||
		now.After(event.EndsAt.Add(grace)) {
		appendScanLog(db, req.EventID, &passId, req.GateID, types.CHECKIN_EXPIRED, "outside event time window", now)
		emitSignal(types.CHECKIN_EXPIRED, req, nil)
		return &types.VerifyCheckInResponse{Result: types.CHECKIN_EXPIRED, Message: "Event is not admitting guests"}, nil
	}

	pass, err := ledger.Get(db, passId)
	if err != nil {
		if errors.Is(err, ledger.ErrPassNotFound) {
			appendScanLog(db, req.EventID, nil, req.GateID, types.CHECKIN_INVALID, "no matching pass", now)
			emitSignal(types.CHECKIN_INVALID, req, nil)
			return &types.VerifyCheckInResponse{Result: types.CHECKIN_INVALID, Message: "Pass could not be verified"}, nil
		}
		return nil, ErrStorageUnavailable
	}
	if pass.EventID != req.EventID {
		appendScanLog(db, req.EventID, nil, req.GateID, types.CHECKIN_INVALID, "pass belongs to another event", now)
		emitSignal(types.CHECKIN_INVALID, req, nil)
		return &types.VerifyCheckInResponse{Result: types.CHECKIN_INVALID, Message: "Pass could not be verified"}, nil
	}

	if subtle.ConstantTimeCompare([]byte(pass.SecretToken), []byte(secretToken)) != 1 {
		appendScanLog(db, req.EventID, nil, req.GateID, types.CHECKIN_INVALID, "token mismatch", now)
		emitSignal(types.CHECKIN_INVALID, req, nil)
		return &types.VerifyCheckInResponse{Result: types.CHECKIN_INVALID, Message: "Pass could not be verified"}, nil
	}

	// Revoked wins over the zone check; staff should see the real
	// reason the pass is dead.
	if pass.Status == types.PASS_REVOKED {
		appendScanLog(db, req.EventID, &passId, req.GateID, types.CHECKIN_REVOKED, "pass revoked", now)
		emitSignal(types.CHECKIN_REVOKED, req, pass)
		return buildResponse(db, types.CHECKIN_REVOKED, "Pass has been revoked", pass), nil
	}

	// Read-only zone peek before claiming: a zone rejection must leave
	// the pass unused.
	if req.GateID != nil {
		var gate models.Gate
		if err := db.Where(&models.Gate{ID: *req.GateID, EventID: req.EventID}).First(&gate).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				appendScanLog(db, req.EventID, &passId, req.GateID, types.CHECKIN_INVALID, "unknown gate", now)
				emitSignal(types.CHECKIN_INVALID, req, nil)
				return &types.VerifyCheckInResponse{Result: types.CHECKIN_INVALID, Message: "Pass could not be verified"}, nil
			}
			return nil, ErrStorageUnavailable
		}
		if gate.AllowedZone != nil && (pass.AllowedZone == nil || *pass.AllowedZone != *gate.AllowedZone) {
			detail := fmt.Sprintf("gate zone %q does not admit pass zone", *gate.AllowedZone)
			appendScanLog(db, req.EventID, &passId, req.GateID, types.CHECKIN_NOT_ALLOWED_ZONE, detail, now)
			emitSignal(types.CHECKIN_NOT_ALLOWED_ZONE, req, pass)
			return &types.VerifyCheckInResponse{Result: types.CHECKIN_NOT_ALLOWED_ZONE, Message: "This gate does not admit the pass zone"}, nil
		}
	}

	outcome, err := ledger.Claim(db, passId, secretToken, req.GateID, now)
	if err != nil {
		log.Printf("Claim failed for pass [%s]: %s\n", passId, err.Error())
		return nil, ErrStorageUnavailable
	}

	switch outcome.Status {
	case ledger.CLAIM_CLAIMED:
		appendScanLog(db, req.EventID, &passId, req.GateID, types.CHECKIN_VALID, "admitted", now)
		emitSignal(types.CHECKIN_VALID, req, outcome.Pass)
		return buildResponse(db, types.CHECKIN_VALID, "Welcome", outcome.Pass), nil
	case ledger.CLAIM_ALREADY_USED:
		detail := "pass already used"
		msg := "Pass has already been used"
		if outcome.Pass.FirstUsedAt != nil {
			detail = fmt.Sprintf("pass already used at %s", outcome.Pass.FirstUsedAt.Format(time.RFC3339))
			msg = fmt.Sprintf("Pass was already used at %s", outcome.Pass.FirstUsedAt.Format(time.RFC3339))
		}
		appendScanLog(db, req.EventID, &passId, req.GateID, types.CHECKIN_ALREADY_USED, detail, now)
		emitSignal(types.CHECKIN_ALREADY_USED, req, outcome.Pass)
		return buildResponse(db, types.CHECKIN_ALREADY_USED, msg, outcome.Pass), nil
	case ledger.CLAIM_REVOKED:
		appendScanLog(db, req.EventID, &passId, req.GateID, types.CHECKIN_REVOKED, "pass revoked", now)
		emitSignal(types.CHECKIN_REVOKED, req, outcome.Pass)
		return buildResponse(db, types.CHECKIN_REVOKED, "Pass has been revoked", outcome.Pass), nil
	default:
		// NotFound and TokenMismatch are deliberately indistinguishable.
		appendScanLog(db, req.EventID, nil, req.GateID, types.CHECKIN_INVALID, string(outcome.Status), now)
		emitSignal(types.CHECKIN_INVALID, req, nil)
		return &types.VerifyCheckInResponse{Result: types.CHECKIN_INVALID, Message: "Pass could not be verified"}, nil
	}
}

func buildResponse(db *gorm.DB, result types.CheckInResult, message string, pass *models.Pass) *types.VerifyCheckInResponse {
	res := &types.VerifyCheckInResponse{
		Result:  result,
		Message: message,
		Pass: &types.CheckInPassInfo{
			ID:          pass.ID.String(),
			FirstUsedAt: pass.FirstUsedAt,
		},
	}
	var guest models.Guest
	if err := db.Where(&models.Guest{ID: pass.GuestID}).First(&guest).Error; err != nil {
		log.Printf("Error retrieving Guest [%d]: %s\n", pass.GuestID, err.Error())
		return res
	}
	res.Guest = &types.CheckInGuestInfo{FullName: guest.FullName, Type: guest.Type}
	return res
}
