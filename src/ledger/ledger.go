package ledger

import (
	"crypto/subtle"
	"errors"
	"log"
	"time"

	"vetap/src/models"
	"vetap/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClaimStatus string

const (
	CLAIM_CLAIMED        ClaimStatus = "claimed"
	CLAIM_ALREADY_USED   ClaimStatus = "already_used"
	CLAIM_REVOKED        ClaimStatus = "revoked"
	CLAIM_NOT_FOUND      ClaimStatus = "not_found"
	CLAIM_TOKEN_MISMATCH ClaimStatus = "token_mismatch"
)

type ClaimOutcome struct {
	Status ClaimStatus
	Pass   *models.Pass
}

var ErrPassNotFound = errors.New("pass not found")

func Get(db *gorm.DB, passId uuid.UUID) (*models.Pass, error) {
	var pass models.Pass
	if err := db.Where(&models.Pass{ID: passId}).First(&pass).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPassNotFound
		}
		return nil, err
	}
	return &pass, nil
}

// Claim attempts the unused->used transition for one pass. The update is
// a single conditional write keyed on the previous status, so under
// concurrent claims exactly one caller gets CLAIM_CLAIMED; losers are
// handed the winner's first-use fields, not their own attempt. A non-nil
// error means storage failed and the caller should retry, nothing was
// decided.
func Claim(db *gorm.DB, passId uuid.UUID, expectedSecretToken string, gateId *uint, now time.Time) (*ClaimOutcome, error) {
	var pass models.Pass
	if err := db.Where(&models.Pass{ID: passId}).First(&pass).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ClaimOutcome{Status: CLAIM_NOT_FOUND}, nil
		}
		return nil, err
	}

	// Mismatch must be indistinguishable from an unknown pass id to the
	// outside; both map to "invalid" upstream.
	if subtle.ConstantTimeCompare([]byte(pass.SecretToken), []byte(expectedSecretToken)) != 1 {
		return &ClaimOutcome{Status: CLAIM_TOKEN_MISMATCH}, nil
	}

	if pass.Status == types.PASS_REVOKED {
		return &ClaimOutcome{Status: CLAIM_REVOKED, Pass: &pass}, nil
	}

	res := db.
		Model(&models.Pass{}).
		Where("id = ? AND status = ?", passId, types.PASS_UNUSED).
		Updates(map[string]any{
			"status":             types.PASS_USED,
			"first_used_at":      now,
			"first_used_gate_id": gateId,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 1 {
		pass.Status = types.PASS_USED
		pass.FirstUsedAt = &now
		pass.FirstUsedGateID = gateId
		return &ClaimOutcome{Status: CLAIM_CLAIMED, Pass: &pass}, nil
	}

	// Another gate won the race (or a revoke landed in between).
	// Re-fetch so the caller reports the winning data.
	if err := db.Where(&models.Pass{ID: passId}).First(&pass).Error; err != nil {
		return nil, err
	}
	if pass.Status == types.PASS_REVOKED {
		return &ClaimOutcome{Status: CLAIM_REVOKED, Pass: &pass}, nil
	}
	return &ClaimOutcome{Status: CLAIM_ALREADY_USED, Pass: &pass}, nil
}

// Revoke moves a pass to revoked. Both unused and used passes can be
// revoked; revoked is terminal.
func Revoke(db *gorm.DB, passId uuid.UUID) (*models.Pass, error) {
	var pass models.Pass
	if err := db.Where(&models.Pass{ID: passId}).First(&pass).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPassNotFound
		}
		return nil, err
	}
	if pass.Status == types.PASS_REVOKED {
		return &pass, nil
	}
	res := db.
		Model(&models.Pass{}).
		Where("id = ? AND status <> ?", passId, types.PASS_REVOKED).
		Update("status", types.PASS_REVOKED)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		log.Printf("Pass [%s] was already revoked\n", passId)
	}
	pass.Status = types.PASS_REVOKED
	return &pass, nil
}
