package codec

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Wire format: VETAP:<pass_id>:<secret_token>:<signature_hex>
// The signature is a truncated HMAC; the payload is signed, not
// confidential.
const (
	SchemeTag = "VETAP"

	// SecretTokenLen and SignatureLen are hex character counts.
	SecretTokenLen = 32
	SignatureLen   = 32
)

var (
	ErrMalformed      = errors.New("payload is malformed")
	ErrTamperOrForged = errors.New("payload signature mismatch")
)

func sign(passId string, secretToken string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(passId + ":" + secretToken))
	sum := mac.Sum(nil)
	return hex.EncodeToString(sum[:SignatureLen/2])
}

// Encode renders the scannable payload for one pass.
func Encode(passId string, secretToken string, key []byte) string {
	signature := sign(passId, secretToken, key)
	return fmt.Sprintf("%s:%s:%s:%s", SchemeTag, passId, secretToken, signature)
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// DecodeAndVerify splits the payload, checks field shapes and recomputes
// the signature in constant time. It never trusts client-side checks.
func DecodeAndVerify(payload string, key []byte) (passId string, secretToken string, err error) {
	parts := strings.Split(payload, ":")
	if len(parts) != 4 {
		return "", "", ErrMalformed
	}
	if parts[0] != SchemeTag {
		return "", "", ErrMalformed
	}
	passId, secretToken, signature := parts[1], parts[2], parts[3]
	if _, err := uuid.Parse(passId); err != nil {
		return "", "", ErrMalformed
	}
	if len(secretToken) != SecretTokenLen || !isLowerHex(secretToken) {
		return "", "", ErrMalformed
	}
	if len(signature) != SignatureLen || !isLowerHex(signature) {
		return "", "", ErrMalformed
	}
	expected := sign(passId, secretToken, key)
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return "", "", ErrTamperOrForged
	}
	return passId, secretToken, nil
}
