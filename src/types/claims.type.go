package types

import "github.com/golang-jwt/jwt/v4"

// Claims carried by organizer and gate tokens. Role is either
// "organizer" or "gate"; GateID is set for gate tokens only.
type Claims struct {
	Role    string `json:"role"`
	EventID uint   `json:"event_id,omitempty"`
	GateID  uint   `json:"gate_id,omitempty"`
	jwt.RegisteredClaims
}
