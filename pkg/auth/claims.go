package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	Username string
	UnitID   *uuid.UUID
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to clients. Role and
// privilege data deliberately stay out of the token; the privilege resolver
// reads the live role assignment on every guarded call.
type AccessTokenClaims struct {
	UserID   uuid.UUID  `json:"user_id"`
	Username string     `json:"username"`
	UnitID   *uuid.UUID `json:"unit_id,omitempty"`
	jwt.RegisteredClaims
}
