package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the "use" claim. Activation tokens can never be
// presented as access tokens and vice versa.
const (
	UseAccess     = "access"
	UseActivation = "activation"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID  uuid.UUID
	IsStaff bool
	JTI     string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID  uuid.UUID `json:"user_id"`
	IsStaff bool      `json:"is_staff"`
	Use     string    `json:"use"`
	jwt.RegisteredClaims
}

// ActivationTokenClaims is the short-lived token embedded in account
// activation emails sent after a guest checkout.
type ActivationTokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Use    string    `json:"use"`
	jwt.RegisteredClaims
}
