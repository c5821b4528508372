// Package auth verifies the bearer tokens issued by the external identity
// provider and maps them to vault owners.
package auth

import (
	"context"
	"time"

	"github.com/phrazzld/fcs-vault/internal/domain"
)

// JWTService defines operations for HMAC-signed JWT access tokens.
type JWTService interface {
	// GenerateToken creates a signed access token for userID. The vault only
	// verifies tokens in production; generation serves tooling and tests.
	GenerateToken(ctx context.Context, userID domain.UserID) (string, error)

	// ValidateToken validates the provided access token string and extracts the claims.
	// Returns the claims containing user information if the token is valid,
	// or an error if validation fails (expired, invalid signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the verified content of an access token.
type Claims struct {
	// UserID is the numeric user id carried in the subject claim.
	UserID domain.UserID `json:"uid"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
