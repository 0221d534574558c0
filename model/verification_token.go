package model

import (
	"time"

	"github.com/google/uuid"
)

// TokenFlavor tells apart the single-use verification tokens that share one table.
type TokenFlavor string

const (
	FlavorEmailVerification TokenFlavor = "email_verification"
	FlavorPasswordReset     TokenFlavor = "password_reset"
)

func (f TokenFlavor) String() string { return string(f) }

// Valid reports whether f is a known flavor.
func (f TokenFlavor) Valid() bool {
	return f == FlavorEmailVerification || f == FlavorPasswordReset
}

// VerificationToken is a single-use, time-boxed token proving control of an
// email address or authorizing a password reset.
type VerificationToken struct {
	ID        uuid.UUID   `json:"id"`
	UserID    uuid.UUID   `json:"user_id"`
	TokenHash string      `json:"-"`
	Flavor    TokenFlavor `json:"flavor"`
	ExpiresAt time.Time   `json:"expires_at"`
	CreatedAt time.Time   `json:"created_at"`
}

func (t *VerificationToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
