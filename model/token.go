// file: model/token.go

package model

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken holds the data for a refresh token in the database.
// Only the SHA-256 hash of the opaque token string is stored.
type RefreshToken struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	TokenHash string    `json:"-"` // The hash is not exposed in JSON responses.
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether the token is no longer usable at now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
