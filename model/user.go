package model

import (
	"time"

	"github.com/google/uuid"
)

// Authorities granted to accounts.
const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// User is the account record consumed by the authentication core.
type User struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	EmailVerified bool      `json:"email_verified"`
	Authorities   []string  `json:"authorities"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasAuthority reports whether the user was granted the given authority.
func (u *User) HasAuthority(authority string) bool {
	for _, a := range u.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}
