package service

import (
	"errors"
	"time"
)

var (
	ErrTokenInvalid       = errors.New("token is invalid")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenUnsupported   = errors.New("token algorithm is not supported")
	ErrTokenNotFound      = errors.New("token not found")
	ErrAlreadyVerified    = errors.New("email is already verified")
	ErrRateLimitExceeded  = errors.New("too many attempts, try again later")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotVerified    = errors.New("email address is not verified")
	ErrUserAlreadyExists  = errors.New("username or email is already taken")
	ErrUnknownLimitScope  = errors.New("unknown rate limit scope")
)

// UserNotVerifiedError rejects a login with valid credentials whose email is
// not verified yet. EmailResent reports whether a fresh verification email
// went out during this attempt.
type UserNotVerifiedError struct {
	EmailResent bool
}

func (e *UserNotVerifiedError) Error() string {
	return ErrUserNotVerified.Error()
}

func (e *UserNotVerifiedError) Is(target error) bool {
	return target == ErrUserNotVerified
}

// Clock returns the current time. A nil Clock means time.Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
