package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"go-storefront-auth/logger"
	"go-storefront-auth/repository"
)

const opaqueTokenBytes = 32

// newOpaqueToken returns a URL-safe random string and the digest stored in
// place of it.
func newOpaqueToken() (raw, hash string, err error) {
	b := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	raw = base64.RawURLEncoding.EncodeToString(b)
	return raw, hashToken(raw), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// retryOnCollision runs fn again once when it fails with a uniqueness
// collision. fn must draw a fresh token on every call.
func retryOnCollision(what string, fn func() error) error {
	err := fn()
	if errors.Is(err, repository.ErrDuplicate) {
		logger.Log.WithField("token", what).Warn("Token collision, retrying with a fresh value")
		err = fn()
	}
	return err
}

// maskToken keeps a short prefix of raw for log correlation.
func maskToken(raw string) string {
	if len(raw) <= 6 {
		return "******"
	}
	return raw[:6] + "******"
}
