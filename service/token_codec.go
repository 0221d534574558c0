package service

import (
	"errors"
	"fmt"
	"go-storefront-auth/logger"
	"go-storefront-auth/model"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretKeyLength is the shortest HMAC key accepted for HS512.
const MinSecretKeyLength = 32

// AccessTokenCodec mints and verifies short-lived HS512 access tokens.
// It holds no mutable state and is safe for concurrent use.
type AccessTokenCodec struct {
	key    []byte
	issuer string
	ttl    time.Duration
	clock  Clock
}

func NewAccessTokenCodec(secretKey, issuer string, ttl time.Duration, clock Clock) (*AccessTokenCodec, error) {
	if len(secretKey) < MinSecretKeyLength {
		return nil, fmt.Errorf("jwt secret key must be at least %d bytes", MinSecretKeyLength)
	}
	if ttl <= 0 {
		return nil, errors.New("access token ttl must be positive")
	}
	return &AccessTokenCodec{key: []byte(secretKey), issuer: issuer, ttl: ttl, clock: clock}, nil
}

// TTL is the lifetime of minted tokens.
func (c *AccessTokenCodec) TTL() time.Duration {
	return c.ttl
}

func (c *AccessTokenCodec) Mint(subject string, authorities []string) (string, error) {
	now := c.clock.now()
	claims := &model.AppClaims{
		Authorities: strings.Join(authorities, ","),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	tokenString, err := token.SignedString(c.key)
	if err != nil {
		logger.Log.WithError(err).WithField("subject", subject).Error("Failed to sign JWT")
		return "", fmt.Errorf("failed to sign token string: %w", err)
	}
	return tokenString, nil
}

// VerifyAndDecode checks the signature, issuer and expiry of tokenString.
// It fails with ErrTokenUnsupported for non-HMAC algorithms, ErrTokenExpired
// for a genuine but expired token and ErrTokenInvalid otherwise.
func (c *AccessTokenCodec) VerifyAndDecode(tokenString string) (*model.AppClaims, error) {
	claims := &model.AppClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrTokenUnsupported
			}
			return c.key, nil
		},
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock.now),
	)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, ErrTokenUnsupported):
		return nil, ErrTokenUnsupported
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	default:
		return nil, ErrTokenInvalid
	}
}

// Authorities splits the auth claim back into individual authorities.
func Authorities(claims *model.AppClaims) []string {
	if claims.Authorities == "" {
		return nil
	}
	return strings.Split(claims.Authorities, ",")
}
