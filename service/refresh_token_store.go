package service

import (
	"context"
	"errors"
	"fmt"
	"go-storefront-auth/logger"
	"go-storefront-auth/model"
	"go-storefront-auth/repository"
	"time"

	"github.com/google/uuid"
)

// RefreshTokenStore issues, rotates and revokes opaque refresh tokens.
// Only digests are persisted; raw strings leave the store exactly once.
type RefreshTokenStore struct {
	tokens repository.ITokenRepository
	tx     repository.Transactor
	ttl    time.Duration
	clock  Clock
}

func NewRefreshTokenStore(tokens repository.ITokenRepository, tx repository.Transactor, ttl time.Duration, clock Clock) *RefreshTokenStore {
	return &RefreshTokenStore{tokens: tokens, tx: tx, ttl: ttl, clock: clock}
}

func (s *RefreshTokenStore) newToken(userID uuid.UUID) (string, *model.RefreshToken, error) {
	raw, hash, err := newOpaqueToken()
	if err != nil {
		return "", nil, err
	}
	now := s.clock.now()
	return raw, &model.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}, nil
}

// Issue persists a new refresh token for userID and returns its raw value.
func (s *RefreshTokenStore) Issue(ctx context.Context, userID uuid.UUID) (string, *model.RefreshToken, error) {
	var raw string
	var token *model.RefreshToken
	err := retryOnCollision("refresh", func() error {
		var err error
		raw, token, err = s.newToken(userID)
		if err != nil {
			return err
		}
		return s.tx.WithinTx(ctx, func(ctx context.Context, tx repository.DBTX) error {
			return s.tokens.Create(ctx, tx, token)
		})
	})
	if err != nil {
		return "", nil, fmt.Errorf("issue refresh token: %w", err)
	}
	logger.Log.WithField("user_id", userID).Info("Refresh token issued")
	return raw, token, nil
}

func (s *RefreshTokenStore) Find(ctx context.Context, raw string) (*model.RefreshToken, error) {
	token, err := s.tokens.GetByTokenHash(ctx, hashToken(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return token, nil
}

// VerifyNotExpired deletes an expired token and reports ErrTokenExpired.
func (s *RefreshTokenStore) VerifyNotExpired(ctx context.Context, token *model.RefreshToken) error {
	if !token.IsExpired(s.clock.now()) {
		return nil
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx repository.DBTX) error {
		_, err := s.tokens.DeleteByTokenHash(ctx, tx, token.TokenHash)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete expired refresh token: %w", err)
	}
	logger.Log.WithField("user_id", token.UserID).Info("Expired refresh token removed")
	return ErrTokenExpired
}

// Revoke deletes the token if it exists.
func (s *RefreshTokenStore) Revoke(ctx context.Context, raw string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, tx repository.DBTX) error {
		_, err := s.tokens.DeleteByTokenHash(ctx, tx, hashToken(raw))
		return err
	})
}

// RevokeAll deletes every refresh token of userID.
func (s *RefreshTokenStore) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, tx repository.DBTX) error {
		return s.RevokeAllTx(ctx, tx, userID)
	})
}

// RevokeAllTx is RevokeAll inside a caller's unit of work.
func (s *RefreshTokenStore) RevokeAllTx(ctx context.Context, tx repository.DBTX, userID uuid.UUID) error {
	n, err := s.tokens.DeleteByUserID(ctx, tx, userID)
	if err != nil {
		return err
	}
	logger.Log.WithField("user_id", userID).WithField("revoked", n).Info("Refresh tokens revoked")
	return nil
}

// Rotate replaces old with a fresh token in one unit of work. The new row is
// written before the old one is removed; if old was already consumed the
// whole rotation is rolled back with ErrTokenInvalid.
func (s *RefreshTokenStore) Rotate(ctx context.Context, old *model.RefreshToken, userID uuid.UUID) (string, *model.RefreshToken, error) {
	var raw string
	var token *model.RefreshToken
	err := retryOnCollision("refresh", func() error {
		var err error
		raw, token, err = s.newToken(userID)
		if err != nil {
			return err
		}
		return s.tx.WithinTx(ctx, func(ctx context.Context, tx repository.DBTX) error {
			if err := s.tokens.Create(ctx, tx, token); err != nil {
				return err
			}
			n, err := s.tokens.DeleteByTokenHash(ctx, tx, old.TokenHash)
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrTokenInvalid
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			logger.Log.WithField("user_id", userID).Warn("Refresh token was already rotated")
			return "", nil, ErrTokenInvalid
		}
		return "", nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	logger.Log.WithField("user_id", userID).Info("Refresh token rotated")
	return raw, token, nil
}
