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
	"github.com/sirupsen/logrus"
)

// VerificationAction is the state change a verification token authorizes.
// Guard runs first; a Guard error still consumes the token. Apply runs in the
// same unit of work as the token deletion.
type VerificationAction interface {
	Guard(user *model.User) error
	Apply(ctx context.Context, tx repository.DBTX, user *model.User) error
}

// VerificationTokenService manages single-use tokens of one flavor. Issuing a
// token supersedes every earlier token of the same user and flavor.
type VerificationTokenService struct {
	flavor model.TokenFlavor
	ttl    time.Duration
	tokens repository.IVerificationTokenRepository
	users  repository.IUserRepository
	tx     repository.Transactor
	clock  Clock
}

func NewVerificationTokenService(
	flavor model.TokenFlavor,
	ttl time.Duration,
	tokens repository.IVerificationTokenRepository,
	users repository.IUserRepository,
	tx repository.Transactor,
	clock Clock,
) *VerificationTokenService {
	return &VerificationTokenService{flavor: flavor, ttl: ttl, tokens: tokens, users: users, tx: tx, clock: clock}
}

func (s *VerificationTokenService) Flavor() model.TokenFlavor {
	return s.flavor
}

// Issue replaces any live token of the flavor for userID and returns the raw
// value of the new one.
func (s *VerificationTokenService) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	raw, _, err := s.issue(ctx, userID, 0)
	return raw, err
}

// IssueIfStale issues a token only when userID has none of the flavor or the
// newest one is at least minAge old. The check runs under a lock on the user
// row, so concurrent callers for one user issue at most one token.
func (s *VerificationTokenService) IssueIfStale(ctx context.Context, userID uuid.UUID, minAge time.Duration) (raw string, issued bool, err error) {
	return s.issue(ctx, userID, minAge)
}

func (s *VerificationTokenService) issue(ctx context.Context, userID uuid.UUID, minAge time.Duration) (string, bool, error) {
	var raw string
	var issued bool
	err := retryOnCollision(s.flavor.String(), func() error {
		var hash string
		var err error
		raw, hash, err = newOpaqueToken()
		if err != nil {
			return err
		}
		issued = false
		return s.tx.WithinTx(ctx, func(ctx context.Context, tx repository.DBTX) error {
			if minAge > 0 {
				fresh, err := s.hasFreshToken(ctx, tx, userID, minAge)
				if err != nil || fresh {
					return err
				}
			}
			now := s.clock.now()
			token := &model.VerificationToken{
				ID:        uuid.New(),
				UserID:    userID,
				TokenHash: hash,
				Flavor:    s.flavor,
				ExpiresAt: now.Add(s.ttl),
				CreatedAt: now,
			}
			if _, err := s.tokens.DeleteByUserAndFlavor(ctx, tx, userID, s.flavor); err != nil {
				return err
			}
			if err := s.tokens.Create(ctx, tx, token); err != nil {
				return err
			}
			issued = true
			return nil
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("issue %s token: %w", s.flavor, err)
	}
	if !issued {
		return "", false, nil
	}
	logger.Log.WithFields(logrus.Fields{"user_id": userID, "flavor": s.flavor}).Info("Verification token issued")
	return raw, true, nil
}

// hasFreshToken locks the user row, then reports whether the newest token of
// the flavor is younger than minAge.
func (s *VerificationTokenService) hasFreshToken(ctx context.Context, tx repository.DBTX, userID uuid.UUID, minAge time.Duration) (bool, error) {
	if _, err := s.users.GetUserForUpdate(ctx, tx, userID); err != nil {
		return false, fmt.Errorf("lock token owner: %w", err)
	}
	latest, err := s.tokens.GetLatestByUser(ctx, tx, userID, s.flavor)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.clock.now().Sub(latest.CreatedAt) < minAge, nil
}

// ValidateAndConsume locks the token, checks it and applies action, all in one
// unit of work. Expired tokens and tokens rejected by the guard are deleted
// and the deletion is committed before the error is returned.
func (s *VerificationTokenService) ValidateAndConsume(ctx context.Context, raw string, action VerificationAction) (*model.User, error) {
	var user *model.User
	var rejection error

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx repository.DBTX) error {
		token, err := s.tokens.GetByTokenHashForUpdate(ctx, tx, hashToken(raw), s.flavor)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTokenNotFound
			}
			return err
		}

		if token.IsExpired(s.clock.now()) {
			rejection = ErrTokenExpired
			return s.tokens.DeleteByID(ctx, tx, token.ID)
		}

		owner, err := s.users.GetUserForUpdate(ctx, tx, token.UserID)
		if err != nil {
			return fmt.Errorf("load token owner: %w", err)
		}
		if guardErr := action.Guard(owner); guardErr != nil {
			rejection = guardErr
			return s.tokens.DeleteByID(ctx, tx, token.ID)
		}

		if err := action.Apply(ctx, tx, owner); err != nil {
			return err
		}
		if err := s.tokens.DeleteByID(ctx, tx, token.ID); err != nil {
			return err
		}
		user = owner
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		logger.Log.WithField("flavor", s.flavor).WithError(rejection).Info("Verification token rejected")
		return nil, rejection
	}
	logger.Log.WithFields(logrus.Fields{"user_id": user.ID, "flavor": s.flavor}).Info("Verification token consumed")
	return user, nil
}

type markEmailVerified struct {
	users repository.IUserRepository
}

func (a markEmailVerified) Guard(user *model.User) error {
	if user.EmailVerified {
		return ErrAlreadyVerified
	}
	return nil
}

func (a markEmailVerified) Apply(ctx context.Context, tx repository.DBTX, user *model.User) error {
	if err := a.users.MarkEmailVerified(ctx, tx, user.ID); err != nil {
		return err
	}
	user.EmailVerified = true
	return nil
}

// resetPassword stores the new hash and ends every session of the user.
type resetPassword struct {
	users        repository.IUserRepository
	sessions     *RefreshTokenStore
	passwordHash string
}

func (a resetPassword) Guard(*model.User) error { return nil }

func (a resetPassword) Apply(ctx context.Context, tx repository.DBTX, user *model.User) error {
	if err := a.users.UpdatePassword(ctx, tx, user.ID, a.passwordHash); err != nil {
		return err
	}
	user.PasswordHash = a.passwordHash
	return a.sessions.RevokeAllTx(ctx, tx, user.ID)
}
