package service

import (
	"context"
	"errors"
	"fmt"
	"go-storefront-auth/logger"
	"go-storefront-auth/model"
	"go-storefront-auth/ratelimit"
	"go-storefront-auth/repository"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Rate limit scopes accepted by ResetRateLimit.
const (
	ScopeLogin         = "login"
	ScopePasswordReset = "password_reset"
)

// TokenPair is returned by a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthDeps bundles the collaborators of AuthService.
type AuthDeps struct {
	Users        repository.IUserRepository
	Tx           repository.Transactor
	Codec        *AccessTokenCodec
	Sessions     *RefreshTokenStore
	EmailTokens  *VerificationTokenService
	ResetTokens  *VerificationTokenService
	Hasher       PasswordHasher
	Mailer       EmailSender
	LoginLimiter ratelimit.Limiter
	ResetLimiter ratelimit.Limiter
	// ResendAfter is how old the newest verification token must be before a
	// login by an unverified user sends a new one.
	ResendAfter time.Duration
	Clock       Clock
}

// AuthService orchestrates login, refresh, logout, registration, email
// verification and the password flows.
type AuthService struct {
	AuthDeps
	dummyHash string
	// limiterDown samples the warning logged while a limiter is failing.
	limiterDown *rate.Sometimes
}

func NewAuthService(deps AuthDeps) (*AuthService, error) {
	if deps.Mailer == nil {
		deps.Mailer = LogEmailSender{}
	}
	// Unknown users are checked against this hash so both rejections cost the same.
	dummy, err := deps.Hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &AuthService{
		AuthDeps:    deps,
		dummyHash:   dummy,
		limiterDown: &rate.Sometimes{First: 1, Interval: time.Minute},
	}, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// admit consults limiter. A failing limiter admits the attempt.
func (s *AuthService) admit(ctx context.Context, limiter ratelimit.Limiter, scope, key string) bool {
	ok, err := limiter.TryConsume(ctx, key)
	if err != nil {
		s.limiterDown.Do(func() {
			logger.Log.WithError(err).WithField("scope", scope).Warn("Rate limiter unavailable, admitting attempts")
		})
		return true
	}
	if !ok {
		logger.Log.WithFields(logrus.Fields{"scope": scope, "key": key}).Warn("Rate limit exceeded")
	}
	return ok
}

// Login checks, in order, the rate limit, the credentials and the
// verification status, then issues a token pair.
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (*TokenPair, error) {
	key := normalizeKey(usernameOrEmail)
	if !s.admit(ctx, s.LoginLimiter, ScopeLogin, key) {
		return nil, ErrRateLimitExceeded
	}

	user, err := s.Users.FindByUsernameOrEmail(ctx, usernameOrEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.Hasher.Verify(password, s.dummyHash)
			logger.Log.WithField("login", key).Info("Login rejected")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !s.Hasher.Verify(password, user.PasswordHash) {
		logger.Log.WithField("user_id", user.ID).Info("Login rejected")
		return nil, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		resent := s.resendVerification(ctx, user)
		logger.Log.WithFields(logrus.Fields{"user_id": user.ID, "email_resent": resent}).Info("Login rejected, email not verified")
		return nil, &UserNotVerifiedError{EmailResent: resent}
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	logger.Log.WithField("user_id", user.ID).Info("User logged in")
	return pair, nil
}

// resendVerification issues and sends a new verification token unless one
// was issued within ResendAfter. It reports whether an email went out.
func (s *AuthService) resendVerification(ctx context.Context, user *model.User) bool {
	log := logger.Log.WithField("user_id", user.ID)

	raw, issued, err := s.EmailTokens.IssueIfStale(ctx, user.ID, s.ResendAfter)
	if err != nil {
		log.WithError(err).Error("Failed to issue verification token")
		return false
	}
	if !issued {
		return false
	}
	if err := s.Mailer.Send(ctx, user, raw, s.EmailTokens.Flavor()); err != nil {
		log.WithError(err).Error("Failed to send verification email")
		return false
	}
	return true
}

func (s *AuthService) issuePair(ctx context.Context, user *model.User) (*TokenPair, error) {
	access, err := s.Codec.Mint(user.Username, user.Authorities)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.Sessions.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.pair(access, refresh), nil
}

func (s *AuthService) pair(access, refresh string) *TokenPair {
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.Codec.TTL().Seconds()),
	}
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed; presenting it again fails with ErrTokenInvalid.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string) (*TokenPair, error) {
	old, err := s.Sessions.Find(ctx, rawRefreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if err := s.Sessions.VerifyNotExpired(ctx, old); err != nil {
		return nil, err
	}

	user, err := s.Users.FindByID(ctx, old.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	access, err := s.Codec.Mint(user.Username, user.Authorities)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.Sessions.Rotate(ctx, old, user.ID)
	if err != nil {
		return nil, err
	}
	return s.pair(access, refresh), nil
}

// Logout revokes the refresh token. Unknown or empty tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, rawRefreshToken string) error {
	if rawRefreshToken == "" {
		return nil
	}
	return s.Sessions.Revoke(ctx, rawRefreshToken)
}

// Register creates an unverified account and sends its verification email.
// A failure to issue or send the token does not undo the registration; the
// next login attempt sends a new one.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &model.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Authorities:  []string{model.RoleUser},
		CreatedAt:    s.Clock.now(),
	}

	err = s.Tx.WithinTx(ctx, func(ctx context.Context, tx repository.DBTX) error {
		return s.Users.CreateUser(ctx, tx, user)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}
	log := logger.Log.WithField("user_id", user.ID)
	log.Info("User registered")

	raw, err := s.EmailTokens.Issue(ctx, user.ID)
	if err != nil {
		log.WithError(err).Error("Failed to issue verification token")
		return user, nil
	}
	if err := s.Mailer.Send(ctx, user, raw, s.EmailTokens.Flavor()); err != nil {
		log.WithError(err).Error("Failed to send verification email")
	}
	return user, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) (*model.User, error) {
	return s.EmailTokens.ValidateAndConsume(ctx, rawToken, markEmailVerified{users: s.Users})
}

// ChangePassword replaces the password of an authenticated user and ends all
// of their sessions.
func (s *AuthService) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	user, err := s.Users.FindByUsernameOrEmail(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("find user: %w", err)
	}
	if !s.Hasher.Verify(oldPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = s.Tx.WithinTx(ctx, func(ctx context.Context, tx repository.DBTX) error {
		if err := s.Users.UpdatePassword(ctx, tx, user.ID, hash); err != nil {
			return err
		}
		return s.Sessions.RevokeAllTx(ctx, tx, user.ID)
	})
	if err != nil {
		return err
	}
	logger.Log.WithField("user_id", user.ID).Info("Password changed")
	return nil
}

// InitiatePasswordReset sends a reset token to email. Unknown addresses are
// accepted silently.
func (s *AuthService) InitiatePasswordReset(ctx context.Context, email string) error {
	if !s.admit(ctx, s.ResetLimiter, ScopePasswordReset, normalizeKey(email)) {
		return ErrRateLimitExceeded
	}

	user, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Log.Info("Password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}

	raw, err := s.ResetTokens.Issue(ctx, user.ID)
	if err != nil {
		return err
	}
	if err := s.Mailer.Send(ctx, user, raw, s.ResetTokens.Flavor()); err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).Error("Failed to send password reset email")
	}
	return nil
}

// ResetPassword consumes a reset token, sets the new password and ends all
// sessions of its owner.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user, err := s.ResetTokens.ValidateAndConsume(ctx, rawToken, resetPassword{
		users:        s.Users,
		sessions:     s.Sessions,
		passwordHash: hash,
	})
	if err != nil {
		return err
	}
	logger.Log.WithField("user_id", user.ID).Info("Password reset")
	return nil
}

// ResetRateLimit clears the bucket of key in the given scope.
func (s *AuthService) ResetRateLimit(ctx context.Context, scope, key string) error {
	var limiter ratelimit.Limiter
	switch scope {
	case ScopeLogin:
		limiter = s.LoginLimiter
	case ScopePasswordReset:
		limiter = s.ResetLimiter
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLimitScope, scope)
	}
	if err := limiter.Reset(ctx, normalizeKey(key)); err != nil {
		return err
	}
	logger.Log.WithFields(logrus.Fields{"scope": scope, "key": normalizeKey(key)}).Info("Rate limit reset")
	return nil
}
