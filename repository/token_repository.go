// file: repository/token_repository.go

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"go-storefront-auth/logger"
	"go-storefront-auth/model"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ITokenRepository defines the contract for refresh token database operations.
type ITokenRepository interface {
	Create(ctx context.Context, db DBTX, token *model.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	DeleteByTokenHash(ctx context.Context, db DBTX, tokenHash string) (int64, error)
	DeleteByUserID(ctx context.Context, db DBTX, userID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// TokenRepository implements ITokenRepository.
type TokenRepository struct {
	DB *sql.DB
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{DB: db}
}

// Create inserts a new refresh token record. A hash collision yields ErrDuplicate.
func (r *TokenRepository) Create(ctx context.Context, db DBTX, token *model.RefreshToken) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":    token.UserID,
		"expires_at": token.ExpiresAt,
	})
	log.Info("Executing query to create a new refresh token")

	query := `INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := db.ExecContext(ctx, query, token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			log.Warn("Refresh token hash collision")
			return ErrDuplicate
		}
		log.WithError(err).Error("Failed to execute create refresh token query")
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// GetByTokenHash retrieves a refresh token by its hashed value.
func (r *TokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	token := &model.RefreshToken{}
	query := `SELECT id, user_id, token_hash, expires_at, created_at FROM refresh_tokens WHERE token_hash = $1`
	err := r.DB.QueryRowContext(ctx, query, tokenHash).Scan(&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Log.WithError(err).Error("Failed to execute get refresh token by hash query")
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return token, nil
}

// DeleteByTokenHash deletes a single refresh token and reports how many rows went away.
func (r *TokenRepository) DeleteByTokenHash(ctx context.Context, db DBTX, tokenHash string) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to execute delete refresh token query")
		return 0, fmt.Errorf("delete refresh token: %w", err)
	}
	return res.RowsAffected()
}

// DeleteByUserID deletes all refresh tokens for a specific user.
// This is used for logging out from all sessions.
func (r *TokenRepository) DeleteByUserID(ctx context.Context, db DBTX, userID uuid.UUID) (int64, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing query to delete all refresh tokens for a user")

	res, err := db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		log.WithError(err).Error("Failed to execute delete refresh tokens query")
		return 0, fmt.Errorf("delete user refresh tokens: %w", err)
	}
	return res.RowsAffected()
}

// DeleteExpired removes every refresh token whose expiry is not after before.
func (r *TokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, before)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to execute delete expired refresh tokens query")
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return res.RowsAffected()
}
