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

// IVerificationTokenRepository defines the contract for email verification
// and password reset token storage. Both flavors share one table.
type IVerificationTokenRepository interface {
	Create(ctx context.Context, db DBTX, token *model.VerificationToken) error
	GetByTokenHashForUpdate(ctx context.Context, tx DBTX, tokenHash string, flavor model.TokenFlavor) (*model.VerificationToken, error)
	GetLatestByUser(ctx context.Context, db DBTX, userID uuid.UUID, flavor model.TokenFlavor) (*model.VerificationToken, error)
	DeleteByID(ctx context.Context, db DBTX, id uuid.UUID) error
	DeleteByUserAndFlavor(ctx context.Context, db DBTX, userID uuid.UUID, flavor model.TokenFlavor) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type VerificationTokenRepository struct {
	DB *sql.DB
}

func NewVerificationTokenRepository(db *sql.DB) *VerificationTokenRepository {
	return &VerificationTokenRepository{DB: db}
}

const verificationColumns = `id, user_id, token_hash, flavor, expires_at, created_at`

func scanVerificationToken(row *sql.Row) (*model.VerificationToken, error) {
	token := &model.VerificationToken{}
	var flavor string
	if err := row.Scan(&token.ID, &token.UserID, &token.TokenHash, &flavor, &token.ExpiresAt, &token.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Log.WithError(err).Error("Failed to scan verification token row")
		return nil, fmt.Errorf("scan verification token: %w", err)
	}
	token.Flavor = model.TokenFlavor(flavor)
	return token, nil
}

func (r *VerificationTokenRepository) Create(ctx context.Context, db DBTX, token *model.VerificationToken) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":    token.UserID,
		"flavor":     token.Flavor,
		"expires_at": token.ExpiresAt,
	})
	log.Info("Executing query to create a new verification token")

	query := `INSERT INTO verification_tokens (id, user_id, token_hash, flavor, expires_at, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := db.ExecContext(ctx, query, token.ID, token.UserID, token.TokenHash, string(token.Flavor), token.ExpiresAt, token.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			log.Warn("Verification token hash collision")
			return ErrDuplicate
		}
		log.WithError(err).Error("Failed to execute create verification token query")
		return fmt.Errorf("create verification token: %w", err)
	}
	return nil
}

// GetByTokenHashForUpdate loads a token of the given flavor and locks it until tx ends,
// so a concurrent consumer waits and then observes the row gone.
func (r *VerificationTokenRepository) GetByTokenHashForUpdate(ctx context.Context, tx DBTX, tokenHash string, flavor model.TokenFlavor) (*model.VerificationToken, error) {
	query := `SELECT ` + verificationColumns + ` FROM verification_tokens WHERE token_hash = $1 AND flavor = $2 FOR UPDATE`
	return scanVerificationToken(tx.QueryRowContext(ctx, query, tokenHash, string(flavor)))
}

// GetLatestByUser returns the most recently created token of a flavor for a user.
func (r *VerificationTokenRepository) GetLatestByUser(ctx context.Context, db DBTX, userID uuid.UUID, flavor model.TokenFlavor) (*model.VerificationToken, error) {
	query := `SELECT ` + verificationColumns + ` FROM verification_tokens WHERE user_id = $1 AND flavor = $2 ORDER BY created_at DESC LIMIT 1`
	return scanVerificationToken(db.QueryRowContext(ctx, query, userID, string(flavor)))
}

func (r *VerificationTokenRepository) DeleteByID(ctx context.Context, db DBTX, id uuid.UUID) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM verification_tokens WHERE id = $1`, id); err != nil {
		logger.Log.WithError(err).WithField("token_id", id).Error("Failed to execute delete verification token query")
		return fmt.Errorf("delete verification token: %w", err)
	}
	return nil
}

func (r *VerificationTokenRepository) DeleteByUserAndFlavor(ctx context.Context, db DBTX, userID uuid.UUID, flavor model.TokenFlavor) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM verification_tokens WHERE user_id = $1 AND flavor = $2`, userID, string(flavor))
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Error("Failed to execute delete user verification tokens query")
		return 0, fmt.Errorf("delete user verification tokens: %w", err)
	}
	return res.RowsAffected()
}

// DeleteExpired removes expired tokens of every flavor.
func (r *VerificationTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM verification_tokens WHERE expires_at <= $1`, before)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to execute delete expired verification tokens query")
		return 0, fmt.Errorf("delete expired verification tokens: %w", err)
	}
	return res.RowsAffected()
}
