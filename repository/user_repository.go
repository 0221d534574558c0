package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"go-storefront-auth/logger"
	"go-storefront-auth/model"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// IUserRepository defines the contract for user database operations.
type IUserRepository interface {
	CreateUser(ctx context.Context, db DBTX, user *model.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsernameOrEmail(ctx context.Context, login string) (*model.User, error)
	GetUserForUpdate(ctx context.Context, tx DBTX, id uuid.UUID) (*model.User, error)
	MarkEmailVerified(ctx context.Context, tx DBTX, id uuid.UUID) error
	UpdatePassword(ctx context.Context, tx DBTX, id uuid.UUID, passwordHash string) error
}

type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

const userColumns = `id, username, email, password_hash, email_verified, authorities, created_at`

func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var authorities pq.StringArray
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.EmailVerified, &authorities, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	user.Authorities = []string(authorities)
	return user, nil
}

// CreateUser inserts a new user. A taken username or email yields ErrDuplicate.
func (r *UserRepository) CreateUser(ctx context.Context, db DBTX, user *model.User) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	})
	log.Info("Executing query to create a new user")

	query := `INSERT INTO users (id, username, email, password_hash, email_verified, authorities, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := db.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash, user.EmailVerified, pq.Array(user.Authorities), user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		log.WithError(err).Error("Failed to execute create user query")
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, db DBTX, query string, arg any) (*model.User, error) {
	user, err := scanUser(db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Log.WithError(err).Error("Failed to execute user lookup query")
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.findOne(ctx, r.DB, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, r.DB, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

// FindByUsernameOrEmail matches the login string against the username first
// and the email second, both case-insensitively.
func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, login string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE lower(username) = lower($1) OR lower(email) = lower($1)
		ORDER BY (lower(username) = lower($1)) DESC
		LIMIT 1`
	return r.findOne(ctx, r.DB, query, login)
}

// GetUserForUpdate loads a user and locks the row until tx ends.
func (r *UserRepository) GetUserForUpdate(ctx context.Context, tx DBTX, id uuid.UUID) (*model.User, error) {
	return r.findOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

func (r *UserRepository) MarkEmailVerified(ctx context.Context, tx DBTX, id uuid.UUID) error {
	log := logger.Log.WithField("user_id", id)
	log.Info("Executing query to mark user email as verified")

	res, err := tx.ExecContext(ctx, `UPDATE users SET email_verified = TRUE WHERE id = $1`, id)
	if err != nil {
		log.WithError(err).Error("Failed to execute mark email verified query")
		return fmt.Errorf("mark email verified: %w", err)
	}
	return requireOneRow(res)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, tx DBTX, id uuid.UUID, passwordHash string) error {
	log := logger.Log.WithField("user_id", id)
	log.Info("Executing query to update user password")

	res, err := tx.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	if err != nil {
		log.WithError(err).Error("Failed to execute update password query")
		return fmt.Errorf("update password: %w", err)
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
