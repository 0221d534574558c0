package repository

import (
	"context"
	"database/sql"
	"errors"
	"go-storefront-auth/model"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)

	token := &model.RefreshToken{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		TokenHash: "abc123",
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO refresh_tokens`)).
		WithArgs(token.ID.String(), token.UserID.String(), "abc123", token.ExpiresAt, token.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Create(context.Background(), db, token))

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO refresh_tokens`)).
		WillReturnError(&pq.Error{Code: "23505"})
	assert.ErrorIs(t, repo.Create(context.Background(), db, token), ErrDuplicate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_GetByTokenHash(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)
	id, userID := uuid.New(), uuid.New()
	expires := time.Now().Add(time.Hour)

	t.Run("Found", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at"}).
			AddRow(id.String(), userID.String(), "abc123", expires, time.Now())
		mock.ExpectQuery(regexp.QuoteMeta(`FROM refresh_tokens WHERE token_hash = $1`)).
			WithArgs("abc123").
			WillReturnRows(rows)

		token, err := repo.GetByTokenHash(context.Background(), "abc123")
		require.NoError(t, err)
		assert.Equal(t, userID, token.UserID)
		assert.True(t, token.ExpiresAt.Equal(expires))
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM refresh_tokens WHERE token_hash = $1`)).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByTokenHash(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DriverError", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM refresh_tokens WHERE token_hash = $1`)).
			WithArgs("abc123").
			WillReturnError(errors.New("db err"))

		_, err := repo.GetByTokenHash(context.Background(), "abc123")
		assert.ErrorContains(t, err, "get refresh token: db err")
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_Deletes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)
	userID := uuid.New()
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM refresh_tokens WHERE token_hash = $1`)).
		WithArgs("abc123").
		WillReturnResult(sqlmock.NewResult(0, 0))
	n, err := repo.DeleteByTokenHash(context.Background(), db, "abc123")
	require.NoError(t, err)
	assert.Zero(t, n)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM refresh_tokens WHERE user_id = $1`)).
		WithArgs(userID.String()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err = repo.DeleteByUserID(context.Background(), db, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM refresh_tokens WHERE expires_at <= $1`)).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 2))
	n, err = repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	assert.NoError(t, mock.ExpectationsWereMet())
}
