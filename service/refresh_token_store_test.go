package service

import (
	"context"
	"errors"
	"go-storefront-auth/repository"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshTokenStore_IssueStoresDigestOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	raw, token, err := f.sessions.Issue(ctx, userID)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.NotEqual(t, raw, token.TokenHash)
	assert.Equal(t, f.clock.Now().Add(refreshTTL), token.ExpiresAt)

	_, err = f.tokens.GetByTokenHash(ctx, raw)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	found, err := f.sessions.Find(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, token.ID, found.ID)
}

func TestRefreshTokenStore_IssueRetriesCollisionOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	f.store.InjectError("tokens.Create", repository.ErrDuplicate, 1)
	_, _, err := f.sessions.Issue(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.tokens.Count(userID))

	f.store.InjectError("tokens.Create", repository.ErrDuplicate, 2)
	_, _, err = f.sessions.Issue(ctx, userID)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.Equal(t, 1, f.tokens.Count(userID))
}

func TestRefreshTokenStore_FindUnknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.Find(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRefreshTokenStore_ExpiryDestroysToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, token, err := f.sessions.Issue(ctx, uuid.New())
	require.NoError(t, err)
	assert.NoError(t, f.sessions.VerifyNotExpired(ctx, token))

	f.clock.Advance(refreshTTL)
	assert.ErrorIs(t, f.sessions.VerifyNotExpired(ctx, token), ErrTokenExpired)

	_, err = f.sessions.Find(ctx, raw)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRefreshTokenStore_Rotate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	raw, old, err := f.sessions.Issue(ctx, userID)
	require.NoError(t, err)

	newRaw, _, err := f.sessions.Rotate(ctx, old, userID)
	require.NoError(t, err)
	assert.NotEqual(t, raw, newRaw)

	_, err = f.sessions.Find(ctx, raw)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = f.sessions.Find(ctx, newRaw)
	assert.NoError(t, err)

	// A second rotation of the consumed token is refused and leaves nothing behind.
	_, _, err = f.sessions.Rotate(ctx, old, userID)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.Equal(t, 1, f.tokens.Count(userID))
}

func TestRefreshTokenStore_RotateFailureKeepsOldToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	raw, old, err := f.sessions.Issue(ctx, userID)
	require.NoError(t, err)

	f.store.InjectError("tokens.DeleteByTokenHash", errors.New("connection reset"), 1)
	_, _, err = f.sessions.Rotate(ctx, old, userID)
	assert.ErrorContains(t, err, "connection reset")

	_, err = f.sessions.Find(ctx, raw)
	assert.NoError(t, err)
	assert.Equal(t, 1, f.tokens.Count(userID))
}

func TestRefreshTokenStore_Revoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	raw, _, err := f.sessions.Issue(ctx, userID)
	require.NoError(t, err)
	_, _, err = f.sessions.Issue(ctx, userID)
	require.NoError(t, err)
	_, _, err = f.sessions.Issue(ctx, uuid.New())
	require.NoError(t, err)

	require.NoError(t, f.sessions.Revoke(ctx, raw))
	require.NoError(t, f.sessions.Revoke(ctx, raw))
	assert.Equal(t, 1, f.tokens.Count(userID))

	require.NoError(t, f.sessions.RevokeAll(ctx, userID))
	assert.Zero(t, f.tokens.Count(userID))
}
