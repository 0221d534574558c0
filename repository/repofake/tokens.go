package repofake

import (
	"context"
	"time"

	"go-storefront-auth/model"
	"go-storefront-auth/repository"

	"github.com/google/uuid"
)

var _ repository.ITokenRepository = (*TokenRepo)(nil)

type TokenRepo struct {
	s *Store
}

func (r *TokenRepo) Create(_ context.Context, _ repository.DBTX, token *model.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail("tokens.Create"); err != nil {
		return err
	}
	if _, ok := r.s.refresh[token.TokenHash]; ok {
		return repository.ErrDuplicate
	}
	r.s.refresh[token.TokenHash] = *token
	return nil
}

func (r *TokenRepo) GetByTokenHash(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail("tokens.GetByTokenHash"); err != nil {
		return nil, err
	}
	t, ok := r.s.refresh[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *TokenRepo) DeleteByTokenHash(_ context.Context, _ repository.DBTX, tokenHash string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail("tokens.DeleteByTokenHash"); err != nil {
		return 0, err
	}
	if _, ok := r.s.refresh[tokenHash]; !ok {
		return 0, nil
	}
	delete(r.s.refresh, tokenHash)
	return 1, nil
}

func (r *TokenRepo) DeleteByUserID(_ context.Context, _ repository.DBTX, userID uuid.UUID) (int64, error) {
	return r.deleteWhere("tokens.DeleteByUserID", func(t model.RefreshToken) bool { return t.UserID == userID })
}

func (r *TokenRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	return r.deleteWhere("tokens.DeleteExpired", func(t model.RefreshToken) bool { return !t.ExpiresAt.After(before) })
}

func (r *TokenRepo) deleteWhere(op string, match func(t model.RefreshToken) bool) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail(op); err != nil {
		return 0, err
	}
	var n int64
	for hash, t := range r.s.refresh {
		if match(t) {
			delete(r.s.refresh, hash)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored refresh tokens of a user.
func (r *TokenRepo) Count(userID uuid.UUID) int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, t := range r.s.refresh {
		if t.UserID == userID {
			n++
		}
	}
	return n
}
