package repofake

import (
	"context"
	"time"

	"go-storefront-auth/model"
	"go-storefront-auth/repository"

	"github.com/google/uuid"
)

var _ repository.IVerificationTokenRepository = (*VerificationTokenRepo)(nil)

type VerificationTokenRepo struct {
	s *Store
}

func (r *VerificationTokenRepo) Create(_ context.Context, _ repository.DBTX, token *model.VerificationToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail("verification.Create"); err != nil {
		return err
	}
	if _, ok := r.s.verification[token.TokenHash]; ok {
		return repository.ErrDuplicate
	}
	r.s.verification[token.TokenHash] = *token
	return nil
}

func (r *VerificationTokenRepo) GetByTokenHashForUpdate(_ context.Context, _ repository.DBTX, tokenHash string, flavor model.TokenFlavor) (*model.VerificationToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail("verification.GetByTokenHashForUpdate"); err != nil {
		return nil, err
	}
	t, ok := r.s.verification[tokenHash]
	if !ok || t.Flavor != flavor {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *VerificationTokenRepo) GetLatestByUser(_ context.Context, _ repository.DBTX, userID uuid.UUID, flavor model.TokenFlavor) (*model.VerificationToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail("verification.GetLatestByUser"); err != nil {
		return nil, err
	}
	var latest *model.VerificationToken
	for _, t := range r.s.verification {
		if t.UserID != userID || t.Flavor != flavor {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
			latest = &t
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (r *VerificationTokenRepo) DeleteByID(_ context.Context, _ repository.DBTX, id uuid.UUID) error {
	_, err := r.deleteWhere("verification.DeleteByID", func(t model.VerificationToken) bool { return t.ID == id })
	return err
}

func (r *VerificationTokenRepo) DeleteByUserAndFlavor(_ context.Context, _ repository.DBTX, userID uuid.UUID, flavor model.TokenFlavor) (int64, error) {
	return r.deleteWhere("verification.DeleteByUserAndFlavor", func(t model.VerificationToken) bool {
		return t.UserID == userID && t.Flavor == flavor
	})
}

func (r *VerificationTokenRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	return r.deleteWhere("verification.DeleteExpired", func(t model.VerificationToken) bool { return !t.ExpiresAt.After(before) })
}

func (r *VerificationTokenRepo) deleteWhere(op string, match func(t model.VerificationToken) bool) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail(op); err != nil {
		return 0, err
	}
	var n int64
	for hash, t := range r.s.verification {
		if match(t) {
			delete(r.s.verification, hash)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored tokens of a flavor for a user.
func (r *VerificationTokenRepo) Count(userID uuid.UUID, flavor model.TokenFlavor) int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, t := range r.s.verification {
		if t.UserID == userID && t.Flavor == flavor {
			n++
		}
	}
	return n
}
