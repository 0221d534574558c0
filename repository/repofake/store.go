// Package repofake provides in-memory doubles of the repositories that share
// one Store, so a Transactor can roll every table back together.
package repofake

import (
	"context"
	"maps"
	"sync"

	"go-storefront-auth/model"
	"go-storefront-auth/repository"

	"github.com/google/uuid"
)

// Store holds the rows of all fake repositories.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users        map[uuid.UUID]model.User
	refresh      map[string]model.RefreshToken
	verification map[string]model.VerificationToken

	failures map[string][]error
}

func NewStore() *Store {
	return &Store{
		users:        make(map[uuid.UUID]model.User),
		refresh:      make(map[string]model.RefreshToken),
		verification: make(map[string]model.VerificationToken),
		failures:     make(map[string][]error),
	}
}

// InjectError makes the next times calls of op fail with err. op is the
// method name prefixed by the repo, e.g. "tokens.Create".
func (s *Store) InjectError(op string, err error, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < times; i++ {
		s.failures[op] = append(s.failures[op], err)
	}
}

// fail pops an injected error for op. Callers hold s.mu.
func (s *Store) fail(op string) error {
	queue := s.failures[op]
	if len(queue) == 0 {
		return nil
	}
	s.failures[op] = queue[1:]
	return queue[0]
}

func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

func (s *Store) RefreshTokens() *TokenRepo { return &TokenRepo{s: s} }

func (s *Store) VerificationTokens() *VerificationTokenRepo { return &VerificationTokenRepo{s: s} }

func (s *Store) Transactor() *Transactor { return &Transactor{s: s} }

var _ repository.Transactor = (*Transactor)(nil)

// Transactor serializes units of work and restores a snapshot of every table
// when fn fails. Writes made outside a unit of work while one is running are
// lost on rollback.
type Transactor struct {
	s *Store
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.DBTX) error) error {
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	t.s.mu.Lock()
	if err := t.s.fail("tx.Begin"); err != nil {
		t.s.mu.Unlock()
		return err
	}
	users := maps.Clone(t.s.users)
	refresh := maps.Clone(t.s.refresh)
	verification := maps.Clone(t.s.verification)
	t.s.mu.Unlock()

	if err := fn(ctx, nil); err != nil {
		t.s.mu.Lock()
		t.s.users = users
		t.s.refresh = refresh
		t.s.verification = verification
		t.s.mu.Unlock()
		return err
	}
	return nil
}
