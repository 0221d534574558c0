package repofake

import (
	"context"
	"strings"

	"go-storefront-auth/model"
	"go-storefront-auth/repository"

	"github.com/google/uuid"
)

var _ repository.IUserRepository = (*UserRepo)(nil)

type UserRepo struct {
	s *Store
}

func cloneUser(u model.User) *model.User {
	u.Authorities = append([]string(nil), u.Authorities...)
	return &u
}

func (r *UserRepo) CreateUser(_ context.Context, _ repository.DBTX, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail("users.CreateUser"); err != nil {
		return err
	}
	for _, u := range r.s.users {
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.s.users[user.ID] = *cloneUser(*user)
	return nil
}

func (r *UserRepo) find(op string, match func(u model.User) bool) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail(op); err != nil {
		return nil, err
	}
	for _, u := range r.s.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return r.find("users.FindByID", func(u model.User) bool { return u.ID == id })
}

func (r *UserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find("users.FindByEmail", func(u model.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *UserRepo) FindByUsernameOrEmail(ctx context.Context, login string) (*model.User, error) {
	u, err := r.find("users.FindByUsernameOrEmail", func(u model.User) bool { return strings.EqualFold(u.Username, login) })
	if err == repository.ErrNotFound {
		return r.find("users.FindByUsernameOrEmail", func(u model.User) bool { return strings.EqualFold(u.Email, login) })
	}
	return u, err
}

func (r *UserRepo) GetUserForUpdate(_ context.Context, _ repository.DBTX, id uuid.UUID) (*model.User, error) {
	return r.find("users.GetUserForUpdate", func(u model.User) bool { return u.ID == id })
}

func (r *UserRepo) update(op string, id uuid.UUID, mutate func(u *model.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.fail(op); err != nil {
		return err
	}
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	mutate(&u)
	r.s.users[id] = u
	return nil
}

func (r *UserRepo) MarkEmailVerified(_ context.Context, _ repository.DBTX, id uuid.UUID) error {
	return r.update("users.MarkEmailVerified", id, func(u *model.User) { u.EmailVerified = true })
}

func (r *UserRepo) UpdatePassword(_ context.Context, _ repository.DBTX, id uuid.UUID, passwordHash string) error {
	return r.update("users.UpdatePassword", id, func(u *model.User) { u.PasswordHash = passwordHash })
}
