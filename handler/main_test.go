package handler

import (
	"context"
	"go-storefront-auth/logger"
	"go-storefront-auth/model"
	"go-storefront-auth/service"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/mock"
)

func TestMain(m *testing.M) {
	logger.Init()
	logger.Log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	args := m.Called(ctx, username, email, password)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, usernameOrEmail, password string) (*service.TokenPair, error) {
	args := m.Called(ctx, usernameOrEmail, password)
	pair, _ := args.Get(0).(*service.TokenPair)
	return pair, args.Error(1)
}

func (m *mockAuthService) Refresh(ctx context.Context, rawRefreshToken string) (*service.TokenPair, error) {
	args := m.Called(ctx, rawRefreshToken)
	pair, _ := args.Get(0).(*service.TokenPair)
	return pair, args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, rawRefreshToken string) error {
	return m.Called(ctx, rawRefreshToken).Error(0)
}

func (m *mockAuthService) VerifyEmail(ctx context.Context, rawToken string) (*model.User, error) {
	args := m.Called(ctx, rawToken)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

func (m *mockAuthService) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	return m.Called(ctx, username, oldPassword, newPassword).Error(0)
}

func (m *mockAuthService) InitiatePasswordReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	return m.Called(ctx, rawToken, newPassword).Error(0)
}

func (m *mockAuthService) ResetRateLimit(ctx context.Context, scope, key string) error {
	return m.Called(ctx, scope, key).Error(0)
}

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) VerifyAndDecode(token string) (*model.AppClaims, error) {
	args := m.Called(token)
	claims, _ := args.Get(0).(*model.AppClaims)
	return claims, args.Error(1)
}
