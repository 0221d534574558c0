package service

import (
	"context"
	"go-storefront-auth/logger"
	"go-storefront-auth/model"
	"go-storefront-auth/ratelimit"
	"go-storefront-auth/repository/repofake"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestMain(m *testing.M) {
	logger.Init()
	logger.Log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentEmail struct {
	UserID uuid.UUID
	Token  string
	Flavor model.TokenFlavor
}

// recordingMailer keeps every dispatched token so tests can use it.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, user *model.User, token string, flavor model.TokenFlavor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentEmail{UserID: user.ID, Token: token, Flavor: flavor})
	return nil
}

func (m *recordingMailer) Sent() []sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentEmail(nil), m.sent...)
}

func (m *recordingMailer) Last(t *testing.T) sentEmail {
	t.Helper()
	sent := m.Sent()
	require.NotEmpty(t, sent, "no email was sent")
	return sent[len(sent)-1]
}

type mockLimiter struct{ mock.Mock }

func (m *mockLimiter) TryConsume(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockLimiter) Reset(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockLimiter) EvictIdle(ctx context.Context, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}

var (
	generousPolicy = ratelimit.Policy{Capacity: 100, RefillTokens: 100, RefillPeriod: time.Minute}
	loginPolicy    = ratelimit.Policy{Capacity: 1, RefillTokens: 1, RefillPeriod: time.Minute}
	resetPolicy    = ratelimit.Policy{Capacity: 3, RefillTokens: 3, RefillPeriod: 24 * time.Hour}
)

const (
	accessTTL  = 15 * time.Minute
	refreshTTL = 7 * 24 * time.Hour
	emailTTL   = 24 * time.Hour
	resetTTL   = 30 * time.Minute
)

type fixture struct {
	store        *repofake.Store
	users        *repofake.UserRepo
	tokens       *repofake.TokenRepo
	verification *repofake.VerificationTokenRepo
	clock        *testClock
	mailer       *recordingMailer
	hasher       *BcryptHasher
	codec        *AccessTokenCodec
	sessions     *RefreshTokenStore
	emailTokens  *VerificationTokenService
	resetTokens  *VerificationTokenService
	loginLimiter ratelimit.Limiter
	resetLimiter ratelimit.Limiter
	svc          *AuthService
}

type fixtureOption func(f *fixture)

func withLoginLimiter(l ratelimit.Limiter) fixtureOption {
	return func(f *fixture) { f.loginLimiter = l }
}

func withLoginPolicy(t *testing.T, p ratelimit.Policy) fixtureOption {
	return func(f *fixture) {
		reg, err := ratelimit.NewRegistry(p, ratelimit.WithClock(f.clock.Now))
		require.NoError(t, err)
		f.loginLimiter = reg
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	store := repofake.NewStore()
	f := &fixture{
		store:        store,
		users:        store.Users(),
		tokens:       store.RefreshTokens(),
		verification: store.VerificationTokens(),
		clock:        newTestClock(),
		mailer:       &recordingMailer{},
	}
	clock := Clock(f.clock.Now)

	var err error
	f.hasher, err = NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	f.codec, err = NewAccessTokenCodec(testSecret, "storefront-auth", accessTTL, clock)
	require.NoError(t, err)

	tx := store.Transactor()
	f.sessions = NewRefreshTokenStore(f.tokens, tx, refreshTTL, clock)
	f.emailTokens = NewVerificationTokenService(model.FlavorEmailVerification, emailTTL, f.verification, f.users, tx, clock)
	f.resetTokens = NewVerificationTokenService(model.FlavorPasswordReset, resetTTL, f.verification, f.users, tx, clock)

	generous, err := ratelimit.NewRegistry(generousPolicy, ratelimit.WithClock(f.clock.Now))
	require.NoError(t, err)
	f.loginLimiter = generous
	f.resetLimiter, err = ratelimit.NewRegistry(resetPolicy, ratelimit.WithClock(f.clock.Now))
	require.NoError(t, err)

	for _, opt := range opts {
		opt(f)
	}

	f.svc, err = NewAuthService(AuthDeps{
		Users:        f.users,
		Tx:           tx,
		Codec:        f.codec,
		Sessions:     f.sessions,
		EmailTokens:  f.emailTokens,
		ResetTokens:  f.resetTokens,
		Hasher:       f.hasher,
		Mailer:       f.mailer,
		LoginLimiter: f.loginLimiter,
		ResetLimiter: f.resetLimiter,
		ResendAfter:  time.Hour,
		Clock:        clock,
	})
	require.NoError(t, err)
	return f
}

// seedUser stores a user directly, bypassing registration.
func (f *fixture) seedUser(t *testing.T, username, password string, verified bool) *model.User {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	user := &model.User{
		ID:            uuid.New(),
		Username:      username,
		Email:         username + "@example.com",
		PasswordHash:  hash,
		EmailVerified: verified,
		Authorities:   []string{model.RoleUser},
		CreatedAt:     f.clock.Now(),
	}
	require.NoError(t, f.users.CreateUser(context.Background(), nil, user))
	return user
}
