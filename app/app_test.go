package app

import (
	"context"
	"go-storefront-auth/config"
	"go-storefront-auth/logger"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	logger.Init()
	logger.Log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("JWT_SECRET_KEY", "app-test-secret-0123456789abcdefgh")
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Server.Port = "0"
	cfg.Server.ShutdownTimeout = time.Second
	return cfg
}

func TestNew_MemoryBackend(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a, err := New(testConfig(t), db, nil, nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestNew_RedisBackend(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg := testConfig(t)
	cfg.RateLimit.Backend = "redis"

	_, err = New(cfg, db, nil, nil)
	assert.Error(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()
	a, err := New(cfg, db, rdb, nil)
	require.NoError(t, err)
	assert.NotNil(t, a.Auth)
}

func TestNew_InvalidSettings(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tests := []struct {
		name   string
		modify func(cfg *config.Config)
	}{
		{"short secret", func(cfg *config.Config) { cfg.JWT.SecretKey = "short" }},
		{"bcrypt cost", func(cfg *config.Config) { cfg.Password.BcryptCost = 99 }},
		{"login policy", func(cfg *config.Config) { cfg.RateLimit.Login.Capacity = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.modify(cfg)
			_, err := New(cfg, db, nil, nil)
			assert.Error(t, err)
		})
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a, err := New(testConfig(t), db, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}
