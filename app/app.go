package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"go-storefront-auth/config"
	"go-storefront-auth/db"
	"go-storefront-auth/handler"
	"go-storefront-auth/logger"
	"go-storefront-auth/model"
	"go-storefront-auth/ratelimit"
	"go-storefront-auth/repository"
	"go-storefront-auth/router"
	"go-storefront-auth/service"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// App holds the wired HTTP surface and background workers.
type App struct {
	Config  *config.Config
	Router  http.Handler
	Auth    *service.AuthService
	Cleanup *service.CleanupService
}

func toPolicy(p config.RateLimitPolicy) ratelimit.Policy {
	return ratelimit.Policy{Capacity: p.Capacity, RefillTokens: p.RefillTokens, RefillPeriod: p.RefillPeriod}
}

// newLimiters builds the login and password reset limiters for the configured
// backend. rdb is only used by the redis backend.
func newLimiters(cfg *config.Config, rdb ratelimit.RedisClient, clock service.Clock) (login, reset ratelimit.Limiter, err error) {
	loginPolicy := toPolicy(cfg.RateLimit.Login)
	resetPolicy := toPolicy(cfg.RateLimit.PasswordReset)

	switch cfg.RateLimit.Backend {
	case "redis":
		if rdb == nil {
			return nil, nil, errors.New("redis rate limit backend selected without a redis client")
		}
		if login, err = ratelimit.NewRedisLimiter(rdb, "ratelimit:login", loginPolicy, cfg.RateLimit.IdleAfter); err != nil {
			return nil, nil, err
		}
		if reset, err = ratelimit.NewRedisLimiter(rdb, "ratelimit:password_reset", resetPolicy, cfg.RateLimit.IdleAfter); err != nil {
			return nil, nil, err
		}
		return login, reset, nil
	default:
		var opts []ratelimit.Option
		if clock != nil {
			opts = append(opts, ratelimit.WithClock(clock))
		}
		if login, err = ratelimit.NewRegistry(loginPolicy, opts...); err != nil {
			return nil, nil, err
		}
		if reset, err = ratelimit.NewRegistry(resetPolicy, opts...); err != nil {
			return nil, nil, err
		}
		return login, reset, nil
	}
}

// New wires repositories, services, handlers and the router on top of an open
// database. rdb may be nil unless the redis rate limit backend is configured.
func New(cfg *config.Config, database *sql.DB, rdb ratelimit.RedisClient, clock service.Clock) (*App, error) {
	// Layers for persistence
	userRepo := repository.NewUserRepository(database)
	tokenRepo := repository.NewTokenRepository(database)
	verificationRepo := repository.NewVerificationTokenRepository(database)
	tx := repository.NewSQLTransactor(database)

	codec, err := service.NewAccessTokenCodec(cfg.JWT.SecretKey, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL, clock)
	if err != nil {
		return nil, fmt.Errorf("access token codec: %w", err)
	}
	hasher, err := service.NewBcryptHasher(cfg.Password.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	loginLimiter, resetLimiter, err := newLimiters(cfg, rdb, clock)
	if err != nil {
		return nil, fmt.Errorf("rate limiters: %w", err)
	}

	// Layers for tokens
	sessions := service.NewRefreshTokenStore(tokenRepo, tx, cfg.RefreshToken.TTL, clock)
	emailTokens := service.NewVerificationTokenService(model.FlavorEmailVerification, cfg.Verification.EmailTokenTTL, verificationRepo, userRepo, tx, clock)
	resetTokens := service.NewVerificationTokenService(model.FlavorPasswordReset, cfg.Verification.PasswordResetTokenTTL, verificationRepo, userRepo, tx, clock)

	authService, err := service.NewAuthService(service.AuthDeps{
		Users:        userRepo,
		Tx:           tx,
		Codec:        codec,
		Sessions:     sessions,
		EmailTokens:  emailTokens,
		ResetTokens:  resetTokens,
		Hasher:       hasher,
		Mailer:       service.LogEmailSender{},
		LoginLimiter: loginLimiter,
		ResetLimiter: resetLimiter,
		ResendAfter:  cfg.Verification.ResendAfter,
		Clock:        clock,
	})
	if err != nil {
		return nil, err
	}

	cleanup := service.NewCleanupService(
		tokenRepo, verificationRepo,
		[]ratelimit.Limiter{loginLimiter, resetLimiter},
		cfg.Cleanup.Interval, cfg.RateLimit.IdleAfter, clock,
	)

	health := handler.NewHealthHandler(map[string]handler.PingFunc{"database": database.PingContext})
	r := router.NewRouter(handler.NewAuthHandler(authService), handler.NewAdminHandler(authService), health, codec)

	return &App{Config: cfg, Router: r, Auth: authService, Cleanup: cleanup}, nil
}

// Serve runs the HTTP server and the cleanup loop until ctx is cancelled, then
// shuts the server down within the configured timeout.
func (a *App) Serve(ctx context.Context) error {
	port := a.Config.Server.Port
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Log.Infof("Server starting on port :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.Cleanup.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func Run() {
	logger.Init()

	if err := config.LoadConfig("."); err != nil {
		logger.Log.Fatalf("Error loading configuration: %v", err)
	}
	cfg := &config.AppConfig
	if err := logger.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		logger.Log.Fatalf("Error configuring logger: %v", err)
	}
	logger.Log.Info("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(cfg)
	if err != nil {
		logger.Log.Fatalf("Error connecting to the database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		logger.Log.Fatalf("Error running migrations: %v", err)
	}

	var rdb *redis.Client
	if cfg.RateLimit.Backend == "redis" {
		if rdb, err = db.ConnectRedis(ctx, cfg); err != nil {
			logger.Log.Fatalf("Error connecting to redis: %v", err)
		}
		defer rdb.Close()
	}

	var limiterClient ratelimit.RedisClient
	if rdb != nil {
		limiterClient = rdb
	}

	a, err := New(cfg, database, limiterClient, nil)
	if err != nil {
		logger.Log.Fatalf("Error wiring application: %v", err)
	}

	if err := a.Serve(ctx); err != nil {
		logger.Log.Errorf("Server stopped with error: %v", err)
		return
	}
	logger.Log.Info("Server exited properly")
}
