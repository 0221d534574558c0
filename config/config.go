package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RateLimitPolicy describes one token bucket: Capacity permits, refilled at
// RefillTokens per RefillPeriod.
type RateLimitPolicy struct {
	Capacity     int           `mapstructure:"capacity"`
	RefillTokens int           `mapstructure:"refill_tokens"`
	RefillPeriod time.Duration `mapstructure:"refill_period"`
}

type Config struct {
	Database struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`
	Redis struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Server struct {
		Port            string        `mapstructure:"port"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	JWT struct {
		SecretKey      string        `mapstructure:"secret_key"`
		Issuer         string        `mapstructure:"issuer"`
		AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	} `mapstructure:"jwt"`
	RefreshToken struct {
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"refresh_token"`
	Verification struct {
		EmailTokenTTL         time.Duration `mapstructure:"email_token_ttl"`
		PasswordResetTokenTTL time.Duration `mapstructure:"password_reset_token_ttl"`
		ResendAfter           time.Duration `mapstructure:"resend_after"`
	} `mapstructure:"verification"`
	Password struct {
		BcryptCost int `mapstructure:"bcrypt_cost"`
	} `mapstructure:"password"`
	RateLimit struct {
		Backend       string          `mapstructure:"backend"`
		IdleAfter     time.Duration   `mapstructure:"idle_after"`
		Login         RateLimitPolicy `mapstructure:"login"`
		PasswordReset RateLimitPolicy `mapstructure:"password_reset"`
	} `mapstructure:"rate_limit"`
	Cleanup struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"cleanup"`
}

var AppConfig Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "storefront")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("jwt.secret_key", "")
	v.SetDefault("jwt.issuer", "storefront-auth")
	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)

	v.SetDefault("refresh_token.ttl", 7*24*time.Hour)

	v.SetDefault("verification.email_token_ttl", 24*time.Hour)
	v.SetDefault("verification.password_reset_token_ttl", 30*time.Minute)
	v.SetDefault("verification.resend_after", time.Hour)

	v.SetDefault("password.bcrypt_cost", 12)

	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.idle_after", 24*time.Hour)
	v.SetDefault("rate_limit.login.capacity", 1)
	v.SetDefault("rate_limit.login.refill_tokens", 1)
	v.SetDefault("rate_limit.login.refill_period", time.Minute)
	v.SetDefault("rate_limit.password_reset.capacity", 3)
	v.SetDefault("rate_limit.password_reset.refill_tokens", 3)
	v.SetDefault("rate_limit.password_reset.refill_period", 24*time.Hour)

	v.SetDefault("cleanup.interval", time.Hour)
}

// LoadConfig reads config.yml from path, applies environment overrides
// (e.g. JWT_SECRET_KEY for jwt.secret_key) and stores the result in AppConfig.
// A missing config file is not an error; defaults and env are used instead.
func LoadConfig(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	AppConfig = *cfg
	return nil
}

// Load is LoadConfig without touching AppConfig.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if len(c.JWT.SecretKey) < 32 {
		return errors.New("jwt.secret_key must be at least 32 bytes")
	}
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown rate_limit.backend %q", c.RateLimit.Backend)
	}
	if c.JWT.AccessTokenTTL <= 0 || c.RefreshToken.TTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Cleanup.Interval <= 0 {
		return errors.New("cleanup.interval must be positive")
	}
	return nil
}
