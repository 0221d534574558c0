package service

import (
	"context"
	"go-storefront-auth/logger"
	"go-storefront-auth/ratelimit"
	"go-storefront-auth/repository"
	"time"

	"github.com/sirupsen/logrus"
)

// CleanupService periodically removes expired tokens and idle rate limit
// buckets.
type CleanupService struct {
	refreshTokens      repository.ITokenRepository
	verificationTokens repository.IVerificationTokenRepository
	limiters           []ratelimit.Limiter
	interval           time.Duration
	idleAfter          time.Duration
	clock              Clock
}

func NewCleanupService(
	refreshTokens repository.ITokenRepository,
	verificationTokens repository.IVerificationTokenRepository,
	limiters []ratelimit.Limiter,
	interval, idleAfter time.Duration,
	clock Clock,
) *CleanupService {
	return &CleanupService{
		refreshTokens:      refreshTokens,
		verificationTokens: verificationTokens,
		limiters:           limiters,
		interval:           interval,
		idleAfter:          idleAfter,
		clock:              clock,
	}
}

type SweepResult struct {
	RefreshTokens      int64
	VerificationTokens int64
	Buckets            int
}

// Run sweeps every interval until ctx is done.
func (s *CleanupService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Log.WithField("interval", s.interval.String()).Info("Cleanup worker started")
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("Cleanup worker stopped")
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs every cleanup step once. A failing step is logged and the
// remaining steps still run.
func (s *CleanupService) SweepOnce(ctx context.Context) SweepResult {
	var res SweepResult
	now := s.clock.now()

	n, err := s.refreshTokens.DeleteExpired(ctx, now)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to sweep expired refresh tokens")
	}
	res.RefreshTokens = n

	n, err = s.verificationTokens.DeleteExpired(ctx, now)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to sweep expired verification tokens")
	}
	res.VerificationTokens = n

	for _, l := range s.limiters {
		evicted, err := l.EvictIdle(ctx, s.idleAfter)
		if err != nil {
			logger.Log.WithError(err).Error("Failed to evict idle rate limit buckets")
			continue
		}
		res.Buckets += evicted
	}

	logger.Log.WithFields(logrus.Fields{
		"refresh_tokens":      res.RefreshTokens,
		"verification_tokens": res.VerificationTokens,
		"buckets":             res.Buckets,
	}).Info("Cleanup sweep finished")
	return res
}
