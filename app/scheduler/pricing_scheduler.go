// Package scheduler runs the periodic maintenance jobs of the pricing service
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SessionSweeper expires bargain sessions whose TTL has elapsed
type SessionSweeper interface {
	SweepExpiredSessions(ctx context.Context) (int, error)
}

// PromoExpirer flips overdue promo codes to expired
type PromoExpirer interface {
	ExpireOverduePromoCodes(ctx context.Context) (int64, error)
}

// PricingScheduler periodically sweeps bargain sessions and expires overdue promo codes
type PricingScheduler struct {
	sessions    SessionSweeper
	promos      PromoExpirer
	sweepEvery  time.Duration
	expiryEvery time.Duration
	runTimeout  time.Duration
	logger      zerolog.Logger
}

func NewPricingScheduler(
	sessions SessionSweeper,
	promos PromoExpirer,
	sweepEvery time.Duration,
	expiryEvery time.Duration,
	runTimeout time.Duration,
	logger zerolog.Logger,
) *PricingScheduler {
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	if expiryEvery <= 0 {
		expiryEvery = 5 * time.Minute
	}
	if runTimeout <= 0 {
		runTimeout = 30 * time.Second
	}
	return &PricingScheduler{
		sessions:    sessions,
		promos:      promos,
		sweepEvery:  sweepEvery,
		expiryEvery: expiryEvery,
		runTimeout:  runTimeout,
		logger:      logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start launches both loops in background goroutines and returns a stop function.
// Stop cancels the loops and waits for a running job to return.
func (s *PricingScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		s.loop(ctx, s.sweepEvery, s.SweepSessionsOnce)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, s.expiryEvery, s.ExpirePromosOnce)
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

func (s *PricingScheduler) loop(ctx context.Context, every time.Duration, run func(context.Context)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

// SweepSessionsOnce runs a single bargain session sweep
func (s *PricingScheduler) SweepSessionsOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.runTimeout)
	defer cancel()

	n, err := s.sessions.SweepExpiredSessions(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("bargain session sweep failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int("expired", n).Msg("bargain sessions expired")
	}
}

// ExpirePromosOnce runs a single promo expiry pass
func (s *PricingScheduler) ExpirePromosOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.runTimeout)
	defer cancel()

	n, err := s.promos.ExpireOverduePromoCodes(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("promo expiry failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int64("expired", n).Msg("promo codes expired")
	}
}
