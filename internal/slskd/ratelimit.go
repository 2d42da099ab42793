package slskd

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LimiterConfig defines the sliding-window search rate limit.
type LimiterConfig struct {
	// MaxSearches is the number of search submissions admitted per window.
	MaxSearches int
	// Window is the sliding window duration.
	Window time.Duration
}

// DefaultLimiterConfig returns the gateway-safe default of 35 searches
// per 220 seconds.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		MaxSearches: 35,
		Window:      220 * time.Second,
	}
}

// Limiter admits search submissions through a mutex-guarded sliding
// window of timestamps. Admission is serialized; the network call itself
// is not, so one slow request cannot starve window accounting for
// others.
type Limiter struct {
	config LimiterConfig
	logger zerolog.Logger

	mu         sync.Mutex
	timestamps []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter creates a search rate limiter.
func NewLimiter(config LimiterConfig, logger zerolog.Logger) *Limiter {
	return &Limiter{
		config: config,
		logger: logger.With().Str("component", "search-limiter").Logger(),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait blocks until the window admits another search, then records it.
// Returns early only on context cancellation.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		cutoff := now.Add(-l.config.Window)

		kept := l.timestamps[:0]
		for _, ts := range l.timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		l.timestamps = kept

		if len(l.timestamps) < l.config.MaxSearches {
			l.timestamps = append(l.timestamps, now)
			l.mu.Unlock()
			return nil
		}

		// Time until the oldest recorded search exits the window.
		wait := l.timestamps[0].Sub(cutoff)
		l.mu.Unlock()

		l.logger.Debug().
			Dur("wait", wait).
			Int("limit", l.config.MaxSearches).
			Msg("search window full, waiting")

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// InWindow returns the number of searches currently counted against the
// window.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.config.Window)
	count := 0
	for _, ts := range l.timestamps {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}
