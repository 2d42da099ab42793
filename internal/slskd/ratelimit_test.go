package slskd

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{current: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(LimiterConfig{MaxSearches: limit, Window: window}, zerolog.Nop())
	l.now = clock.Now
	l.sleep = clock.Sleep
	return l, clock
}

type fakeClock struct {
	current time.Time
	slept   []time.Duration
}

func (c *fakeClock) Now() time.Time {
	return c.current
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.current = c.current.Add(d)
	return nil
}

func TestLimiterAdmitsUpToLimitWithoutBlocking(t *testing.T) {
	l, clock := newTestLimiter(3, 220*time.Second)

	for i := 0; i < 3; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait %d returned error: %v", i, err)
		}
	}

	if len(clock.slept) != 0 {
		t.Errorf("Expected no sleeps below the limit, got %d", len(clock.slept))
	}
	if got := l.InWindow(); got != 3 {
		t.Errorf("Expected 3 searches in window, got %d", got)
	}
}

func TestLimiterBlocksUntilOldestExits(t *testing.T) {
	l, clock := newTestLimiter(2, 100*time.Second)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	clock.current = clock.current.Add(30 * time.Second)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Window is full. The third call must wait until the first timestamp
	// leaves the 100s window, which is 70s from now.
	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(clock.slept) == 0 {
		t.Fatal("Expected the limiter to sleep when window is full")
	}
	if clock.slept[0] != 70*time.Second {
		t.Errorf("Expected first sleep of 70s, got %v", clock.slept[0])
	}
	if got := l.InWindow(); got != 2 {
		t.Errorf("Expected 2 searches in window after admission, got %d", got)
	}
}

func TestLimiterRespectsCancellation(t *testing.T) {
	l, _ := newTestLimiter(1, time.Hour)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.sleep = sleepContext

	if err := l.Wait(ctx); err == nil {
		t.Error("Expected context error from cancelled Wait, got nil")
	}
}

func TestLimiterExpiresOldTimestamps(t *testing.T) {
	l, clock := newTestLimiter(2, 60*time.Second)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	clock.current = clock.current.Add(2 * time.Minute)

	if got := l.InWindow(); got != 0 {
		t.Errorf("Expected expired window to report 0, got %d", got)
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(clock.slept) != 0 {
		t.Errorf("Expected no sleep after window expiry, got %d sleeps", len(clock.slept))
	}
}
