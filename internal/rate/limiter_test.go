package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, max int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, Config{
		MaxLoginAttempts:      max,
		LoginCooldownDuration: time.Minute,
	}), mr
}

func TestLimiter_WithinBudget(t *testing.T) {
	l, _ := newTestLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "alice", "203.0.113.1"); err != nil {
			t.Fatalf("check %d: %v", i+1, err)
		}
		if err := l.IncrementLogin(ctx, "alice", "203.0.113.1"); err != nil {
			t.Fatalf("increment %d: %v", i+1, err)
		}
	}

	if err := l.IncrementLogin(ctx, "alice", "203.0.113.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "alice", "203.0.113.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on check, got %v", err)
	}
}

func TestLimiter_PerIPBudget(t *testing.T) {
	l, _ := newTestLimiter(t, 2)
	ctx := context.Background()

	// Different identifiers from the same IP share the IP budget.
	for _, id := range []string{"a", "b", "c"} {
		_ = l.IncrementLogin(ctx, id, "203.0.113.9")
	}
	if err := l.CheckLogin(ctx, "fresh-user", "203.0.113.9"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP budget exhaustion, got %v", err)
	}
	// A different IP is unaffected.
	if err := l.CheckLogin(ctx, "fresh-user", "198.51.100.1"); err != nil {
		t.Fatalf("unrelated IP blocked: %v", err)
	}
}

func TestLimiter_ResetClearsCounters(t *testing.T) {
	l, _ := newTestLimiter(t, 2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = l.IncrementLogin(ctx, "alice", "203.0.113.1")
	}
	if err := l.ResetLogin(ctx, "alice", "203.0.113.1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.CheckLogin(ctx, "alice", "203.0.113.1"); err != nil {
		t.Fatalf("check after reset: %v", err)
	}
}

func TestLimiter_WindowExpiry(t *testing.T) {
	l, mr := newTestLimiter(t, 1)
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "alice", "")
	_ = l.IncrementLogin(ctx, "alice", "")
	if err := l.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limit, got %v", err)
	}

	mr.FastForward(time.Minute + time.Second)

	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("check after window: %v", err)
	}
}

func TestLimiter_BackendDown(t *testing.T) {
	l, mr := newTestLimiter(t, 1)
	ctx := context.Background()

	mr.Close()

	if err := l.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
