package toolserver

import (
	"context"
	"testing"
	"time"
)

func TestInvokeLimiter_UnlimitedPassthrough(t *testing.T) {
	l := newInvokeLimiter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Rate zero means no gate at all, even under a dead context.
	if err := l.wait(ctx, Config{Name: "free", Command: "x"}); err != nil {
		t.Fatalf("wait = %v, want nil", err)
	}
}

func TestInvokeLimiter_PerServerIsolation(t *testing.T) {
	l := newInvokeLimiter()
	slow := Config{Name: "slow", Command: "x", Rate: 0.001, Burst: 1}
	fast := Config{Name: "fast", Command: "x", Rate: 1000, Burst: 10}

	// Exhaust slow's single burst token.
	if !l.getLimiter(slow).Allow() {
		t.Fatal("first slow token should be available")
	}
	if l.getLimiter(slow).Allow() {
		t.Fatal("slow burst exhausted, second token should be denied")
	}

	// A different server is not affected.
	if !l.getLimiter(fast).Allow() {
		t.Fatal("fast server throttled by slow server's limiter")
	}
}

func TestInvokeLimiter_SameServerSameLimiter(t *testing.T) {
	l := newInvokeLimiter()
	cfg := Config{Name: "a", Command: "x", Rate: 5, Burst: 2}
	if l.getLimiter(cfg) != l.getLimiter(cfg) {
		t.Fatal("repeated lookups must return the same limiter")
	}
}

func TestInvokeLimiter_DropForgetsState(t *testing.T) {
	l := newInvokeLimiter()
	cfg := Config{Name: "a", Command: "x", Rate: 0.001, Burst: 1}

	l.getLimiter(cfg).Allow() // consume the only token
	l.drop("a")

	// A fresh limiter has a fresh burst.
	if !l.getLimiter(cfg).Allow() {
		t.Fatal("drop did not reset the limiter")
	}
}

func TestInvokeLimiter_WaitHonorsContext(t *testing.T) {
	l := newInvokeLimiter()
	cfg := Config{Name: "a", Command: "x", Rate: 0.001, Burst: 1}

	if err := l.wait(context.Background(), cfg); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.wait(ctx, cfg); err == nil {
		t.Fatal("wait beyond the rate budget must fail with the context")
	}
}

func TestInvokeLimiter_DefaultBurst(t *testing.T) {
	l := newInvokeLimiter()
	cfg := Config{Name: "a", Command: "x", Rate: 1} // burst unset
	if got := l.getLimiter(cfg).Burst(); got != 1 {
		t.Errorf("burst = %d, want 1", got)
	}
}
