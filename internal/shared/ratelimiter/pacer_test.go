package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFixedDelay_Pause_Waits(t *testing.T) {
	t.Parallel()

	fd := NewFixedDelay(30 * time.Millisecond)

	start := time.Now()
	if err := fd.Pause(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected to wait at least 30ms, waited %v", elapsed)
	}
}

func TestFixedDelay_Pause_ZeroInterval(t *testing.T) {
	t.Parallel()

	fd := NewFixedDelay(0)

	start := time.Now()
	if err := fd.Pause(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("expected no wait, waited %v", elapsed)
	}
}

func TestFixedDelay_Pause_Cancelled(t *testing.T) {
	t.Parallel()

	fd := NewFixedDelay(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := fd.Pause(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("pause was not interrupted, waited %v", elapsed)
	}
}

func TestNoop_Pause(t *testing.T) {
	t.Parallel()

	if err := (Noop{}).Pause(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (Noop{}).Pause(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
