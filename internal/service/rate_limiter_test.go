package service

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRateLimiter_Acquire_FirstCallDoesNotBlock(t *testing.T) {
	rl := NewRateLimiter(time.Hour)

	start := time.Now()
	if err := rl.Acquire(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("expected first acquire to return immediately, took %v", elapsed)
	}
}

func TestRateLimiter_Acquire_SpacesSequentialCalls(t *testing.T) {
	delay := 50 * time.Millisecond
	rl := NewRateLimiter(delay)

	if err := rl.Acquire(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for i := 0; i < 2; i++ {
		prev := rl.last
		if err := rl.Acquire(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if gap := rl.last.Sub(prev); gap < delay {
			t.Errorf("expected gap >= %v between grants, got %v", delay, gap)
		}
	}
}

func TestRateLimiter_Acquire_SpacesConcurrentCalls(t *testing.T) {
	delay := 30 * time.Millisecond
	rl := NewRateLimiter(delay)

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rl.Acquire(context.Background()); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		}()
	}
	wg.Wait()

	// five grants need four full gaps
	if elapsed := time.Since(start); elapsed < 4*delay {
		t.Errorf("expected at least %v for 5 concurrent grants, got %v", 4*delay, elapsed)
	}
}

func TestRateLimiter_Acquire_ContextCanceled(t *testing.T) {
	rl := NewRateLimiter(time.Hour)
	if err := rl.Acquire(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := rl.Acquire(ctx); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestRateLimiter_ZeroDelay(t *testing.T) {
	rl := NewRateLimiter(0)

	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := rl.Acquire(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("expected zero delay limiter not to wait, took %v", elapsed)
	}
}
