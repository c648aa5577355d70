package utils

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketLimiter_UnlimitedNeverBlocks(t *testing.T) {
	limiter := NewTokenBucketLimiter(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := limiter.Wait(ctx, 1024*1024); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("unlimited limiter blocked for %v", elapsed)
	}
}

func TestTokenBucketLimiter_FullBucketPassesImmediately(t *testing.T) {
	limiter := NewTokenBucketLimiter(1000)
	ctx := context.Background()

	start := time.Now()
	if err := limiter.Wait(ctx, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("full bucket still blocked for %v", elapsed)
	}
}

func TestTokenBucketLimiter_DeficitWaits(t *testing.T) {
	limiter := NewTokenBucketLimiter(1000)
	ctx := context.Background()

	// Drain the bucket, then ask for half a second's worth
	if err := limiter.Wait(ctx, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 300*time.Millisecond {
		t.Errorf("expected roughly 500ms wait for deficit, got %v", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Errorf("deficit wait took too long: %v", elapsed)
	}
}

func TestTokenBucketLimiter_CancelDuringWait(t *testing.T) {
	limiter := NewTokenBucketLimiter(10)
	ctx, cancel := context.WithCancel(context.Background())

	if err := limiter.Wait(ctx, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		// 100 bytes at 10 B/s would block for ~10s without the cancel
		done <- limiter.Wait(ctx, 100)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Errorf("expected context error, got nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancel")
	}
}

func TestTokenBucketLimiter_SetRate(t *testing.T) {
	limiter := NewTokenBucketLimiter(10)
	ctx := context.Background()

	limiter.SetRate(1024 * 1024)

	start := time.Now()
	if err := limiter.Wait(ctx, 512*1024); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("raised rate still blocked for %v", elapsed)
	}
}
