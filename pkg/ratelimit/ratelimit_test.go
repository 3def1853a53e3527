package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLockEnforcesWait(t *testing.T) {
	l := New(50 * time.Millisecond)
	ctx := context.Background()

	unlock := l.Lock(ctx)
	unlock()
	start := time.Now()
	unlock = l.Lock(ctx)
	unlock()
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("second acquisition after %v; want at least 40ms", elapsed)
	}
}

func TestLockCancelledContext(t *testing.T) {
	l := New(time.Hour)
	unlock := l.Lock(context.Background())
	unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		unlock := l.Lock(ctx)
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Lock() did not return on cancelled context")
	}
}
