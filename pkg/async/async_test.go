package async

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stewardhq/steward/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestSafeGo_Success(t *testing.T) {
	executed := atomic.Bool{}

	SafeGo(context.Background(), testLogger(), time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})

	time.Sleep(100 * time.Millisecond)

	if !executed.Load() {
		t.Error("SafeGo did not execute function")
	}
}

func TestSafeGo_PanicRecovered(t *testing.T) {
	SafeGo(context.Background(), testLogger(), time.Second, "panicking task", func(ctx context.Context) error {
		panic("boom")
	})

	// Test passes if the panic does not crash the process
	time.Sleep(100 * time.Millisecond)
}

func TestSafeGo_Timeout(t *testing.T) {
	done := make(chan error, 1)

	SafeGo(context.Background(), testLogger(), 50*time.Millisecond, "slow task", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			done <- ctx.Err()
		case <-time.After(5 * time.Second):
			done <- nil
		}
		return nil
	})

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("task did not observe timeout")
	}
}

func TestWorkerPool_ProcessesTasks(t *testing.T) {
	pool := NewWorkerPool(context.Background(), testLogger(), 3, "test pool", time.Second)
	defer pool.Shutdown(time.Second)

	var count atomic.Int64
	for i := 0; i < 10; i++ {
		err := pool.Submit(func(ctx context.Context) error {
			count.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for count.Load() < 10 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := count.Load(); got != 10 {
		t.Errorf("processed %d tasks, want 10", got)
	}
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(context.Background(), testLogger(), 2, "test pool", time.Second)
	if err := pool.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if err := pool.Submit(func(ctx context.Context) error { return nil }); err == nil {
		t.Error("Submit() after shutdown should fail")
	}
}

func TestWorkerPool_PanicIsolation(t *testing.T) {
	pool := NewWorkerPool(context.Background(), testLogger(), 1, "test pool", time.Second)
	defer pool.Shutdown(time.Second)

	pool.Submit(func(ctx context.Context) error {
		panic("task panic")
	})

	var ran atomic.Bool
	pool.Submit(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})

	deadline := time.Now().Add(2 * time.Second)
	for !ran.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !ran.Load() {
		t.Error("worker did not survive a panicking task")
	}
}
