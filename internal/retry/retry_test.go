package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
)

func fastPolicy() *Policy {
	p := DefaultPolicy()
	p.InitialInterval = time.Millisecond
	p.MaxInterval = 2 * time.Millisecond
	return p
}

func TestDo_SucceedsWithinCeiling(t *testing.T) {
	p := fastPolicy()
	calls := 0
	err := p.Do(context.Background(), ClassExternalFetch, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return model.ErrNetwork
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDo_ExhaustsCeiling(t *testing.T) {
	p := fastPolicy()
	calls := 0
	err := p.Do(context.Background(), ClassAIGeneration, func(ctx context.Context) error {
		calls++
		return model.ErrUnparsableResponse
	})
	if !errors.Is(err, model.ErrUnparsableResponse) {
		t.Fatalf("expected last failure back, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("ai-generation ceiling is 2 attempts, got %d", calls)
	}
}

func TestDo_TerminalFailureShortCircuits(t *testing.T) {
	p := fastPolicy()
	for _, terminal := range []error{model.ErrAuthExpired, model.ErrInvalidCredential, model.ErrQuotaExceeded} {
		calls := 0
		err := p.Do(context.Background(), ClassExternalFetch, func(ctx context.Context) error {
			calls++
			return terminal
		})
		if !errors.Is(err, terminal) {
			t.Fatalf("expected %v, got %v", terminal, err)
		}
		if calls != 1 {
			t.Fatalf("terminal failure must not be retried, got %d attempts", calls)
		}
	}
}

func TestDo_HonorsRetryAfterFloor(t *testing.T) {
	p := fastPolicy()
	calls := 0
	start := time.Now()
	err := p.Do(context.Background(), ClassExternalFetch, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &model.ThrottledError{RetryAfter: 50 * time.Millisecond}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("retry-after hint not honored as floor: waited only %s", elapsed)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	p := DefaultPolicy()
	p.InitialInterval = time.Hour // force a long wait so cancel wins
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, ClassNotification, func(ctx context.Context) error {
			return model.ErrNetwork
		})
	}()
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}
