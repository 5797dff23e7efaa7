// Package retry provides the shared bounded-retry policy used for all
// external calls: calendar fetches, AI generation, and chat delivery.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
)

// Class identifies an operation class with its own retry ceiling.
type Class string

const (
	ClassExternalFetch Class = "external-fetch"
	ClassAIGeneration  Class = "ai-generation"
	ClassNotification  Class = "notification"
)

// Policy holds per-class attempt ceilings and backoff shape. A ceiling
// is the total number of attempts, including the first one.
type Policy struct {
	ceilings        map[Class]int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// NewPolicy builds a policy with the given per-class attempt ceilings.
func NewPolicy(externalFetch, aiGeneration, notification int) *Policy {
	return &Policy{
		ceilings: map[Class]int{
			ClassExternalFetch: externalFetch,
			ClassAIGeneration:  aiGeneration,
			ClassNotification:  notification,
		},
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
	}
}

// DefaultPolicy returns the standard ceilings: 3 external-fetch,
// 2 ai-generation, 3 notification.
func DefaultPolicy() *Policy { return NewPolicy(3, 2, 3) }

// MaxAttempts returns the attempt ceiling for a class. Unknown classes
// get a single attempt.
func (p *Policy) MaxAttempts(class Class) int {
	if n, ok := p.ceilings[class]; ok && n > 0 {
		return n
	}
	return 1
}

// Do runs op with exponential backoff and jitter until it succeeds, the
// class ceiling is exhausted, a terminal failure occurs, or ctx is
// cancelled. Throttle hints (model.ThrottledError) act as a floor on
// the next delay. The last failure is returned unchanged so callers can
// classify it.
func (p *Policy) Do(ctx context.Context, class Class, op func(ctx context.Context) error) error {
	hb := &hintedBackOff{inner: newExponential(p)}
	b := backoff.WithContext(backoff.WithMaxRetries(hb, uint64(p.MaxAttempts(class)-1)), ctx)

	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if model.IsTerminalProviderFailure(err) {
			return backoff.Permanent(err)
		}
		if d, ok := model.RetryAfterHint(err); ok {
			hb.hint = d
		} else {
			hb.hint = 0
		}
		return err
	}, b)
}

func newExponential(p *Policy) *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0 // attempts are bounded by WithMaxRetries
	eb.Reset()
	return eb
}

// hintedBackOff enforces a provider-supplied retry-after hint as a
// floor on the computed exponential delay.
type hintedBackOff struct {
	inner backoff.BackOff
	hint  time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	d := h.inner.NextBackOff()
	if d == backoff.Stop {
		return backoff.Stop
	}
	if h.hint > d {
		return h.hint
	}
	return d
}

func (h *hintedBackOff) Reset() { h.inner.Reset() }
