package story

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/retry"
)

// Chain tries configured providers in order. Each provider gets the
// ai-generation retry budget for transient failures; a terminal failure
// (invalid credential, quota) skips straight to the next provider. When
// every provider fails the last failure is returned and no storyline is
// written.
type Chain struct {
	providers []Provider
	policy    *retry.Policy
	log       zerolog.Logger
}

// NewChain builds a fallback chain over the given providers.
func NewChain(policy *retry.Policy, log zerolog.Logger, providers ...Provider) *Chain {
	return &Chain{providers: providers, policy: policy, log: log}
}

// GenerateStory implements Generator.
func (c *Chain) GenerateStory(ctx context.Context, req Request) (*Result, error) {
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("no story providers configured")
	}

	var lastErr error
	for _, p := range c.providers {
		var out *Result
		err := c.policy.Do(ctx, retry.ClassAIGeneration, func(ctx context.Context) error {
			res, gerr := p.GenerateStory(ctx, req)
			if gerr != nil {
				return gerr
			}
			out = res
			return nil
		})
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, err
		}
		c.log.Warn().Err(err).
			Str("provider", p.Name()).
			Str("event_id", req.EventID).
			Str("theme", req.Theme).
			Bool("terminal", model.IsTerminalProviderFailure(err)).
			Msg("story provider failed, trying next")
	}
	return nil, lastErr
}
