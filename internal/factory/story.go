package factory

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/config"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/retry"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/story"
)

// NewStoryProviders instantiates the configured AI backends in fallback
// order.
func NewStoryProviders(cfg *config.Config) ([]story.Provider, error) {
	var out []story.Provider
	for _, name := range cfg.StoryProviderChain() {
		switch name {
		case "gemini":
			out = append(out, story.NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel))
		case "openai":
			out = append(out, story.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel))
		default:
			return nil, fmt.Errorf("unknown story provider: %s", name)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no story providers configured")
	}
	return out, nil
}

// NewStoryChain wires the providers into the fallback chain.
func NewStoryChain(cfg *config.Config, policy *retry.Policy, log zerolog.Logger) (*story.Chain, []story.Provider, error) {
	providers, err := NewStoryProviders(cfg)
	if err != nil {
		return nil, nil, err
	}
	return story.NewChain(policy, log, providers...), providers, nil
}
