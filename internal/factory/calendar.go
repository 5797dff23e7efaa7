package factory

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/calendar"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/config"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/retry"
)

// NewCalendarProvider creates the external calendar client based on config.
func NewCalendarProvider(cfg *config.Config, policy *retry.Policy, log zerolog.Logger) (calendar.Provider, error) {
	switch cfg.CalendarProvider {
	case "", "google":
		return calendar.NewGoogleProvider(cfg.CalendarBaseURL, policy), nil
	default:
		return nil, fmt.Errorf("unknown CALENDAR_PROVIDER: %s", cfg.CalendarProvider)
	}
}

// NewCredentialSource resolves integration credential references from
// the configured credentials file.
func NewCredentialSource(cfg *config.Config) calendar.CredentialSource {
	return calendar.NewFileCredentialSource(cfg.CredentialsFile)
}
