package factory

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/config"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/notify"
)

// NewSink creates the chat delivery sink. An empty webhook URL yields a
// log-only sink so development setups work without a Slack workspace.
func NewSink(cfg *config.Config, log zerolog.Logger) notify.Sink {
	if cfg.SlackWebhookURL == "" {
		log.Warn().Msg("no chat webhook configured, reminders will only be logged")
		return logSink{log: log}
	}
	return notify.NewSlackSink(cfg.SlackWebhookURL)
}

type logSink struct {
	log zerolog.Logger
}

func (s logSink) Send(_ context.Context, msg notify.Message) error {
	s.log.Info().Str("title", msg.Title).Msg(msg.Render())
	return nil
}
