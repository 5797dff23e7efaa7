package notify

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	pkgerrors "github.com/pkg/errors"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
)

// SlackSink posts reminders to a Slack incoming webhook.
type SlackSink struct {
	client     *resty.Client
	webhookURL string
}

func NewSlackSink(webhookURL string) *SlackSink {
	c := resty.New().
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)
	return &SlackSink{client: c, webhookURL: webhookURL}
}

type slackPayload struct {
	Text string `json:"text"`
}

// Send implements Sink.
func (s *SlackSink) Send(ctx context.Context, msg Message) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(slackPayload{Text: msg.Render()}).
		Post(s.webhookURL)
	if err != nil {
		return pkgerrors.Wrap(model.ErrNetwork, err.Error())
	}
	switch {
	case resp.StatusCode() == http.StatusOK:
		return nil
	case resp.StatusCode() == http.StatusTooManyRequests:
		var after time.Duration
		if secs, perr := strconv.Atoi(resp.Header().Get("Retry-After")); perr == nil {
			after = time.Duration(secs) * time.Second
		}
		return &model.ThrottledError{RetryAfter: after}
	case resp.StatusCode() >= 400 && resp.StatusCode() < 500:
		// Webhook revoked or misconfigured, retrying will not help.
		return pkgerrors.Wrapf(model.ErrInvalidCredential, "webhook status %d", resp.StatusCode())
	default:
		return pkgerrors.Wrapf(model.ErrNetwork, "webhook status %d", resp.StatusCode())
	}
}
