// Package notify schedules and delivers pre-event chat reminders.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Message is one rendered reminder, transport-agnostic.
type Message struct {
	Title     string
	StoryText string
	PlainText string
	Emoji     string
	StartTime time.Time
	TimeZone  string
	Location  string
}

// Sink delivers a message to the user's chat destination. Success or
// failure only; no read receipts are assumed.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// Render flattens the message into one chat-ready string. The storyline
// narrative leads when present, otherwise the plain event facts.
func (m Message) Render() string {
	var b strings.Builder
	if m.Emoji != "" {
		b.WriteString(m.Emoji)
		b.WriteString(" ")
	}
	if m.StoryText != "" {
		b.WriteString(m.StoryText)
	} else {
		b.WriteString("Upcoming: ")
		b.WriteString(m.Title)
	}

	when := m.StartTime
	if loc, err := time.LoadLocation(m.TimeZone); err == nil && m.TimeZone != "" {
		when = when.In(loc)
	}
	fmt.Fprintf(&b, "\n%s at %s", m.Title, when.Format("Mon Jan 2, 3:04 PM"))
	if m.Location != "" {
		b.WriteString(" · ")
		b.WriteString(m.Location)
	}
	return b.String()
}
