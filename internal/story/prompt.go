package story

import (
	"fmt"
	"strings"
	"time"
)

// themeStyles describes the narrative voice for each supported theme.
var themeStyles = map[string]string{
	"fantasy":      "an epic fantasy saga: the user is a hero, meetings are quests, colleagues are fellow adventurers",
	"genz":         "gen-z internet speak: casual, ironic, heavy on slang, no corporate tone",
	"meme":         "meme culture: reference well-known meme formats, keep it absurd but recognizable",
	"professional": "a polished executive briefing: concise, encouraging, lightly witty",
}

// BuildPrompt renders the generation prompt for a request. Providers
// send it verbatim; the expected reply shape is a single JSON object.
func BuildPrompt(req Request) string {
	var b strings.Builder

	style, ok := themeStyles[req.Theme]
	if !ok {
		style = themeStyles["professional"]
	}

	fmt.Fprintf(&b, "You narrate a user's upcoming calendar events in the style of %s.\n\n", style)
	fmt.Fprintf(&b, "Event: %s\n", req.Title)
	if req.Description != "" {
		fmt.Fprintf(&b, "Details: %s\n", req.Description)
	}
	if req.IsAllDay {
		fmt.Fprintf(&b, "When: all day on %s\n", formatInZone(req.Start, req.TimeZone, "Monday, 2 January"))
	} else {
		fmt.Fprintf(&b, "When: %s to %s\n",
			formatInZone(req.Start, req.TimeZone, "Monday, 2 January 15:04"),
			formatInZone(req.End, req.TimeZone, "15:04"))
	}
	if req.Location != "" {
		fmt.Fprintf(&b, "Where: %s\n", req.Location)
	}
	if req.AttendeeCount > 1 {
		fmt.Fprintf(&b, "Attendees: %d\n", req.AttendeeCount)
	}

	if len(req.Prior) > 0 {
		b.WriteString("\nEarlier chapters of this storyline, newest first:\n")
		for _, p := range req.Prior {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		b.WriteString("Continue the story; do not repeat earlier chapters.\n")
	}

	b.WriteString("\nReply with only a JSON object, no markdown fences, shaped as:\n")
	b.WriteString(`{"story": "<2-3 sentence narrative>", "plainText": "<one plain sentence for notifications>", "emoji": "<single emoji>"}`)
	return b.String()
}

func formatInZone(t time.Time, tz, layout string) string {
	if loc, err := time.LoadLocation(tz); err == nil && tz != "" {
		t = t.In(loc)
	}
	return t.Format(layout)
}
