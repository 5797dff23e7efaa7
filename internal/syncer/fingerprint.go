package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/calendar"
)

// Fingerprint hashes the content fields of an event that matter for
// storyline freshness. Two events with the same title, description,
// times and location always produce the same value; attendee counts and
// meeting links do not participate.
func Fingerprint(title, description string, start, end time.Time, location string) string {
	h := sha256.New()
	for i, part := range []string{
		title,
		description,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
		location,
	} {
		if i > 0 {
			_, _ = io.WriteString(h, "|")
		}
		_, _ = io.WriteString(h, part)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func eventFingerprint(ev calendar.Event) string {
	return Fingerprint(ev.Title, ev.Description, ev.Start, ev.End, ev.Location)
}
