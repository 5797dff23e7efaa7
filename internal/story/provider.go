// Package story generates and caches AI storylines for calendar events.
package story

import (
	"context"
	"time"
)

// Request carries the event facts and theme a storyline is generated from.
type Request struct {
	EventID       string
	Title         string
	Description   string
	Start         time.Time
	End           time.Time
	IsAllDay      bool
	Location      string
	AttendeeCount int
	TimeZone      string
	Theme         string
	// Prior holds up to a few previous storylines for the same event
	// and theme, newest first, to keep the narrative coherent.
	Prior []string
}

// Result is one generated storyline.
type Result struct {
	StoryText  string
	PlainText  string
	Emoji      string
	TokensUsed int
	Provider   string
}

// Provider is one AI backend capable of generating storylines.
type Provider interface {
	Name() string
	GenerateStory(ctx context.Context, req Request) (*Result, error)
	ValidateCredential(ctx context.Context) error
	DefaultModel() string
	MaxTokens() int
}

// Generator produces storylines; the fallback chain and single
// providers both satisfy it.
type Generator interface {
	GenerateStory(ctx context.Context, req Request) (*Result, error)
}
