// Package calendar adapts external calendar providers to the internal
// event shape consumed by the sync engine.
package calendar

import (
	"context"
	"time"
)

// Credential is an opaque bearer token with an expiry the client must
// respect. Acquisition and refresh happen outside this service.
type Credential struct {
	AccessToken string
	Expiry      time.Time
}

// Expired reports whether the credential is past its expiry.
func (c Credential) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}

// Window is the forward-looking time range events are fetched within.
type Window struct {
	From time.Time
	To   time.Time
}

// Calendar is a provider-side calendar description.
type Calendar struct {
	ProviderID  string
	DisplayName string
	TimeZone    string
	IsPrimary   bool
}

// Event is a provider-side event, already translated to internal field
// names but not yet reconciled against the store.
type Event struct {
	ProviderID    string
	Title         string
	Description   string
	Start         time.Time
	End           time.Time
	IsAllDay      bool
	Location      string
	MeetingLink   string
	AttendeeCount int
	Cancelled     bool
}

// Provider lists calendars and their events. Implementations own
// pagination and rate-limit backoff; an expired credential fails with
// model.ErrAuthExpired and is never retried at this layer.
type Provider interface {
	ListCalendars(ctx context.Context, cred Credential) ([]Calendar, error)
	ListEvents(ctx context.Context, cred Credential, providerCalendarID string, w Window) ([]Event, error)
}
