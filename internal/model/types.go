package model

import "time"

// Integration status values.
const (
	IntegrationPending = "PENDING"
	IntegrationActive  = "ACTIVE"
	IntegrationError   = "ERROR"
	IntegrationRevoked = "REVOKED"
)

// Event status values.
const (
	EventConfirmed = "CONFIRMED"
	EventCancelled = "CANCELLED"
)

// Sync attempt outcomes.
const (
	SyncInProgress = "in_progress"
	SyncSuccess    = "success"
	SyncError      = "error"
	SyncSkipped    = "skipped_inactive"
)

// Notification delivery outcomes.
const (
	NotifyPending   = "pending"
	NotifyDelivered = "delivered"
	NotifyFailed    = "failed"
)

// Storyline themes.
const (
	ThemeFantasy      = "fantasy"
	ThemeGenZ         = "genz"
	ThemeMeme         = "meme"
	ThemeProfessional = "professional"
)

// Integration is a user's connected external-calendar account.
type Integration struct {
	IntegrationID string     `json:"integrationId"`
	UserID        string     `json:"userId"`
	ProviderKind  string     `json:"providerKind"`
	Status        string     `json:"status"`
	CredentialRef string     `json:"-"`
	LastSyncTime  *time.Time `json:"lastSyncTime,omitempty"`
	CreationTime  time.Time  `json:"creationTime"`
}

// Calendar is a provider-side calendar under an Integration.
type Calendar struct {
	CalendarID    string    `json:"calendarId"`
	IntegrationID string    `json:"integrationId"`
	ProviderID    string    `json:"providerId"`
	DisplayName   string    `json:"displayName"`
	TimeZone      string    `json:"timeZone"`
	IsPrimary     bool      `json:"isPrimary"`
	IsActive      bool      `json:"isActive"`
	CreationTime  time.Time `json:"creationTime"`
}

// Event is a calendar event reconciled from the provider. The pair
// (CalendarID, ProviderEventID) is the natural key and must be unique.
type Event struct {
	EventID         string    `json:"eventId"`
	CalendarID      string    `json:"calendarId"`
	ProviderEventID string    `json:"providerEventId"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	IsAllDay        bool      `json:"isAllDay"`
	Location        string    `json:"location,omitempty"`
	MeetingLink     string    `json:"meetingLink,omitempty"`
	AttendeeCount   int       `json:"attendeeCount"`
	Status          string    `json:"status"`
	Fingerprint     string    `json:"-"`
	CreationTime    time.Time `json:"creationTime"`
	UpdateTime      time.Time `json:"updateTime"`
}

// Storyline is the AI-generated narrative attached to an event for a
// given theme. Records are never mutated in place; a changed event
// produces a new record and the old one is deactivated.
type Storyline struct {
	StorylineID  string    `json:"storylineId"`
	EventID      string    `json:"eventId"`
	Theme        string    `json:"theme"`
	StoryText    string    `json:"storyText"`
	PlainText    string    `json:"plainText"`
	Emoji        string    `json:"emoji,omitempty"`
	Provider     string    `json:"provider"`
	TokensUsed   int       `json:"tokensUsed,omitempty"`
	Fingerprint  string    `json:"-"`
	CreationTime time.Time `json:"creationTime"`
	ExpiryTime   time.Time `json:"expiryTime"`
	IsActive     bool      `json:"isActive"`
}

// Valid reports whether the storyline may be served as a cache hit at
// the given instant for the given event fingerprint.
func (s *Storyline) Valid(now time.Time, fingerprint string) bool {
	return s.IsActive && s.Fingerprint == fingerprint && now.Before(s.ExpiryTime)
}

// SyncStatus is one row of the append-only sync audit trail.
type SyncStatus struct {
	SyncStatusID    string    `json:"syncStatusId"`
	IntegrationID   string    `json:"integrationId"`
	Outcome         string    `json:"outcome"`
	EventsProcessed int       `json:"eventsProcessed"`
	ErrorDetail     string    `json:"errorDetail,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// NotificationLog tracks delivery attempts for one scheduled fire.
// Terminal once delivered or the retry budget is exhausted.
type NotificationLog struct {
	EventID       string     `json:"eventId"`
	ScheduledTime time.Time  `json:"scheduledTime"`
	Outcome       string     `json:"outcome"`
	AttemptCount  int        `json:"attemptCount"`
	DeliveredTime *time.Time `json:"deliveredTime,omitempty"`
	ErrorDetail   string     `json:"errorDetail,omitempty"`
}

// EventWithStoryline joins an event with its active storyline, if any.
type EventWithStoryline struct {
	Event     *Event     `json:"event"`
	Storyline *Storyline `json:"storyline,omitempty"`
}

// ListEventsRequest captures filters used when listing events.
type ListEventsRequest struct {
	IntegrationID string
	CalendarID    string
	From          *time.Time
	To            *time.Time
	Limit         int
}
