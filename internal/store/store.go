package store

import (
	"context"
	"time"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
)

// Store exposes persistence operations required by the sync pipeline.
// Implementations live under internal/store/<driver>/ (sqlite, postgres).
// All mutations of events and storylines go through the sync engine and
// the storyline cache so fingerprint and expiry invariants hold.
type Store interface {
	Integrations() Integrations
	Calendars() Calendars
	Events() Events
	Storylines() Storylines
	SyncStatuses() SyncStatuses
	NotificationLogs() NotificationLogs
}

type Integrations interface {
	Create(ctx context.Context, in *model.Integration) (*model.Integration, error)
	Get(ctx context.Context, integrationID string) (*model.Integration, error)
	ListActive(ctx context.Context) ([]*model.Integration, error)
	SetStatus(ctx context.Context, integrationID, status string) error
	TouchLastSync(ctx context.Context, integrationID string, at time.Time) error
}

type Calendars interface {
	Upsert(ctx context.Context, c *model.Calendar) (*model.Calendar, error)
	Get(ctx context.Context, calendarID string) (*model.Calendar, error)
	ListActive(ctx context.Context, integrationID string) ([]*model.Calendar, error)
	SetActive(ctx context.Context, calendarID string, active bool) error
}

type Events interface {
	Create(ctx context.Context, e *model.Event) (*model.Event, error)
	Update(ctx context.Context, e *model.Event) (*model.Event, error)
	Get(ctx context.Context, eventID string) (*model.Event, error)
	// GetByProviderID looks up the natural key (calendarID, providerEventID).
	GetByProviderID(ctx context.Context, calendarID, providerEventID string) (*model.Event, error)
	// ListWindow returns non-cancelled events for a calendar whose start
	// time falls inside [from, to).
	ListWindow(ctx context.Context, calendarID string, from, to time.Time) ([]*model.Event, error)
	List(ctx context.Context, req model.ListEventsRequest) ([]*model.Event, error)
	MarkCancelled(ctx context.Context, eventID string) error
}

type Storylines interface {
	// GetActive returns the single active storyline for (eventID, theme),
	// or model.ErrNotFound.
	GetActive(ctx context.Context, eventID, theme string) (*model.Storyline, error)
	// Supersede deactivates any prior record for (eventID, theme) and
	// inserts s as the new active record, atomically.
	Supersede(ctx context.Context, s *model.Storyline) (*model.Storyline, error)
	// ListRecent returns up to limit past storylines for the event and
	// theme, newest first, for narrative continuity.
	ListRecent(ctx context.Context, eventID, theme string, limit int) ([]*model.Storyline, error)
	// DeactivateByEvent retires all active storylines for an event,
	// used when the event's content changed.
	DeactivateByEvent(ctx context.Context, eventID string) error
}

type SyncStatuses interface {
	Append(ctx context.Context, s *model.SyncStatus) (*model.SyncStatus, error)
	// Finish moves an in_progress row to its terminal outcome.
	Finish(ctx context.Context, syncStatusID, outcome string, eventsProcessed int, errorDetail string) error
	Latest(ctx context.Context, integrationID string) (*model.SyncStatus, error)
	List(ctx context.Context, integrationID string, limit int) ([]*model.SyncStatus, error)
}

type NotificationLogs interface {
	// Upsert creates or replaces the schedule entry for an event. A
	// delivered entry is never downgraded back to pending.
	Upsert(ctx context.Context, n *model.NotificationLog) error
	Get(ctx context.Context, eventID string) (*model.NotificationLog, error)
	// RecordAttempt increments the attempt count and sets the outcome.
	RecordAttempt(ctx context.Context, eventID, outcome, errorDetail string, at time.Time) error
	// ListPending returns pending entries, used to rebuild the
	// scheduler after a restart.
	ListPending(ctx context.Context) ([]*model.NotificationLog, error)
	Delete(ctx context.Context, eventID string) error
}
