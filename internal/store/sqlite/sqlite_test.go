package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := EnsureSchema(db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return NewWithDB(db)
}

func seedCalendar(t *testing.T, st store.Store) *model.Calendar {
	t.Helper()
	ctx := context.Background()
	in, err := st.Integrations().Create(ctx, &model.Integration{
		UserID:        "user-1",
		ProviderKind:  "google",
		Status:        model.IntegrationActive,
		CredentialRef: "cred-1",
	})
	if err != nil {
		t.Fatalf("create integration: %v", err)
	}
	cal, err := st.Calendars().Upsert(ctx, &model.Calendar{
		IntegrationID: in.IntegrationID,
		ProviderID:    "primary",
		DisplayName:   "Work",
		TimeZone:      "UTC",
		IsPrimary:     true,
		IsActive:      true,
	})
	if err != nil {
		t.Fatalf("upsert calendar: %v", err)
	}
	return cal
}

func TestEvents_NaturalKeyLookup(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	cal := seedCalendar(t, st)

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	created, err := st.Events().Create(ctx, &model.Event{
		CalendarID:      cal.CalendarID,
		ProviderEventID: "prov-evt-1",
		Title:           "Standup",
		StartTime:       start,
		EndTime:         start.Add(30 * time.Minute),
		Fingerprint:     "fp-1",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	got, err := st.Events().GetByProviderID(ctx, cal.CalendarID, "prov-evt-1")
	if err != nil {
		t.Fatalf("get by provider id: %v", err)
	}
	if got.EventID != created.EventID || got.Fingerprint != "fp-1" {
		t.Fatalf("unexpected event: %+v", got)
	}

	// Duplicate natural key must be rejected.
	if _, err := st.Events().Create(ctx, &model.Event{
		CalendarID:      cal.CalendarID,
		ProviderEventID: "prov-evt-1",
		Title:           "Dup",
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		Fingerprint:     "fp-dup",
	}); err == nil {
		t.Fatal("expected unique constraint violation")
	}
}

func TestEvents_MarkCancelledExcludedFromWindow(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	cal := seedCalendar(t, st)

	start := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	e, err := st.Events().Create(ctx, &model.Event{
		CalendarID:      cal.CalendarID,
		ProviderEventID: "prov-evt-2",
		Title:           "1:1",
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		Fingerprint:     "fp",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if err := st.Events().MarkCancelled(ctx, e.EventID); err != nil {
		t.Fatalf("mark cancelled: %v", err)
	}

	listed, err := st.Events().ListWindow(ctx, cal.CalendarID, start.Add(-time.Hour), start.Add(time.Hour))
	if err != nil {
		t.Fatalf("list window: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("cancelled event should not appear in window, got %d", len(listed))
	}

	got, err := st.Events().Get(ctx, e.EventID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.EventCancelled {
		t.Fatalf("expected cancelled status, got %s", got.Status)
	}
}

func TestStorylines_SupersedeKeepsSingleActive(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	cal := seedCalendar(t, st)

	start := time.Now().UTC().Add(time.Hour)
	e, err := st.Events().Create(ctx, &model.Event{
		CalendarID:      cal.CalendarID,
		ProviderEventID: "prov-evt-3",
		Title:           "Planning",
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		Fingerprint:     "fp-a",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	expiry := time.Now().UTC().Add(24 * time.Hour)
	first, err := st.Storylines().Supersede(ctx, &model.Storyline{
		EventID:     e.EventID,
		Theme:       model.ThemeFantasy,
		StoryText:   "A quest begins.",
		PlainText:   "A quest begins.",
		Provider:    "gemini",
		Fingerprint: "fp-a",
		ExpiryTime:  expiry,
	})
	if err != nil {
		t.Fatalf("supersede: %v", err)
	}
	second, err := st.Storylines().Supersede(ctx, &model.Storyline{
		EventID:     e.EventID,
		Theme:       model.ThemeFantasy,
		StoryText:   "The quest continues.",
		PlainText:   "The quest continues.",
		Provider:    "gemini",
		Fingerprint: "fp-b",
		ExpiryTime:  expiry,
	})
	if err != nil {
		t.Fatalf("supersede second: %v", err)
	}

	active, err := st.Storylines().GetActive(ctx, e.EventID, model.ThemeFantasy)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.StorylineID != second.StorylineID {
		t.Fatalf("expected latest record active, got %s", active.StorylineID)
	}

	recent, err := st.Storylines().ListRecent(ctx, e.EventID, model.ThemeFantasy, 5)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected both records kept, got %d", len(recent))
	}
	if recent[0].StorylineID != second.StorylineID || recent[1].StorylineID != first.StorylineID {
		t.Fatal("expected newest-first ordering")
	}
}

func TestSyncStatuses_AppendAndFinish(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	cal := seedCalendar(t, st)

	s, err := st.SyncStatuses().Append(ctx, &model.SyncStatus{
		IntegrationID: cal.IntegrationID,
		Outcome:       model.SyncInProgress,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := st.SyncStatuses().Finish(ctx, s.SyncStatusID, model.SyncSuccess, 7, ""); err != nil {
		t.Fatalf("finish: %v", err)
	}

	latest, err := st.SyncStatuses().Latest(ctx, cal.IntegrationID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Outcome != model.SyncSuccess || latest.EventsProcessed != 7 {
		t.Fatalf("unexpected latest: %+v", latest)
	}
}

func TestNotificationLogs_DeliveredNeverDowngraded(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	cal := seedCalendar(t, st)

	start := time.Now().UTC().Add(time.Hour)
	e, err := st.Events().Create(ctx, &model.Event{
		CalendarID:      cal.CalendarID,
		ProviderEventID: "prov-evt-4",
		Title:           "Review",
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		Fingerprint:     "fp",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	fireAt := start.Add(-15 * time.Minute)
	if err := st.NotificationLogs().Upsert(ctx, &model.NotificationLog{
		EventID:       e.EventID,
		ScheduledTime: fireAt,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.NotificationLogs().RecordAttempt(ctx, e.EventID, model.NotifyDelivered, "", fireAt); err != nil {
		t.Fatalf("record attempt: %v", err)
	}

	// A later reschedule must not revive a delivered entry.
	if err := st.NotificationLogs().Upsert(ctx, &model.NotificationLog{
		EventID:       e.EventID,
		ScheduledTime: fireAt.Add(time.Hour),
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := st.NotificationLogs().Get(ctx, e.EventID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Outcome != model.NotifyDelivered || got.AttemptCount != 1 {
		t.Fatalf("delivered entry was downgraded: %+v", got)
	}

	pending, err := st.NotificationLogs().ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("delivered entry listed as pending")
	}
}

func TestIntegrations_GetMissing(t *testing.T) {
	st := newTestStore(t)
	_, err := st.Integrations().Get(context.Background(), "missing")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
