package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/calendar"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store"
)

// Notifier is the scheduling surface the engine drives as events come
// and go. Implementations must be idempotent per event.
type Notifier interface {
	Schedule(ctx context.Context, ev *model.Event) error
	Cancel(ctx context.Context, eventID string) error
}

// Engine reconciles provider calendars into the store. At most one sync
// runs per integration at a time; a trigger that arrives mid-run queues
// exactly one follow-up run instead of a concurrent one.
type Engine struct {
	store    store.Store
	provider calendar.Provider
	creds    calendar.CredentialSource
	stories  StoryQueue
	notifier Notifier

	window time.Duration
	theme  string
	log    zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	inflight map[string]*runState
	wg       sync.WaitGroup
}

type runState struct {
	pending bool
}

func NewEngine(st store.Store, provider calendar.Provider, creds calendar.CredentialSource, stories StoryQueue, notifier Notifier, window time.Duration, theme string, log zerolog.Logger) *Engine {
	if window <= 0 {
		window = 48 * time.Hour
	}
	return &Engine{
		store:    st,
		provider: provider,
		creds:    creds,
		stories:  stories,
		notifier: notifier,
		window:   window,
		theme:    theme,
		log:      log,
		now:      time.Now,
		inflight: make(map[string]*runState),
	}
}

// WithClock overrides the time source, used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// TriggerSync starts an asynchronous sync for the integration and
// returns its in_progress audit row. An integration whose status is
// anything but ACTIVE (PENDING consent, ERROR awaiting re-consent,
// REVOKED) is skipped: the returned row carries the skipped_inactive
// outcome, nothing runs and nothing is persisted. When a sync is
// already running the request coalesces into a single queued follow-up
// run and the latest known status is returned with coalesced=true.
func (e *Engine) TriggerSync(ctx context.Context, integrationID string) (*model.SyncStatus, bool, error) {
	in, err := e.store.Integrations().Get(ctx, integrationID)
	if err != nil {
		return nil, false, err
	}
	if in.Status != model.IntegrationActive {
		return &model.SyncStatus{
			IntegrationID: integrationID,
			Outcome:       model.SyncSkipped,
			Timestamp:     e.now().UTC(),
		}, false, nil
	}

	e.mu.Lock()
	if st, ok := e.inflight[integrationID]; ok {
		st.pending = true
		e.mu.Unlock()
		latest, lerr := e.store.SyncStatuses().Latest(ctx, integrationID)
		if lerr != nil {
			return nil, true, lerr
		}
		return latest, true, nil
	}
	e.inflight[integrationID] = &runState{}
	e.mu.Unlock()

	status, err := e.store.SyncStatuses().Append(ctx, &model.SyncStatus{
		IntegrationID: integrationID,
		Outcome:       model.SyncInProgress,
		Timestamp:     e.now().UTC(),
	})
	if err != nil {
		e.mu.Lock()
		delete(e.inflight, integrationID)
		e.mu.Unlock()
		return nil, false, err
	}

	// The run outlives the triggering request.
	runCtx := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go e.runLoop(runCtx, integrationID, status.SyncStatusID)
	return status, false, nil
}

// SyncAll triggers a sync for every ACTIVE integration, used by the
// cron cadence. Failures are logged per integration and never abort the
// sweep.
func (e *Engine) SyncAll(ctx context.Context) {
	active, err := e.store.Integrations().ListActive(ctx)
	if err != nil {
		e.log.Error().Stack().Err(err).Msg("list active integrations")
		return
	}
	for _, in := range active {
		if _, _, err := e.TriggerSync(ctx, in.IntegrationID); err != nil {
			e.log.Error().Stack().Err(err).Str("integration_id", in.IntegrationID).Msg("trigger sync")
		}
	}
}

// Wait blocks until all in-flight syncs have finished, used during
// shutdown and by tests.
func (e *Engine) Wait() { e.wg.Wait() }

func (e *Engine) runLoop(ctx context.Context, integrationID, statusID string) {
	defer e.wg.Done()
	for {
		e.syncOnce(ctx, integrationID, statusID)

		e.mu.Lock()
		st := e.inflight[integrationID]
		if st == nil || !st.pending {
			delete(e.inflight, integrationID)
			e.mu.Unlock()
			return
		}
		st.pending = false
		e.mu.Unlock()

		status, err := e.store.SyncStatuses().Append(ctx, &model.SyncStatus{
			IntegrationID: integrationID,
			Outcome:       model.SyncInProgress,
			Timestamp:     e.now().UTC(),
		})
		if err != nil {
			e.log.Error().Stack().Err(err).Str("integration_id", integrationID).Msg("append follow-up sync status")
			e.mu.Lock()
			delete(e.inflight, integrationID)
			e.mu.Unlock()
			return
		}
		statusID = status.SyncStatusID
	}
}

// syncOnce performs one full reconciliation pass and closes out the
// given audit row. Local writes only happen after the provider calls
// for a calendar have succeeded, so a failed fetch never corrupts
// previously synced state.
func (e *Engine) syncOnce(ctx context.Context, integrationID, statusID string) {
	log := e.log.With().Str("integration_id", integrationID).Logger()

	in, err := e.store.Integrations().Get(ctx, integrationID)
	if err != nil {
		e.finish(ctx, statusID, model.SyncError, 0, err)
		return
	}
	// Status may have changed since the trigger, e.g. an auth failure
	// on the run a queued follow-up coalesced behind.
	if in.Status != model.IntegrationActive {
		e.finish(ctx, statusID, model.SyncSkipped, 0, nil)
		log.Info().Str("status", in.Status).Msg("integration inactive, sync skipped")
		return
	}

	cred, err := e.creds.Resolve(ctx, in.CredentialRef)
	if err != nil {
		e.failSync(ctx, integrationID, statusID, err, log)
		return
	}

	cals, err := e.provider.ListCalendars(ctx, cred)
	if err != nil {
		e.failSync(ctx, integrationID, statusID, err, log)
		return
	}
	for _, c := range cals {
		if _, err := e.store.Calendars().Upsert(ctx, &model.Calendar{
			IntegrationID: integrationID,
			ProviderID:    c.ProviderID,
			DisplayName:   c.DisplayName,
			TimeZone:      c.TimeZone,
			IsPrimary:     c.IsPrimary,
			IsActive:      true,
		}); err != nil {
			e.finish(ctx, statusID, model.SyncError, 0, err)
			return
		}
	}

	active, err := e.store.Calendars().ListActive(ctx, integrationID)
	if err != nil {
		e.finish(ctx, statusID, model.SyncError, 0, err)
		return
	}

	now := e.now().UTC()
	window := calendar.Window{From: now, To: now.Add(e.window)}
	processed := 0
	for _, cal := range active {
		n, err := e.reconcileCalendar(ctx, cred, cal, window)
		processed += n
		if err != nil {
			if errors.Is(err, model.ErrAuthExpired) {
				e.failSync(ctx, integrationID, statusID, err, log)
			} else {
				e.finish(ctx, statusID, model.SyncError, processed, err)
				log.Warn().Err(err).Str("calendar_id", cal.CalendarID).Msg("sync failed, integration stays active")
			}
			return
		}
	}

	e.finish(ctx, statusID, model.SyncSuccess, processed, nil)
	if err := e.store.Integrations().TouchLastSync(ctx, integrationID, now); err != nil {
		log.Error().Stack().Err(err).Msg("touch last sync time")
	}
	log.Info().Int("events", processed).Msg("sync complete")
}

// failSync closes the audit row and, for auth failures, flips the
// integration to ERROR so it drops out of the cadence until the user
// re-consents. Transient failures leave the status ACTIVE.
func (e *Engine) failSync(ctx context.Context, integrationID, statusID string, cause error, log zerolog.Logger) {
	e.finish(ctx, statusID, model.SyncError, 0, cause)
	if errors.Is(cause, model.ErrAuthExpired) {
		if err := e.store.Integrations().SetStatus(ctx, integrationID, model.IntegrationError); err != nil {
			log.Error().Stack().Err(err).Msg("set integration status")
		}
		log.Warn().Err(cause).Msg("credential rejected, integration marked ERROR")
		return
	}
	log.Warn().Err(cause).Msg("sync failed")
}

func (e *Engine) finish(ctx context.Context, statusID, outcome string, processed int, cause error) {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	if err := e.store.SyncStatuses().Finish(ctx, statusID, outcome, processed, detail); err != nil {
		e.log.Error().Stack().Err(err).Str("sync_status_id", statusID).Msg("finish sync status")
	}
}

func (e *Engine) reconcileCalendar(ctx context.Context, cred calendar.Credential, cal *model.Calendar, window calendar.Window) (int, error) {
	fetched, err := e.provider.ListEvents(ctx, cred, cal.ProviderID, window)
	if err != nil {
		return 0, err
	}

	processed := 0
	seen := make(map[string]struct{}, len(fetched))
	for _, ev := range fetched {
		seen[ev.ProviderID] = struct{}{}
		if err := e.reconcileEvent(ctx, cal, ev); err != nil {
			return processed, err
		}
		processed++
	}

	// Events we stored for this window that the provider no longer
	// returns were deleted upstream.
	stored, err := e.store.Events().ListWindow(ctx, cal.CalendarID, window.From, window.To)
	if err != nil {
		return processed, err
	}
	for _, ev := range stored {
		if _, ok := seen[ev.ProviderEventID]; ok {
			continue
		}
		if err := e.cancelEvent(ctx, ev.EventID); err != nil {
			return processed, err
		}
	}
	return processed, nil
}

func (e *Engine) reconcileEvent(ctx context.Context, cal *model.Calendar, ev calendar.Event) error {
	existing, err := e.store.Events().GetByProviderID(ctx, cal.CalendarID, ev.ProviderID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		if ev.Cancelled {
			return nil // never stored, nothing to retire
		}
		fp := eventFingerprint(ev)
		created, cerr := e.store.Events().Create(ctx, &model.Event{
			CalendarID:      cal.CalendarID,
			ProviderEventID: ev.ProviderID,
			Title:           ev.Title,
			Description:     ev.Description,
			StartTime:       ev.Start,
			EndTime:         ev.End,
			IsAllDay:        ev.IsAllDay,
			Location:        ev.Location,
			MeetingLink:     ev.MeetingLink,
			AttendeeCount:   ev.AttendeeCount,
			Status:          model.EventConfirmed,
			Fingerprint:     fp,
		})
		if cerr != nil {
			return cerr
		}
		e.stories.Enqueue(Job{EventID: created.EventID, Theme: e.theme, Fingerprint: fp})
		return e.notifier.Schedule(ctx, created)

	case err != nil:
		return err
	}

	if ev.Cancelled {
		return e.cancelEvent(ctx, existing.EventID)
	}

	fp := eventFingerprint(ev)
	if fp == existing.Fingerprint && existing.Status != model.EventCancelled {
		return nil // unchanged rows are left untouched
	}

	existing.Title = ev.Title
	existing.Description = ev.Description
	existing.StartTime = ev.Start
	existing.EndTime = ev.End
	existing.IsAllDay = ev.IsAllDay
	existing.Location = ev.Location
	existing.MeetingLink = ev.MeetingLink
	existing.AttendeeCount = ev.AttendeeCount
	existing.Status = model.EventConfirmed
	existing.Fingerprint = fp
	updated, err := e.store.Events().Update(ctx, existing)
	if err != nil {
		return err
	}
	if err := e.store.Storylines().DeactivateByEvent(ctx, updated.EventID); err != nil {
		return err
	}
	e.stories.Enqueue(Job{EventID: updated.EventID, Theme: e.theme, Fingerprint: fp})
	return e.notifier.Schedule(ctx, updated)
}

func (e *Engine) cancelEvent(ctx context.Context, eventID string) error {
	if err := e.store.Events().MarkCancelled(ctx, eventID); err != nil {
		return err
	}
	if err := e.store.Storylines().DeactivateByEvent(ctx, eventID); err != nil {
		return err
	}
	return e.notifier.Cancel(ctx, eventID)
}
