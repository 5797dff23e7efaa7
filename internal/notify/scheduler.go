package notify

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/retry"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store"
)

type entry struct {
	eventID string
	fireAt  time.Time
	index   int
}

// entryHeap orders entries by fire time, earliest first.
type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].fireAt.Before(h[j].fireAt) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *entryHeap) Push(x any)         { e := x.(*entry); e.index = len(*h); *h = append(*h, e) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Scheduler fires chat reminders a configured lead before each event
// starts. Entries live in an in-memory min-heap keyed by fire time; the
// persisted NotificationLog is the idempotency record that survives
// restarts.
type Scheduler struct {
	store  store.Store
	sink   Sink
	policy *retry.Policy
	lead   time.Duration
	theme  string
	log    zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries entryHeap
	byEvent map[string]*entry
}

func NewScheduler(st store.Store, sink Sink, policy *retry.Policy, lead time.Duration, theme string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:   st,
		sink:    sink,
		policy:  policy,
		lead:    lead,
		theme:   theme,
		log:     log,
		now:     time.Now,
		byEvent: make(map[string]*entry),
	}
}

// WithClock overrides the time source, used by tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Schedule registers (or re-registers) the reminder for an event. A
// fire time already in the past still enqueues; the next tick fires it
// immediately. A reminder that was already delivered stays delivered.
func (s *Scheduler) Schedule(ctx context.Context, ev *model.Event) error {
	fireAt := ev.StartTime.Add(-s.lead).UTC()
	if err := s.store.NotificationLogs().Upsert(ctx, &model.NotificationLog{
		EventID:       ev.EventID,
		ScheduledTime: fireAt,
		Outcome:       model.NotifyPending,
	}); err != nil {
		return err
	}
	s.insert(ev.EventID, fireAt)
	return nil
}

// Cancel drops the reminder for an event that no longer needs one.
func (s *Scheduler) Cancel(ctx context.Context, eventID string) error {
	s.remove(eventID)
	err := s.store.NotificationLogs().Delete(ctx, eventID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	return err
}

// Rebuild reloads pending reminders from the store after a restart.
func (s *Scheduler) Rebuild(ctx context.Context) error {
	pending, err := s.store.NotificationLogs().ListPending(ctx)
	if err != nil {
		return err
	}
	for _, n := range pending {
		s.insert(n.EventID, n.ScheduledTime)
	}
	s.log.Info().Int("entries", len(pending)).Msg("notification schedule rebuilt")
	return nil
}

func (s *Scheduler) insert(eventID string, fireAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byEvent[eventID]; ok {
		e.fireAt = fireAt
		heap.Fix(&s.entries, e.index)
		return
	}
	e := &entry{eventID: eventID, fireAt: fireAt}
	heap.Push(&s.entries, e)
	s.byEvent[eventID] = e
}

func (s *Scheduler) remove(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byEvent[eventID]; ok {
		heap.Remove(&s.entries, e.index)
		delete(s.byEvent, eventID)
	}
}

// Run ticks the scheduler until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.log.Info().Dur("interval", interval).Msg("notification scheduler starting")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("notification scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

// Tick delivers every entry whose fire time has passed. Entries are
// dispatched in fire-time order but deliver independently, so one
// entry's failure or in-flight retry backoff never delays another's
// attempts. Tick returns once every dispatched delivery has finished.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	var due []*entry
	s.mu.Lock()
	for s.entries.Len() > 0 && !s.entries[0].fireAt.After(now) {
		e := heap.Pop(&s.entries).(*entry)
		delete(s.byEvent, e.eventID)
		due = append(due, e)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range due {
		wg.Add(1)
		go func(eventID string) {
			defer wg.Done()
			if err := s.deliver(ctx, eventID); err != nil {
				s.log.Error().Stack().Err(err).Str("event_id", eventID).Msg("reminder delivery failed")
			}
		}(e.eventID)
	}
	wg.Wait()
}

func (s *Scheduler) deliver(ctx context.Context, eventID string) error {
	logEntry, err := s.store.NotificationLogs().Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil // cancelled between scheduling and firing
		}
		return err
	}
	if logEntry.Outcome == model.NotifyDelivered {
		return nil // already sent, never send twice
	}

	ev, err := s.store.Events().Get(ctx, eventID)
	if err != nil {
		return err
	}
	if ev.Status == model.EventCancelled {
		return s.store.NotificationLogs().Delete(ctx, eventID)
	}

	msg := Message{
		Title:     ev.Title,
		StartTime: ev.StartTime,
		Location:  ev.Location,
	}
	if cal, cerr := s.store.Calendars().Get(ctx, ev.CalendarID); cerr == nil {
		msg.TimeZone = cal.TimeZone
	}
	// A missing storyline degrades to plain event facts rather than
	// holding the reminder back.
	if story, serr := s.store.Storylines().GetActive(ctx, eventID, s.theme); serr == nil {
		msg.StoryText = story.StoryText
		msg.PlainText = story.PlainText
		msg.Emoji = story.Emoji
	}

	// Every sink call lands in the audit row, so the attempt count
	// reflects retries consumed inside the policy, not just the final
	// outcome.
	sendErr := s.policy.Do(ctx, retry.ClassNotification, func(ctx context.Context) error {
		err := s.sink.Send(ctx, msg)
		if err != nil {
			if rerr := s.store.NotificationLogs().RecordAttempt(ctx, eventID, model.NotifyFailed, err.Error(), s.now().UTC()); rerr != nil {
				s.log.Error().Stack().Err(rerr).Str("event_id", eventID).Msg("record failed attempt")
			}
		}
		return err
	})
	if sendErr != nil {
		return sendErr
	}
	if err := s.store.NotificationLogs().RecordAttempt(ctx, eventID, model.NotifyDelivered, "", s.now().UTC()); err != nil {
		s.log.Error().Stack().Err(err).Str("event_id", eventID).Msg("record delivery")
	}
	s.log.Info().Str("event_id", eventID).Str("title", ev.Title).Msg("reminder delivered")
	return nil
}
