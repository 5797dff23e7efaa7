package story

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store"
)

// Cache is the store-backed storyline cache. It guarantees at most one
// concurrent generation per (event, theme, fingerprint) key and bounds
// the number of outstanding provider calls overall.
type Cache struct {
	store store.Store
	gen   Generator
	ttl   time.Duration
	prior int

	group singleflight.Group
	sem   *semaphore.Weighted
	now   func() time.Time
	log   zerolog.Logger
}

// NewCache builds a cache. ttl is the storyline lifetime, prior the
// number of past storylines included for continuity, concurrency the
// cap on simultaneous generations.
func NewCache(st store.Store, gen Generator, ttl time.Duration, prior, concurrency int, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Cache{
		store: st,
		gen:   gen,
		ttl:   ttl,
		prior: prior,
		sem:   semaphore.NewWeighted(int64(concurrency)),
		now:   time.Now,
		log:   log,
	}
}

// WithClock overrides the time source, used by tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// GetOrGenerate returns the active storyline for (eventID, theme) when
// it matches the fingerprint and has not expired, otherwise generates a
// fresh one. Concurrent callers for the same key await a single
// generation. A failed generation writes nothing; the event stays
// without a storyline until the next sync retries.
func (c *Cache) GetOrGenerate(ctx context.Context, eventID, theme, fingerprint string) (*model.Storyline, error) {
	if s, ok := c.lookup(ctx, eventID, theme, fingerprint); ok {
		return s, nil
	}

	key := eventID + "\x00" + theme + "\x00" + fingerprint
	v, err, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have completed generation while we queued.
		if s, ok := c.lookup(ctx, eventID, theme, fingerprint); ok {
			return s, nil
		}
		return c.generate(ctx, eventID, theme, fingerprint)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Storyline), nil
}

func (c *Cache) lookup(ctx context.Context, eventID, theme, fingerprint string) (*model.Storyline, bool) {
	s, err := c.store.Storylines().GetActive(ctx, eventID, theme)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			c.log.Error().Stack().Err(err).Str("event_id", eventID).Msg("storyline lookup failed")
		}
		return nil, false
	}
	if !s.Valid(c.now(), fingerprint) {
		return nil, false
	}
	return s, true
}

func (c *Cache) generate(ctx context.Context, eventID, theme, fingerprint string) (*model.Storyline, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	ev, err := c.store.Events().Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	req := Request{
		EventID:       ev.EventID,
		Title:         ev.Title,
		Description:   ev.Description,
		Start:         ev.StartTime,
		End:           ev.EndTime,
		IsAllDay:      ev.IsAllDay,
		Location:      ev.Location,
		AttendeeCount: ev.AttendeeCount,
		Theme:         theme,
	}
	if cal, err := c.store.Calendars().Get(ctx, ev.CalendarID); err == nil {
		req.TimeZone = cal.TimeZone
	}
	if prior, err := c.store.Storylines().ListRecent(ctx, eventID, theme, c.prior); err == nil {
		for _, p := range prior {
			req.Prior = append(req.Prior, p.PlainText)
		}
	}

	res, err := c.gen.GenerateStory(ctx, req)
	if err != nil {
		return nil, err
	}

	now := c.now()
	return c.store.Storylines().Supersede(ctx, &model.Storyline{
		EventID:      eventID,
		Theme:        theme,
		StoryText:    res.StoryText,
		PlainText:    res.PlainText,
		Emoji:        res.Emoji,
		Provider:     res.Provider,
		TokensUsed:   res.TokensUsed,
		Fingerprint:  fingerprint,
		CreationTime: now,
		ExpiryTime:   now.Add(c.ttl),
	})
}
