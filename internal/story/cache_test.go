package story

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store/sqlite"
)

type countingGenerator struct {
	calls atomic.Int32
	delay time.Duration
}

func (g *countingGenerator) GenerateStory(ctx context.Context, req Request) (*Result, error) {
	g.calls.Add(1)
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &Result{StoryText: "Chapter " + req.Title, PlainText: req.Title, Provider: "fake"}, nil
}

func newCacheFixture(t *testing.T) (store.Store, *model.Event) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqlite.EnsureSchema(db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	st := sqlite.NewWithDB(db)

	ctx := context.Background()
	in, err := st.Integrations().Create(ctx, &model.Integration{
		UserID: "u1", ProviderKind: "google", Status: model.IntegrationActive, CredentialRef: "c1",
	})
	if err != nil {
		t.Fatalf("create integration: %v", err)
	}
	cal, err := st.Calendars().Upsert(ctx, &model.Calendar{
		IntegrationID: in.IntegrationID, ProviderID: "primary", DisplayName: "Work",
		TimeZone: "UTC", IsPrimary: true, IsActive: true,
	})
	if err != nil {
		t.Fatalf("upsert calendar: %v", err)
	}
	start := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	ev, err := st.Events().Create(ctx, &model.Event{
		CalendarID: cal.CalendarID, ProviderEventID: "p1", Title: "Standup",
		StartTime: start, EndTime: start.Add(30 * time.Minute),
		Status: model.EventConfirmed, Fingerprint: "fp-1",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return st, ev
}

func TestCache_MissGeneratesThenHits(t *testing.T) {
	st, ev := newCacheFixture(t)
	gen := &countingGenerator{}
	cache := NewCache(st, gen, time.Hour, 3, 4, zerolog.Nop())

	ctx := context.Background()
	first, err := cache.GetOrGenerate(ctx, ev.EventID, model.ThemeFantasy, "fp-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := cache.GetOrGenerate(ctx, ev.EventID, model.ThemeFantasy, "fp-1")
	if err != nil {
		t.Fatalf("hit: %v", err)
	}
	if first.StorylineID != second.StorylineID {
		t.Fatal("second call should hit the cached record")
	}
	if got := gen.calls.Load(); got != 1 {
		t.Fatalf("want 1 generation, got %d", got)
	}
}

func TestCache_ConcurrentCallersShareOneGeneration(t *testing.T) {
	st, ev := newCacheFixture(t)
	gen := &countingGenerator{delay: 50 * time.Millisecond}
	cache := NewCache(st, gen, time.Hour, 3, 4, zerolog.Nop())

	ctx := context.Background()
	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := cache.GetOrGenerate(ctx, ev.EventID, model.ThemeFantasy, "fp-1")
			if err != nil {
				t.Errorf("generate: %v", err)
				return
			}
			ids[i] = s.StorylineID
		}(i)
	}
	wg.Wait()

	if got := gen.calls.Load(); got != 1 {
		t.Fatalf("want a single collapsed generation, got %d", got)
	}
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatal("all callers must receive the same storyline")
		}
	}
}

func TestCache_FingerprintChangeRegenerates(t *testing.T) {
	st, ev := newCacheFixture(t)
	gen := &countingGenerator{}
	cache := NewCache(st, gen, time.Hour, 3, 4, zerolog.Nop())

	ctx := context.Background()
	if _, err := cache.GetOrGenerate(ctx, ev.EventID, model.ThemeFantasy, "fp-1"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := cache.GetOrGenerate(ctx, ev.EventID, model.ThemeFantasy, "fp-2"); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if got := gen.calls.Load(); got != 2 {
		t.Fatalf("want regeneration on fingerprint change, got %d calls", got)
	}

	active, err := st.Storylines().GetActive(ctx, ev.EventID, model.ThemeFantasy)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.Fingerprint != "fp-2" {
		t.Fatalf("active record must carry the new fingerprint, got %q", active.Fingerprint)
	}
}

func TestCache_ExpiredNeverServed(t *testing.T) {
	st, ev := newCacheFixture(t)
	gen := &countingGenerator{}
	cache := NewCache(st, gen, time.Hour, 3, 4, zerolog.Nop())

	now := time.Now().UTC()
	clock := now
	cache.WithClock(func() time.Time { return clock })

	ctx := context.Background()
	if _, err := cache.GetOrGenerate(ctx, ev.EventID, model.ThemeFantasy, "fp-1"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Just inside the TTL: still a hit.
	clock = now.Add(59 * time.Minute)
	if _, err := cache.GetOrGenerate(ctx, ev.EventID, model.ThemeFantasy, "fp-1"); err != nil {
		t.Fatalf("hit: %v", err)
	}
	if got := gen.calls.Load(); got != 1 {
		t.Fatalf("want cache hit inside TTL, got %d calls", got)
	}

	// Past expiry: must regenerate.
	clock = now.Add(61 * time.Minute)
	if _, err := cache.GetOrGenerate(ctx, ev.EventID, model.ThemeFantasy, "fp-1"); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if got := gen.calls.Load(); got != 2 {
		t.Fatalf("expired storyline must not be served, got %d calls", got)
	}
}

func TestCache_ThemesAreIndependent(t *testing.T) {
	st, ev := newCacheFixture(t)
	gen := &countingGenerator{}
	cache := NewCache(st, gen, time.Hour, 3, 4, zerolog.Nop())

	ctx := context.Background()
	for _, theme := range []string{model.ThemeFantasy, model.ThemeGenZ} {
		if _, err := cache.GetOrGenerate(ctx, ev.EventID, theme, "fp-1"); err != nil {
			t.Fatalf("generate %s: %v", theme, err)
		}
	}
	if got := gen.calls.Load(); got != 2 {
		t.Fatalf("want one generation per theme, got %d", got)
	}
	for _, theme := range []string{model.ThemeFantasy, model.ThemeGenZ} {
		if _, err := st.Storylines().GetActive(ctx, ev.EventID, theme); err != nil {
			t.Fatalf("active %s: %v", theme, err)
		}
	}
}
