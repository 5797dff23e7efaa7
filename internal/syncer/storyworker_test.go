package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/retry"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/story"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store/sqlite"
)

type stubStoryProvider struct{}

func (stubStoryProvider) Name() string                             { return "stub" }
func (stubStoryProvider) ValidateCredential(context.Context) error { return nil }
func (stubStoryProvider) DefaultModel() string                     { return "stub-model" }
func (stubStoryProvider) MaxTokens() int                           { return 128 }
func (stubStoryProvider) GenerateStory(_ context.Context, req story.Request) (*story.Result, error) {
	return &story.Result{StoryText: "tale of " + req.Title, PlainText: req.Title, Provider: "stub"}, nil
}

func TestStoryWorkerPool_ProcessesJobs(t *testing.T) {
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqlite.EnsureSchema(db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	st := sqlite.NewWithDB(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in, err := st.Integrations().Create(ctx, &model.Integration{
		UserID: "u1", ProviderKind: "google", Status: model.IntegrationActive, CredentialRef: "c1",
	})
	if err != nil {
		t.Fatalf("create integration: %v", err)
	}
	cal, err := st.Calendars().Upsert(ctx, &model.Calendar{
		IntegrationID: in.IntegrationID, ProviderID: "primary", TimeZone: "UTC", IsActive: true,
	})
	if err != nil {
		t.Fatalf("upsert calendar: %v", err)
	}
	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	ev, err := st.Events().Create(ctx, &model.Event{
		CalendarID: cal.CalendarID, ProviderEventID: "p1", Title: "Standup",
		StartTime: start, EndTime: start.Add(30 * time.Minute),
		Status: model.EventConfirmed, Fingerprint: "fp",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	policy := retry.DefaultPolicy()
	policy.InitialInterval = time.Millisecond
	chain := story.NewChain(policy, zerolog.Nop(), stubStoryProvider{})
	cache := story.NewCache(st, chain, time.Hour, 3, 2, zerolog.Nop())

	pool := NewStoryWorkerPool(cache, 8, 2, zerolog.Nop())
	go func() { _ = pool.Run(ctx) }()

	if !pool.Enqueue(Job{EventID: ev.EventID, Theme: model.ThemeFantasy, Fingerprint: "fp"}) {
		t.Fatal("enqueue rejected")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s, err := st.Storylines().GetActive(ctx, ev.EventID, model.ThemeFantasy); err == nil {
			if s.StoryText != "tale of Standup" {
				t.Fatalf("unexpected storyline: %+v", s)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("storyline was not generated in time")
}

func TestStoryWorkerPool_FullBufferDropsJob(t *testing.T) {
	// No workers draining: the buffer fills and further jobs are rejected.
	pool := NewStoryWorkerPool(nil, 1, 1, zerolog.Nop())
	if !pool.Enqueue(Job{EventID: "e1", Theme: model.ThemeFantasy}) {
		t.Fatal("first job should fit")
	}
	if pool.Enqueue(Job{EventID: "e2", Theme: model.ThemeFantasy}) {
		t.Fatal("second job should be dropped")
	}
}
