package syncer

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/story"
)

// Job asks for one storyline to be (re)generated.
type Job struct {
	EventID     string
	Theme       string
	Fingerprint string
}

// StoryQueue accepts generation jobs without blocking the sync cycle.
type StoryQueue interface {
	// Enqueue reports false when the queue is full; the job is dropped
	// and the storyline is picked up again on the next sync.
	Enqueue(j Job) bool
}

// StoryWorkerPool drains a buffered job channel through the storyline
// cache. Backpressure is drop-oldest-work-last: a full buffer rejects
// new jobs rather than stalling reconciliation.
type StoryWorkerPool struct {
	cache   *story.Cache
	ch      chan Job
	workers int
	log     zerolog.Logger
}

func NewStoryWorkerPool(cache *story.Cache, buffer, workers int, log zerolog.Logger) *StoryWorkerPool {
	if buffer <= 0 {
		buffer = 256
	}
	if workers <= 0 {
		workers = 4
	}
	return &StoryWorkerPool{
		cache:   cache,
		ch:      make(chan Job, buffer),
		workers: workers,
		log:     log,
	}
}

// Enqueue implements StoryQueue.
func (p *StoryWorkerPool) Enqueue(j Job) bool {
	select {
	case p.ch <- j:
		return true
	default:
		p.log.Warn().Str("event_id", j.EventID).Msg("story queue full, dropping job")
		return false
	}
}

// Run consumes jobs until ctx is cancelled. Generation failures are
// logged and swallowed; the event simply stays without a storyline
// until a later sync retries it.
func (p *StoryWorkerPool) Run(ctx context.Context) error {
	p.log.Info().Int("workers", p.workers).Int("buffer", cap(p.ch)).Msg("story worker pool starting")

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j := <-p.ch:
					if _, err := p.cache.GetOrGenerate(ctx, j.EventID, j.Theme, j.Fingerprint); err != nil {
						p.log.Error().Stack().Err(err).
							Str("event_id", j.EventID).
							Str("theme", j.Theme).
							Msg("storyline generation failed")
					}
				}
			}
		}()
	}
	wg.Wait()
	p.log.Info().Msg("story worker pool stopping")
	return ctx.Err()
}
