// Package syncservice boots the sync and storyline pipeline.
package syncservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/api"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/config"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/factory"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/health"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/logger"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/notify"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/retry"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/story"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/syncer"
)

// Run starts the service and blocks until shutdown or error.
func Run() error {
	log := logger.New("storytime-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("calendar_provider", cfg.CalendarProvider).
		Strs("story_providers", cfg.StoryProviderChain()).
		Str("sync_cadence", cfg.SyncCadence).
		Msg("Storytime service starting")

	// Cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	st, err := factory.NewStore(cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store unavailable")
		return err
	}

	policy := retry.NewPolicy(cfg.RetryExternalFetch, cfg.RetryAIGeneration, cfg.RetryNotification)

	calProvider, err := factory.NewCalendarProvider(cfg, policy, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Calendar provider unavailable")
		return err
	}
	creds := factory.NewCredentialSource(cfg)

	chain, storyProviders, err := factory.NewStoryChain(cfg, policy, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Story providers unavailable")
		return err
	}
	cache := story.NewCache(st, chain, cfg.CacheTTL(), cfg.MaxPriorStorylines, cfg.GenerationConcurrency, log)

	pool := syncer.NewStoryWorkerPool(cache, cfg.StoryQueueSize, cfg.GenerationConcurrency, log)
	go func() { _ = pool.Run(ctx) }()

	sink := factory.NewSink(cfg, log)
	scheduler := notify.NewScheduler(st, sink, policy, cfg.NotificationLead(), cfg.DefaultTheme, log)
	if err := scheduler.Rebuild(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("Failed to rebuild notification schedule")
		return err
	}
	go func() { _ = scheduler.Run(ctx, cfg.TickInterval()) }()

	engine := syncer.NewEngine(st, calProvider, creds, pool, scheduler, cfg.SyncWindow(), cfg.DefaultTheme, log)

	// Periodic sync sweep over all ACTIVE integrations
	c := cron.New()
	if _, err := c.AddFunc(cfg.SyncCadence, func() { engine.SyncAll(ctx) }); err != nil {
		log.Error().Stack().Err(err).Str("cadence", cfg.SyncCadence).Msg("Invalid sync cadence")
		return err
	}
	c.Start()
	defer c.Stop()

	router := api.NewRouter(engine, st, cfg.DefaultTheme)

	svcHealth := startHealthCheckers(ctx, cfg, log, st, storyProviders)
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		engine.Wait()
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// startHealthCheckers starts component checkers and the service-level
// aggregator, and binds the /api/health endpoint to it.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store, providers []story.Provider) *health.ServiceHealthChecker {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	var checkers []health.HealthChecker
	storeChecker := store.NewStoreHealthChecker(st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)
	checkers = append(checkers, storeChecker)

	for _, p := range providers {
		pc := story.NewProviderHealthChecker(p, log, probeTimeout)
		go pc.Start(ctx, interval)
		checkers = append(checkers, pc)
	}

	svcHealth := health.NewServiceHealthChecker(log, checkers...)
	go svcHealth.Start(ctx, interval)
	api.BindServiceHealth(svcHealth.IsHealthy)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns the startup health timeout in
// seconds, interval*2 with a minimum of 60 seconds.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	// Checkers start unhealthy and need a first probe cycle.
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
