package api

import (
	"github.com/gorilla/mux"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/api/recovery"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/syncer"
)

// NewRouter wires all REST routes.
func NewRouter(engine *syncer.Engine, st store.Store, defaultTheme string) *mux.Router {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.Middleware)

	healthHandler := NewHealthHandler()
	syncHandler := NewSyncHandler(engine, st)
	eventsHandler := NewEventsHandler(st, defaultTheme)

	// Health endpoint
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	// Sync endpoints
	router.HandleFunc("/api/integrations/{integrationId}/sync", syncHandler.TriggerSync).Methods("POST")
	router.HandleFunc("/api/integrations/{integrationId}/sync", syncHandler.GetSyncStatus).Methods("GET")

	// Event listing joined with storylines
	router.HandleFunc("/api/events", eventsHandler.ListEvents).Methods("GET")

	return router
}
