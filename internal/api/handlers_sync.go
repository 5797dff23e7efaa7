// Package api exposes the service's REST surface.
package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/api/respond"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/syncer"
)

// SyncHandler serves sync triggering and sync status queries.
type SyncHandler struct {
	engine *syncer.Engine
	store  store.Store
}

func NewSyncHandler(engine *syncer.Engine, st store.Store) *SyncHandler {
	return &SyncHandler{engine: engine, store: st}
}

type triggerSyncResponse struct {
	Status    any  `json:"status"`
	Coalesced bool `json:"coalesced"`
}

// TriggerSync handles POST /api/integrations/{integrationId}/sync. The
// sync runs asynchronously; the response carries the audit row it will
// update. A request arriving during a running sync coalesces into one
// queued follow-up and reports coalesced=true. An inactive integration
// answers 200 with a skipped_inactive row and no sync runs.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	integrationID := mux.Vars(r)["integrationId"]

	status, coalesced, err := h.engine.TriggerSync(r.Context(), integrationID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	code := http.StatusAccepted
	if status != nil && status.Outcome == model.SyncSkipped {
		code = http.StatusOK
	}
	respond.WriteJSON(w, code, triggerSyncResponse{Status: status, Coalesced: coalesced})
}

// GetSyncStatus handles GET /api/integrations/{integrationId}/sync.
// Without parameters it returns the latest attempt; ?limit=N returns
// recent history, newest first.
func (h *SyncHandler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	integrationID := mux.Vars(r)["integrationId"]

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			respond.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		history, err := h.store.SyncStatuses().List(r.Context(), integrationID, limit)
		if err != nil {
			respond.WriteServiceError(w, err)
			return
		}
		respond.WriteJSON(w, http.StatusOK, history)
		return
	}

	latest, err := h.store.SyncStatuses().Latest(r.Context(), integrationID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, latest)
}
