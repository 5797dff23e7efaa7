package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/api/respond"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store"
)

// EventsHandler lists synced events joined with their active storylines.
type EventsHandler struct {
	store        store.Store
	defaultTheme string
}

func NewEventsHandler(st store.Store, defaultTheme string) *EventsHandler {
	return &EventsHandler{store: st, defaultTheme: defaultTheme}
}

// ListEvents handles GET /api/events. Filters: integrationId,
// calendarId, from, to (RFC3339), limit; theme selects which storyline
// accompanies each event.
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := model.ListEventsRequest{
		IntegrationID: q.Get("integrationId"),
		CalendarID:    q.Get("calendarId"),
	}

	if raw := q.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respond.WriteBadRequest(w, "from must be RFC3339")
			return
		}
		req.From = &ts
	}
	if raw := q.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respond.WriteBadRequest(w, "to must be RFC3339")
			return
		}
		req.To = &ts
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			respond.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		req.Limit = limit
	}

	theme := q.Get("theme")
	if theme == "" {
		theme = h.defaultTheme
	}

	events, err := h.store.Events().List(r.Context(), req)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}

	out := make([]model.EventWithStoryline, 0, len(events))
	for _, ev := range events {
		item := model.EventWithStoryline{Event: ev}
		story, serr := h.store.Storylines().GetActive(r.Context(), ev.EventID, theme)
		if serr == nil {
			item.Storyline = story
		} else if !errors.Is(serr, model.ErrNotFound) {
			respond.WriteServiceError(w, serr)
			return
		}
		out = append(out, item)
	}
	respond.WriteJSON(w, http.StatusOK, out)
}
