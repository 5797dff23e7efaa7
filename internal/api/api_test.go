package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/calendar"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/store/sqlite"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/syncer"
)

type stubProvider struct {
	events []calendar.Event
}

func (s *stubProvider) ListCalendars(context.Context, calendar.Credential) ([]calendar.Calendar, error) {
	return []calendar.Calendar{{ProviderID: "primary", DisplayName: "Work", TimeZone: "UTC", IsPrimary: true}}, nil
}

func (s *stubProvider) ListEvents(context.Context, calendar.Credential, string, calendar.Window) ([]calendar.Event, error) {
	return s.events, nil
}

type noopNotifier struct{}

func (noopNotifier) Schedule(context.Context, *model.Event) error { return nil }
func (noopNotifier) Cancel(context.Context, string) error         { return nil }

type noopQueue struct{}

func (noopQueue) Enqueue(syncer.Job) bool { return true }

type apiFixture struct {
	store  store.Store
	engine *syncer.Engine
	server *httptest.Server
}

func newAPIFixture(t *testing.T, provider *stubProvider) *apiFixture {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(db))
	st := sqlite.NewWithDB(db)

	creds := calendar.StaticCredentialSource{"cred": {AccessToken: "tok"}}
	engine := syncer.NewEngine(st, provider, creds, noopQueue{}, noopNotifier{}, 48*time.Hour, model.ThemeFantasy, zerolog.Nop())

	srv := httptest.NewServer(NewRouter(engine, st, model.ThemeFantasy))
	t.Cleanup(srv.Close)
	return &apiFixture{store: st, engine: engine, server: srv}
}

func (f *apiFixture) seedIntegration(t *testing.T) *model.Integration {
	t.Helper()
	in, err := f.store.Integrations().Create(context.Background(), &model.Integration{
		UserID:        "u1",
		ProviderKind:  "google",
		Status:        model.IntegrationActive,
		CredentialRef: "cred",
	})
	require.NoError(t, err)
	return in
}

func TestTriggerSyncEndpoint(t *testing.T) {
	start := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	f := newAPIFixture(t, &stubProvider{events: []calendar.Event{
		{ProviderID: "e1", Title: "Standup", Start: start, End: start.Add(30 * time.Minute)},
	}})
	in := f.seedIntegration(t)

	resp, err := http.Post(f.server.URL+"/api/integrations/"+in.IntegrationID+"/sync", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body struct {
		Status    model.SyncStatus `json:"status"`
		Coalesced bool             `json:"coalesced"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Coalesced)
	assert.Equal(t, in.IntegrationID, body.Status.IntegrationID)

	f.engine.Wait()

	latest, err := f.store.SyncStatuses().Latest(context.Background(), in.IntegrationID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncSuccess, latest.Outcome)
	assert.Equal(t, 1, latest.EventsProcessed)
}

func TestTriggerSyncInactiveIntegrationSkipped(t *testing.T) {
	start := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	f := newAPIFixture(t, &stubProvider{events: []calendar.Event{
		{ProviderID: "e1", Title: "Standup", Start: start, End: start.Add(30 * time.Minute)},
	}})
	in, err := f.store.Integrations().Create(context.Background(), &model.Integration{
		UserID:        "u1",
		ProviderKind:  "google",
		Status:        model.IntegrationPending,
		CredentialRef: "cred",
	})
	require.NoError(t, err)

	resp, err := http.Post(f.server.URL+"/api/integrations/"+in.IntegrationID+"/sync", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status    model.SyncStatus `json:"status"`
		Coalesced bool             `json:"coalesced"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, model.SyncSkipped, body.Status.Outcome)

	f.engine.Wait()
	events, err := f.store.Events().List(context.Background(), model.ListEventsRequest{IntegrationID: in.IntegrationID})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTriggerSyncUnknownIntegration(t *testing.T) {
	f := newAPIFixture(t, &stubProvider{})

	resp, err := http.Post(f.server.URL+"/api/integrations/does-not-exist/sync", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetSyncStatusEndpoint(t *testing.T) {
	f := newAPIFixture(t, &stubProvider{})
	in := f.seedIntegration(t)

	resp, err := http.Post(f.server.URL+"/api/integrations/"+in.IntegrationID+"/sync", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	f.engine.Wait()

	resp, err = http.Get(f.server.URL + "/api/integrations/" + in.IntegrationID + "/sync")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var latest model.SyncStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&latest))
	assert.Equal(t, model.SyncSuccess, latest.Outcome)

	// History listing
	resp, err = http.Get(f.server.URL + "/api/integrations/" + in.IntegrationID + "/sync?limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history []model.SyncStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	assert.Len(t, history, 1)
}

func TestListEventsJoinedWithStorylines(t *testing.T) {
	start := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	f := newAPIFixture(t, &stubProvider{events: []calendar.Event{
		{ProviderID: "e1", Title: "Standup", Start: start, End: start.Add(30 * time.Minute)},
	}})
	in := f.seedIntegration(t)

	resp, err := http.Post(f.server.URL+"/api/integrations/"+in.IntegrationID+"/sync", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	f.engine.Wait()

	ctx := context.Background()
	events, err := f.store.Events().List(ctx, model.ListEventsRequest{IntegrationID: in.IntegrationID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	_, err = f.store.Storylines().Supersede(ctx, &model.Storyline{
		EventID: events[0].EventID, Theme: model.ThemeFantasy,
		StoryText: "An epic gathering", PlainText: "Standup", Provider: "fake",
		Fingerprint: events[0].Fingerprint, ExpiryTime: time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)

	resp, err = http.Get(f.server.URL + "/api/events?integrationId=" + in.IntegrationID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []model.EventWithStoryline
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.Equal(t, "Standup", out[0].Event.Title)
	require.NotNil(t, out[0].Storyline)
	assert.Equal(t, "An epic gathering", out[0].Storyline.StoryText)
}

func TestListEventsBadTimeFilter(t *testing.T) {
	f := newAPIFixture(t, &stubProvider{})

	resp, err := http.Get(f.server.URL + "/api/events?from=yesterday")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t, &stubProvider{})

	BindServiceHealth(func() bool { return true })
	t.Cleanup(func() { BindServiceHealth(func() bool { return false }) })

	resp, err := http.Get(f.server.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}
