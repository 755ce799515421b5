package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"achievementsAPI/internal/live"
	"achievementsAPI/internal/stats"
	"achievementsAPI/internal/store"
	"achievementsAPI/services"
)

const testOrigin = "https://app.example"

type testAPI struct {
	router   *mux.Router
	registry *live.Registry
	store    *store.Memory
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	mem := store.NewMemory()
	registry := live.NewRegistry(time.Hour)
	t.Cleanup(registry.CloseAll)

	svc := Services{
		Progress:     services.NewProgressService(mem, services.NewLiveNotifier(registry)),
		Categories:   services.NewCategoryService(mem),
		Achievements: services.NewAchievementService(mem),
		Rewards:      services.NewRewardService(mem),
		Stats:        services.NewStatsService(mem),
	}
	return &testAPI{
		router:   NewRouter(svc, RouterOptions{Registry: registry, AllowedOrigins: []string{testOrigin}}),
		registry: registry,
		store:    mem,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func (a *testAPI) seedAchievement(t *testing.T, target int) string {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/categories", map[string]any{
		"key":  "daily",
		"name": map[string]string{"en": "Daily", "ru": "Ежедневные"},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	categoryID := decodeBody(t, rr)["id"].(string)

	rr = a.do(t, http.MethodPost, "/achievements", map[string]any{
		"title":       map[string]string{"en": "Walker", "ru": "Ходок"},
		"description": "Walk a lot",
		"target":      target,
		"categoryId":  categoryID,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody(t, rr)["id"].(string)
}

func TestProgressTargetScenario(t *testing.T) {
	api := newTestAPI(t)
	achievementID := api.seedAchievement(t, 5)

	rr := api.do(t, http.MethodPost, "/progress", map[string]any{
		"userId": "user-1", "achievementId": achievementID, "currentStep": 3,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBody(t, rr)
	assert.Equal(t, "INPROGRESS", created["progress"])
	assert.Equal(t, float64(3), created["currentStep"])
	id := created["id"].(string)

	rr = api.do(t, http.MethodPatch, "/progress/"+id, map[string]any{"currentStep": 5})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "FINISHED", decodeBody(t, rr)["progress"])

	rr = api.do(t, http.MethodPatch, "/progress/"+id, map[string]any{"currentStep": 9})
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decodeBody(t, rr)
	assert.Equal(t, "FINISHED", updated["progress"])
	assert.Equal(t, float64(5), updated["currentStep"])
}

func TestProgressConflictAndValidationDetails(t *testing.T) {
	api := newTestAPI(t)
	achievementID := api.seedAchievement(t, 5)

	rr := api.do(t, http.MethodPost, "/progress", map[string]any{
		"userId": "user-1", "achievementId": achievementID, "progress": "FINISHED", "currentStep": 2,
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.NotEmpty(t, body["error"])
	assert.Equal(t, float64(2), body["currentStep"])
	assert.Equal(t, float64(5), body["target"])

	rr = api.do(t, http.MethodPost, "/progress", map[string]any{"userId": "user-1", "achievementId": achievementID})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = api.do(t, http.MethodPost, "/progress", map[string]any{"userId": "user-1", "achievementId": achievementID})
	require.Equal(t, http.StatusConflict, rr.Code)
	body = decodeBody(t, rr)
	assert.Equal(t, "Progress record already exists for this user and achievement", body["error"])
	existing, ok := body["existingProgress"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "INPROGRESS", existing["progress"])
}

func TestProgressLookup(t *testing.T) {
	api := newTestAPI(t)
	achievementID := api.seedAchievement(t, 0)

	rr := api.do(t, http.MethodGet, "/progress/user/user-1/"+achievementID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	miss := decodeBody(t, rr)
	assert.Equal(t, false, miss["found"])
	assert.Equal(t, "Progress not found", miss["message"])

	rr = api.do(t, http.MethodGet, "/progress/user/user-1/7a1c2e0e-0000-4000-8000-000000000000", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, false, decodeBody(t, rr)["status"])

	rr = api.do(t, http.MethodPost, "/progress", map[string]any{"userId": "user-1", "achievementId": achievementID})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "FINISHED", decodeBody(t, rr)["progress"])

	rr = api.do(t, http.MethodGet, "/progress/user/user-1/"+achievementID+"?lang=ru-RU", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	hit := decodeBody(t, rr)
	assert.Equal(t, true, hit["found"])
	record := hit["progress"].(map[string]any)
	assert.Equal(t, "Ходок", record["achievement"].(map[string]any)["title"])

	rr = api.do(t, http.MethodGet, "/progress/user/user-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	title := list[0]["achievement"].(map[string]any)["title"].(map[string]any)
	assert.Equal(t, "Walker", title["en"])
	assert.Equal(t, "", title["fr"])
}

func TestProgressDelete(t *testing.T) {
	api := newTestAPI(t)
	achievementID := api.seedAchievement(t, 3)

	rr := api.do(t, http.MethodPost, "/progress", map[string]any{"userId": "user-1", "achievementId": achievementID})
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decodeBody(t, rr)["id"].(string)

	rr = api.do(t, http.MethodDelete, "/progress/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = api.do(t, http.MethodGet, "/progress/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, http.MethodDelete, "/progress/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRequestDecodingErrors(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodPost, "/progress", `{"userId": "u", `)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.NotEmpty(t, decodeBody(t, rr)["error"])

	rr = api.do(t, http.MethodPost, "/progress", `{"userId": "u", "achievementId": "a", "currentStep": "three"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "currentStep")

	rr = api.do(t, http.MethodPost, "/progress", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "userId and achievementId are required", decodeBody(t, rr)["error"])
}

func TestCatalogOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	achievementID := api.seedAchievement(t, 2)

	rr := api.do(t, http.MethodPost, "/rewards", map[string]any{
		"type": "gold", "title": "x", "description": "y", "achievementId": achievementID,
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "gold", decodeBody(t, rr)["receivedType"])

	rr = api.do(t, http.MethodPost, "/rewards", map[string]any{
		"type": "badge", "title": "Gold", "description": "Shiny", "achievementId": achievementID,
		"details": map[string]any{"color": "gold"},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = api.do(t, http.MethodGet, "/categories?lang=en", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var categories []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &categories))
	require.Len(t, categories, 1)
	assert.Equal(t, "Daily", categories[0]["name"])
	achievements := categories[0]["achievements"].([]any)
	require.Len(t, achievements, 1)
	reward := achievements[0].(map[string]any)["reward"].(map[string]any)
	assert.Equal(t, "Gold", reward["title"])

	rr = api.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	st := decodeBody(t, rr)
	assert.Equal(t, float64(1), st["rewards"])

	categoryID := categories[0]["id"].(string)
	rr = api.do(t, http.MethodDelete, "/categories/"+categoryID, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = api.do(t, http.MethodGet, "/achievements/"+achievementID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = api.do(t, http.MethodGet, "/rewards", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestUnknownRouteIsJSON(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Contains(t, decodeBody(t, rr)["error"], "/nope")
}

type failingStats struct{}

func (failingStats) Stats(ctx context.Context) (*stats.Stats, error) {
	return nil, errors.New("connection refused")
}

func (failingStats) Ping(ctx context.Context) error {
	return errors.New("connection refused")
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "OK", body["status"])
	assert.NotEmpty(t, body["timestamp"])

	rr = api.do(t, http.MethodGet, "/health/db", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	h := NewStatsHandler(services.NewStatsService(failingStats{}))
	rec := httptest.NewRecorder()
	h.DatabaseHealth(rec, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":"ERROR","database":"disconnected","error":"connection refused"}`, rec.Body.String())
}

func TestEventsRequireClientID(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodGet, "/api/achievements-events", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Client ID is required"}`, rr.Body.String())

	rr = api.do(t, http.MethodGet, "/api/achievements-ws", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, http.MethodOptions, "/api/achievements-events", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestEventsPreflightUsesAllowedOrigins(t *testing.T) {
	api := newTestAPI(t)

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/achievements-events", nil)
		req.Header.Set("Origin", origin)
		rr := httptest.NewRecorder()
		api.router.ServeHTTP(rr, req)
		return rr
	}

	rr := preflight(testOrigin)
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, testOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "GET")

	rr = preflight("https://evil.example")
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestQueueAcks(t *testing.T) {
	client := live.NewClient("user-1", live.DefaultBufferSize)
	require.NoError(t, queueAcks(client, "user-1"))

	full := live.NewClient("user-2", 1)
	assert.ErrorIs(t, queueAcks(full, "user-2"), live.ErrBufferFull)

	closed := live.NewClient("user-3", live.DefaultBufferSize)
	closed.Close()
	assert.ErrorIs(t, queueAcks(closed, "user-3"), live.ErrClientClosed)
}

// readFrame returns the lines of the next event-stream frame.
func readFrame(t *testing.T, r *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return lines
		}
		lines = append(lines, line)
	}
}

func TestEventStreamDeliversProgress(t *testing.T) {
	api := newTestAPI(t)
	achievementID := api.seedAchievement(t, 0)

	srv := httptest.NewServer(api.router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/achievements-events?clientId=user-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))

	reader := bufio.NewReader(resp.Body)
	assert.Equal(t, []string{"data: connection established"}, readFrame(t, reader))
	assert.Equal(t, []string{"data: user-1"}, readFrame(t, reader))
	require.Eventually(t, func() bool { return api.registry.Len() == 1 }, time.Second, 10*time.Millisecond)

	rr := api.do(t, http.MethodPost, "/progress", map[string]any{"userId": "user-1", "achievementId": achievementID})
	require.Equal(t, http.StatusCreated, rr.Code)

	frame := readFrame(t, reader)
	require.Len(t, frame, 2)
	assert.Equal(t, "event: progress", frame[0])
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame[1], "data: ")), &payload))
	assert.Equal(t, "FINISHED", payload["progress"])
	assert.Equal(t, "user-1", payload["userId"])

	assert.Equal(t, []string{"event: work", "data: work"}, readFrame(t, reader))
}

func TestWebSocketDeliversProgress(t *testing.T) {
	api := newTestAPI(t)
	achievementID := api.seedAchievement(t, 4)

	srv := httptest.NewServer(api.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/achievements-ws?clientId=user-2"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	type frame struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	read := func() frame {
		var f frame
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&f))
		return f
	}

	ack := read()
	assert.Equal(t, "message", ack.Event)
	assert.JSONEq(t, `"connection established"`, string(ack.Data))
	assert.JSONEq(t, `"user-2"`, string(read().Data))
	require.Eventually(t, func() bool { return api.registry.Len() == 1 }, time.Second, 10*time.Millisecond)

	rr := api.do(t, http.MethodPost, "/progress", map[string]any{
		"userId": "user-2", "achievementId": achievementID, "currentStep": 1,
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	ev := read()
	assert.Equal(t, "progress", ev.Event)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	assert.Equal(t, "INPROGRESS", payload["progress"])
	assert.Equal(t, float64(1), payload["currentStep"])

	assert.Equal(t, "work", read().Event)
}
