package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DoyleJ11/disk-defender-backend/internal/hub"
	"github.com/DoyleJ11/disk-defender-backend/internal/lobby"
	"github.com/DoyleJ11/disk-defender-backend/internal/protocol"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T, opts Options) (*httptest.Server, *hub.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(ctx, hub.Config{DefaultCode: "MAIN", TickEvery: 5 * time.Millisecond})
	srv := httptest.NewServer(SetupRoutes(h, opts))
	t.Cleanup(srv.Close)
	return srv, h
}

func TestGenerateCode(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z0-9]{6}$`)
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestAPI(t, Options{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateAndListLobbies(t *testing.T) {
	srv, h := newTestAPI(t, Options{})

	resp, err := http.Post(srv.URL+"/lobbies", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Len(t, created.Code, 6)

	lb, err := h.Get(context.Background(), created.Code)
	require.NoError(t, err)
	require.NotNil(t, lb)

	resp, err = http.Get(srv.URL + "/lobbies")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listed struct {
		Lobbies []lobby.View `json:"lobbies"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	var codes []string
	for _, v := range listed.Lobbies {
		codes = append(codes, v.Code)
	}
	assert.ElementsMatch(t, []string{"MAIN", created.Code}, codes)
}

func TestMetricsRouteOnlyWhenEnabled(t *testing.T) {
	srv, _ := newTestAPI(t, Options{})
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "defender_lobbies 1\n")
	})
	srv, _ = newTestAPI(t, Options{Metrics: metrics})
	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "defender_lobbies")
}

func TestWebsocketRoute(t *testing.T) {
	srv, _ := newTestAPI(t, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?pid=abc"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	env, err := protocol.DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgWelcome, env.Type)
}

func TestRecovererTurnsPanicsInto500(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	router := SetupRoutes(hub.NewHub(ctx, hub.Config{}), Options{}).(*chi.Mux)
	router.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
