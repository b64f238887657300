package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyslot/easyslot/internal/metrics"
	"github.com/easyslot/easyslot/internal/state"
	"github.com/easyslot/easyslot/internal/users"
)

func newTestServer(t *testing.T) (*Server, *users.Store, *state.Manager) {
	t.Helper()
	store := users.NewStore()
	states, err := state.NewManager(t.TempDir(), clockwork.NewFakeClock())
	require.NoError(t, err)
	return New(":0", store, states, metrics.New()), store, states
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestUserLifecycle(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/users", `{"email":"a@example.com","name":"A"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "User added successfully")

	rec = doRequest(s, http.MethodGet, "/api/users/a@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var u users.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, "A", u.Name)

	rec = doRequest(s, http.MethodPut, "/api/users/a@example.com", `{"name":"A2"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []users.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 1)
	assert.Equal(t, "A2", all[0].Name)

	rec = doRequest(s, http.MethodDelete, "/api/users/a@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/users/a@example.com", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddUser_Conflict(t *testing.T) {
	s, store, _ := newTestServer(t)
	require.NoError(t, store.Add(users.User{Email: "a@example.com"}))

	rec := doRequest(s, http.MethodPost, "/api/users", `{"email":"a@example.com"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAddUser_InvalidPayload(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/users", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatus(t *testing.T) {
	s, _, states := newTestServer(t)
	states.Update("a@example.com", state.StatusWatching, "2025-06-01 to 2025-09-30", "Toronto", false, "")

	rec := doRequest(s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var all map[string]state.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Contains(t, all, "a@example.com")
	assert.Equal(t, state.StatusWatching, all["a@example.com"].Status)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
