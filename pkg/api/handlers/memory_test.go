package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somnus/somnus/pkg/api/models"
	"github.com/somnus/somnus/pkg/logger"
	"github.com/somnus/somnus/pkg/memory"
	"github.com/somnus/somnus/pkg/memory/backend/inmem"
	"github.com/somnus/somnus/pkg/sleep"
)

func newMemoryRouter(t *testing.T) (chi.Router, *memory.Store) {
	t.Helper()

	store := memory.New(inmem.New(), nil)
	h := NewMemoryHandler(store, logger.Global())

	r := chi.NewRouter()
	r.Get("/api/v1/memory", h.ListUsers)
	r.Route("/api/v1/memory/{userID}", func(r chi.Router) {
		r.Get("/stm", h.GetSTM)
		r.Delete("/stm", h.DeleteSTM)
		r.Get("/ltm", h.GetLTM)
		r.Delete("/ltm", h.DeleteLTM)
	})
	return r, store
}

func seedUser(t *testing.T, store *memory.Store, userID string) {
	t.Helper()

	date := time.Now().Format("2006-01-02")
	_, err := store.PutSTM(t.Context(), userID, []sleep.Session{{
		Date: date, Bedtime: "23:00", Waketime: "07:00", DurationHours: 8.0,
	}})
	require.NoError(t, err)

	require.NoError(t, store.PutLTM(t.Context(), userID, &memory.LTMRecord{
		UserID: userID,
		Trends: memory.Trends{AvgDuration: 8.0, DurationCount: 1},
	}))
}

func doRequest(r http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGetSTM(t *testing.T) {
	r, store := newMemoryRouter(t)
	seedUser(t, store, "alice")

	rec := doRequest(r, http.MethodGet, "/api/v1/memory/alice/stm")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		UserID       string `json:"user_id"`
		SessionCount int    `json:"session_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body.UserID)
	assert.Equal(t, 1, body.SessionCount)
}

func TestGetSTMNotFound(t *testing.T) {
	r, _ := newMemoryRouter(t)

	rec := doRequest(r, http.MethodGet, "/api/v1/memory/ghost/stm")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetLTMIncludesTrendsSummary(t *testing.T) {
	r, store := newMemoryRouter(t)
	seedUser(t, store, "alice")

	rec := doRequest(r, http.MethodGet, "/api/v1/memory/alice/ltm")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		UserID        string `json:"user_id"`
		TrendsSummary string `json:"trends_summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body.UserID)
	assert.NotEmpty(t, body.TrendsSummary)
}

func TestDeleteSTM(t *testing.T) {
	r, store := newMemoryRouter(t)
	seedUser(t, store, "alice")

	rec := doRequest(r, http.MethodDelete, "/api/v1/memory/alice/stm")
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.DeleteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "stm", body.Tier)
	assert.True(t, body.Deleted)

	_, err := store.GetSTM(t.Context(), "alice")
	assert.Error(t, err)
}

func TestDeleteIsIdempotent(t *testing.T) {
	r, _ := newMemoryRouter(t)

	// Deleting absent memory still succeeds.
	rec := doRequest(r, http.MethodDelete, "/api/v1/memory/ghost/ltm")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListUsers(t *testing.T) {
	r, store := newMemoryRouter(t)
	seedUser(t, store, "alice")
	seedUser(t, store, "bob")

	rec := doRequest(r, http.MethodGet, "/api/v1/memory")
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.UserListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.ElementsMatch(t, []string{"alice", "bob"}, body.Users)
}
