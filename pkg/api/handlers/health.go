package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/somnus/somnus/pkg/api/response"
	"github.com/somnus/somnus/pkg/memory"
	"github.com/somnus/somnus/pkg/version"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store       *memory.Store
	storageType string
	started     time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store *memory.Store, storageType string) *HealthHandler {
	return &HealthHandler{
		store:       store,
		storageType: storageType,
		started:     time.Now(),
	}
}

// Health handles the /health endpoint (liveness probe).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Ready handles the /ready endpoint (readiness probe). Readiness requires the
// memory backend to answer a listing within a short deadline.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := h.store.Users(ctx); err != nil {
		response.JSON(w, http.StatusServiceUnavailable, map[string]any{
			"ready": false,
			"error": err.Error(),
		})
		return
	}

	response.JSON(w, http.StatusOK, map[string]bool{
		"ready": true,
	})
}

// Status handles the /status endpoint (detailed status).
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"version":        version.Version,
		"commit":         version.GitCommit,
		"build_time":     version.BuildTime,
		"go_version":     version.GoVersion,
		"storage":        h.storageType,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}
