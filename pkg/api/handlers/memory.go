package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/somnus/somnus/pkg/api/models"
	"github.com/somnus/somnus/pkg/api/response"
	"github.com/somnus/somnus/pkg/memory"
	"github.com/somnus/somnus/pkg/trend"
)

// MemoryHandler handles per-user memory inspection and deletion.
type MemoryHandler struct {
	store  *memory.Store
	logger handlerLogger
}

// NewMemoryHandler creates a new memory handler.
func NewMemoryHandler(store *memory.Store, log handlerLogger) *MemoryHandler {
	return &MemoryHandler{
		store:  store,
		logger: log,
	}
}

// stmResponse wraps an STM record for inspection.
type stmResponse struct {
	*memory.STMRecord
	SessionCount int `json:"session_count"`
}

// ltmResponse wraps an LTM record plus a readable trends summary.
type ltmResponse struct {
	*memory.LTMRecord
	TrendsSummary string `json:"trends_summary"`
}

// GetSTM handles GET /api/v1/memory/{userID}/stm
func (h *MemoryHandler) GetSTM(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	rec, err := h.store.GetSTM(ctx, userID)
	if err != nil {
		h.writeStoreError(w, r, err, userID)
		return
	}

	response.JSON(w, http.StatusOK, stmResponse{
		STMRecord:    rec,
		SessionCount: len(rec.Sessions),
	})
}

// GetLTM handles GET /api/v1/memory/{userID}/ltm
func (h *MemoryHandler) GetLTM(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	rec, err := h.store.GetLTM(ctx, userID)
	if err != nil {
		h.writeStoreError(w, r, err, userID)
		return
	}

	response.JSON(w, http.StatusOK, ltmResponse{
		LTMRecord:     rec,
		TrendsSummary: trend.Describe(rec.Trends),
	})
}

// DeleteSTM handles DELETE /api/v1/memory/{userID}/stm
func (h *MemoryHandler) DeleteSTM(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	if err := h.store.DeleteSTM(ctx, userID); err != nil {
		var notFound *memory.NotFoundError
		if !errors.As(err, &notFound) {
			h.writeStoreError(w, r, err, userID)
			return
		}
	}

	response.JSON(w, http.StatusOK, models.DeleteResponse{
		UserID: userID, Tier: "stm", Deleted: true,
	})
}

// DeleteLTM handles DELETE /api/v1/memory/{userID}/ltm
func (h *MemoryHandler) DeleteLTM(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	if err := h.store.DeleteLTM(ctx, userID); err != nil {
		var notFound *memory.NotFoundError
		if !errors.As(err, &notFound) {
			h.writeStoreError(w, r, err, userID)
			return
		}
	}

	response.JSON(w, http.StatusOK, models.DeleteResponse{
		UserID: userID, Tier: "ltm", Deleted: true,
	})
}

// ListUsers handles GET /api/v1/memory
func (h *MemoryHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.store.Users(ctx)
	if err != nil {
		h.logger.Error("Failed to list users", "error", err)
		response.Error(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable,
			"Memory store unavailable", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, models.UserListResponse{
		Users: users,
		Count: len(users),
	})
}

func (h *MemoryHandler) writeStoreError(w http.ResponseWriter, r *http.Request, err error, userID string) {
	ctx := r.Context()

	var notFound *memory.NotFoundError
	if errors.As(err, &notFound) {
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound,
			"No memory for user "+userID, getRequestID(ctx))
		return
	}

	var unavailable *memory.UnavailableError
	if errors.As(err, &unavailable) {
		h.logger.Error("Memory store unavailable", "user_id", userID, "error", err)
		response.Error(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable,
			"Memory store unavailable", getRequestID(ctx))
		return
	}

	h.logger.Error("Memory read failed", "user_id", userID, "error", err)
	response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer,
		"Failed to read memory", getRequestID(ctx))
}
