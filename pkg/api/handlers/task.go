// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/somnus/somnus/pkg/api/middleware"
	"github.com/somnus/somnus/pkg/api/models"
	"github.com/somnus/somnus/pkg/api/response"
	"github.com/somnus/somnus/pkg/engine"
)

// TaskHandler handles analysis task submission.
type TaskHandler struct {
	engine *engine.Engine
	logger handlerLogger
}

type handlerLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(eng *engine.Engine, log handlerLogger) *TaskHandler {
	return &TaskHandler{
		engine: eng,
		logger: log,
	}
}

// SubmitTask handles POST /api/v1/tasks.
//
//	@Summary	Run a sleep analysis task
//	@Tags		tasks
//	@Accept		json
//	@Produce	json
//	@Param		request	body		models.TaskRequest	true	"Analysis task"
//	@Success	200		{object}	sleep.AnalysisResult
//	@Failure	400		{object}	response.ErrorResponse
//	@Failure	503		{object}	response.ErrorResponse
//	@Router		/api/v1/tasks [post]
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest,
			"Invalid request body", getRequestID(ctx))
		return
	}

	result, err := h.engine.Run(ctx, req.ToTask())
	if err != nil {
		h.logger.Warn("Task failed",
			"user_id", req.UserID, "code", engine.Code(err), "error", err)
		response.TaskError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, result)
}

func getRequestID(ctx context.Context) string {
	return middleware.GetRequestID(ctx)
}
