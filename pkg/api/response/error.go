package response

import (
	"net/http"

	"github.com/somnus/somnus/pkg/engine"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id"`
}

// Common error codes
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"
)

// HTTPStatusFromCode maps pipeline error codes to HTTP status codes.
func HTTPStatusFromCode(code string) int {
	switch code {
	case engine.CodeValidation, engine.CodeMissingData:
		return http.StatusBadRequest
	case engine.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// TaskError writes an error response for a failed pipeline task, mapping
// the task error code to an HTTP status.
func TaskError(w http.ResponseWriter, err error, requestID string) {
	code := engine.Code(err)
	Error(w, HTTPStatusFromCode(code), code, err.Error(), requestID)
}
