package httperr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"aircall-sync/internal/domain"
	"aircall-sync/internal/observability/logger"

	"go.uber.org/zap"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	OK    bool         `json:"ok"`
	Error *ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	ErrorID string            `json:"error_id,omitempty"`
}

// 401 Unauthorized
const (
	ErrCodeMissingToken = "MISSING_TOKEN"
	ErrCodeInvalidToken = "INVALID_TOKEN"
)

// 400 Bad Request
const (
	ErrCodeInvalidFormat   = "INVALID_FORMAT"
	ErrCodeValidationError = "VALIDATION_ERROR"
)

// 503 Service Unavailable
const (
	ErrCodeQueueFull    = "QUEUE_FULL"
	ErrCodeShuttingDown = "SHUTTING_DOWN"
)

// 500 Internal Server Error
const (
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// exposeErrorID controls whether 500 responses carry the request id.
var exposeErrorID bool

// ExposeErrorIDs makes 500 responses include the request id. Enabled in dev.
func ExposeErrorIDs(enabled bool) {
	exposeErrorID = enabled
}

// WriteError writes a standardized error response
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	writeError(w, ctx, status, &ErrorDetail{Code: code, Message: message})
}

// WriteErrorWithFields writes a standardized error response with field-level details
func WriteErrorWithFields(w http.ResponseWriter, ctx context.Context, status int, code, message string, fields map[string]string) {
	writeError(w, ctx, status, &ErrorDetail{Code: code, Message: message, Fields: fields})
}

func writeError(w http.ResponseWriter, ctx context.Context, status int, detail *ErrorDetail) {
	fields := []zap.Field{
		logger.Module("http"),
		logger.Action("error_response"),
		zap.Int("status_code", status),
		zap.String("error_code", detail.Code),
		zap.String("message", detail.Message),
	}
	for k, v := range detail.Fields {
		fields = append(fields, zap.String("field_"+k, v))
	}

	log := logger.GetLogger(ctx)
	if status >= 500 {
		log.Error(ctx, "request failed", fields...)
	} else {
		log.Warn(ctx, "request rejected", fields...)
	}

	writeJSON(w, status, ErrorResponse{OK: false, Error: detail})
}

// Unauthorized401 writes a 401 Unauthorized response
func Unauthorized401(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusUnauthorized, code, message)
}

// BadRequest400 writes a 400 Bad Request response
func BadRequest400(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusBadRequest, code, message)
}

// ServiceUnavailable503 asks the sender to redeliver later.
func ServiceUnavailable503(w http.ResponseWriter, ctx context.Context, code, message string) {
	w.Header().Set("Retry-After", "5")
	WriteError(w, ctx, http.StatusServiceUnavailable, code, message)
}

// Validation writes a 400 with the failing field when err is a
// *domain.ValidationError. Returns false for any other error.
func Validation(w http.ResponseWriter, ctx context.Context, err error) bool {
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		return false
	}

	var fields map[string]string
	if vErr.Field != "" {
		fields = map[string]string{vErr.Field: vErr.Reason}
	}
	WriteErrorWithFields(w, ctx, http.StatusBadRequest, ErrCodeValidationError, vErr.Error(), fields)
	return true
}

// InternalError500 writes a 500 Internal Server Error response
func InternalError500(w http.ResponseWriter, ctx context.Context, message string) {
	reqID := logger.GetRequestIDFromContext(ctx)

	logger.GetLogger(ctx).Error(ctx, "internal server error",
		logger.Module("http"),
		logger.Action("error_response"),
		zap.String("message", message),
	)

	// Generic message outside dev.
	detail := &ErrorDetail{Code: ErrCodeInternalError, Message: "Internal Server Error"}
	if exposeErrorID {
		detail.ErrorID = reqID
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{OK: false, Error: detail})
}

// InternalError is InternalError500 with a generic message.
func InternalError(w http.ResponseWriter, ctx context.Context) {
	InternalError500(w, ctx, "internal server error")
}

// WriteJSON writes v with status as JSON.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	writeJSON(w, status, v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
