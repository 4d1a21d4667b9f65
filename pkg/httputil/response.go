package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

// Response is the JSON envelope every endpoint answers with.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are gone by now; an encode failure cannot be reported to the client.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps data in the envelope.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Response{Data: data})
}

// WriteError translates err into an error envelope. AppErrors keep their own
// code and message, validation errors report per-field messages, sentinels map
// to a generic message, and anything else becomes a logged 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code:      "VALIDATION_ERROR",
			Message:   "request validation failed",
			Fields:    valErr.Fields(),
			RequestID: requestID,
		}})
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Status != http.StatusInternalServerError {
		WriteJSON(w, appErr.Status, Response{Error: &ErrorResponse{
			Code:      appErr.Code,
			Message:   appErr.Message,
			RequestID: requestID,
		}})
		return
	}

	status := apperrors.HTTPStatus(err)
	code, message := sentinelBody(err, status)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		l := logger.FromContext(r.Context())
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		l.ErrorContext(r.Context(), "internal error",
			logger.Err(err),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Error: &ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: requestID,
	}})
}

func sentinelBody(err error, status int) (string, string) {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND", "resource not found"
	case http.StatusConflict:
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return "ALREADY_EXISTS", "resource already exists"
		}
		return "CONFLICT", "resource state conflict"
	case http.StatusBadRequest:
		return "INVALID_INPUT", err.Error()
	case http.StatusUnauthorized:
		return "UNAUTHORIZED", "authentication required"
	case http.StatusForbidden:
		return "FORBIDDEN", "insufficient permissions"
	case http.StatusGone:
		return "GONE", "resource no longer available"
	case http.StatusTooManyRequests:
		return "TOO_MANY_REQUESTS", "rate limit exceeded"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE", "dependency unavailable"
	default:
		return "INTERNAL_ERROR", "an internal error occurred"
	}
}

// WriteValidationError writes a 400 for a failed decode or validation.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteError(w, r, err, nil)
		return
	}
	WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
		Code:      "INVALID_INPUT",
		Message:   err.Error(),
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}})
}

// PaginatedResponse is the list envelope used by paginated endpoints.
type PaginatedResponse[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

func NewPaginatedResponse[T any](data []T, totalCount, page, perPage int) PaginatedResponse[T] {
	if perPage <= 0 {
		perPage = 1
	}
	totalPages := (totalCount + perPage - 1) / perPage
	if data == nil {
		data = []T{}
	}
	return PaginatedResponse[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// IDParam validates an opaque identifier taken from the URL path. On failure it
// writes a 400 and returns false.
func IDParam(w http.ResponseWriter, r *http.Request, name, value string) (string, bool) {
	value = strings.TrimSpace(value)
	if err := validator.Var(name, value, "required,max=64,printascii"); err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code:      "INVALID_PARAMETER",
			Message:   "invalid " + name + ": " + value,
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		}})
		return "", false
	}
	return value, true
}
