package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const maxErrorBody = 1 << 20

// DownstreamErrorResponse is the error envelope written by httputil.WriteError.
type DownstreamErrorResponse struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes a non-2xx response and maps it to an
// error with matching semantics, preserving the downstream message when the
// body uses the standard envelope.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", service, resp.StatusCode, err)
	}

	var downstream DownstreamErrorResponse
	if json.Unmarshal(body, &downstream) == nil && downstream.Error != nil {
		return mapDownstreamError(resp.StatusCode, downstream.Error.Code, downstream.Error.Message, service)
	}
	return mapDownstreamError(resp.StatusCode, "", string(body), service)
}

func mapDownstreamError(status int, code, message, service string) error {
	qualified := fmt.Sprintf("%s: %s", service, message)

	switch {
	case status == http.StatusNotFound:
		return &apperrors.AppError{Code: "NOT_FOUND", Message: qualified, Status: status, Err: apperrors.ErrNotFound}
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(qualified)
	case status == http.StatusUnprocessableEntity:
		return &apperrors.AppError{Code: "INVALID_INPUT", Message: qualified, Status: status, Err: apperrors.ErrInvalidInput}
	case status == http.StatusConflict:
		return apperrors.Conflict(qualified)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(qualified)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(qualified)
	case status == http.StatusGone:
		return apperrors.Gone(qualified)
	case status == http.StatusTooManyRequests:
		return apperrors.TooManyRequests(qualified)
	case status == http.StatusServiceUnavailable:
		return apperrors.Unavailable(qualified, nil)
	case status >= 500:
		return fmt.Errorf("%s server error (%d/%s): %s", service, status, code, message)
	default:
		return fmt.Errorf("%s returned unexpected status %d: %s", service, status, message)
	}
}
