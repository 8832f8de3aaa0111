package errors

import "net/http"

// ErrorDetail is the inner error object returned to API callers.
type ErrorDetail struct {
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the JSON shape of every error returned by the API.
// Internal messages are never exposed; only the hint (or a generic message)
// and any reportable details reach the caller.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// NewErrorResponse builds the API response for an error. The precise internal
// error is expected to be logged by the caller.
func NewErrorResponse(err error) *ErrorResponse {
	msg := Hint(err)
	if msg == "" {
		msg = "something went wrong"
	}
	return &ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Message: msg,
			Details: ReportableDetails(err),
		},
	}
}

// HTTPStatus maps an error's sentinel mark to an HTTP status code.
// Retryable failures map to 5xx so that upstream callers (the payment
// processor's webhook delivery in particular) redeliver; terminal failures
// map to 4xx and must not be retried.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case Is(err, ErrValidation), Is(err, ErrInvalidSignature), Is(err, ErrStaleSignature):
		return http.StatusBadRequest
	case Is(err, ErrPermissionDenied):
		return http.StatusUnauthorized
	case Is(err, ErrNotFound):
		return http.StatusNotFound
	case Is(err, ErrAlreadyExists), Is(err, ErrVersionConflict):
		return http.StatusConflict
	case IsRetryable(err):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
