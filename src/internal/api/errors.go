package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/wifx/geoip-rsc/src/internal/errors"
)

// ErrorCode represents standard API error codes. Domain failures reuse the
// codes from the errors package.
type ErrorCode string

const (
	// ErrCodeInvalidRequest indicates malformed or invalid request data.
	ErrCodeInvalidRequest ErrorCode = "invalid_request"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"

	// ErrCodeRateLimited indicates too many forced refreshes.
	ErrCodeRateLimited ErrorCode = "rate_limited"

	// ErrCodeInternalError indicates an internal server error.
	ErrCodeInternalError ErrorCode = "internal_error"
)

// APIError represents a structured API error response.
type APIError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps an APIError for JSON responses.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// NewAPIError creates a new APIError with the given code and message.
func NewAPIError(code ErrorCode, message string) APIError {
	return APIError{
		Code:    code,
		Message: message,
	}
}

// WithDetails adds details to an APIError.
func (e APIError) WithDetails(details map[string]interface{}) APIError {
	e.Details = details
	return e
}

// WriteError writes an error response to the HTTP response writer.
func WriteError(w http.ResponseWriter, statusCode int, err APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}

// WriteInvalidRequest writes a 400 Bad Request error.
func WriteInvalidRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, NewAPIError(ErrCodeInvalidRequest, message))
}

// WriteNotFound writes a 404 Not Found error.
func WriteNotFound(w http.ResponseWriter, resource string) {
	WriteError(w, http.StatusNotFound, NewAPIError(ErrCodeNotFound, resource+" not found"))
}

// WriteInternalError writes a 500 Internal Server Error.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, NewAPIError(ErrCodeInternalError, message))
}

// WriteDomainError maps a domain error to its HTTP status and writes it with
// the domain code.
func WriteDomainError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	if code == "" {
		WriteInternalError(w, err.Error())
		return
	}

	apiErr := NewAPIError(ErrorCode(code), err.Error())
	var de *errors.Error
	if stderrors.As(err, &de) {
		apiErr.Message = de.Message
		details := map[string]interface{}{}
		if de.Cause != nil {
			details["cause"] = de.Cause.Error()
		}
		if de.Status != 0 {
			details["status"] = de.Status
		}
		if len(details) > 0 {
			apiErr = apiErr.WithDetails(details)
		}
	}
	WriteError(w, statusForCode(code), apiErr)
}

func statusForCode(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeEmptySelection, errors.ErrCodeValidation:
		return http.StatusBadRequest
	case errors.ErrCodeUnknownZone:
		return http.StatusNotFound
	case errors.ErrCodeFetchTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeFetchHTTPStatus, errors.ErrCodeFetchNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
