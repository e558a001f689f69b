package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/onnwee/storyreader/internal/logger"
)

// ErrorCode represents a structured error code
type ErrorCode string

// Error code constants organized by category
const (
	// AUTH_ - Authentication and authorization errors
	ErrAuthMissing   ErrorCode = "AUTH_MISSING"
	ErrAuthInvalid   ErrorCode = "AUTH_INVALID"
	ErrAuthForbidden ErrorCode = "AUTH_FORBIDDEN"

	// UPSTREAM_ - Failures of the remote story API
	ErrUpstreamFailed      ErrorCode = "UPSTREAM_FAILED"
	ErrUpstreamBadResponse ErrorCode = "UPSTREAM_BAD_RESPONSE"

	// SYSTEM_ - System and server errors
	ErrSystemInternal    ErrorCode = "SYSTEM_INTERNAL"
	ErrSystemUnavailable ErrorCode = "SYSTEM_UNAVAILABLE"
	ErrSystemTimeout     ErrorCode = "SYSTEM_TIMEOUT"

	// VALIDATION_ - Request validation errors
	ErrValidationInvalidJSON   ErrorCode = "VALIDATION_INVALID_JSON"
	ErrValidationInvalidFormat ErrorCode = "VALIDATION_INVALID_FORMAT"
	ErrValidationMissingField  ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrValidationInvalidValue  ErrorCode = "VALIDATION_INVALID_VALUE"

	// RESOURCE_ - Resource errors
	ErrResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrResourceConflict ErrorCode = "RESOURCE_CONFLICT"

	// RATE_LIMIT_ - Rate limiting errors
	ErrRateLimitGlobal ErrorCode = "RATE_LIMIT_GLOBAL"
	ErrRateLimitIP     ErrorCode = "RATE_LIMIT_IP"
)

// Error represents a structured API error
type Error struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	status    int            // HTTP status code (not serialized)
}

// ErrorResponse is the top-level error response wrapper
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// New creates a new API error
func New(code ErrorCode, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		status:  status,
	}
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithRequestID adds a request ID to the error
func (e *Error) WithRequestID(requestID string) *Error {
	e.RequestID = requestID
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code
func (e *Error) Status() int {
	return e.status
}

// Is matches another *Error with the same code, so callers can write
// errors.Is(err, apierr.ResourceNotFound("")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// HasCode reports whether err carries an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// WriteError writes a structured error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}

// AuthMissing creates an authentication missing error
func AuthMissing(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(ErrAuthMissing, message, http.StatusUnauthorized)
}

// AuthInvalid creates an invalid authentication error
func AuthInvalid(message string) *Error {
	if message == "" {
		message = "Invalid authentication credentials"
	}
	return New(ErrAuthInvalid, message, http.StatusUnauthorized)
}

// AuthForbidden creates a forbidden error
func AuthForbidden(message string) *Error {
	if message == "" {
		message = "Access forbidden"
	}
	return New(ErrAuthForbidden, message, http.StatusForbidden)
}

// UpstreamFailed reports a 5xx or transport failure of the story API
func UpstreamFailed(message string) *Error {
	if message == "" {
		message = "Story service request failed"
	}
	return New(ErrUpstreamFailed, message, http.StatusBadGateway)
}

// UpstreamBadResponse reports a story API response that could not be decoded
func UpstreamBadResponse(message string) *Error {
	if message == "" {
		message = "Story service returned an unreadable response"
	}
	return New(ErrUpstreamBadResponse, message, http.StatusBadGateway)
}

// SystemInternal creates an internal server error
func SystemInternal(message string) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return New(ErrSystemInternal, message, http.StatusInternalServerError)
}

// SystemUnavailable creates a service unavailable error
func SystemUnavailable(message string) *Error {
	if message == "" {
		message = "Service unavailable"
	}
	return New(ErrSystemUnavailable, message, http.StatusServiceUnavailable)
}

// SystemTimeout creates a system timeout error
func SystemTimeout(message string) *Error {
	if message == "" {
		message = "Request timeout"
	}
	return New(ErrSystemTimeout, message, http.StatusGatewayTimeout)
}

// ValidationInvalidJSON creates an invalid JSON error
func ValidationInvalidJSON() *Error {
	return New(ErrValidationInvalidJSON, "Invalid JSON request body", http.StatusBadRequest)
}

// ValidationInvalidFormat creates an invalid format error
func ValidationInvalidFormat(message string) *Error {
	if message == "" {
		message = "Invalid request format"
	}
	return New(ErrValidationInvalidFormat, message, http.StatusBadRequest)
}

// ValidationMissingField creates a missing field error
func ValidationMissingField(field string) *Error {
	return New(ErrValidationMissingField, "Missing required field: "+field, http.StatusBadRequest).
		WithDetails(map[string]any{"field": field})
}

// ValidationInvalidValue creates an invalid value error
func ValidationInvalidValue(field string, message string) *Error {
	if message == "" {
		message = "Invalid value for field: " + field
	}
	return New(ErrValidationInvalidValue, message, http.StatusBadRequest).
		WithDetails(map[string]any{"field": field})
}

// ResourceNotFound creates a resource not found error
func ResourceNotFound(resourceType string) *Error {
	if resourceType == "" {
		resourceType = "Resource"
	}
	return New(ErrResourceNotFound, resourceType+" not found", http.StatusNotFound).
		WithDetails(map[string]any{"resource_type": resourceType})
}

// ResourceConflict creates a resource conflict error
func ResourceConflict(message string) *Error {
	if message == "" {
		message = "Resource conflict"
	}
	return New(ErrResourceConflict, message, http.StatusConflict)
}

// RateLimitGlobal creates a global rate limit error
func RateLimitGlobal() *Error {
	return New(ErrRateLimitGlobal, "Rate limit exceeded - too many requests globally", http.StatusTooManyRequests)
}

// RateLimitIP creates an IP rate limit error
func RateLimitIP() *Error {
	return New(ErrRateLimitIP, "Rate limit exceeded - too many requests from your IP", http.StatusTooManyRequests)
}

// FromUpstreamStatus maps a non-2xx status of the story API onto an Error.
// message is the server's own message when it sent one.
func FromUpstreamStatus(status int, message string) *Error {
	switch {
	case status == http.StatusUnauthorized:
		return AuthInvalid(message)
	case status == http.StatusForbidden:
		return AuthForbidden(message)
	case status == http.StatusNotFound:
		return ResourceNotFound("").withMessage(message)
	case status == http.StatusConflict:
		return ResourceConflict(message)
	case status == http.StatusTooManyRequests:
		return RateLimitGlobal().withMessage(message)
	case status == http.StatusServiceUnavailable:
		return SystemUnavailable(message)
	case status >= 500:
		return UpstreamFailed(message)
	case status >= 400:
		return ValidationInvalidValue("request", message)
	default:
		return UpstreamBadResponse(message)
	}
}

func (e *Error) withMessage(message string) *Error {
	if message != "" {
		e.Message = message
	}
	return e
}

// From converts any error into an *Error for a response. Errors that already
// carry an *Error keep it; context expiry becomes a timeout; everything else
// is internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		// copy so request IDs do not leak between responses sharing a cached error
		cp := *e
		return &cp
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return SystemTimeout("")
	}
	if errors.Is(err, context.Canceled) {
		return New(ErrSystemTimeout, "Request cancelled", 499)
	}
	return SystemInternal("")
}

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// WriteErrorWithContext writes a structured error response with request ID from context
func WriteErrorWithContext(w http.ResponseWriter, r *http.Request, err *Error) {
	if reqID := GetRequestID(r.Context()); reqID != "" {
		err = err.WithRequestID(reqID)
	}
	WriteError(w, err)
}
