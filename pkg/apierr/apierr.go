// Package apierr defines the error taxonomy and JSON envelope shared by every
// HTTP-facing component. Handlers return *Error instead of writing ad hoc
// gin.H{"error": ...} maps so the wire shape stays stable across the API.
package apierr

import "net/http"

// Code is a stable, machine-readable error identifier.
type Code string

const (
	CodeValidation        Code = "VALIDATION"
	CodeConflict          Code = "CONFLICT"
	CodeAuth              Code = "AUTH"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeAlreadyVoted      Code = "ALREADY_VOTED"
	CodeAlreadyEnrolled   Code = "ALREADY_ENROLLED"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeUpstream          Code = "UPSTREAM"
	CodePrivacySuppressed Code = "PRIVACY_SUPPRESSED"
	CodeFatal             Code = "FATAL"
	CodeNotEligible       Code = "NOT_ELIGIBLE"
)

// Error is the envelope's inner payload: { error: { code, message,
// statusCode, details?, retryAfter? } }.
type Error struct {
	Code       Code   `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Details    any    `json:"details,omitempty"`
	RetryAfter *int   `json:"retryAfter,omitempty"` // seconds
	Retryable  bool   `json:"-"`
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

// Envelope wraps an *Error for JSON rendering.
type Envelope struct {
	Err *Error `json:"error"`
}

func new_(code Code, status int, msg string) *Error {
	return &Error{Code: code, Message: msg, StatusCode: status}
}

func Validation(msg string) *Error { return new_(CodeValidation, http.StatusBadRequest, msg) }

func Auth(msg string) *Error { return new_(CodeAuth, http.StatusUnauthorized, msg) }

func Forbidden(code Code, msg string) *Error { return new_(code, http.StatusForbidden, msg) }

func NotFound(msg string) *Error { return new_(CodeNotFound, http.StatusNotFound, msg) }

func Conflict(code Code, msg string) *Error { return new_(code, http.StatusConflict, msg) }

func RateLimited(retryAfterSeconds int) *Error {
	e := new_(CodeRateLimited, http.StatusTooManyRequests, "rate limit exceeded")
	e.RetryAfter = &retryAfterSeconds
	return e
}

func Upstream(msg string, retryable bool) *Error {
	status := http.StatusBadGateway
	if !retryable {
		status = http.StatusGatewayTimeout
	}
	e := new_(CodeUpstream, status, msg)
	e.Retryable = retryable
	return e
}

func Fatal(msg string) *Error { return new_(CodeFatal, http.StatusInternalServerError, msg) }

// Envelope builds the wire envelope for e.
func (e *Error) Envelope() Envelope { return Envelope{Err: e} }
