// Package hmserr defines the error taxonomy shared by all HMS services and the
// echo error handler that renders it. Services classify failures at the point
// of detection; handlers return the error unmodified and the HTTP layer maps
// kinds to status codes and a {"error", "details"} body.
package hmserr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Kind classifies an error for HTTP mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
)

// Error is a classified HMS error. Details carries optional structured
// context, e.g. conflict descriptions or field-level validation messages.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed or missing input.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an absent referenced entity.
func NotFound(entity string, id interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

// Conflict reports a business rule or state transition violation.
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// ConflictWithDetails reports a conflict with per-item descriptions.
func ConflictWithDetails(message string, details []string) *Error {
	return &Error{Kind: KindConflict, Message: message, Details: details}
}

// Forbidden reports a missing permission.
func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure, typically a database error.
func Internal(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool { return KindOf(err) == k }

func statusFor(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// HTTPErrorHandler returns an echo error handler that renders classified
// errors as {"error", "details"}. Echo HTTP errors (binding, routing, auth
// middleware) pass through with their original status; everything else is a
// 500 with the message withheld from the client.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var status int
		body := errorBody{}

		var he *echo.HTTPError
		var e *Error
		switch {
		case errors.As(err, &e):
			status = statusFor(e.Kind)
			body.Error = e.Message
			body.Details = e.Details
			if e.Kind == KindInternal {
				logger.Error().Err(e.Err).Str("path", c.Path()).Msg(e.Message)
				body.Error = "internal server error"
				body.Details = nil
			}
		case errors.As(err, &he):
			status = he.Code
			body.Error = fmt.Sprintf("%v", he.Message)
		default:
			status = http.StatusInternalServerError
			logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
			body.Error = "internal server error"
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}
