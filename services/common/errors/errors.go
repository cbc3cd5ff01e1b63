package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error represents an application error
type Error struct {
	Code      int    `json:"code"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Err       error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithReason returns a copy of e carrying a machine readable reason.
func (e *Error) WithReason(reason string) *Error {
	cp := *e
	cp.Reason = reason
	return &cp
}

// AsRetryable returns a copy of e flagged as safe to retry.
func (e *Error) AsRetryable() *Error {
	cp := *e
	cp.Retryable = true
	return &cp
}

// Wrap returns a copy of e wrapping cause. The package level values are
// templates and are never mutated.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// Common error types
var (
	ErrBadRequest         = New(http.StatusBadRequest, "Bad request", nil)
	ErrUnauthorized       = New(http.StatusUnauthorized, "Unauthorized", nil)
	ErrForbidden          = New(http.StatusForbidden, "Forbidden", nil)
	ErrNotFound           = New(http.StatusNotFound, "Not found", nil)
	ErrConflict           = New(http.StatusConflict, "Conflict", nil)
	ErrUnprocessable      = New(http.StatusUnprocessableEntity, "Unprocessable entity", nil)
	ErrMethodNotAllowed   = New(http.StatusMethodNotAllowed, "Method not allowed", nil)
	ErrInternalServer     = New(http.StatusInternalServerError, "Internal server error", nil)
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "Service unavailable", nil)
)

// From returns err as an *Error, classifying anything else as internal.
func From(err error) *Error {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.Wrap(err)
}

// Error handlers
func HandleError(w http.ResponseWriter, err error) {
	appErr := From(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Code)
	_, _ = w.Write([]byte(appErr.JSON()))
}

// Error middleware for Gin
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		appErr := From(c.Errors.Last().Err)
		c.AbortWithStatusJSON(appErr.Code, appErr)
	}
}

// Validation error types
var (
	ErrValidation   = New(http.StatusBadRequest, "Validation error", nil)
	ErrInvalidInput = New(http.StatusBadRequest, "Invalid input", nil)
)

// Authentication error types
var (
	ErrTokenExpired = New(http.StatusUnauthorized, "Token expired", nil)
	ErrInvalidToken = New(http.StatusUnauthorized, "Invalid token", nil)
)

// Business logic error types
var (
	ErrInsufficientStock = New(http.StatusConflict, "Insufficient stock", nil).WithReason("INSUFFICIENT_STOCK")
)
