package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType classifies an AppError
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeInternal     ErrorType = "INTERNAL"
	ErrorTypeDatabase     ErrorType = "DATABASE"
)

type typeMapping struct {
	status int
	code   string
}

// mappings gives every AppError type its HTTP status and default response code.
// Validation and internal failures share their codes with the domain taxonomy.
var mappings = map[ErrorType]typeMapping{
	ErrorTypeValidation:   {http.StatusBadRequest, CodeValidation},
	ErrorTypeNotFound:     {http.StatusNotFound, "NOT_FOUND"},
	ErrorTypeConflict:     {http.StatusConflict, "CONFLICT"},
	ErrorTypeUnauthorized: {http.StatusUnauthorized, "UNAUTHORIZED"},
	ErrorTypeInternal:     {http.StatusInternalServerError, CodeInternal},
	ErrorTypeDatabase:     {http.StatusInternalServerError, CodeInternal},
}

// AppError is a generic error outside the club membership taxonomy: malformed requests,
// missing credentials and storage failures
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause attaches the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func newAppError(t ErrorType, message string) *AppError {
	m := mappings[t]
	return &AppError{
		Type:       t,
		Code:       m.code,
		Message:    message,
		HTTPStatus: m.status,
		StackTrace: callerStack(3),
	}
}

// callerStack renders up to 32 frames above skip
func callerStack(skip int) string {
	pcs := make([]uintptr, 32)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(skip, pcs)])

	var sb strings.Builder
	for frame, more := frames.Next(); ; frame, more = frames.Next() {
		fmt.Fprintf(&sb, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			return sb.String()
		}
	}
}

// NewValidationError reports a malformed request or an illegal entity state
func NewValidationError(message string) *AppError {
	return newAppError(ErrorTypeValidation, message)
}

// NewValidationErrorf is NewValidationError with a formatted message
func NewValidationErrorf(format string, args ...interface{}) *AppError {
	return newAppError(ErrorTypeValidation, fmt.Sprintf(format, args...))
}

// NewNotFoundError reports a missing resource that has no domain error of its own
func NewNotFoundError(resource string) *AppError {
	return newAppError(ErrorTypeNotFound, resource+" not found")
}

// NewConflictError reports a write that lost a race
func NewConflictError(message string) *AppError {
	return newAppError(ErrorTypeConflict, message)
}

// NewUnauthorizedError reports missing or invalid credentials
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return newAppError(ErrorTypeUnauthorized, message)
}

// NewInternalError reports a failure the caller cannot act on
func NewInternalError(message string) *AppError {
	return newAppError(ErrorTypeInternal, message)
}

// NewDatabaseError wraps a storage failure
func NewDatabaseError(operation string, err error) *AppError {
	return newAppError(ErrorTypeDatabase, fmt.Sprintf("database operation '%s' failed", operation)).WithCause(err)
}

// GetAppError extracts an AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

func IsNotFound(err error) bool     { return IsType(err, ErrorTypeNotFound) }
func IsValidation(err error) bool   { return IsType(err, ErrorTypeValidation) }
func IsUnauthorized(err error) bool { return IsType(err, ErrorTypeUnauthorized) }
func IsConflict(err error) bool     { return IsType(err, ErrorTypeConflict) }
func IsInternal(err error) bool     { return IsType(err, ErrorTypeInternal) }

// Wrap adds context to err. Typed errors keep their type; anything else becomes internal.
func Wrap(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case GetAppError(err) != nil, GetDomainError(err) != nil:
		return fmt.Errorf("%s: %w", message, err)
	default:
		return NewInternalError(message).WithCause(err)
	}
}

// Wrapf is Wrap with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
