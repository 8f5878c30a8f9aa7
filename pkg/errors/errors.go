package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Error codes used across all packages
const (
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeMissingRequired  ErrorCode = "MISSING_REQUIRED"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeUserNotActive    ErrorCode = "USER_NOT_ACTIVE"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeTokenInvalid     ErrorCode = "TOKEN_INVALID"
	ErrCodeRateLimited      ErrorCode = "RATE_LIMIT_EXCEEDED"
)

// Postgres SQLSTATE codes mapped to ErrCodeConflict
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

const (
	permissionDeniedPrefix = "Permission Denied: "
	userNotActiveMessage   = "User is not active, please revalidate or reset your account!"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode              // Unique error code
	Message string                 // Human-readable error message
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
// Returns ErrCodeInternal if the error is not a structured Error
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// Message returns the human readable message of err, without the code prefix.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus returns the status code a handler should answer with for err.
func HTTPStatus(err error) int {
	return MapErrorCodeToHTTPStatus(GetCode(err))
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeMissingRequired, ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeUnauthorized, ErrCodeTokenInvalid:
		return http.StatusUnauthorized
	case ErrCodeForbidden, ErrCodeUserNotActive:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// NotFound creates a "not found" error, e.g. "User Not Found for [42]"
func NotFound(resourceType string, key interface{}) *Error {
	return Newf(ErrCodeNotFound, "%s Not Found for [%v]", resourceType, key)
}

// Missing creates an error for a required field absent from a request
func Missing(field, resourceType string) *Error {
	return Newf(ErrCodeMissingRequired, "[%s] is Missing in [%s] request", field, resourceType)
}

// PermissionDenied creates a "forbidden" error
func PermissionDenied(message string) *Error {
	return New(ErrCodeForbidden, permissionDeniedPrefix+message)
}

// UserNotActive is returned when a pending or inactive user tries to log in
func UserNotActive() *Error {
	return New(ErrCodeUserNotActive, userNotActiveMessage)
}

// Unauthorized creates an "unauthorized" error
func Unauthorized(message string) *Error {
	return New(ErrCodeUnauthorized, message)
}

// Conflict creates an integrity conflict error
func Conflict(message string) *Error {
	return New(ErrCodeConflict, message)
}

// Internal wraps an unexpected error
func Internal(err error, message string) *Error {
	return Wrap(err, ErrCodeInternal, message)
}

// ValidationFailed creates a "validation failed" error carrying one aggregated message
func ValidationFailed(messages ...string) *Error {
	return New(ErrCodeValidationFailed, strings.Join(messages, ", "))
}

// FromValidation converts validator errors into one ValidationFailed error.
// Messages are sorted so the aggregated text is stable.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Wrap(err, ErrCodeValidationFailed, "invalid request")
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fieldMessage(fe))
	}
	sort.Strings(messages)
	return ValidationFailed(messages...).WithDetail("fields", len(verrs))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "gt", "gte":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s is not a valid email", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// FromPostgres maps referential integrity and uniqueness violations to
// ErrCodeConflict. Other errors are returned unchanged.
func FromPostgres(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgForeignKeyViolation:
		return Wrap(err, ErrCodeConflict, "Referential integrity violation: "+pgErr.ConstraintName)
	case pgUniqueViolation:
		return Wrap(err, ErrCodeConflict, "Duplicate entry: "+pgErr.ConstraintName)
	}
	return err
}
