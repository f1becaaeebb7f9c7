// Package apperror defines the application's error categories and how each
// one is rendered as an HTTP response.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType categorises an AppError.
type ErrorType int

const (
	// UnknownError is for unspecified errors
	UnknownError ErrorType = iota
	// DatabaseError represents an error originating from the database
	DatabaseError
	// ConfigError represents an error related to application configuration
	ConfigError
	// AuthError represents missing or invalid credentials on a protected endpoint
	AuthError
	// PermissionError represents an authenticated caller acting on something it does not own
	PermissionError
	// NotFoundError represents a resource not found error
	NotFoundError
	// ValidationError represents an input validation error, usually with per-field messages
	ValidationError
	// BadRequestError represents a generic bad request
	BadRequestError
	// InternalError represents a generic internal server error
	InternalError
	// MigrationError represents an error during database migrations
	MigrationError
)

// NonFieldErrors is the key used in Fields for errors that span several fields.
const NonFieldErrors = "non_field_errors"

// AppError is the error type returned by services. Err keeps the underlying
// cause for logs; only Message and Fields reach the client.
type AppError struct {
	Type    ErrorType
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error type to an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Type {
	case AuthError:
		return http.StatusUnauthorized
	case PermissionError:
		return http.StatusForbidden
	case NotFoundError:
		return http.StatusNotFound
	case ValidationError, BadRequestError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func NewAppError(errType ErrorType, message string, underlyingError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     underlyingError,
	}
}

func NewDatabaseError(message string, underlyingError error) *AppError {
	return NewAppError(DatabaseError, message, underlyingError)
}

func NewConfigError(message string, underlyingError error) *AppError {
	return NewAppError(ConfigError, message, underlyingError)
}

func NewAuthError(message string, underlyingError error) *AppError {
	return NewAppError(AuthError, message, underlyingError)
}

func NewPermissionError(message string) *AppError {
	return NewAppError(PermissionError, message, nil)
}

func NewNotFoundError(message string, underlyingError error) *AppError {
	return NewAppError(NotFoundError, message, underlyingError)
}

// NewFieldError builds a ValidationError carrying a single message for one field.
func NewFieldError(field, message string) *AppError {
	return NewFieldErrors(map[string][]string{field: {message}})
}

// NewFieldErrors builds a ValidationError from per-field messages.
func NewFieldErrors(fields map[string][]string) *AppError {
	e := NewAppError(ValidationError, "validation failed", nil)
	e.Fields = fields
	return e
}

func NewBadRequestError(message string, underlyingError error) *AppError {
	return NewAppError(BadRequestError, message, underlyingError)
}

func NewInternalError(message string, underlyingError error) *AppError {
	return NewAppError(InternalError, message, underlyingError)
}

func NewMigrationError(message string, underlyingError error) *AppError {
	return NewAppError(MigrationError, message, underlyingError)
}

// ErrorResponse is the JSON body written for every error.
type ErrorResponse struct {
	Error  string              `json:"error" example:"validation failed"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Fields: e.Fields}
}

// FromError finds an AppError anywhere in err's chain.
func FromError(err error) (*AppError, bool) {
	if err == nil {
		return nil, false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsNotFound(err error) bool {
	return isType(err, NotFoundError)
}

func IsAuthError(err error) bool {
	return isType(err, AuthError)
}

func IsPermissionError(err error) bool {
	return isType(err, PermissionError)
}

func IsValidationError(err error) bool {
	return isType(err, ValidationError)
}

func isType(err error, t ErrorType) bool {
	appErr, ok := FromError(err)
	return ok && appErr.Type == t
}
