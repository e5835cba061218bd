package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a standardized error code
type ErrorCode string

// Standard error codes organized by category
const (
	// Storage errors
	ErrCodeStorageNotFound       ErrorCode = "STORAGE_NOT_FOUND"
	ErrCodeStorageConflict       ErrorCode = "STORAGE_CONFLICT"
	ErrCodeStorageConnection     ErrorCode = "STORAGE_CONNECTION"
	ErrCodeStorageTransaction    ErrorCode = "STORAGE_TRANSACTION"
	ErrCodeStorageConstraint     ErrorCode = "STORAGE_CONSTRAINT"
	ErrCodeStorageInvalidQuery   ErrorCode = "STORAGE_INVALID_QUERY"
	ErrCodeStorageInitialization ErrorCode = "STORAGE_INITIALIZATION"

	// Validation errors
	ErrCodeValidationRequired ErrorCode = "VALIDATION_REQUIRED"
	ErrCodeValidationInvalid  ErrorCode = "VALIDATION_INVALID"
	ErrCodeValidationFormat   ErrorCode = "VALIDATION_FORMAT"

	// Domain errors
	ErrCodeItemNotFound      ErrorCode = "ITEM_NOT_FOUND"
	ErrCodeItemAlreadyExists ErrorCode = "ITEM_ALREADY_EXISTS"
	ErrCodeLinkNotFound      ErrorCode = "LINK_NOT_FOUND"
	ErrCodeScopeMismatch     ErrorCode = "SCOPE_MISMATCH"
	ErrCodeInvalidOperation  ErrorCode = "INVALID_OPERATION"

	// System errors
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotImplemented  ErrorCode = "NOT_IMPLEMENTED"
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	ErrCodeConfiguration   ErrorCode = "CONFIGURATION_ERROR"
)

// AppError represents a standardized application error
type AppError struct {
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	Details  interface{} `json:"details,omitempty"`
	Internal error       `json:"-"` // Internal error not exposed to clients
}

// Error implements the error interface
func (e *AppError) Error() string {
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// ToJSON returns a JSON representation safe for clients
func (e *AppError) ToJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	return &AppError{
		Code:     code,
		Message:  message,
		Internal: err,
	}
}

// Wrapf wraps an existing error with formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	if err == nil {
		return nil
	}

	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Is checks if an error has a specific error code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}

	return appErr.Code == code
}

// IsAny checks if an error matches any of the provided codes
func IsAny(err error, codes ...ErrorCode) bool {
	for _, code := range codes {
		if Is(err, code) {
			return true
		}
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return ErrCodeInternal
	}

	return appErr.Code
}

// GetMessage returns a safe message for the client
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return "An internal error occurred"
	}

	return appErr.Message
}

// GetInternal returns the internal error for logging
func GetInternal(err error) error {
	if err == nil {
		return nil
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return err
	}

	if appErr.Internal != nil {
		return appErr.Internal
	}

	return appErr
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return Newf(ErrCodeItemNotFound, "%s not found", resource)
}

// AlreadyExists creates an already exists error
func AlreadyExists(resource string) *AppError {
	return Newf(ErrCodeItemAlreadyExists, "%s already exists", resource)
}

// ValidationRequired creates a validation required error
func ValidationRequired(field string) *AppError {
	return Newf(ErrCodeValidationRequired, "%s is required", field)
}

// ValidationInvalid creates a validation invalid error
func ValidationInvalid(field, reason string) *AppError {
	return Newf(ErrCodeValidationInvalid, "%s is invalid: %s", field, reason)
}

// Internal creates an internal error with a safe message
func Internal(internalErr error) *AppError {
	return Wrap(internalErr, ErrCodeInternal, "An internal error occurred")
}
