package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a domain error code.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeDatabaseError    ErrorCode = "DATABASE_ERROR"
	ErrCodeInternalError    ErrorCode = "INTERNAL_ERROR"
)

// DomainError represents an error in the domain layer with context.
type DomainError struct {
	Code    ErrorCode
	Message string
	Context map[string]interface{}

	// Err is the underlying cause, if any. It is never serialized.
	Err error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first DomainError in err's chain, or
// ErrCodeInternalError if there is none.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternalError
}

// IsCode reports whether err carries the given domain error code.
func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Code == code
}

// NewValidationError creates a validation error.
func NewValidationError(details []string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidationFailed,
		Message: "Validation failed",
		Context: map[string]interface{}{"details": details},
	}
}

// NewFieldValidationError creates a validation error for a single field.
func NewFieldValidationError(field, message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidationFailed,
		Message: "Validation failed",
		Context: map[string]interface{}{
			"field":   field,
			"details": []string{field + ": " + message},
		},
	}
}

// NewNotFoundError creates a not found error for the given resource kind.
func NewNotFoundError(resource, id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Context: map[string]interface{}{"resource": resource, "id": id},
	}
}

// NewConflictError creates a conflict error.
func NewConflictError(message string, context map[string]interface{}) *DomainError {
	if context == nil {
		context = map[string]interface{}{}
	}
	return &DomainError{
		Code:    ErrCodeConflict,
		Message: message,
		Context: context,
	}
}

// NewDatabaseError wraps a storage or transaction failure.
func NewDatabaseError(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeDatabaseError,
		Message: "A database error occurred",
		Context: map[string]interface{}{},
		Err:     err,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeInternalError,
		Message: "An internal error occurred",
		Context: map[string]interface{}{},
		Err:     err,
	}
}
