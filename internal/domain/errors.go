package domain

import (
	"errors"
	"fmt"
)

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodePaymentFailed = "PAYMENT_FAILED"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a validation error naming the offending field
func NewValidationError(field, message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource, id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: fmt.Sprintf("ID: %s", id),
	}
}

// NewConflictError creates a business-rule or state-machine conflict
func NewConflictError(message, details string) *DomainError {
	return &DomainError{
		Code:    ErrCodeConflict,
		Message: message,
		Details: details,
	}
}

// NewPaymentFailedError creates a new payment failed error
func NewPaymentFailedError(reason string, cause error) *DomainError {
	return &DomainError{
		Code:    ErrCodePaymentFailed,
		Message: "Payment processing failed",
		Details: reason,
		Cause:   cause,
	}
}

// NewInternalError wraps an infrastructure failure
func NewInternalError(message string, cause error) *DomainError {
	return &DomainError{
		Code:    ErrCodeInternal,
		Message: message,
		Cause:   cause,
	}
}

// GetDomainError extracts domain error from an error chain
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

func hasCode(err error, code string) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Code == code
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsNotFound reports whether err is a not found error
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsConflict reports whether err is a conflict error
func IsConflict(err error) bool { return hasCode(err, ErrCodeConflict) }

// IsPaymentFailed reports whether err is a payment failure
func IsPaymentFailed(err error) bool { return hasCode(err, ErrCodePaymentFailed) }
