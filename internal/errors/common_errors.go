package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeConfig marks fatal configuration errors. Training aborts
	// immediately and never produces a partial model bank.
	ErrTypeConfig ErrorType = "CONFIG"
	// ErrTypeValidation marks invalid input features. The message list is
	// returned to the caller in full, never one error at a time.
	ErrTypeValidation ErrorType = "VALIDATION"
	// ErrTypeNotFound marks registry lookup misses.
	ErrTypeNotFound ErrorType = "NOT_FOUND"
	// ErrTypeTimeout marks batch items that exceeded the deadline.
	ErrTypeTimeout ErrorType = "TIMEOUT"
	// ErrTypePrediction wraps unexpected failures during single prediction.
	ErrTypePrediction ErrorType = "PREDICTION"
	// ErrTypeParsing marks dataset parsing failures.
	ErrTypeParsing ErrorType = "PARSING"
	// ErrTypeStorage marks registry persistence failures.
	ErrTypeStorage ErrorType = "STORAGE"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	// Details carries the accumulated validation messages for
	// ErrTypeValidation errors.
	Details []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Message, strings.Join(e.Details, "; "))
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// Helper constructors for the domain taxonomy

// NewConfigurationError creates a fatal configuration error
func NewConfigurationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewInvalidInputError creates a validation error carrying every collected message
func NewInvalidInputError(messages []string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: "invalid input features",
		Details: messages,
	}
}

// NewModelNotFoundError creates a registry lookup miss error
func NewModelNotFoundError(modelID string, cause error) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("model %q not found", modelID), cause)
}

// NewBatchTimeoutError creates a per-item batch timeout error
func NewBatchTimeoutError(index int) *AppError {
	return NewAppError(ErrTypeTimeout, fmt.Sprintf("prediction timed out for item %d", index), nil)
}

// NewNotCompletedError marks a batch item the scheduler never resolved
func NewNotCompletedError(index int) *AppError {
	return NewAppError(ErrTypeTimeout, fmt.Sprintf("prediction not completed for item %d", index), nil)
}

// NewPredictionError wraps an unexpected failure during single prediction so
// callers never see a raw internal error
func NewPredictionError(cause error) *AppError {
	return NewAppError(ErrTypePrediction, "prediction failed", cause)
}

// NewParsingError creates a dataset parsing error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a registry persistence error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}
