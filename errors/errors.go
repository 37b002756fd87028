// Package errors provides structured error types for the syncbridge service.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents the type of error that occurred
type ErrorCode string

const (
	ErrCodeNetworkFailure       ErrorCode = "NETWORK_FAILURE"
	ErrCodeStorageFailure       ErrorCode = "STORAGE_FAILURE"
	ErrCodeConflictFailure      ErrorCode = "CONFLICT_FAILURE"
	ErrCodeConflictUnresolvable ErrorCode = "CONFLICT_UNRESOLVABLE"
	ErrCodeValidationFailure    ErrorCode = "VALIDATION_FAILURE"
	ErrCodeQueueFailure         ErrorCode = "QUEUE_FAILURE"
	ErrCodeRateLimited          ErrorCode = "RATE_LIMITED"
)

// Operation represents the operation during which an error occurred
type Operation string

const (
	OpValidate        Operation = "validate"
	OpEnqueue         Operation = "enqueue"
	OpProcess         Operation = "process"
	OpBroadcast       Operation = "broadcast"
	OpPublish         Operation = "publish"
	OpSubscribe       Operation = "subscribe"
	OpConflictCheck   Operation = "conflict_check"
	OpConflictResolve Operation = "conflict_resolve"
	OpConnectorSync   Operation = "connector_sync"
	OpConnectorPush   Operation = "connector_push"
	OpStore           Operation = "store"
	OpClose           Operation = "close"
)

// SyncError represents an error that occurred inside the sync pipeline
type SyncError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g., "hub", "connector/erp")
	Component string

	// Underlying error
	Err error

	// Whether the operation can be retried
	Retryable bool

	// Error code for the error type
	Code ErrorCode

	// Metadata for additional context
	Metadata map[string]interface{}
}

func (e *SyncError) Error() string {
	var msg string
	if e.Component != "" {
		msg = fmt.Sprintf("%s operation failed in %s component", e.Op, e.Component)
	} else {
		msg = fmt.Sprintf("%s operation failed", e.Op)
	}

	if e.Code != "" {
		msg += fmt.Sprintf(" [%s]", e.Code)
	}

	return msg + fmt.Sprintf(": %v", e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// WithMetadata attaches a metadata key/value pair and returns the error
func (e *SyncError) WithMetadata(key string, value interface{}) *SyncError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// NewStorageError creates a new storage-related SyncError
func NewStorageError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeStorageFailure,
		Op:        op,
		Component: "storage",
		Err:       cause,
		Retryable: true,
	}
}

// NewConflictError creates a new conflict-related SyncError
func NewConflictError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeConflictFailure,
		Op:        op,
		Component: "conflict",
		Err:       cause,
		Retryable: false,
	}
}

// NewUnresolvableError marks a conflict the resolver could not settle.
// Events carrying this error must not be re-queued; they are surfaced
// for manual remediation instead.
func NewUnresolvableError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeConflictUnresolvable,
		Op:        op,
		Component: "conflict",
		Err:       cause,
		Retryable: false,
	}
}

// NewValidationError creates a new validation-related SyncError
func NewValidationError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeValidationFailure,
		Op:        op,
		Err:       cause,
		Retryable: false,
	}
}

// NewNetworkError creates a new network-related SyncError
func NewNetworkError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeNetworkFailure,
		Op:        op,
		Component: "transport",
		Err:       cause,
		Retryable: true,
	}
}

// New creates a new SyncError
func New(op Operation, err error) *SyncError {
	return &SyncError{
		Op:  op,
		Err: err,
	}
}

// NewWithComponent creates a new SyncError with component information
func NewWithComponent(op Operation, component string, err error) *SyncError {
	return &SyncError{
		Op:        op,
		Component: component,
		Err:       err,
	}
}

// NewRetryable creates a new retryable SyncError
func NewRetryable(op Operation, err error) *SyncError {
	return &SyncError{
		Op:        op,
		Err:       err,
		Retryable: true,
	}
}

// FromHTTPStatus classifies an HTTP response status into a SyncError.
// 5xx, 408 and 429 are transient and retryable; remaining 4xx are
// permanent and propagate immediately.
func FromHTTPStatus(op Operation, component string, status int, body string) *SyncError {
	cause := fmt.Errorf("unexpected status %d: %s", status, body)

	switch {
	case status >= 500:
		return &SyncError{
			Code:      ErrCodeNetworkFailure,
			Op:        op,
			Component: component,
			Err:       cause,
			Retryable: true,
		}
	case status == 429:
		return &SyncError{
			Code:      ErrCodeRateLimited,
			Op:        op,
			Component: component,
			Err:       cause,
			Retryable: true,
		}
	case status == 408:
		return &SyncError{
			Code:      ErrCodeNetworkFailure,
			Op:        op,
			Component: component,
			Err:       cause,
			Retryable: true,
		}
	default:
		return &SyncError{
			Op:        op,
			Component: component,
			Err:       cause,
			Retryable: false,
		}
	}
}

// IsRetryable checks if an error is a retryable SyncError
func IsRetryable(err error) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Retryable
	}
	return false
}

// IsUnresolvable reports whether err marks an unresolvable conflict
func IsUnresolvable(err error) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Code == ErrCodeConflictUnresolvable
	}
	return false
}

// CodeOf returns the ErrorCode carried by err, or an empty code
func CodeOf(err error) ErrorCode {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Code
	}
	return ""
}
