package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents malformed or incomplete chapter analyses,
	// rejected before any write
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeResolution represents a relationship endpoint that could not be
	// matched or created
	ErrorTypeResolution ErrorType = "resolution"
	// ErrorTypeSync represents a chapter merge that failed partway and was
	// rolled back
	ErrorTypeSync ErrorType = "sync"
	// ErrorTypeConnectivity represents an unreachable graph store
	ErrorTypeConnectivity ErrorType = "connectivity"
	// ErrorTypeNotFound represents queries for entities or chapters that do
	// not exist
	ErrorTypeNotFound ErrorType = "not_found"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Validation errors

// ErrInvalidAnalysis is returned when a chapter analysis fails validation
type ErrInvalidAnalysis struct {
	*BaseError
	Field string
}

func NewInvalidAnalysis(field, reason string) *ErrInvalidAnalysis {
	return &ErrInvalidAnalysis{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("invalid analysis: %s - %s", field, reason), nil),
		Field:     field,
	}
}

// Resolution errors

// ErrEntityResolutionFailed is returned when a relationship endpoint cannot
// be resolved to a node
type ErrEntityResolutionFailed struct {
	*BaseError
	EntityName string
	EntityType string
}

func NewEntityResolutionFailed(entityName, entityType string, err error) *ErrEntityResolutionFailed {
	return &ErrEntityResolutionFailed{
		BaseError:  NewBaseError(ErrorTypeResolution, fmt.Sprintf("cannot resolve %s %q", entityType, entityName), err),
		EntityName: entityName,
		EntityType: entityType,
	}
}

// Sync errors

// ErrSyncFailed is returned when a chapter merge transaction was rolled back
type ErrSyncFailed struct {
	*BaseError
	ProjectID     string
	ChapterNumber int
}

func NewSyncFailed(projectID string, chapterNumber int, err error) *ErrSyncFailed {
	return &ErrSyncFailed{
		BaseError:     NewBaseError(ErrorTypeSync, fmt.Sprintf("chapter %d sync rolled back for project %s", chapterNumber, projectID), err),
		ProjectID:     projectID,
		ChapterNumber: chapterNumber,
	}
}

// Connectivity errors

// ErrStoreUnreachable is returned when the graph store cannot be reached
type ErrStoreUnreachable struct {
	*BaseError
	URI string
}

func NewStoreUnreachable(uri string, err error) *ErrStoreUnreachable {
	return &ErrStoreUnreachable{
		BaseError: NewBaseError(ErrorTypeConnectivity, fmt.Sprintf("graph store unreachable: %s", uri), err),
		URI:       uri,
	}
}

// Not-found errors

// ErrChapterNotFound is returned when a chapter number does not exist in a
// project
type ErrChapterNotFound struct {
	*BaseError
	ProjectID     string
	ChapterNumber int
}

func NewChapterNotFound(projectID string, chapterNumber int) *ErrChapterNotFound {
	return &ErrChapterNotFound{
		BaseError:     NewBaseError(ErrorTypeNotFound, fmt.Sprintf("chapter %d not found in project %s", chapterNumber, projectID), nil),
		ProjectID:     projectID,
		ChapterNumber: chapterNumber,
	}
}

// ErrProjectNotFound is returned when a project has no nodes at all
type ErrProjectNotFound struct {
	*BaseError
	ProjectID string
}

func NewProjectNotFound(projectID string) *ErrProjectNotFound {
	return &ErrProjectNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("project not found: %s", projectID), nil),
		ProjectID: projectID,
	}
}

// Helper functions

// base lets IsErrorType see the category through the typed wrappers, which
// all embed *BaseError
func (e *BaseError) base() *BaseError { return e }

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}
	if typed, ok := err.(interface{ base() *BaseError }); ok {
		return typed.base().Type == errType
	}
	if wrapper, ok := err.(interface{ Unwrap() error }); ok {
		return IsErrorType(wrapper.Unwrap(), errType)
	}
	return false
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	// Validation and resolution failures are deterministic
	if IsErrorType(err, ErrorTypeValidation) || IsErrorType(err, ErrorTypeResolution) {
		return false
	}
	// Connectivity failures are transient
	if IsErrorType(err, ErrorTypeConnectivity) {
		return true
	}
	// A rolled-back sync left the graph untouched, so the caller may retry
	// the whole chapter
	if IsErrorType(err, ErrorTypeSync) {
		return true
	}
	return false
}
