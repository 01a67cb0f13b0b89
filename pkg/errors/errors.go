package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNavigation represents search/detail navigation failures
	ErrorTypeNavigation ErrorType = "navigation"
	// ErrorTypeFrameTimeout represents a bounded wait that never saw its frame
	ErrorTypeFrameTimeout ErrorType = "frame_timeout"
	// ErrorTypeSession represents browser session failures
	ErrorTypeSession ErrorType = "session"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeStorage represents sink/persistence errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// HarvestError represents an error scoped to one target entity
type HarvestError struct {
	Type    ErrorType
	Entity  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *HarvestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Entity, e.Message)
}

// Unwrap returns the underlying error
func (e *HarvestError) Unwrap() error {
	return e.Err
}

// IsEntityFatal reports whether the error ends the current entity's harvest.
// Parsing and cache problems are absorbed where they happen.
func (e *HarvestError) IsEntityFatal() bool {
	switch e.Type {
	case ErrorTypeNavigation, ErrorTypeFrameTimeout, ErrorTypeSession, ErrorTypeStorage:
		return true
	default:
		return false
	}
}

// IsEntityFatal reports whether err ends the entity's harvest. Errors that
// are not HarvestErrors are always fatal.
func IsEntityFatal(err error) bool {
	var he *HarvestError
	if stderrors.As(err, &he) {
		return he.IsEntityFatal()
	}
	return err != nil
}

// New creates a new HarvestError
func New(errType ErrorType, entity, message string, err error) *HarvestError {
	return &HarvestError{
		Type:    errType,
		Entity:  entity,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNavigation creates a new navigation error
func NewNavigation(entity, message string, err error) *HarvestError {
	return New(ErrorTypeNavigation, entity, message, err)
}

// NewFrameTimeout creates a new frame timeout error
func NewFrameTimeout(entity, selector string, timeout time.Duration) *HarvestError {
	message := fmt.Sprintf("frame %s not available after %v", selector, timeout)
	return New(ErrorTypeFrameTimeout, entity, message, nil)
}

// NewSession creates a new browser session error
func NewSession(entity, message string, err error) *HarvestError {
	return New(ErrorTypeSession, entity, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(entity, message string, err error) *HarvestError {
	return New(ErrorTypeParsing, entity, message, err)
}

// NewCache creates a new cache error
func NewCache(entity, message string, err error) *HarvestError {
	return New(ErrorTypeCache, entity, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(entity, message string, err error) *HarvestError {
	return New(ErrorTypePublisher, entity, message, err)
}

// NewStorage creates a new storage error
func NewStorage(entity, message string, err error) *HarvestError {
	return New(ErrorTypeStorage, entity, message, err)
}

// NewValidation creates a new validation error
func NewValidation(entity, message string) *HarvestError {
	return New(ErrorTypeValidation, entity, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *HarvestError {
	return New(ErrorTypeConfiguration, "", message, err)
}
