package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrServiceRequired      = sterrors.New("actionflow: service is required")
	ErrActionRequired       = sterrors.New("actionflow: action is required")
	ErrActionNameRequired   = sterrors.New("actionflow: action name is required")
	ErrDuplicateAction      = sterrors.New("actionflow: action already registered")
	ErrUnknownActionKind    = sterrors.New("actionflow: unknown action kind")
	ErrQueueRequired        = sterrors.New("actionflow: queue client is required")
	ErrTopicRequired        = sterrors.New("actionflow: topic is required")
	ErrStorageRequired      = sterrors.New("actionflow: content storage is required")
	ErrConfigRequired       = sterrors.New("actionflow: configuration is required")
	ErrLoggerRequired       = sterrors.New("actionflow: logger is required")
	ErrNilResult            = sterrors.New("actionflow: action returned no result")
	ErrIncompatibleResult   = sterrors.New("actionflow: result type not allowed for action kind")
	ErrEmptyContent         = sterrors.New("actionflow: content requires at least one segment")
	ErrEventPayloadRequired = sterrors.New("actionflow: event payload is required")
	ErrQueueClosed          = sterrors.New("actionflow: queue is closed")
	ErrAlreadyStarted       = sterrors.New("actionflow: service already started")
)

// ConfigValidationError marks a configuration that failed Validate.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("actionflow: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
