// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotRunning       = errors.New("controller not running")
	ErrAlreadyRunning   = errors.New("controller already running")
	ErrPaused           = errors.New("controller is paused")
	ErrTradeNotFound    = errors.New("trade not found")
	ErrInvalidMode      = errors.New("invalid operating mode")
	ErrInvalidTolerance = errors.New("invalid risk tolerance")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrDatabaseError    = errors.New("database error")
	ErrDataNotFound     = errors.New("data not found")
)

// DataError represents a failure of an external data source
// (yield feed or portfolio snapshot). Never fatal to the control loop.
type DataError struct {
	Source  string
	Message string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s]: %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s]: %s", e.Source, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(source, message string, err error) *DataError {
	return &DataError{
		Source:  source,
		Message: message,
		Err:     err,
	}
}

// ExecutionError represents a failure reported by the executor while
// carrying out a trade's actions.
type ExecutionError struct {
	TradeID string
	Reason  string
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("execution error [%s]: %s: %v", e.TradeID, e.Reason, e.Err)
	}
	return fmt.Sprintf("execution error [%s]: %s", e.TradeID, e.Reason)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExecutionError creates a new ExecutionError.
func NewExecutionError(tradeID, reason string, err error) *ExecutionError {
	return &ExecutionError{
		TradeID: tradeID,
		Reason:  reason,
		Err:     err,
	}
}

// SafetyViolation represents a tripped safety gate. It is not treated as an
// exception by the controller; it carries the human-readable block reason.
type SafetyViolation struct {
	Rule    string
	Current float64
	Limit   float64
	Message string
}

func (e *SafetyViolation) Error() string {
	return fmt.Sprintf("safety violation [%s]: %s (current: %.2f, limit: %.2f)", e.Rule, e.Message, e.Current, e.Limit)
}

// NewSafetyViolation creates a new SafetyViolation.
func NewSafetyViolation(rule string, current, limit float64, message string) *SafetyViolation {
	return &SafetyViolation{
		Rule:    rule,
		Current: current,
		Limit:   limit,
		Message: message,
	}
}

// ValidationError represents a configuration or API-boundary validation error.
// It is returned synchronously before any state mutation.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
