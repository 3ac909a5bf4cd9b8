// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	// ErrInsufficientHistory means the trigger lookback window cannot be
	// filled. Cycle-fatal: the orchestrator aborts the current scan.
	ErrInsufficientHistory = errors.New("insufficient index history")

	// ErrDataUnavailable is an instrument-local fetch failure. Non-fatal:
	// the instrument is eliminated and the cycle continues.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrRateLimited is provider backpressure. Retried with backoff before
	// downgrading to ErrDataUnavailable.
	ErrRateLimited = errors.New("rate limited")

	// ErrPortfolioLimit means opening a position would breach the book's
	// concentration limits (total or per-sector).
	ErrPortfolioLimit = errors.New("portfolio limit reached")

	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("operation timed out")
	ErrConfigInvalid = errors.New("invalid configuration")
	ErrNoTrigger     = errors.New("trigger inactive")
)

// DataError represents an instrument-local data failure. It records which
// data kind failed so the elimination reason survives into diagnostics.
type DataError struct {
	Kind    string
	Symbol  string
	Message string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.Kind, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.Kind, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// Is reports DataError as a match for the ErrDataUnavailable sentinel so
// callers can classify it without knowing the concrete type.
func (e *DataError) Is(target error) bool {
	return target == ErrDataUnavailable
}

// NewDataError creates a new DataError.
func NewDataError(kind, symbol, message string, err error) *DataError {
	return &DataError{
		Kind:    kind,
		Symbol:  symbol,
		Message: message,
		Err:     err,
	}
}

// ConfigError represents an out-of-range configuration option. Fails fast
// before a cycle starts.
type ConfigError struct {
	Option  string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s (%v): %s", e.Option, e.Value, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfigInvalid
}

// NewConfigError creates a new ConfigError.
func NewConfigError(option string, value interface{}, message string) *ConfigError {
	return &ConfigError{
		Option:  option,
		Value:   value,
		Message: message,
	}
}

// CycleError represents a cycle-fatal failure reported to the caller as a
// single structured error.
type CycleError struct {
	Stage string
	Err   error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("scan cycle failed [%s]: %v", e.Stage, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

// NewCycleError creates a new CycleError.
func NewCycleError(stage string, err error) *CycleError {
	return &CycleError{Stage: stage, Err: err}
}

// TransitionError represents an invalid position lifecycle transition.
type TransitionError struct {
	PositionID string
	From       string
	To         string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition for position %s: %s -> %s", e.PositionID, e.From, e.To)
}

// NewTransitionError creates a new TransitionError.
func NewTransitionError(positionID, from, to string) *TransitionError {
	return &TransitionError{PositionID: positionID, From: from, To: to}
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
