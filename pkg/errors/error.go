// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Invalid configuration, parameters, transactions
//   - Data/Resource errors (200-299): Missing prices or fundamentals, query failures
//   - Universe/Ranking errors (300-399): Metric lookup and scoring errors
//   - Portfolio errors (500-599): Cash and position management errors
//   - Backtest errors (600-699): Engine preconditions and internal invariants
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidConfiguration, "portfolio size must be positive")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodePriceNotFound, "no price for %s on %s", symbol, date)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeQueryFailed, "failed to query prices", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodePriceNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// DataGapError represents a recoverable gap in the historical dataset:
// a missing price bar or fundamental snapshot for a symbol on a date the
// simulation needed it. The affected symbol is skipped for that date's
// decision; the gap is recorded in the backtest result, never fatal.
type DataGapError struct {
	Symbol  string    // Symbol with missing data
	Date    time.Time // Simulation date the data was needed for
	Kind    string    // "price" or "fundamentals"
	Message string    // Human-readable message
}

// NewDataGapError creates a new DataGapError.
func NewDataGapError(symbol string, date time.Time, kind, message string) *DataGapError {
	return &DataGapError{
		Symbol:  symbol,
		Date:    date,
		Kind:    kind,
		Message: message,
	}
}

// NewDataGapErrorf creates a new DataGapError with a formatted message.
func NewDataGapErrorf(symbol string, date time.Time, kind, format string, args ...any) *DataGapError {
	return &DataGapError{
		Symbol:  symbol,
		Date:    date,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *DataGapError) Error() string {
	return e.Message
}

// IsDataGapError checks if an error is a DataGapError.
// It uses errors.As to check the error chain.
func IsDataGapError(err error) bool {
	var gapErr *DataGapError

	return errors.As(err, &gapErr)
}

// AsDataGapError returns the DataGapError in err's chain, if any.
func AsDataGapError(err error) (*DataGapError, bool) {
	var gapErr *DataGapError
	if errors.As(err, &gapErr) {
		return gapErr, true
	}

	return nil, false
}
