// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrDataUnavailable     = errors.New("market data unavailable")
	ErrNoEligibleContracts = errors.New("no eligible contracts")
	ErrNotWhitelisted      = errors.New("symbol not whitelisted")
	ErrUnparsableContract  = errors.New("unparsable contract")
	ErrNumericDegenerate   = errors.New("degenerate numeric input")
	ErrInvalidStrategy     = errors.New("invalid strategy")
	ErrSymbolNotFound      = errors.New("symbol not found")
	ErrConfigInvalid       = errors.New("invalid configuration")
	ErrInputValidation     = errors.New("input validation failed")
)

// ErrorCode is the machine-readable failure code carried by structured results.
type ErrorCode string

const (
	CodeNone                ErrorCode = ""
	CodeDataUnavailable     ErrorCode = "DATA_UNAVAILABLE"
	CodeNoEligibleContracts ErrorCode = "NO_ELIGIBLE_CONTRACTS"
	CodeNotWhitelisted      ErrorCode = "NOT_WHITELISTED"
	CodeInvalidStrategy     ErrorCode = "INVALID_STRATEGY"
	CodeInvalidInput        ErrorCode = "INVALID_INPUT"
	CodeInternal            ErrorCode = "INTERNAL"
)

// Code maps an error chain to its result code.
func Code(err error) ErrorCode {
	switch {
	case err == nil:
		return CodeNone
	case errors.Is(err, ErrDataUnavailable), errors.Is(err, ErrSymbolNotFound):
		return CodeDataUnavailable
	case errors.Is(err, ErrNoEligibleContracts):
		return CodeNoEligibleContracts
	case errors.Is(err, ErrNotWhitelisted):
		return CodeNotWhitelisted
	case errors.Is(err, ErrInvalidStrategy):
		return CodeInvalidStrategy
	case errors.Is(err, ErrInputValidation), errors.Is(err, ErrUnparsableContract):
		return CodeInvalidInput
	default:
		return CodeInternal
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// Unavailable wraps a provider failure so that it matches ErrDataUnavailable.
func Unavailable(dataType, symbol string, err error) *DataError {
	if err == nil {
		err = ErrDataUnavailable
	} else if !errors.Is(err, ErrDataUnavailable) {
		err = fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	return NewDataError(dataType, symbol, "fetch failed", err)
}

// ContractError describes why a single contract was skipped.
type ContractError struct {
	Strike float64
	Field  string
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract %.4g: %s: %s", e.Strike, e.Field, e.Reason)
}

func (e *ContractError) Unwrap() error {
	return ErrUnparsableContract
}

// NewContractError creates a new ContractError.
func NewContractError(strike float64, field, reason string) *ContractError {
	return &ContractError{
		Strike: strike,
		Field:  field,
		Reason: reason,
	}
}

// WhitelistError reports a symbol outside an enforced whitelist.
type WhitelistError struct {
	Symbol  string
	Market  string
	Allowed []string
}

func (e *WhitelistError) Error() string {
	return fmt.Sprintf("%s is not whitelisted for market %s (%d allowed)", e.Symbol, e.Market, len(e.Allowed))
}

func (e *WhitelistError) Unwrap() error {
	return ErrNotWhitelisted
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrapf prefixes err with formatted context, keeping it matchable with errors.Is.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
