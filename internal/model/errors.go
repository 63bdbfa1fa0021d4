package model

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes domain errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates an unknown product, table, or order.
	ErrCodeNotFound ErrorCode = "NotFound"

	// ErrCodeDuplicateTable indicates a table number already exists.
	ErrCodeDuplicateTable ErrorCode = "DuplicateTable"

	// ErrCodeEmptyOrder indicates an order with no line items.
	ErrCodeEmptyOrder ErrorCode = "EmptyOrder"

	// ErrCodeInvalidQuantity indicates a non-positive line quantity or a
	// negative stock level.
	ErrCodeInvalidQuantity ErrorCode = "InvalidQuantity"

	// ErrCodeInsufficientStock indicates a request for more than is on hand.
	ErrCodeInsufficientStock ErrorCode = "InsufficientStock"

	// ErrCodeActiveOrderExists indicates the table already has a Pending or
	// Delivering order.
	ErrCodeActiveOrderExists ErrorCode = "ActiveOrderExists"

	// ErrCodeInvalidTransition indicates a status edge outside the lifecycle.
	ErrCodeInvalidTransition ErrorCode = "InvalidTransition"

	// ErrCodeStockInconsistency indicates an order was committed but a
	// following stock decrement failed. It is a warning, never rolled back.
	ErrCodeStockInconsistency ErrorCode = "StockInconsistency"

	// ErrCodeInvalidProduct indicates malformed product fields.
	ErrCodeInvalidProduct ErrorCode = "InvalidProduct"

	// ErrCodeInvalidTable indicates a malformed table number or status.
	ErrCodeInvalidTable ErrorCode = "InvalidTable"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrNotFound           = &Error{Code: ErrCodeNotFound}
	ErrDuplicateTable     = &Error{Code: ErrCodeDuplicateTable}
	ErrEmptyOrder         = &Error{Code: ErrCodeEmptyOrder}
	ErrInvalidQuantity    = &Error{Code: ErrCodeInvalidQuantity}
	ErrInsufficientStock  = &Error{Code: ErrCodeInsufficientStock}
	ErrActiveOrderExists  = &Error{Code: ErrCodeActiveOrderExists}
	ErrInvalidTransition  = &Error{Code: ErrCodeInvalidTransition}
	ErrStockInconsistency = &Error{Code: ErrCodeStockInconsistency}
	ErrInvalidProduct     = &Error{Code: ErrCodeInvalidProduct}
	ErrInvalidTable       = &Error{Code: ErrCodeInvalidTable}
)

// Error is a recoverable, per-call domain failure.
//
// Validation errors are returned before any mutation. The caller gets a
// typed failure it can present to the user; no Error is fatal.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Details carries identifiers useful for diagnostics.
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// With returns a copy of e with an extra detail attached.
func (e *Error) With(key, value string) *Error {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Code: e.Code, Message: e.Message, Details: details}
}

// Errorf creates an Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ErrorCode from err, or "" if err is not a domain error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
