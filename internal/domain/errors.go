package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures of the ingestion and retrieval core.
type ErrorKind string

const (
	// KindEmptyInput indicates there was no text to normalize or chunk
	KindEmptyInput ErrorKind = "empty_input"

	// KindInvalidParams indicates a misused API (bad sizes, k, threshold)
	KindInvalidParams ErrorKind = "invalid_params"

	// KindDimensionMismatch indicates vectors of differing length
	KindDimensionMismatch ErrorKind = "dimension_mismatch"

	// KindEmptyIndex indicates a build or search over zero entries
	KindEmptyIndex ErrorKind = "empty_index"

	// KindEmbeddingFailure indicates the provider errored or returned malformed output
	KindEmbeddingFailure ErrorKind = "embedding_failure"

	// KindQueryEmpty marks an empty query. Search degrades it to an empty result.
	KindQueryEmpty ErrorKind = "query_empty"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrEmptyInput        = &Error{Kind: KindEmptyInput}
	ErrInvalidParams     = &Error{Kind: KindInvalidParams}
	ErrDimensionMismatch = &Error{Kind: KindDimensionMismatch}
	ErrEmptyIndex        = &Error{Kind: KindEmptyIndex}
	ErrEmbeddingFailure  = &Error{Kind: KindEmbeddingFailure}
	ErrQueryEmpty        = &Error{Kind: KindQueryEmpty}
)

// Error is the typed error returned by the core packages.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	parts = append(parts, string(e.Kind))
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te != nil && e.Kind == te.Kind
	}
	return false
}

// Timeout reports whether the error was caused by a deadline at the provider boundary.
func (e *Error) Timeout() bool {
	return e.Cause != nil && errors.Is(e.Cause, context.DeadlineExceeded)
}

// NewError creates a typed error.
func NewError(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a typed error with an underlying cause.
func WrapError(kind ErrorKind, op string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of err, or "" when err is not a typed error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsTimeout reports whether err is a provider failure caused by a deadline.
func IsTimeout(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
