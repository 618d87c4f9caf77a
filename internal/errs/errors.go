// Package errs defines the error taxonomy shared by the query pipeline.
//
// Every failure that crosses a component boundary is an *Error carrying a
// Kind. Callers branch on the kind, never on message text:
//   - KindOracle: the language model call failed or returned nothing usable
//   - KindSQL: candidate SQL was rejected by the guard or failed to execute
//   - KindValidation: the request itself is malformed
//   - KindAnalysis: a synthesis sub-query failed (always contained)
package errs

import (
	"errors"
	"fmt"
)

// Kind categorizes pipeline errors.
type Kind string

const (
	// KindOracle indicates a provider failure, timeout, or empty completion.
	KindOracle Kind = "ORACLE_ERROR"

	// KindSQL indicates a guard rejection or an execution failure.
	KindSQL Kind = "SQL_ERROR"

	// KindValidation indicates a malformed request.
	KindValidation Kind = "VALIDATION_ERROR"

	// KindAnalysis indicates a failed synthesis sub-query.
	KindAnalysis Kind = "ANALYSIS_ERROR"
)

// Error is a classified pipeline error.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Op names the operation that failed (e.g. "oracle.generate").
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without an underlying cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap classifies err under kind. Returns nil if err is nil.
func Wrap(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsOracle reports whether err is an oracle error.
func IsOracle(err error) bool { return KindOf(err) == KindOracle }

// IsSQL reports whether err is a SQL error.
func IsSQL(err error) bool { return KindOf(err) == KindSQL }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsAnalysis reports whether err is an analysis error.
func IsAnalysis(err error) bool { return KindOf(err) == KindAnalysis }

// Message returns the innermost human-readable message for err. Used where
// an error is surfaced to API clients as plain text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
		return e.Message
	}
	return err.Error()
}
