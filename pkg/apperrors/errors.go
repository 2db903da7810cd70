// Package apperrors defines the error taxonomy shared across sqlbind.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedStyle = errors.New("no placeholder generator registered for target parameter style")
	ErrCoercionFailed   = errors.New("parameter type coercion failed")
	ErrSQLTooLong       = errors.New("SQL text exceeds configured maximum length")
	ErrInvalidCacheSize = errors.New("cache max size must be positive")
	ErrUnknownCache     = errors.New("no cache registered under that name")
)

// AlignmentError reports a mismatch between the placeholders a statement
// declares and the parameter values supplied for it. Both identifier sets are
// carried in sorted order so callers can render actionable messages; a count
// alone is not enough to debug a named-parameter typo.
type AlignmentError struct {
	Expected   []string
	Actual     []string
	Missing    []string
	Unexpected []string

	// BatchIndex is the offending row for execute-many calls, -1 otherwise.
	BatchIndex int
}

func (e *AlignmentError) Error() string {
	var b strings.Builder
	b.WriteString("parameter alignment mismatch")
	if e.BatchIndex >= 0 {
		fmt.Fprintf(&b, " in batch element %d", e.BatchIndex)
	}
	fmt.Fprintf(&b, ": expected [%s], got [%s]",
		strings.Join(e.Expected, ", "), strings.Join(e.Actual, ", "))
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, " (missing: [%s])", strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		fmt.Fprintf(&b, " (unexpected: [%s])", strings.Join(e.Unexpected, ", "))
	}
	return b.String()
}

// InjectionError is returned when a string parameter value matches a SQL
// injection fingerprint during the optional libinjection scan.
type InjectionError struct {
	ParamName   string
	Fingerprint string
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("potential SQL injection detected in parameter '%s' (fingerprint %s)", e.ParamName, e.Fingerprint)
}
