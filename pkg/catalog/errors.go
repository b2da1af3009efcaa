package catalog

import (
	"errors"
	"fmt"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// NonUniqueResultError is returned by Find when more than one object matches
// a predicate that callers expect to identify a single object.
type NonUniqueResultError struct {
	// What names the kind of object that was looked up.
	What  string
	Count int
}

func (e *NonUniqueResultError) Error() string {
	return fmt.Sprintf("non-unique result: %d entries match the provided criteria: %s", e.Count, e.What)
}

// ValidationError reports a value that failed structural validation: a
// malformed bucket URI, an empty setting, or a path that does not point at
// an existing build.
type ValidationError struct {
	Field string
	// Code is a stable machine-readable reason, e.g. "uri.empty".
	Code    string
	Value   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("validation failed for %s", e.Field)
	if e.Value != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Value)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }
