package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidationError collects field-scoped entry errors. It never reaches a store:
// callers render it back into the form.
type ValidationError struct {
	Fields map[string]error
}

// Add records err against field, keeping the first error per field.
func (e *ValidationError) Add(field string, err error) {
	if e.Fields == nil {
		e.Fields = make(map[string]error)
	}
	if _, ok := e.Fields[field]; ok {
		return
	}
	e.Fields[field] = err
}

// Has reports whether field is invalid.
func (e *ValidationError) Has(field string) bool {
	if e == nil {
		return false
	}
	_, ok := e.Fields[field]
	return ok
}

// Message returns the message for field, or "".
func (e *ValidationError) Message(field string) string {
	if e == nil {
		return ""
	}
	if err, ok := e.Fields[field]; ok {
		return err.Error()
	}
	return ""
}

// OrNil returns e as an error, or nil when no field is invalid.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name].Error())
	}
	return "invalid expense: " + strings.Join(parts, "; ")
}

// Unwrap exposes the per-field errors to errors.Is.
func (e *ValidationError) Unwrap() []error {
	out := make([]error, 0, len(e.Fields))
	for _, err := range e.Fields {
		out = append(out, err)
	}
	return out
}

// StoreErrorKind classifies a rejected document store call.
type StoreErrorKind string

const (
	StoreNotFound         StoreErrorKind = "not_found"
	StorePermissionDenied StoreErrorKind = "permission_denied"
	StoreUnavailable      StoreErrorKind = "unavailable"
	StoreInternal         StoreErrorKind = "internal"
)

// StoreError is a remote store call that was rejected. The cause is kept for
// logging; callers branch on Kind.
type StoreError struct {
	Op   string
	Kind StoreErrorKind
	ID   string
	Err  error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("store %s %s: %s: %v", e.Op, e.ID, e.Kind, e.Err)
	}
	return fmt.Sprintf("store %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a StoreError of kind not_found.
func IsNotFound(err error) bool {
	var serr *StoreError
	return errors.As(err, &serr) && serr.Kind == StoreNotFound
}
