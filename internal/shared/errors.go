package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness collision, e.g. a duplicate role name.
	ErrConflict = errors.New("already exists")
	// ErrAccessDenied indicates a permission check completed and refused the operation.
	ErrAccessDenied = errors.New("access denied")
	// ErrUnauthenticated indicates the request carries no user identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// StoreError wraps an underlying database failure. It never means "denied".
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError wraps err unless it is nil or already a StoreError.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// TaskDispatchError reports that off-path work could not be run to completion.
// It is distinct from the work itself returning a negative result.
type TaskDispatchError struct {
	Err error
}

func (e *TaskDispatchError) Error() string {
	return fmt.Sprintf("task dispatch: %v", e.Err)
}

func (e *TaskDispatchError) Unwrap() error { return e.Err }

// ValidationError carries structured per-field problems. Field values are
// either flag structs (serialised as JSON objects of booleans) or short
// strings naming the violated rule.
type ValidationError struct {
	Fields map[string]any
}

// NewValidationError returns a ValidationError with a single field problem.
func NewValidationError(field string, problem any) *ValidationError {
	return &ValidationError{Fields: map[string]any{field: problem}}
}

// Add records a problem for field.
func (e *ValidationError) Add(field string, problem any) {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[field] = problem
}

// OrNil returns nil when no field problems were recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}
