package view

import (
	"fmt"
)

// SchemaNotFoundError is terminal for the view: the schema it was asked to
// display does not exist. Recoverable only by navigating away; the hosting
// shell shows a placeholder, never a crash.
type SchemaNotFoundError struct {
	Tenant string
	Name   string
	Err    error
}

func (e *SchemaNotFoundError) Error() string {
	return fmt.Sprintf("schema %q not found for tenant %q", e.Name, e.Tenant)
}

func (e *SchemaNotFoundError) Unwrap() error {
	return e.Err
}

// TransientFetchError is a retryable read failure. Previously rendered data
// is always preserved when one occurs.
type TransientFetchError struct {
	Op  string
	Err error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// WriteConflictError means the server rejected a mutation. It is surfaced as
// a general message and never retried automatically; re-submitting a write
// without user confirmation risks duplication.
type WriteConflictError struct {
	Op  string
	Err error
}

func (e *WriteConflictError) Error() string {
	return fmt.Sprintf("%s was rejected by the server", e.Op)
}

func (e *WriteConflictError) Unwrap() error {
	return e.Err
}
