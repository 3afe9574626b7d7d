// Package rerrors defines the error kinds shared across the execution
// core: authentication, transport, upload, validation, and ingest failures.
// Each kind is a distinct wrapped-error type rather than an exception
// hierarchy, so callers discriminate with errors.As/errors.Is the same way
// the rest of the module's stores use sentinel errors.
//
// A run that hits its Submission.Timeout is not one of these kinds: the
// backend wraps argv in the "timeout" command and reports it exactly like
// any other non-zero exit (spec.md §4.4), so it surfaces as a failed Job
// status rather than an error value.
package rerrors

import "fmt"

// AuthError indicates a missing or rejected credential. Surfaced before any
// Job state change; submit aborts without mutating the Job.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth: %s", e.Reason) }

// NewAuthError constructs an AuthError with the given reason.
func NewAuthError(reason string) error { return &AuthError{Reason: reason} }

// TransportError indicates a connect/chdir/exec/channel failure. When it
// occurs after the Job has already been marked submitted, the orchestrator
// marks the Job failure and re-raises this error to the caller; one raised
// before that point is returned without changing the Job's status.
type TransportError struct {
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transport: %s", e.Reason)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err as a TransportError with the given reason.
func NewTransportError(reason string, err error) error {
	return &TransportError{Reason: reason, Err: err}
}

// UploadError indicates the program file could not be written to the
// target. The orchestrator marks the Job failure and re-raises.
type UploadError struct {
	Reason string
	Err    error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("upload: %s", e.Reason)
}

func (e *UploadError) Unwrap() error { return e.Err }

// NewUploadError wraps err as an UploadError with the given reason.
func NewUploadError(reason string, err error) error {
	return &UploadError{Reason: reason, Err: err}
}

// ValidationError indicates a Job's Interpreter is not a member of its
// Server's interpreter set. Raised at Job-create time, and the core may
// recheck it at submit time.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("validation: %s", e.Reason) }

// NewValidationError constructs a ValidationError with the given reason.
func NewValidationError(reason string) error { return &ValidationError{Reason: reason} }

// IngestError indicates a result file copy failed. The Job is left in its
// already-set terminal state; the caller receives a partial result manifest
// alongside this error.
type IngestError struct {
	Reason string
	Err    error
}

func (e *IngestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("ingest: %s", e.Reason)
}

func (e *IngestError) Unwrap() error { return e.Err }

// NewIngestError wraps err as an IngestError with the given reason.
func NewIngestError(reason string, err error) error {
	return &IngestError{Reason: reason, Err: err}
}
