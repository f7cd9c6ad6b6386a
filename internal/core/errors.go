package core

// errors.go defines the workflow error taxonomy.
//
// Each failure the workflow can hit has its own type so callers and tests
// can tell them apart with errors.As, even though the UI collapses some of
// them into the same wording:
//
//   - ReadError: the file could not be read (I/O, size limit)
//   - ParseError: the file was read but is not valid delimited text
//   - SchemaMismatchError: the two headers differ
//   - PreconditionError: submit attempted while not submittable
//   - ServiceError: the matcher call failed or could not complete

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFileTooLarge is wrapped by ReadError when an upload exceeds the size cap.
var ErrFileTooLarge = errors.New("file too large")

// ErrMatchInProgress is wrapped by PreconditionError when a match is already in flight.
var ErrMatchInProgress = errors.New("match already in progress")

// ErrorCategory groups workflow errors for display.
type ErrorCategory string

const (
	CategoryNone         ErrorCategory = ""
	CategoryRead         ErrorCategory = "read"
	CategoryParse        ErrorCategory = "parse"
	CategorySchema       ErrorCategory = "schema"
	CategoryPrecondition ErrorCategory = "precondition"
	CategoryService      ErrorCategory = "service"
)

// ReadError reports that a cohort file could not be read.
type ReadError struct {
	Slot Slot
	File string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s file %q: %v", e.Slot, e.File, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// ParseError reports that a cohort file is not valid CSV.
// Line is the 1-based input line of the first decoder error, 0 if unknown.
type ParseError struct {
	Slot Slot
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid csv in %s file %q at line %d: %v", e.Slot, e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("invalid csv in %s file %q: %v", e.Slot, e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaMismatchError reports that the experiment and control headers differ.
// Index is the first differing column position, or -1 when one header is
// missing entirely.
type SchemaMismatchError struct {
	Experiment []string
	Control    []string
	Index      int
}

func (e *SchemaMismatchError) Error() string {
	switch {
	case e.Index < 0:
		return "schema mismatch: both files need a header row"
	case len(e.Experiment) != len(e.Control) && e.Index >= min(len(e.Experiment), len(e.Control)):
		return fmt.Sprintf("schema mismatch: experiment has %d columns, control has %d",
			len(e.Experiment), len(e.Control))
	default:
		return fmt.Sprintf("schema mismatch at column %d: experiment %q, control %q",
			e.Index+1, e.Experiment[e.Index], e.Control[e.Index])
	}
}

// PreconditionError reports a submit attempted outside the Submittable state.
type PreconditionError struct {
	State  State
	Reason string
	Err    error // Optional cause (SchemaMismatchError, ErrMatchInProgress)
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot submit in state %s: %s: %v", e.State, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot submit in state %s: %s", e.State, e.Reason)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// ServiceError reports a failed matcher call. StatusCode is 0 when the
// request never produced a response (transport failure, timeout).
type ServiceError struct {
	StatusCode int
	Detail     string // Server-supplied message, if any
	Err        error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	b.WriteString("matcher service")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " status %d", e.StatusCode)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error { return e.Err }

// CategoryOf returns the workflow category of err.
func CategoryOf(err error) ErrorCategory {
	var (
		readErr    *ReadError
		parseErr   *ParseError
		schemaErr  *SchemaMismatchError
		precondErr *PreconditionError
		serviceErr *ServiceError
	)
	switch {
	case err == nil:
		return CategoryNone
	case errors.As(err, &precondErr):
		return CategoryPrecondition
	case errors.As(err, &readErr):
		return CategoryRead
	case errors.As(err, &parseErr):
		return CategoryParse
	case errors.As(err, &schemaErr):
		return CategorySchema
	case errors.As(err, &serviceErr):
		return CategoryService
	default:
		return CategoryService
	}
}

// WorkflowError is the single displayable error held by the workflow.
// It is cleared by the next user action that could resolve it.
type WorkflowError struct {
	Category ErrorCategory
	User     UserMessage
	Err      error // Original error for logging and errors.As
}

// NewWorkflowError wraps err for display. Returns nil if err is nil.
func NewWorkflowError(err error) *WorkflowError {
	if err == nil {
		return nil
	}
	return &WorkflowError{
		Category: CategoryOf(err),
		User:     MapError(err),
		Err:      err,
	}
}

func (e *WorkflowError) Error() string {
	return e.User.Message
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}
