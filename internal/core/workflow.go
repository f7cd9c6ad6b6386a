package core

// workflow.go is the match request state machine.
//
// Workflow is a value type and every transition is a pure function that
// returns a new Workflow, so the machine can be tested without any I/O or
// locking. Orchestrator (orchestrator.go) is the only place that performs
// I/O and it applies every outcome through these transitions.
//
// States are derived, not stored:
//
//	Idle -> FilesSelected -> Submittable -> Matching -> Succeeded | Failed
//
// Every slot change bumps a generation counter. A match is tagged with the
// generation at submit time, and Complete/Fail ignore responses whose tag
// no longer equals the current generation (stale responses).

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// State is the derived phase of a Workflow.
type State string

const (
	StateIdle          State = "idle"
	StateFilesSelected State = "files_selected"
	StateSubmittable   State = "submittable"
	StateMatching      State = "matching"
	StateSucceeded     State = "succeeded"
	StateFailed        State = "failed"
)

// ErrStaleResponse is returned by Orchestrator.Submit when the files changed
// while the request was in flight and its response was discarded.
var ErrStaleResponse = errors.New("match response discarded: files changed while matching")

type outcome int

const (
	outcomeNone outcome = iota
	outcomeSucceeded
	outcomeFailed
)

// SlotState is the content of one upload slot.
type SlotState struct {
	Loaded bool
	File   string
	Size   int64
	Table  Table
	data   []byte
}

// MatchTicket identifies an in-flight match. Generation is the slot
// generation at submit time.
type MatchTicket struct {
	Generation uint64
	Request    MatchRequest
}

// Workflow is the complete, immutable state of one matching session.
// The zero value is an Idle workflow.
type Workflow struct {
	experiment SlotState
	control    SlotState
	columns    []string

	generation uint64
	matching   bool
	inflight   uint64

	outcome outcome
	result  *MatchResult
	err     *WorkflowError
}

// State derives the current phase.
func (w Workflow) State() State {
	switch {
	case w.matching:
		return StateMatching
	case w.outcome == outcomeSucceeded:
		return StateSucceeded
	case w.outcome == outcomeFailed:
		return StateFailed
	case w.bothLoaded() && HeadersMatch(w.experiment.Table, w.control.Table):
		return StateSubmittable
	case w.experiment.Loaded || w.control.Loaded:
		return StateFilesSelected
	default:
		return StateIdle
	}
}

// Submittable reports whether a match may be submitted now: both slots
// populated, headers equal and no match in flight. Succeeded and Failed
// workflows remain submittable.
func (w Workflow) Submittable() bool {
	return !w.matching && w.bothLoaded() && HeadersMatch(w.experiment.Table, w.control.Table)
}

// Slot returns the content of slot s.
func (w Workflow) Slot(s Slot) SlotState {
	if s == SlotControl {
		return w.control
	}
	return w.experiment
}

// Generation returns the slot generation counter.
func (w Workflow) Generation() uint64 {
	return w.generation
}

// Columns returns the selected covariate columns (nil means all).
func (w Workflow) Columns() []string {
	return append([]string(nil), w.columns...)
}

// Result returns the current match result, if any.
func (w Workflow) Result() (MatchResult, bool) {
	if w.result == nil {
		return MatchResult{}, false
	}
	return *w.result, true
}

// Err returns the current user-facing error, or nil.
func (w Workflow) Err() *WorkflowError {
	return w.err
}

// Warning returns the persistent schema warning: set once both slots hold
// non-empty tables whose headers differ.
func (w Workflow) Warning() *SchemaMismatchError {
	if !w.bothLoaded() || w.experiment.Table.IsEmpty() || w.control.Table.IsEmpty() {
		return nil
	}
	return CompareHeaders(w.experiment.Table, w.control.Table)
}

// SharedHeader returns the header both tables agree on, or nil.
func (w Workflow) SharedHeader() []string {
	if !w.bothLoaded() || !HeadersMatch(w.experiment.Table, w.control.Table) {
		return nil
	}
	return w.experiment.Table.Header()
}

// Select populates slot s with a parsed file, replacing any previous one.
func (w Workflow) Select(s Slot, file SourceFile, t Table) Workflow {
	return w.setSlot(s, SlotState{
		Loaded: true,
		File:   file.Name,
		Size:   file.Size(),
		Table:  t,
		data:   file.Data,
	}, nil)
}

// Clear empties slot s (the selection was withdrawn).
func (w Workflow) Clear(s Slot) Workflow {
	return w.setSlot(s, SlotState{}, nil)
}

// SlotFailed records a read or parse failure for slot s. The slot is left
// empty so a broken file can never be submitted.
func (w Workflow) SlotFailed(s Slot, err error) Workflow {
	return w.setSlot(s, SlotState{}, NewWorkflowError(err))
}

// SetColumns selects the covariate columns sent with the next match.
// Changing them invalidates the current result like a slot change.
func (w Workflow) SetColumns(cols []string) Workflow {
	w.columns = normalizeColumns(cols)
	w.bump()
	w.err = nil
	return w
}

func (w Workflow) setSlot(s Slot, st SlotState, werr *WorkflowError) Workflow {
	if s == SlotControl {
		w.control = st
	} else {
		w.experiment = st
	}
	w.bump()
	w.err = werr
	return w
}

// bump invalidates the current result and any in-flight response.
func (w *Workflow) bump() {
	w.generation++
	w.result = nil
	w.outcome = outcomeNone
}

// Begin starts a match. On success the workflow is Matching, the previous
// result is gone and the returned ticket carries the request. Otherwise a
// *PreconditionError is returned and recorded as the user-facing error;
// nothing else changes.
func (w Workflow) Begin() (Workflow, MatchTicket, error) {
	if err := w.checkSubmit(); err != nil {
		w.err = NewWorkflowError(err)
		return w, MatchTicket{}, err
	}

	w.matching = true
	w.inflight = w.generation
	w.result = nil
	w.outcome = outcomeNone
	w.err = nil

	return w, MatchTicket{
		Generation: w.generation,
		Request: MatchRequest{
			Experiment: SourceFile{Name: w.experiment.File, Data: w.experiment.data},
			Control:    SourceFile{Name: w.control.File, Data: w.control.data},
			Columns:    w.Columns(),
		},
	}, nil
}

// BeginWith applies a covariate selection and starts a match in one step.
// While a match is in flight the selection is left alone, so the rejected
// submit does not invalidate the running request.
func (w Workflow) BeginWith(cols []string) (Workflow, MatchTicket, error) {
	if !w.matching {
		if next := normalizeColumns(cols); !slices.Equal(next, w.columns) {
			w = w.SetColumns(next)
		}
	}
	return w.Begin()
}

func (w Workflow) checkSubmit() error {
	state := w.State()
	if w.matching {
		return &PreconditionError{State: state, Reason: "a match is already in flight", Err: ErrMatchInProgress}
	}
	if !w.bothLoaded() {
		return &PreconditionError{State: state, Reason: "both experiment and control files are required"}
	}
	if mismatch := CompareHeaders(w.experiment.Table, w.control.Table); mismatch != nil {
		return &PreconditionError{State: state, Reason: "headers differ", Err: mismatch}
	}
	if missing := ValidateColumns(w.experiment.Table.Header(), w.columns); len(missing) > 0 {
		return &PreconditionError{
			State:  state,
			Reason: fmt.Sprintf("unknown covariate column(s): %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}

// Complete applies a successful response. The second return value is false
// when the response was stale and has been discarded.
func (w Workflow) Complete(t MatchTicket, result MatchResult) (Workflow, bool) {
	w = w.settle(t)
	if t.Generation != w.generation {
		return w, false
	}
	w.result = &result
	w.outcome = outcomeSucceeded
	w.err = nil
	return w, true
}

// Fail applies a failed response. Errors that are not already a
// *ServiceError are wrapped in one. Stale failures are discarded.
func (w Workflow) Fail(t MatchTicket, err error) (Workflow, bool) {
	w = w.settle(t)
	if t.Generation != w.generation {
		return w, false
	}
	var se *ServiceError
	if !errors.As(err, &se) {
		err = &ServiceError{Err: err}
	}
	w.result = nil
	w.outcome = outcomeFailed
	w.err = NewWorkflowError(err)
	return w, true
}

// settle ends the in-flight request identified by t.
func (w Workflow) settle(t MatchTicket) Workflow {
	if w.matching && w.inflight == t.Generation {
		w.matching = false
	}
	return w
}

func (w Workflow) bothLoaded() bool {
	return w.experiment.Loaded && w.control.Loaded
}
