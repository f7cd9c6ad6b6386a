package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultMatchTimeout bounds a single matcher call when none is configured.
const DefaultMatchTimeout = 60 * time.Second

// Orchestrator drives one matching session. It serializes access to a
// Workflow, performs file reads and matcher calls outside its lock, and
// applies every outcome through the Workflow transitions. Errors never
// escape as panics: they are recorded as the session's WorkflowError and
// also returned to the caller.
type Orchestrator struct {
	matcher     Matcher
	limiter     *MatchLimiter
	timeout     time.Duration
	maxFileSize int64
	logger      *slog.Logger
	now         func() time.Time

	mu         sync.Mutex
	wf         Workflow
	loadSeq    map[Slot]uint64
	lastActive time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLimiter shares a MatchLimiter across orchestrators.
func WithLimiter(l *MatchLimiter) OrchestratorOption {
	return func(o *Orchestrator) {
		o.limiter = l
	}
}

// WithMatchTimeout sets the deadline applied to every matcher call.
func WithMatchTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMaxFileSize sets the per-file upload cap in bytes.
func WithMaxFileSize(n int64) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxFileSize = n
		}
	}
}

// WithLogger sets the logger used for workflow events.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// withClock replaces time.Now (tests).
func withClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates an Idle session that submits to m.
func NewOrchestrator(m Matcher, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		matcher:     m,
		timeout:     DefaultMatchTimeout,
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
		now:         time.Now,
		loadSeq:     make(map[Slot]uint64),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.lastActive = o.now()
	return o
}

// Load reads and parses a cohort file into slot s, replacing its content.
// Loads of the two slots may run concurrently. If s is reselected or
// cleared while this load is still reading, this load's outcome is dropped.
// A load whose ctx is cancelled leaves the slot as it was and returns
// ctx.Err().
func (o *Orchestrator) Load(ctx context.Context, s Slot, name string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	o.loadSeq[s]++
	seq := o.loadSeq[s]
	o.touch()
	o.mu.Unlock()

	table, data, err := ReadTable(&contextReader{ctx: ctx, r: r}, s, name, o.maxFileSize)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.loadSeq[s] != seq {
		o.logger.Debug("discarding superseded load", "slot", s, "file", name)
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		o.logger.Debug("discarding cancelled load", "slot", s, "file", name)
		return ctxErr
	}

	if err != nil {
		o.wf = o.wf.SlotFailed(s, err)
		o.logger.Warn("cohort file rejected",
			"slot", s,
			"file", name,
			"category", CategoryOf(err),
			"error", err,
		)
		return o.wf.Err()
	}

	o.wf = o.wf.Select(s, SourceFile{Name: name, Data: data}, table)
	o.logger.Debug("cohort file loaded",
		"slot", s,
		"file", name,
		"rows", table.Len(),
		"state", o.wf.State(),
	)
	return nil
}

// Clear withdraws the selection in slot s. Pending loads for s are dropped.
func (o *Orchestrator) Clear(s Slot) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.loadSeq[s]++
	o.wf = o.wf.Clear(s)
	o.touch()
}

// SetColumns selects the covariate columns for the next match.
func (o *Orchestrator) SetColumns(cols []string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.wf = o.wf.SetColumns(cols)
	o.touch()
}

// Submit runs one match with the current covariate selection and blocks
// until it settles.
//
// It returns a *PreconditionError (without calling the matcher) when the
// session is not submittable, ErrStaleResponse when the files changed while
// the call was in flight, or the *WorkflowError recorded for a failed call.
func (o *Orchestrator) Submit(ctx context.Context) (MatchResult, error) {
	return o.submit(ctx, Workflow.Begin)
}

// SubmitColumns is Submit with a new covariate selection. The selection is
// not applied while another match is running, so the rejected submit leaves
// that match untouched.
func (o *Orchestrator) SubmitColumns(ctx context.Context, cols []string) (MatchResult, error) {
	return o.submit(ctx, func(w Workflow) (Workflow, MatchTicket, error) {
		return w.BeginWith(cols)
	})
}

func (o *Orchestrator) submit(ctx context.Context, begin func(Workflow) (Workflow, MatchTicket, error)) (MatchResult, error) {
	o.mu.Lock()
	wf, ticket, err := begin(o.wf)
	o.wf = wf
	o.touch()
	o.mu.Unlock()

	if err != nil {
		o.logger.Info("match rejected", "reason", err)
		return MatchResult{}, err
	}

	start := o.now()
	o.logger.Info("match started",
		"experiment", ticket.Request.Experiment.Name,
		"control", ticket.Request.Control.Name,
		"generation", ticket.Generation,
	)

	result, callErr := o.call(ctx, ticket.Request)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.touch()

	var applied bool
	if callErr != nil {
		o.wf, applied = o.wf.Fail(ticket, callErr)
	} else {
		o.wf, applied = o.wf.Complete(ticket, result)
	}

	if !applied {
		o.logger.Info("match response discarded",
			"generation", ticket.Generation,
			"current_generation", o.wf.Generation(),
		)
		return MatchResult{}, ErrStaleResponse
	}

	duration := time.Since(start).Milliseconds()
	if callErr != nil {
		o.logger.Warn("match failed",
			"duration_ms", duration,
			"code", o.wf.Err().User.Code,
			"error", callErr,
		)
		return MatchResult{}, o.wf.Err()
	}

	o.logger.Info("match succeeded",
		"duration_ms", duration,
		"columns", len(result.Columns),
		"rows", len(result.Data),
	)
	return result, nil
}

// call invokes the matcher under the limiter and timeout. A panicking
// matcher is reported as a service failure.
func (o *Orchestrator) call(ctx context.Context, req MatchRequest) (result MatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ServiceError{Err: fmt.Errorf("matcher panic: %v", r)}
		}
	}()

	if o.limiter != nil {
		if err := o.limiter.Acquire(ctx); err != nil {
			return MatchResult{}, &ServiceError{Err: err}
		}
		defer o.limiter.Release()
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	result, err = o.matcher.Match(callCtx, req)
	if err != nil {
		var se *ServiceError
		if !errors.As(err, &se) {
			err = &ServiceError{Err: err}
		}
		return MatchResult{}, err
	}
	return result, nil
}

// Export returns the current result as CSV text.
func (o *Orchestrator) Export() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.touch()
	result, ok := o.wf.Result()
	if !ok {
		return "", &PreconditionError{State: o.wf.State(), Reason: "no match result to export"}
	}
	return ToCSVText(result), nil
}

// Workflow returns a copy of the current workflow.
func (o *Orchestrator) Workflow() Workflow {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.wf
}

// Snapshot returns the display view of the session.
func (o *Orchestrator) Snapshot() View {
	return NewView(o.Workflow())
}

// Busy reports whether a match is in flight.
func (o *Orchestrator) Busy() bool {
	return o.Workflow().State() == StateMatching
}

// LastActive returns the time of the last user action.
func (o *Orchestrator) LastActive() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastActive
}

// touch records activity. Caller must hold o.mu.
func (o *Orchestrator) touch() {
	o.lastActive = o.now()
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
