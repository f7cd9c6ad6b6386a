package core

import (
	"errors"
	"testing"
)

const (
	expCSV  = "id,age,sex\n1,30,F\n2,35,M\n"
	ctrlCSV = "id,age,sex\n3,40,M\n4,45,F\n5,50,M\n"
)

func selectCSV(t *testing.T, w Workflow, s Slot, name, csv string) Workflow {
	t.Helper()
	return w.Select(s, SourceFile{Name: name, Data: []byte(csv)}, mustTable(t, csv))
}

func readyWorkflow(t *testing.T) Workflow {
	t.Helper()
	w := selectCSV(t, Workflow{}, SlotExperiment, "exp.csv", expCSV)
	return selectCSV(t, w, SlotControl, "ctrl.csv", ctrlCSV)
}

func TestWorkflow_States(t *testing.T) {
	tests := []struct {
		name            string
		build           func(t *testing.T) Workflow
		wantState       State
		wantSubmittable bool
	}{
		{
			name:      "zero value is idle",
			build:     func(t *testing.T) Workflow { return Workflow{} },
			wantState: StateIdle,
		},
		{
			name: "one slot loaded",
			build: func(t *testing.T) Workflow {
				return selectCSV(t, Workflow{}, SlotExperiment, "exp.csv", expCSV)
			},
			wantState: StateFilesSelected,
		},
		{
			name:            "both loaded with equal headers",
			build:           readyWorkflow,
			wantState:       StateSubmittable,
			wantSubmittable: true,
		},
		{
			name: "both loaded with different headers",
			build: func(t *testing.T) Workflow {
				w := selectCSV(t, Workflow{}, SlotExperiment, "exp.csv", expCSV)
				return selectCSV(t, w, SlotControl, "ctrl.csv", "id,sex,age\n3,M,40\n")
			},
			wantState: StateFilesSelected,
		},
		{
			name: "empty file in one slot",
			build: func(t *testing.T) Workflow {
				w := selectCSV(t, Workflow{}, SlotExperiment, "exp.csv", expCSV)
				return selectCSV(t, w, SlotControl, "empty.csv", "")
			},
			wantState: StateFilesSelected,
		},
		{
			name: "cleared back to idle",
			build: func(t *testing.T) Workflow {
				return readyWorkflow(t).Clear(SlotExperiment).Clear(SlotControl)
			},
			wantState: StateIdle,
		},
		{
			name: "matching",
			build: func(t *testing.T) Workflow {
				w, _, err := readyWorkflow(t).Begin()
				if err != nil {
					t.Fatalf("Begin: %v", err)
				}
				return w
			},
			wantState: StateMatching,
		},
		{
			name: "succeeded stays submittable",
			build: func(t *testing.T) Workflow {
				w, ticket, _ := readyWorkflow(t).Begin()
				w, _ = w.Complete(ticket, MatchResult{Columns: []string{"id"}})
				return w
			},
			wantState:       StateSucceeded,
			wantSubmittable: true,
		},
		{
			name: "failed stays submittable",
			build: func(t *testing.T) Workflow {
				w, ticket, _ := readyWorkflow(t).Begin()
				w, _ = w.Fail(ticket, errors.New("boom"))
				return w
			},
			wantState:       StateFailed,
			wantSubmittable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.build(t)
			if got := w.State(); got != tt.wantState {
				t.Errorf("State() = %s, want %s", got, tt.wantState)
			}
			if got := w.Submittable(); got != tt.wantSubmittable {
				t.Errorf("Submittable() = %v, want %v", got, tt.wantSubmittable)
			}
		})
	}
}

func TestWorkflow_Begin(t *testing.T) {
	w, ticket, err := readyWorkflow(t).SetColumns([]string{"age", " sex ", "age"}).Begin()
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if ticket.Generation != w.Generation() {
		t.Errorf("ticket generation = %d, want %d", ticket.Generation, w.Generation())
	}
	req := ticket.Request
	if req.Experiment.Name != "exp.csv" || string(req.Experiment.Data) != expCSV {
		t.Errorf("experiment = %q/%q", req.Experiment.Name, req.Experiment.Data)
	}
	if req.Control.Name != "ctrl.csv" || string(req.Control.Data) != ctrlCSV {
		t.Errorf("control = %q/%q", req.Control.Name, req.Control.Data)
	}
	if len(req.Columns) != 2 || req.Columns[0] != "age" || req.Columns[1] != "sex" {
		t.Errorf("columns = %q, want [age sex]", req.Columns)
	}
	if w.Err() != nil {
		t.Errorf("Err() = %v after Begin", w.Err())
	}
}

func TestWorkflow_BeginWith(t *testing.T) {
	t.Run("applies the selection", func(t *testing.T) {
		w, ticket, err := readyWorkflow(t).BeginWith([]string{"sex", "sex", "age"})
		if err != nil {
			t.Fatalf("BeginWith() error = %v", err)
		}
		if got := ticket.Request.Columns; len(got) != 2 || got[0] != "sex" || got[1] != "age" {
			t.Errorf("columns = %q, want [sex age]", got)
		}
		if w.State() != StateMatching {
			t.Errorf("State() = %s, want %s", w.State(), StateMatching)
		}
	})

	t.Run("ignored while matching", func(t *testing.T) {
		running, ticket, err := readyWorkflow(t).Begin()
		if err != nil {
			t.Fatalf("Begin() error = %v", err)
		}

		after, _, err := running.BeginWith([]string{"age"})
		if !errors.Is(err, ErrMatchInProgress) {
			t.Fatalf("BeginWith() error = %v, want ErrMatchInProgress", err)
		}
		if after.Generation() != running.Generation() || len(after.Columns()) != 0 {
			t.Errorf("rejected BeginWith() changed generation %d -> %d, columns %q",
				running.Generation(), after.Generation(), after.Columns())
		}

		// The running request is still current.
		done, applied := after.Complete(ticket, MatchResult{Columns: []string{"id"}})
		if !applied {
			t.Fatal("Complete() discarded the running match")
		}
		if _, ok := done.Result(); !ok {
			t.Error("Result() missing after Complete")
		}
	})
}

func TestWorkflow_BeginRejected(t *testing.T) {
	tests := []struct {
		name     string
		build    func(t *testing.T) Workflow
		wantCode string
		wantIs   error
	}{
		{
			name:     "nothing loaded",
			build:    func(t *testing.T) Workflow { return Workflow{} },
			wantCode: "WF001",
		},
		{
			name: "one slot only",
			build: func(t *testing.T) Workflow {
				return selectCSV(t, Workflow{}, SlotControl, "ctrl.csv", ctrlCSV)
			},
			wantCode: "WF001",
		},
		{
			name: "reordered header",
			build: func(t *testing.T) Workflow {
				w := selectCSV(t, Workflow{}, SlotExperiment, "exp.csv", "id,age,sex\n")
				return selectCSV(t, w, SlotControl, "ctrl.csv", "id,sex,age\n")
			},
			wantCode: "SCH001",
		},
		{
			name: "already matching",
			build: func(t *testing.T) Workflow {
				w, _, _ := readyWorkflow(t).Begin()
				return w
			},
			wantCode: "WF002",
			wantIs:   ErrMatchInProgress,
		},
		{
			name: "unknown covariate",
			build: func(t *testing.T) Workflow {
				return readyWorkflow(t).SetColumns([]string{"income"})
			},
			wantCode: "WF003",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.build(t)
			after, ticket, err := before.Begin()

			var pe *PreconditionError
			if !errors.As(err, &pe) {
				t.Fatalf("Begin() error = %v, want *PreconditionError", err)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("Begin() error = %v, want it to wrap %v", err, tt.wantIs)
			}
			if ticket.Request.Experiment.Data != nil || ticket.Request.Control.Data != nil {
				t.Error("rejected Begin() returned a request")
			}
			if after.State() != before.State() || after.Generation() != before.Generation() {
				t.Errorf("rejected Begin() changed state %s/%d -> %s/%d",
					before.State(), before.Generation(), after.State(), after.Generation())
			}
			if after.Err() == nil || after.Err().User.Code != tt.wantCode {
				t.Errorf("Err() = %+v, want code %s", after.Err(), tt.wantCode)
			}
			if after.Err().Category != CategoryPrecondition {
				t.Errorf("Err().Category = %s, want %s", after.Err().Category, CategoryPrecondition)
			}
		})
	}
}

func TestWorkflow_StaleResponses(t *testing.T) {
	result := MatchResult{Columns: []string{"id"}, Data: []map[string]any{{"id": 3}}}

	tests := []struct {
		name   string
		change func(t *testing.T, w Workflow) Workflow
	}{
		{"experiment replaced", func(t *testing.T, w Workflow) Workflow {
			return selectCSV(t, w, SlotExperiment, "exp2.csv", expCSV)
		}},
		{"control cleared", func(t *testing.T, w Workflow) Workflow {
			return w.Clear(SlotControl)
		}},
		{"control failed to parse", func(t *testing.T, w Workflow) Workflow {
			return w.SlotFailed(SlotControl, &ParseError{Slot: SlotControl, Err: errors.New("bad quote")})
		}},
		{"covariates changed", func(t *testing.T, w Workflow) Workflow {
			return w.SetColumns([]string{"age"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, ticket, err := readyWorkflow(t).Begin()
			if err != nil {
				t.Fatalf("Begin: %v", err)
			}
			w = tt.change(t, w)
			gen := w.Generation()

			success, applied := w.Complete(ticket, result)
			if applied {
				t.Error("Complete() applied a stale response")
			}
			if _, ok := success.Result(); ok {
				t.Error("stale response produced a result")
			}
			if success.State() == StateSucceeded || success.State() == StateMatching {
				t.Errorf("State() after stale success = %s", success.State())
			}
			if success.Generation() != gen {
				t.Errorf("stale success changed generation %d -> %d", gen, success.Generation())
			}

			failure, applied := w.Fail(ticket, errors.New("timeout"))
			if applied {
				t.Error("Fail() applied a stale response")
			}
			if failure.State() == StateFailed {
				t.Error("stale failure moved the workflow to failed")
			}
		})
	}
}

func TestWorkflow_ChangeInvalidatesResult(t *testing.T) {
	w, ticket, _ := readyWorkflow(t).Begin()
	w, ok := w.Complete(ticket, MatchResult{Columns: []string{"id"}})
	if !ok {
		t.Fatal("Complete() not applied")
	}
	if _, has := w.Result(); !has {
		t.Fatal("no result after Complete()")
	}

	w = selectCSV(t, w, SlotControl, "ctrl2.csv", ctrlCSV)
	if _, has := w.Result(); has {
		t.Error("result survived a slot change")
	}
	if w.State() != StateSubmittable {
		t.Errorf("State() = %s, want %s", w.State(), StateSubmittable)
	}
}

func TestWorkflow_FailWrapsServiceError(t *testing.T) {
	w, ticket, _ := readyWorkflow(t).Begin()
	w, _ = w.Fail(ticket, errors.New("connection refused"))

	werr := w.Err()
	if werr == nil {
		t.Fatal("Err() = nil after Fail()")
	}
	var se *ServiceError
	if !errors.As(werr, &se) {
		t.Errorf("Err() = %v, want it to wrap *ServiceError", werr)
	}
	if werr.Category != CategoryService || werr.User.Code != "SVC004" {
		t.Errorf("Err() = %s/%s, want service/SVC004", werr.Category, werr.User.Code)
	}
}

func TestWorkflow_Warning(t *testing.T) {
	w := selectCSV(t, Workflow{}, SlotExperiment, "exp.csv", "id,age\n")
	if w.Warning() != nil {
		t.Error("Warning() set with one slot loaded")
	}

	w = selectCSV(t, w, SlotControl, "ctrl.csv", "id,age,sex\n")
	if w.Warning() == nil {
		t.Error("Warning() = nil for different headers")
	}

	w = selectCSV(t, w, SlotControl, "ctrl.csv", "")
	if w.Warning() != nil {
		t.Error("Warning() set while one table is empty")
	}

	w = selectCSV(t, w, SlotControl, "ctrl.csv", "id,age\n")
	if w.Warning() != nil {
		t.Errorf("Warning() = %v for equal headers", w.Warning())
	}
	if got := w.SharedHeader(); len(got) != 2 {
		t.Errorf("SharedHeader() = %q", got)
	}
}

func TestWorkflow_SlotFailedEmptiesSlot(t *testing.T) {
	w := readyWorkflow(t)
	w = w.SlotFailed(SlotExperiment, &ParseError{Slot: SlotExperiment, Err: errors.New("bad quote")})

	if w.Slot(SlotExperiment).Loaded {
		t.Error("slot still loaded after a parse failure")
	}
	if w.Submittable() {
		t.Error("Submittable() after a parse failure")
	}
	if w.Err() == nil || w.Err().Category != CategoryParse {
		t.Errorf("Err() = %+v, want parse category", w.Err())
	}

	w = selectCSV(t, w, SlotExperiment, "exp.csv", expCSV)
	if w.Err() != nil {
		t.Errorf("Err() = %v after a successful reselect", w.Err())
	}
}
