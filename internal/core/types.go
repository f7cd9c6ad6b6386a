// Package core provides the orchestration logic for cohort matching.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"context"
	"fmt"
	"strings"
)

// Slot identifies one of the two cohort upload slots.
type Slot string

const (
	SlotExperiment Slot = "experiment"
	SlotControl    Slot = "control"
)

// Slots lists the upload slots in display order.
var Slots = []Slot{SlotExperiment, SlotControl}

// ParseSlot converts a string (case-insensitive) to a Slot.
func ParseSlot(s string) (Slot, error) {
	switch Slot(strings.ToLower(strings.TrimSpace(s))) {
	case SlotExperiment:
		return SlotExperiment, nil
	case SlotControl:
		return SlotControl, nil
	default:
		return "", fmt.Errorf("unknown slot %q (expected experiment or control)", s)
	}
}

// Label returns a display label for the slot.
func (s Slot) Label() string {
	switch s {
	case SlotExperiment:
		return "Experiment"
	case SlotControl:
		return "Control"
	default:
		return string(s)
	}
}

// Table is an immutable, parsed CSV file. Row 0 is the header.
//
// Rows may be ragged: cells beyond the header width are ignored by
// consumers and missing cells read as empty.
type Table struct {
	rows [][]string
}

// NewTable builds a Table from rows, copying them so later changes to the
// argument do not leak in.
func NewTable(rows [][]string) Table {
	return Table{rows: cloneRows(rows)}
}

// Len returns the number of rows, including the header.
func (t Table) Len() int {
	return len(t.rows)
}

// IsEmpty reports whether the table has no rows at all (not even a header).
func (t Table) IsEmpty() bool {
	return len(t.rows) == 0
}

// Header returns a copy of the header row, or nil for an empty table.
func (t Table) Header() []string {
	if len(t.rows) == 0 {
		return nil
	}
	return append([]string(nil), t.rows[0]...)
}

// DataRowCount returns the number of rows after the header.
func (t Table) DataRowCount() int {
	if len(t.rows) == 0 {
		return 0
	}
	return len(t.rows) - 1
}

// Row returns a copy of row i (0 is the header).
func (t Table) Row(i int) []string {
	if i < 0 || i >= len(t.rows) {
		return nil
	}
	return append([]string(nil), t.rows[i]...)
}

// Rows returns a deep copy of all rows.
func (t Table) Rows() [][]string {
	return cloneRows(t.rows)
}

// Cell returns the value at data row i, column j, or "" if the row is
// shorter than j.
func (t Table) Cell(i, j int) string {
	r := i + 1
	if r <= 0 || r >= len(t.rows) || j < 0 || j >= len(t.rows[r]) {
		return ""
	}
	return t.rows[r][j]
}

func cloneRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// SourceFile is a selected cohort file: its name and raw bytes.
// The matcher receives the raw bytes, not the parsed table.
type SourceFile struct {
	Name string
	Data []byte
}

// Size returns the file size in bytes.
func (f SourceFile) Size() int64 {
	return int64(len(f.Data))
}

// MatchRequest is the pair of cohort files sent to the matcher.
// It is built at submit time and not retained.
type MatchRequest struct {
	Experiment SourceFile
	Control    SourceFile
	Columns    []string // Optional covariate subset; empty means all columns
}

// MatchResult is the matched subset of the control cohort returned by the
// matcher. Column order comes from Columns, never from map iteration.
type MatchResult struct {
	Columns []string         `json:"columns"`
	Data    []map[string]any `json:"data"`
}

// Value returns the display text of column col in row i.
// Missing keys and JSON nulls render as "".
func (r MatchResult) Value(i int, col string) string {
	if i < 0 || i >= len(r.Data) {
		return ""
	}
	v, ok := r.Data[i][col]
	if !ok {
		return ""
	}
	return formatCell(v)
}

// Project returns row i as cells in Columns order.
func (r MatchResult) Project(i int) []string {
	cells := make([]string, len(r.Columns))
	for j, col := range r.Columns {
		cells[j] = r.Value(i, col)
	}
	return cells
}

// Matcher performs propensity-score matching on a pair of cohort files.
// Implementations must honor ctx cancellation and deadlines.
type Matcher interface {
	Match(ctx context.Context, req MatchRequest) (MatchResult, error)
}

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(ctx context.Context, req MatchRequest) (MatchResult, error)

// Match calls f(ctx, req).
func (f MatcherFunc) Match(ctx context.Context, req MatchRequest) (MatchResult, error) {
	return f(ctx, req)
}
