package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/psm/internal/core"
)

// Format represents the output format type.
type Format string

const (
	// FormatTable is an aligned preview for terminals (default).
	FormatTable Format = "table"
	// FormatJSON is pretty-printed JSON.
	FormatJSON Format = "json"
	// FormatYAML is YAML.
	FormatYAML Format = "yaml"
	// FormatCSV is raw CSV, as exported.
	FormatCSV Format = "csv"
)

// ParseFormat converts a string to a Format. Empty selects FormatTable.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatTable, "":
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", errors.New("invalid --output format (expected table|json|yaml|csv)")
	}
}

// Structured reports whether the format is machine-readable structured output.
func (f Format) Structured() bool {
	return f == FormatJSON || f == FormatYAML
}

// Printer writes command results in the selected format.
type Printer struct {
	w      io.Writer
	format Format
	query  string
}

// NewPrinter creates a Printer. query is a jq expression applied to
// structured output; empty disables filtering.
func NewPrinter(w io.Writer, format Format, query string) *Printer {
	return &Printer{w: w, format: format, query: query}
}

// Format returns the printer's output format.
func (p *Printer) Format() Format {
	return p.format
}

// Structured writes v as JSON or YAML, filtered through the jq query.
func (p *Printer) Structured(v any) error {
	if p.query != "" {
		return p.printQuery(v)
	}

	switch p.format {
	case FormatYAML:
		doc, err := normalize(v, false)
		if err != nil {
			return err
		}
		return p.printYAML(doc)
	default:
		doc, err := normalize(v, true)
		if err != nil {
			return err
		}
		return p.printJSON(doc)
	}
}

// printQuery runs the jq query and prints every result.
func (p *Printer) printQuery(v any) error {
	parsed, err := gojq.Parse(p.query)
	if err != nil {
		return fmt.Errorf("invalid --query: %w", err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return fmt.Errorf("invalid --query: %w", err)
	}

	doc, err := normalize(v, false)
	if err != nil {
		return err
	}

	iter := code.Run(doc)
	for {
		out, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := out.(error); isErr {
			return fmt.Errorf("query error: %w", err)
		}
		if p.format == FormatYAML {
			err = p.printYAML(out)
		} else {
			err = p.printJSON(out)
		}
		if err != nil {
			return err
		}
	}
}

func (p *Printer) printJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) printYAML(v any) error {
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(v)
}

// Preview writes a preview as an aligned table followed by its row caption.
func (p *Printer) Preview(pv core.Preview) error {
	if pv.Empty {
		_, err := fmt.Fprintln(p.w, "No data")
		return err
	}

	w := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	writeRow(w, pv.Header)
	for _, row := range pv.Rows {
		writeRow(w, row)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(p.w, caption(pv))
	return err
}

// CSV writes rows as CSV.
func (p *Printer) CSV(rows [][]string) error {
	w := csv.NewWriter(p.w)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// Text writes s followed by a newline.
func (p *Printer) Text(s string) error {
	_, err := fmt.Fprintln(p.w, s)
	return err
}

func writeRow(w io.Writer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, core.CleanCell(c))
	}
	fmt.Fprintln(w)
}

func caption(pv core.Preview) string {
	if pv.Truncated {
		return fmt.Sprintf("(showing %d of %d rows)", pv.Shown(), pv.TotalRows)
	}
	if pv.TotalRows == 1 {
		return "(1 row)"
	}
	return fmt.Sprintf("(%d rows)", pv.TotalRows)
}

// normalize converts v into plain JSON values (maps, slices, strings,
// numbers) so the encoders and gojq see the json tag names. With
// keepNumbers, numbers stay json.Number to preserve their literal text.
func normalize(v any, keepNumbers bool) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if keepNumbers {
		dec.UseNumber()
	}
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}
	return doc, nil
}
