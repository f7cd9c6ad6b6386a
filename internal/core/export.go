package core

import (
	"bytes"
	"encoding/csv"
)

// ExportFileName is the download name for the matched control cohort.
const ExportFileName = "matched_control.csv"

// ToCSVText serializes a match result as CSV text: the header in
// result.Columns order, then one line per row projected by column name.
// Lines are separated by "\n" with no trailing newline; fields are quoted
// only when they contain a comma, quote, newline or leading space.
//
// A record made of one empty field is written as "" so it survives as a
// row when the text is parsed again; a bare blank line would be skipped.
func ToCSVText(result MatchResult) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	writeRecord(&buf, w, result.Columns)
	for i := range result.Data {
		writeRecord(&buf, w, result.Project(i))
	}
	w.Flush()

	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}

func writeRecord(buf *bytes.Buffer, w *csv.Writer, record []string) {
	if len(record) == 1 && record[0] == "" {
		w.Flush()
		buf.WriteString("\"\"\n")
		return
	}
	// Writes to a bytes.Buffer cannot fail.
	_ = w.Write(record)
}
