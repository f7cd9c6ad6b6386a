package core

// MaxPreviewRows is the number of data rows shown in a preview.
const MaxPreviewRows = 20

// Preview is a bounded display projection of a Table or MatchResult.
type Preview struct {
	Header    []string   `json:"header"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"totalRows"` // Data rows in the source
	Truncated bool       `json:"truncated"` // True when TotalRows > len(Rows)
	Empty     bool       `json:"empty"`     // No header: render the "no data" fallback
}

// Shown returns the number of data rows in the preview.
func (p Preview) Shown() int {
	return len(p.Rows)
}

// PreviewTable returns the header and first MaxPreviewRows data rows of t.
// Rows are fitted to the header width: extra cells are dropped and
// missing cells are empty.
func PreviewTable(t Table) Preview {
	if t.IsEmpty() {
		return Preview{Empty: true}
	}

	header := t.Header()
	total := t.DataRowCount()
	shown := min(total, MaxPreviewRows)

	rows := make([][]string, shown)
	for i := 0; i < shown; i++ {
		row := make([]string, len(header))
		for j := range header {
			row[j] = t.Cell(i, j)
		}
		rows[i] = row
	}

	return Preview{
		Header:    header,
		Rows:      rows,
		TotalRows: total,
		Truncated: total > MaxPreviewRows,
	}
}

// PreviewResult returns the columns and first MaxPreviewRows rows of r,
// projected in column order.
func PreviewResult(r MatchResult) Preview {
	if len(r.Columns) == 0 {
		return Preview{Empty: true, TotalRows: len(r.Data)}
	}

	total := len(r.Data)
	shown := min(total, MaxPreviewRows)

	rows := make([][]string, shown)
	for i := 0; i < shown; i++ {
		rows[i] = r.Project(i)
	}

	return Preview{
		Header:    append([]string(nil), r.Columns...),
		Rows:      rows,
		TotalRows: total,
		Truncated: total > MaxPreviewRows,
	}
}
