package core

// HeadersMatch reports whether two tables share an identical header:
// same length and the same string at every position. Reordered columns do
// not match, and a table with no header never matches anything.
func HeadersMatch(a, b Table) bool {
	return CompareHeaders(a, b) == nil
}

// CompareHeaders returns nil when the headers match, otherwise a
// *SchemaMismatchError locating the first difference.
func CompareHeaders(a, b Table) *SchemaMismatchError {
	if a.IsEmpty() || b.IsEmpty() {
		return &SchemaMismatchError{Experiment: a.Header(), Control: b.Header(), Index: -1}
	}

	ha, hb := a.rows[0], b.rows[0]
	n := min(len(ha), len(hb))
	for i := 0; i < n; i++ {
		if ha[i] != hb[i] {
			return &SchemaMismatchError{Experiment: a.Header(), Control: b.Header(), Index: i}
		}
	}
	if len(ha) != len(hb) {
		return &SchemaMismatchError{Experiment: a.Header(), Control: b.Header(), Index: n}
	}
	return nil
}

// ValidateColumns checks that every covariate column exists in header.
func ValidateColumns(header, cols []string) []string {
	idx := make(map[string]bool, len(header))
	for _, h := range header {
		idx[h] = true
	}
	var missing []string
	for _, c := range cols {
		if !idx[c] {
			missing = append(missing, c)
		}
	}
	return missing
}
