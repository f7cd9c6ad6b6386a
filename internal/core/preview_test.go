package core

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func csvWithRows(n int) string {
	var b strings.Builder
	b.WriteString("id,age\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d,%d\n", i, 20+i)
	}
	return b.String()
}

func TestPreviewTable(t *testing.T) {
	tests := []struct {
		name          string
		rows          int
		wantShown     int
		wantTruncated bool
	}{
		{"header only", 0, 0, false},
		{"few rows", 3, 3, false},
		{"exactly the limit", 20, 20, false},
		{"one over the limit", 21, 20, true},
		{"many rows", 500, 20, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PreviewTable(mustTable(t, csvWithRows(tt.rows)))

			if p.Empty {
				t.Fatal("Empty = true for a table with a header")
			}
			if got := p.Shown(); got != tt.wantShown {
				t.Errorf("Shown() = %d, want %d", got, tt.wantShown)
			}
			if p.TotalRows != tt.rows {
				t.Errorf("TotalRows = %d, want %d", p.TotalRows, tt.rows)
			}
			if p.Truncated != tt.wantTruncated {
				t.Errorf("Truncated = %v, want %v", p.Truncated, tt.wantTruncated)
			}
			if tt.rows > 0 && !reflect.DeepEqual(p.Rows[0], []string{"1", "21"}) {
				t.Errorf("first row = %q, want [1 21]", p.Rows[0])
			}
		})
	}
}

func TestPreviewTable_FitsRowsToHeader(t *testing.T) {
	p := PreviewTable(mustTable(t, "a,b,c\n1\n1,2,3,4\n"))

	want := [][]string{{"1", "", ""}, {"1", "2", "3"}}
	if !reflect.DeepEqual(p.Rows, want) {
		t.Errorf("Rows = %q, want %q", p.Rows, want)
	}
}

func TestPreviewTable_Empty(t *testing.T) {
	p := PreviewTable(Table{})
	if !p.Empty {
		t.Error("Empty = false for an empty table")
	}
	if len(p.Header) != 0 || len(p.Rows) != 0 {
		t.Errorf("empty preview has content: %+v", p)
	}
}

func TestPreviewResult(t *testing.T) {
	t.Run("projects columns in order", func(t *testing.T) {
		r := decodeResult(t, `{"columns":["id","age","sex"],"data":[{"sex":"M","age":40,"id":3}]}`)
		p := PreviewResult(r)

		if !reflect.DeepEqual(p.Header, []string{"id", "age", "sex"}) {
			t.Errorf("Header = %q", p.Header)
		}
		if !reflect.DeepEqual(p.Rows, [][]string{{"3", "40", "M"}}) {
			t.Errorf("Rows = %q", p.Rows)
		}
	})

	t.Run("truncates at the limit", func(t *testing.T) {
		r := MatchResult{Columns: []string{"id"}}
		for i := 0; i < 25; i++ {
			r.Data = append(r.Data, map[string]any{"id": i})
		}
		p := PreviewResult(r)

		if p.Shown() != MaxPreviewRows || !p.Truncated || p.TotalRows != 25 {
			t.Errorf("PreviewResult() shown=%d truncated=%v total=%d, want 20/true/25",
				p.Shown(), p.Truncated, p.TotalRows)
		}
	})

	t.Run("no columns", func(t *testing.T) {
		p := PreviewResult(MatchResult{Data: []map[string]any{{"id": 1}}})
		if !p.Empty {
			t.Error("Empty = false for a result without columns")
		}
	})
}
