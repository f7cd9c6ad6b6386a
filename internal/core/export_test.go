package core

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

// decodeResult decodes a matcher response body the way the HTTP client does.
func decodeResult(t *testing.T, body string) MatchResult {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var r MatchResult
	if err := dec.Decode(&r); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	return r
}

func TestToCSVText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "single row keeps column order",
			body: `{"columns":["id","age","sex"],"data":[{"sex":"M","id":3,"age":40}]}`,
			want: "id,age,sex\n3,40,M",
		},
		{
			name: "multiple rows",
			body: `{"columns":["id","score"],"data":[{"id":1,"score":0.25},{"id":2,"score":1.5}]}`,
			want: "id,score\n1,0.25\n2,1.5",
		},
		{
			name: "no rows",
			body: `{"columns":["id","age"],"data":[]}`,
			want: "id,age",
		},
		{
			name: "null and missing cells",
			body: `{"columns":["id","age","sex"],"data":[{"id":1,"age":null}]}`,
			want: "id,age,sex\n1,,",
		},
		{
			name: "fields needing quotes",
			body: `{"columns":["id","note"],"data":[{"id":1,"note":"a, b"},{"id":2,"note":"say \"hi\""}]}`,
			want: "id,note\n1,\"a, b\"\n2,\"say \"\"hi\"\"\"",
		},
		{
			name: "extra keys ignored",
			body: `{"columns":["id"],"data":[{"id":"x","ps":0.9}]}`,
			want: "id\nx",
		},
		{
			name: "single column with empty cells",
			body: `{"columns":["note"],"data":[{"note":"a"},{},{"note":""},{"note":"b"},{}]}`,
			want: "note\na\n\"\"\n\"\"\nb\n\"\"",
		},
		{
			name: "booleans",
			body: `{"columns":["id","treated"],"data":[{"id":1,"treated":false}]}`,
			want: "id,treated\n1,false",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToCSVText(decodeResult(t, tt.body)); got != tt.want {
				t.Errorf("ToCSVText() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestToCSVText_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "quoted fields",
			body: `{
				"columns": ["id", "age", "note"],
				"data": [
					{"id": 1, "age": 30, "note": "plain"},
					{"id": 2, "age": 41, "note": "with, comma"},
					{"id": 3, "age": 52, "note": "multi\nline"}
				]
			}`,
		},
		{
			name: "single column with missing key in the middle",
			body: `{"columns": ["note"], "data": [{"note": "a"}, {}, {"note": "b"}]}`,
		},
		{
			name: "single column ending with an empty row",
			body: `{"columns": ["note"], "data": [{"note": "a"}, {"note": null}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := decodeResult(t, tt.body)

			table, err := ParseTable([]byte(ToCSVText(result)))
			if err != nil {
				t.Fatalf("ParseTable(export) error = %v", err)
			}

			if got := table.Header(); !reflect.DeepEqual(got, result.Columns) {
				t.Errorf("header = %q, want %q", got, result.Columns)
			}
			if got := table.DataRowCount(); got != len(result.Data) {
				t.Fatalf("DataRowCount() = %d, want %d", got, len(result.Data))
			}
			for i := range result.Data {
				if got, want := table.Row(i+1), result.Project(i); !reflect.DeepEqual(got, want) {
					t.Errorf("row %d = %q, want %q", i, got, want)
				}
			}
		})
	}
}
