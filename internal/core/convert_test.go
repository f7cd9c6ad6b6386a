package core

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

// ----------------------------------------------------------------------------
// formatCell Tests
// ----------------------------------------------------------------------------

func TestFormatCell(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		// Wire literals
		{name: "json integer literal", input: json.Number("40"), want: "40"},
		{name: "json decimal literal", input: json.Number("0.125"), want: "0.125"},
		{name: "json exponent literal", input: json.Number("1e-7"), want: "1e-7"},

		// Decoded without UseNumber
		{name: "whole float", input: float64(40), want: "40"},
		{name: "fractional float", input: 0.1, want: "0.1"},
		{name: "large float", input: 1e21, want: "1000000000000000000000"},
		{name: "NaN", input: math.NaN(), want: ""},
		{name: "infinity", input: math.Inf(1), want: ""},

		// Other scalars
		{name: "nil", input: nil, want: ""},
		{name: "string", input: "M", want: "M"},
		{name: "empty string", input: "", want: ""},
		{name: "bool", input: true, want: "true"},
		{name: "int", input: 3, want: "3"},
		{name: "int64", input: int64(-7), want: "-7"},

		// Nested values
		{name: "array", input: []any{"a", json.Number("1")}, want: `["a",1]`},
		{name: "object", input: map[string]any{"k": "v"}, want: `{"k":"v"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatCell(tt.input); got != tt.want {
				t.Errorf("formatCell(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  padded  ", "padded"},
		{"\ufeffid", "id"},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CleanCell(tt.input); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// ----------------------------------------------------------------------------
// normalizeColumns Tests
// ----------------------------------------------------------------------------

func TestNormalizeColumns(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "nil", input: nil, want: nil},
		{name: "only blanks", input: []string{" ", ""}, want: nil},
		{name: "trims and dedupes", input: []string{" age", "sex", "age "}, want: []string{"age", "sex"}},
		{name: "keeps order", input: []string{"sex", "age"}, want: []string{"sex", "age"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeColumns(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("normalizeColumns(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
