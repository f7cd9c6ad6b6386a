package core

// parse.go turns uploaded cohort files into Tables.
//
// Input is cleaned before decoding:
//  1. A leading UTF-8 BOM (Windows exports) is removed
//  2. Invalid UTF-8 sequences are replaced with U+FFFD
//
// Decoding is tolerant of ragged rows but strict about quoting: any
// row-level decoder error fails the whole file with a ParseError and no
// partial table is returned.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// DefaultMaxFileSize is the upload cap used when none is configured (100MB).
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseTable decodes CSV bytes into a Table.
// An empty input yields an empty Table (no header), not an error.
func ParseTable(data []byte) (Table, error) {
	records, err := parseCSV(cleanInput(data))
	if err != nil {
		pe := &ParseError{Err: err}
		var csvErr *csv.ParseError
		if errors.As(err, &csvErr) {
			pe.Line = csvErr.Line
		}
		return Table{}, pe
	}
	return Table{rows: records}, nil
}

// ReadTable reads at most maxSize bytes from r and parses them.
// Returns the raw bytes alongside the table, since the matcher receives the
// original file. I/O failures and oversize files are reported as
// *ReadError; decoding failures as *ParseError.
func ReadTable(r io.Reader, slot Slot, name string, maxSize int64) (Table, []byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return Table{}, nil, &ReadError{Slot: slot, File: name, Err: err}
	}
	if int64(len(data)) > maxSize {
		return Table{}, nil, &ReadError{
			Slot: slot,
			File: name,
			Err:  fmt.Errorf("%w: exceeds %dMB limit", ErrFileTooLarge, maxSize/(1024*1024)),
		}
	}

	table, err := ParseTable(data)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Slot = slot
			pe.File = name
		}
		return Table{}, nil, err
	}
	return table, data, nil
}

func parseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// cleanInput strips a UTF-8 BOM and replaces invalid UTF-8 with U+FFFD.
func cleanInput(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
		} else {
			buf.Write(data[:size])
		}
		data = data[size:]
	}

	return buf.Bytes()
}
