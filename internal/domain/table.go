package domain

import (
	"strings"

	"github.com/go-faster/errors"
)

// Row is one data row of a parsed upload.
type Row struct {
	// Number is the 1-based line of the row in the source file.
	Number int      `json:"number"`
	Cells  []string `json:"cells"`
}

// Table is a parsed upload: one header row plus its data rows. Rows are padded
// or truncated to the header width by the parser.
type Table struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// Validate rejects tables that cannot be imported at all.
func (t Table) Validate() error {
	if len(t.Headers) == 0 {
		return errors.Wrap(ErrInvalidTable, "no header row")
	}
	for _, header := range t.Headers {
		if strings.TrimSpace(header) != "" {
			return nil
		}
	}
	return errors.Wrap(ErrInvalidTable, "header row is empty")
}

// Cell returns the trimmed value at column idx, or "" when out of range.
func (r Row) Cell(idx int) string {
	if idx < 0 || idx >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[idx])
}

// HeaderIndex returns the position of the named header.
func (t Table) HeaderIndex(name string) int {
	for idx, header := range t.Headers {
		if header == name {
			return idx
		}
	}
	return -1
}

// SameHeaders reports whether two header rows are identical in order and text.
func SameHeaders(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
