// Package tabular turns uploaded CSV and XLSX payloads into domain tables.
package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Options tune how a payload is read.
type Options struct {
	// HeaderRowIndex selects the 0-based record holding the header. When nil
	// the first non-blank record is used.
	HeaderRowIndex *int
	// Sheet picks an XLSX sheet by name; the first sheet is used when empty.
	Sheet string
}

// HeaderCandidate is one non-blank record a caller may pick as the header row.
type HeaderCandidate struct {
	Index   int      `json:"index"`
	Values  []string `json:"values"`
	Current bool     `json:"current"`
}

// Result is a parsed payload plus the header choices seen in the file.
type Result struct {
	Table            domain.Table      `json:"table"`
	HeaderRowIndex   int               `json:"headerRowIndex"`
	HeaderCandidates []HeaderCandidate `json:"headerCandidates"`
}

// Supported reports whether the file extension is one the parser reads.
func Supported(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".xlsx":
		return true
	default:
		return false
	}
}

// ParseReader drains r and parses it according to the file extension.
func ParseReader(fileName string, r io.Reader, opts Options) (Result, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read upload: %w", err)
	}
	return Parse(fileName, payload, opts)
}

// Parse reads a CSV or XLSX payload into a table.
func Parse(fileName string, payload []byte, opts Options) (Result, error) {
	if len(payload) == 0 {
		return Result{}, errors.Wrap(domain.ErrInvalidTable, "file is empty")
	}

	var (
		records [][]string
		err     error
	)
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		records, err = readCSV(payload)
	case ".xlsx":
		records, err = readExcel(payload, opts.Sheet)
	default:
		return Result{}, errors.Wrapf(domain.ErrUnsupportedFormat, "extension %q", ext)
	}
	if err != nil {
		return Result{}, err
	}
	return FromRecords(records, opts.HeaderRowIndex)
}

func readCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(domain.ErrInvalidTable, "failed to read csv: %v", err)
	}
	return records, nil
}

func readExcel(payload []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrapf(domain.ErrInvalidTable, "failed to open xlsx: %v", err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.Wrap(domain.ErrInvalidTable, "excel file has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrInvalidTable, "failed to read rows from sheet %q: %v", sheet, err)
	}
	return rows, nil
}

// FromRecords builds a table from raw records. Blank records are skipped, data
// rows are padded or truncated to the header width and keep their 1-based
// source line number.
func FromRecords(records [][]string, headerRowIndex *int) (Result, error) {
	if len(records) == 0 {
		return Result{}, errors.Wrap(domain.ErrInvalidTable, "no rows found in file")
	}

	headerIndex := -1
	if headerRowIndex != nil {
		if *headerRowIndex < 0 || *headerRowIndex >= len(records) {
			return Result{}, errors.Wrapf(domain.ErrInvalidTable, "header row index %d out of range", *headerRowIndex)
		}
		if isBlank(records[*headerRowIndex]) {
			return Result{}, errors.Wrapf(domain.ErrInvalidTable, "selected header row %d is empty", *headerRowIndex+1)
		}
		headerIndex = *headerRowIndex
	} else {
		for idx, record := range records {
			if !isBlank(record) {
				headerIndex = idx
				break
			}
		}
	}
	if headerIndex < 0 {
		return Result{}, errors.Wrap(domain.ErrInvalidTable, "header row could not be detected")
	}

	headers := SanitizeHeaders(records[headerIndex])
	rows := make([]domain.Row, 0, len(records)-headerIndex-1)
	for idx := headerIndex + 1; idx < len(records); idx++ {
		record := records[idx]
		if isBlank(record) {
			continue
		}
		rows = append(rows, domain.Row{
			Number: idx + 1,
			Cells:  padRow(record, len(headers)),
		})
	}

	table := domain.Table{Headers: headers, Rows: rows}
	if err := table.Validate(); err != nil {
		return Result{}, err
	}

	return Result{
		Table:            table,
		HeaderRowIndex:   headerIndex,
		HeaderCandidates: headerCandidates(records, 10, headerIndex),
	}, nil
}

// SanitizeHeaders trims header cells, names blank ones after their position and
// suffixes duplicates so every header is unique.
func SanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	next := make(map[string]int)

	for idx, value := range raw {
		name := strings.Join(strings.Fields(value), " ")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		if used[name] {
			base := name
			n := max(next[base], 2)
			for used[fmt.Sprintf("%s_%d", base, n)] {
				n++
			}
			name = fmt.Sprintf("%s_%d", base, n)
			next[base] = n + 1
		}
		used[name] = true

		headers[idx] = name
	}

	return headers
}

func headerCandidates(records [][]string, limit int, currentIndex int) []HeaderCandidate {
	candidates := make([]HeaderCandidate, 0, limit)
	for idx, record := range records {
		if isBlank(record) {
			continue
		}

		values := make([]string, len(record))
		for i, cell := range record {
			values[i] = strings.TrimSpace(cell)
		}

		candidates = append(candidates, HeaderCandidate{
			Index:   idx,
			Values:  values,
			Current: idx == currentIndex,
		})

		if len(candidates) >= limit {
			break
		}
	}
	return candidates
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func padRow(row []string, length int) []string {
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
