// Package export streams a session's import log as CSV.
package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

// DefaultPageSize is how many log entries are read per page.
const DefaultPageSize = 500

// LogSource pages through the import log of one session.
type LogSource interface {
	ImportLog(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]domain.ImportLogEntry, error)
}

// Option configures an ImportLogExporter.
type Option func(*ImportLogExporter)

// WithPageSize overrides DefaultPageSize.
func WithPageSize(size int) Option {
	return func(e *ImportLogExporter) {
		if size > 0 {
			e.pageSize = size
		}
	}
}

// ImportLogExporter writes excluded rows as CSV.
type ImportLogExporter struct {
	source   LogSource
	pageSize int
}

func NewImportLogExporter(source LogSource, opts ...Option) *ImportLogExporter {
	exporter := &ImportLogExporter{source: source, pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(exporter)
	}
	return exporter
}

var importLogHeaders = []string{"row_number", "error_message", "file_name", "created_at"}

// WriteCSV streams every log entry of the session to out and returns the
// number of data rows and bytes written.
func (e *ImportLogExporter) WriteCSV(ctx context.Context, sessionID uuid.UUID, out io.Writer) (int, int64, error) {
	buffered := bufio.NewWriterSize(out, 64<<10)
	counter := &countingWriter{writer: buffered}
	csvWriter := csv.NewWriter(counter)

	if err := csvWriter.Write(importLogHeaders); err != nil {
		return 0, counter.count, fmt.Errorf("write header: %w", err)
	}

	rowsExported := 0
	offset := 0
	record := make([]string, len(importLogHeaders))
	for {
		if err := ctx.Err(); err != nil {
			return rowsExported, counter.count, err
		}
		entries, err := e.source.ImportLog(ctx, sessionID, e.pageSize, offset)
		if err != nil {
			return rowsExported, counter.count, fmt.Errorf("list import log: %w", err)
		}
		for _, entry := range entries {
			record[0] = formatRowNumber(entry.RowNumber)
			record[1] = entry.ErrorMessage
			record[2] = entry.FileName
			record[3] = entry.CreatedAt.UTC().Format(time.RFC3339)
			if err := csvWriter.Write(record); err != nil {
				return rowsExported, counter.count, fmt.Errorf("write row: %w", err)
			}
			rowsExported++
		}
		if len(entries) < e.pageSize {
			break
		}
		offset += len(entries)
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return rowsExported, counter.count, fmt.Errorf("flush csv: %w", err)
	}
	if err := buffered.Flush(); err != nil {
		return rowsExported, counter.count, fmt.Errorf("flush buffered output: %w", err)
	}
	return rowsExported, counter.count, nil
}

// FileName names the download after the uploaded file, e.g.
// "payroll-march-import-log.csv".
func FileName(uploaded string, sessionID uuid.UUID) string {
	base := uploaded
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	component := sanitizeFileComponent(base)
	if component == "" {
		component = sessionID.String()
	}
	return component + "-import-log.csv"
}

func formatRowNumber(rowNumber *int) string {
	if rowNumber == nil {
		return ""
	}
	return strconv.Itoa(*rowNumber)
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	return strings.Trim(builder.String(), "-")
}

type countingWriter struct {
	writer *bufio.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}
