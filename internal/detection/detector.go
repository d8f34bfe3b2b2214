// Package detection infers column types and suggests target fields for an
// uploaded table.
package detection

import (
	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

const (
	// DefaultSampleSize is how many non-empty values are sampled per column.
	DefaultSampleSize = 5

	confidenceHeaderAndType = 0.95
	confidenceHeaderOnly    = 0.70
	confidenceTypeOnly      = 0.60
)

// Detector classifies the columns of a table. The zero value is not usable;
// construct it with NewDetector.
type Detector struct {
	sampleSize int
}

// NewDetector returns a detector sampling sampleSize values per column.
// Non-positive sizes fall back to DefaultSampleSize.
func NewDetector(sampleSize int) *Detector {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Detector{sampleSize: sampleSize}
}

// Detect returns one DetectedColumn per header, in header order. The result
// depends only on the table contents.
func (d *Detector) Detect(table domain.Table) []domain.DetectedColumn {
	columns := make([]domain.DetectedColumn, len(table.Headers))
	for idx, header := range table.Headers {
		columns[idx] = d.detectColumn(idx, header, table.Rows)
	}
	return columns
}

func (d *Detector) detectColumn(idx int, header string, rows []domain.Row) domain.DetectedColumn {
	samples := d.sample(idx, rows)
	dataType, format := classify(samples)

	column := domain.DetectedColumn{
		Name:         header,
		Index:        idx,
		DataType:     dataType,
		Format:       format,
		SampleValues: samples,
	}
	if len(samples) == 0 {
		return column
	}

	field, confidence := suggest(header, dataType, format)
	if confidence > 0 {
		column.SuggestedField = &field
		column.Confidence = confidence
	}
	return column
}

func (d *Detector) sample(idx int, rows []domain.Row) []string {
	samples := make([]string, 0, d.sampleSize)
	for _, row := range rows {
		value := row.Cell(idx)
		if value == "" {
			continue
		}
		samples = append(samples, value)
		if len(samples) == d.sampleSize {
			break
		}
	}
	return samples
}

func suggest(header string, dataType domain.DataType, format domain.ValueFormat) (domain.TargetField, float64) {
	if field, ok := matchHeader(header); ok {
		if compatible(field, dataType, format) {
			return field, confidenceHeaderAndType
		}
		return field, confidenceHeaderOnly
	}
	switch format {
	case domain.FormatSSN:
		return domain.FieldSSN, confidenceTypeOnly
	case domain.FormatEmail:
		return domain.FieldEmail, confidenceTypeOnly
	default:
		return "", 0
	}
}
