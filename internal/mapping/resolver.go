// Package mapping turns detected columns, templates and user overrides into a
// final column to field assignment.
package mapping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-faster/errors"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

// DefaultAutoApplyThreshold is the detector confidence needed to use a
// suggestion without confirmation.
const DefaultAutoApplyThreshold = 0.8

// Source records where a column's assignment came from.
type Source string

const (
	SourceOverride Source = "override"
	SourceTemplate Source = "template"
	SourceDetector Source = "detector"
	SourceDefault  Source = "default"
)

func (s Source) rank() int {
	switch s {
	case SourceOverride:
		return 3
	case SourceTemplate:
		return 2
	case SourceDetector:
		return 1
	default:
		return 0
	}
}

// Conflict reports columns that lost a singleton target to another column.
type Conflict struct {
	Field   domain.TargetField `json:"field"`
	Winner  string             `json:"winner"`
	Dropped []string           `json:"dropped"`
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Mapping    domain.FieldMapping `json:"mapping"`
	Sources    map[string]Source   `json:"sources"`
	Conflicts  []Conflict          `json:"conflicts"`
	Unresolved []string            `json:"unresolved"`
}

// Resolver merges mapping inputs. It is pure and safe for concurrent use.
type Resolver struct {
	autoApplyThreshold float64
}

// NewResolver returns a resolver auto-applying detector suggestions at or
// above threshold. Non-positive thresholds use the default.
func NewResolver(threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = DefaultAutoApplyThreshold
	}
	return &Resolver{autoApplyThreshold: threshold}
}

type claim struct {
	column     string
	index      int
	field      domain.TargetField
	source     Source
	confidence float64
}

// Resolve picks a target per detected column: override, then template, then
// a confident detector suggestion, else ignore. Entries naming unknown
// columns are skipped. When several columns claim one field the strongest
// source wins, then the higher confidence, then the earlier column.
func (r *Resolver) Resolve(columns []domain.DetectedColumn, template *domain.MappingTemplate, overrides domain.FieldMapping) Resolution {
	claims := make([]claim, len(columns))
	for i, column := range columns {
		claims[i] = r.claimFor(column, template, overrides)
	}

	resolution := Resolution{
		Mapping:    make(domain.FieldMapping, len(columns)),
		Sources:    make(map[string]Source, len(columns)),
		Conflicts:  []Conflict{},
		Unresolved: []string{},
	}

	byField := make(map[domain.TargetField][]int)
	for i, c := range claims {
		if c.field != domain.FieldIgnore {
			byField[c.field] = append(byField[c.field], i)
		}
	}
	for _, field := range domain.TargetFields {
		contenders := byField[field]
		if len(contenders) < 2 {
			continue
		}
		sort.SliceStable(contenders, func(a, b int) bool {
			ca, cb := claims[contenders[a]], claims[contenders[b]]
			if ca.source.rank() != cb.source.rank() {
				return ca.source.rank() > cb.source.rank()
			}
			if ca.confidence != cb.confidence {
				return ca.confidence > cb.confidence
			}
			return ca.index < cb.index
		})
		conflict := Conflict{Field: field, Winner: claims[contenders[0]].column}
		for _, loser := range contenders[1:] {
			conflict.Dropped = append(conflict.Dropped, claims[loser].column)
			claims[loser].field = domain.FieldIgnore
			claims[loser].source = SourceDefault
		}
		resolution.Conflicts = append(resolution.Conflicts, conflict)
	}

	for _, c := range claims {
		resolution.Mapping[c.column] = c.field
		resolution.Sources[c.column] = c.source
		if c.source == SourceDefault {
			resolution.Unresolved = append(resolution.Unresolved, c.column)
		}
	}
	return resolution
}

func (r *Resolver) claimFor(column domain.DetectedColumn, template *domain.MappingTemplate, overrides domain.FieldMapping) claim {
	c := claim{column: column.Name, index: column.Index, field: domain.FieldIgnore, source: SourceDefault, confidence: column.Confidence}
	if field, ok := overrides[column.Name]; ok && field.IsValid() {
		c.field, c.source, c.confidence = field, SourceOverride, 1
		return c
	}
	if template != nil {
		if field, ok := template.ColumnMappings[column.Name]; ok && field.IsValid() {
			c.field, c.source, c.confidence = field, SourceTemplate, 1
			return c
		}
	}
	if column.SuggestedField != nil && column.Confidence >= r.autoApplyThreshold {
		c.field, c.source = *column.SuggestedField, SourceDetector
	}
	return c
}

// ValidateMapping checks a caller-supplied mapping against the detected
// columns and reports every problem at once.
func ValidateMapping(columns []domain.DetectedColumn, mapping domain.FieldMapping) error {
	known := make(map[string]bool, len(columns))
	for _, column := range columns {
		known[column.Name] = true
	}

	var problems []string
	owners := make(map[domain.TargetField][]string)
	for _, column := range mapping.Columns() {
		field := mapping[column]
		if !known[column] {
			problems = append(problems, fmt.Sprintf("column %q is not in the upload", column))
		}
		if !field.IsValid() {
			problems = append(problems, fmt.Sprintf("column %q maps to unknown field %q", column, field))
			continue
		}
		if field != domain.FieldIgnore {
			owners[field] = append(owners[field], column)
		}
	}
	for _, field := range domain.TargetFields {
		if cols := owners[field]; len(cols) > 1 {
			problems = append(problems, fmt.Sprintf("field %s is assigned to %d columns: %s", field, len(cols), strings.Join(cols, ", ")))
		}
	}

	if len(problems) > 0 {
		return errors.Wrap(domain.ErrInvalidMapping, strings.Join(problems, "; "))
	}
	return nil
}
