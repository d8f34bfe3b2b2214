package domain

import (
	"encoding/json"
	"sort"
)

// DataType is the inferred type of a source column.
type DataType string

const (
	DataTypeText       DataType = "text"
	DataTypeNumber     DataType = "number"
	DataTypeDate       DataType = "date"
	DataTypeIdentifier DataType = "identifier"
)

// ValueFormat narrows an identifier column to a recognised value shape.
type ValueFormat string

const (
	FormatNone  ValueFormat = ""
	FormatEmail ValueFormat = "email"
	FormatSSN   ValueFormat = "ssn"
)

// DetectedColumn describes one source column as seen at upload time.
type DetectedColumn struct {
	Name           string       `json:"name"`
	Index          int          `json:"index"`
	DataType       DataType     `json:"dataType"`
	Format         ValueFormat  `json:"format,omitempty"`
	SampleValues   []string     `json:"sampleValues"`
	SuggestedField *TargetField `json:"suggestedField"`
	Confidence     float64      `json:"confidence"`
}

// FieldMapping assigns each source column (by header name) a target field.
type FieldMapping map[string]TargetField

// Clone returns an independent copy.
func (m FieldMapping) Clone() FieldMapping {
	out := make(FieldMapping, len(m))
	for column, field := range m {
		out[column] = field
	}
	return out
}

// Equal reports whether both mappings carry identical assignments.
func (m FieldMapping) Equal(other FieldMapping) bool {
	if len(m) != len(other) {
		return false
	}
	for column, field := range m {
		if otherField, ok := other[column]; !ok || otherField != field {
			return false
		}
	}
	return true
}

// ColumnFor returns the column assigned to field, if any.
func (m FieldMapping) ColumnFor(field TargetField) (string, bool) {
	if field == FieldIgnore {
		return "", false
	}
	for _, column := range m.Columns() {
		if m[column] == field {
			return column, true
		}
	}
	return "", false
}

// Has reports whether field is assigned to some column.
func (m FieldMapping) Has(field TargetField) bool {
	_, ok := m.ColumnFor(field)
	return ok
}

// Columns returns the mapped column names in sorted order.
func (m FieldMapping) Columns() []string {
	columns := make([]string, 0, len(m))
	for column := range m {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

// ToJSON marshals the mapping into the JSONB layout stored in Postgres.
func (m FieldMapping) ToJSON() (json.RawMessage, error) {
	if m == nil {
		m = FieldMapping{}
	}
	return json.Marshal(map[string]TargetField(m))
}

// FieldMappingFromJSON unmarshals a persisted mapping.
func FieldMappingFromJSON(data []byte) (FieldMapping, error) {
	if len(data) == 0 {
		return FieldMapping{}, nil
	}
	var mapping map[string]TargetField
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, err
	}
	if mapping == nil {
		mapping = map[string]TargetField{}
	}
	return FieldMapping(mapping), nil
}

// DetectedColumnsToJSON marshals detected columns for storage.
func DetectedColumnsToJSON(columns []DetectedColumn) (json.RawMessage, error) {
	if columns == nil {
		columns = []DetectedColumn{}
	}
	return json.Marshal(columns)
}

// DetectedColumnsFromJSON unmarshals persisted detected columns.
func DetectedColumnsFromJSON(data []byte) ([]DetectedColumn, error) {
	if len(data) == 0 {
		return []DetectedColumn{}, nil
	}
	var columns []DetectedColumn
	if err := json.Unmarshal(data, &columns); err != nil {
		return nil, err
	}
	if columns == nil {
		columns = []DetectedColumn{}
	}
	return columns, nil
}
