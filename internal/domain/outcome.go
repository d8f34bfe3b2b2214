package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Slot holds one mapped value of a row. Mapped is false when no column was
// assigned to the field at all, which is different from an empty cell.
type Slot struct {
	Value  string
	Mapped bool
}

// Present reports whether the field was mapped and the cell is non-empty.
func (s Slot) Present() bool {
	return s.Mapped && s.Value != ""
}

// MappedRow is a source row converted at the mapping boundary: one optional
// slot per known target field.
type MappedRow struct {
	Number      int
	EmployeeID  Slot
	SSN         Slot
	Email       Slot
	FirstName   Slot
	LastName    Slot
	Hours       Slot
	PeriodStart Slot
	PeriodEnd   Slot
	Notes       Slot
}

// NewMappedRow projects row onto the target fields using mapping. headers
// gives the column order of the table the row came from.
func NewMappedRow(row Row, headers []string, mapping FieldMapping) MappedRow {
	mapped := MappedRow{Number: row.Number}
	for idx, header := range headers {
		field, ok := mapping[header]
		if !ok || field == FieldIgnore {
			continue
		}
		if slot := mapped.slot(field); slot != nil {
			*slot = Slot{Value: row.Cell(idx), Mapped: true}
		}
	}
	return mapped
}

func (r *MappedRow) slot(field TargetField) *Slot {
	switch field {
	case FieldEmployeeID:
		return &r.EmployeeID
	case FieldSSN:
		return &r.SSN
	case FieldEmail:
		return &r.Email
	case FieldFirstName:
		return &r.FirstName
	case FieldLastName:
		return &r.LastName
	case FieldHours:
		return &r.Hours
	case FieldPeriodStart:
		return &r.PeriodStart
	case FieldPeriodEnd:
		return &r.PeriodEnd
	case FieldNotes:
		return &r.Notes
	default:
		return nil
	}
}

// Get returns the slot for field; FieldIgnore and unknown fields yield an unmapped slot.
func (r MappedRow) Get(field TargetField) Slot {
	if slot := r.slot(field); slot != nil {
		return *slot
	}
	return Slot{}
}

// Values returns the mapped values keyed by target field name.
func (r MappedRow) Values() map[string]string {
	values := make(map[string]string)
	for _, field := range TargetFields {
		if slot := r.Get(field); slot.Mapped {
			values[string(field)] = slot.Value
		}
	}
	return values
}

// MarshalJSON renders only the mapped fields.
func (r MappedRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Values())
}

// MatchMethod names the identity signal that produced a match.
type MatchMethod string

const (
	MethodID    MatchMethod = "id"
	MethodSSN   MatchMethod = "ssn"
	MethodEmail MatchMethod = "email"
	MethodName  MatchMethod = "name"
)

// ConfidenceTier is the coarse trust level of a match.
type ConfidenceTier string

const (
	ConfidenceExact ConfidenceTier = "exact"
	ConfidenceHigh  ConfidenceTier = "high"
	ConfidenceLow   ConfidenceTier = "low"
)

// MatchResult is either a match (Employee, Method and Confidence set) or an
// unmatched outcome with a reason. The constructors keep the two exclusive.
type MatchResult struct {
	Matched    bool           `json:"matched"`
	Employee   *EmployeeRef   `json:"employee,omitempty"`
	Method     MatchMethod    `json:"method,omitempty"`
	Confidence ConfidenceTier `json:"confidence,omitempty"`
	Score      float64        `json:"score,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Attempted  []MatchMethod  `json:"attempted,omitempty"`
}

// NewMatch builds a matched result.
func NewMatch(employee Employee, method MatchMethod, confidence ConfidenceTier, score float64) MatchResult {
	ref := employee.Ref()
	return MatchResult{
		Matched:    true,
		Employee:   &ref,
		Method:     method,
		Confidence: confidence,
		Score:      score,
	}
}

// NewUnmatched builds an unmatched result.
func NewUnmatched(reason string, attempted []MatchMethod) MatchResult {
	return MatchResult{
		Matched:   false,
		Reason:    reason,
		Attempted: attempted,
	}
}

// ValidationStatus is the per-row verdict.
type ValidationStatus string

const (
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
)

// NormalizedRecord is the clean, typed form of a valid row.
type NormalizedRecord struct {
	RowNumber   int             `json:"rowNumber"`
	Employee    EmployeeRef     `json:"employee"`
	EmployeeID  string          `json:"employeeId,omitempty"`
	SSN         string          `json:"-"`
	Email       string          `json:"email,omitempty"`
	FirstName   string          `json:"firstName,omitempty"`
	LastName    string          `json:"lastName,omitempty"`
	Hours       decimal.Decimal `json:"hours"`
	PeriodStart *time.Time      `json:"periodStart,omitempty"`
	PeriodEnd   *time.Time      `json:"periodEnd,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

// RowOutcome is the preview verdict for one row. It is produced fresh on
// every preview and never stored.
type RowOutcome struct {
	RowNumber        int               `json:"rowNumber"`
	MappedData       MappedRow         `json:"mappedData"`
	MatchResult      MatchResult       `json:"matchResult"`
	ValidationStatus ValidationStatus  `json:"validationStatus"`
	ValidationErrors []string          `json:"validationErrors"`
	Record           *NormalizedRecord `json:"record,omitempty"`
}

// Valid reports whether the row can be committed.
func (o RowOutcome) Valid() bool {
	return o.ValidationStatus == ValidationValid
}
