package domain

import (
	"fmt"
	"strings"
)

// TargetField is one of the canonical fields an import column can map to.
type TargetField string

const (
	FieldEmployeeID  TargetField = "employeeId"
	FieldSSN         TargetField = "ssn"
	FieldEmail       TargetField = "email"
	FieldFirstName   TargetField = "firstName"
	FieldLastName    TargetField = "lastName"
	FieldHours       TargetField = "hours"
	FieldPeriodStart TargetField = "periodStart"
	FieldPeriodEnd   TargetField = "periodEnd"
	FieldNotes       TargetField = "notes"
	// FieldIgnore marks a column that is deliberately left out of the import.
	// Any number of columns may carry it.
	FieldIgnore TargetField = "ignore"
)

// TargetFields lists every assignable field in canonical order, excluding FieldIgnore.
var TargetFields = []TargetField{
	FieldEmployeeID,
	FieldSSN,
	FieldEmail,
	FieldFirstName,
	FieldLastName,
	FieldHours,
	FieldPeriodStart,
	FieldPeriodEnd,
	FieldNotes,
}

// IsValid reports whether f is a known target field or the ignore sentinel.
func (f TargetField) IsValid() bool {
	if f == FieldIgnore {
		return true
	}
	for _, known := range TargetFields {
		if f == known {
			return true
		}
	}
	return false
}

// IsIdentity reports whether the field carries an employee identity signal.
func (f TargetField) IsIdentity() bool {
	switch f {
	case FieldEmployeeID, FieldSSN, FieldEmail, FieldFirstName, FieldLastName:
		return true
	default:
		return false
	}
}

// ParseTargetField accepts the canonical name case-insensitively.
func ParseTargetField(raw string) (TargetField, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return FieldIgnore, nil
	}
	candidate := TargetField(trimmed)
	if candidate.IsValid() {
		return candidate, nil
	}
	for _, known := range append(TargetFields, FieldIgnore) {
		if strings.EqualFold(trimmed, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown target field %q", raw)
}

// MatchStrategy selects which identity signals the matcher may use.
type MatchStrategy string

const (
	MatchByID    MatchStrategy = "id"
	MatchBySSN   MatchStrategy = "ssn"
	MatchByEmail MatchStrategy = "email"
	MatchByName  MatchStrategy = "name"
	MatchAuto    MatchStrategy = "auto"
)

// IsValid reports whether s is a supported strategy.
func (s MatchStrategy) IsValid() bool {
	switch s {
	case MatchByID, MatchBySSN, MatchByEmail, MatchByName, MatchAuto:
		return true
	default:
		return false
	}
}

// ParseMatchStrategy defaults an empty value to auto.
func ParseMatchStrategy(raw string) (MatchStrategy, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return MatchAuto, nil
	}
	strategy := MatchStrategy(trimmed)
	if !strategy.IsValid() {
		return "", fmt.Errorf("unknown match strategy %q", raw)
	}
	return strategy, nil
}

// Methods returns the match methods the strategy tries, in priority order.
func (s MatchStrategy) Methods() []MatchMethod {
	switch s {
	case MatchByID:
		return []MatchMethod{MethodID}
	case MatchBySSN:
		return []MatchMethod{MethodSSN}
	case MatchByEmail:
		return []MatchMethod{MethodEmail}
	case MatchByName:
		return []MatchMethod{MethodName}
	default:
		return []MatchMethod{MethodID, MethodSSN, MethodEmail, MethodName}
	}
}
