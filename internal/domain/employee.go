package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Employee is a directory record the matcher can resolve a row to. The
// directory owns the schema; the import engine only reads these fields.
type Employee struct {
	ID         uuid.UUID `json:"id"`
	EmployerID uuid.UUID `json:"employerId"`
	EmployeeID string    `json:"employeeId"`
	SSN        string    `json:"-"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
}

// FullName joins first and last name with a single space.
func (e Employee) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(e.FirstName) + " " + strings.TrimSpace(e.LastName))
}

// EmployeeRef is the slim reference attached to a matched row.
type EmployeeRef struct {
	ID         uuid.UUID `json:"id"`
	EmployeeID string    `json:"employeeId,omitempty"`
	Name       string    `json:"name"`
}

// Ref returns the reference form of e.
func (e Employee) Ref() EmployeeRef {
	return EmployeeRef{ID: e.ID, EmployeeID: e.EmployeeID, Name: e.FullName()}
}

// DigitsOnly strips everything but ASCII digits. SSNs are compared in this form.
func DigitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
