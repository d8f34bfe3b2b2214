// Package validation checks mapped rows and produces normalized records.
package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/detection"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

// DefaultMaxHours is one 31-day month of continuous hours.
const DefaultMaxHours = 744

// Result is the verdict for one row. Errors is empty iff Status is valid.
type Result struct {
	Status domain.ValidationStatus
	Errors []string
	Record *domain.NormalizedRecord
}

// Validator applies the row rules. It holds no state besides its limits.
type Validator struct {
	maxHours decimal.Decimal
}

// NewValidator returns a validator capping hours at maxHours. Non-positive
// values use DefaultMaxHours.
func NewValidator(maxHours float64) *Validator {
	if maxHours <= 0 {
		maxHours = DefaultMaxHours
	}
	return &Validator{maxHours: decimal.NewFromFloat(maxHours)}
}

// Validate runs every check in a fixed order and collects all failures.
func (v *Validator) Validate(row domain.MappedRow, match domain.MatchResult) Result {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !hasIdentity(row) {
		fail("identity: one of employeeId, ssn, email or firstName and lastName is required")
	}

	hours := v.checkHours(row.Hours, fail)

	var ssn string
	if row.SSN.Present() {
		ssn = domain.DigitsOnly(row.SSN.Value)
		switch {
		case len(ssn) != 9:
			fail("ssn: must contain exactly 9 digits")
		case ssn == "000000000":
			fail("ssn: must not be all zeros")
		}
	}

	if row.Email.Present() && !detection.LooksLikeEmail(row.Email.Value) {
		fail("email: %q is not a valid email address", row.Email.Value)
	}

	start := parseDate(row.PeriodStart, "periodStart", fail)
	end := parseDate(row.PeriodEnd, "periodEnd", fail)
	if start != nil && end != nil && start.After(*end) {
		fail("periodStart: %s is after periodEnd %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	if !match.Matched {
		fail("employee: not matched (%s)", unmatchedDetail(match))
	}

	if len(problems) > 0 {
		return Result{Status: domain.ValidationInvalid, Errors: problems}
	}

	record := &domain.NormalizedRecord{
		RowNumber:   row.Number,
		EmployeeID:  row.EmployeeID.Value,
		SSN:         ssn,
		Email:       strings.ToLower(strings.TrimSpace(row.Email.Value)),
		FirstName:   row.FirstName.Value,
		LastName:    row.LastName.Value,
		Hours:       hours,
		PeriodStart: start,
		PeriodEnd:   end,
		Notes:       row.Notes.Value,
	}
	if match.Employee != nil {
		record.Employee = *match.Employee
	}
	return Result{Status: domain.ValidationValid, Errors: []string{}, Record: record}
}

func (v *Validator) checkHours(slot domain.Slot, fail func(string, ...any)) decimal.Decimal {
	if !slot.Present() {
		fail("hours: value is required")
		return decimal.Zero
	}
	hours, err := domain.ParseDecimal(slot.Value)
	if err != nil {
		fail("hours: %q is not a number", slot.Value)
		return decimal.Zero
	}
	if !hours.IsPositive() {
		fail("hours: must be greater than 0")
	} else if hours.GreaterThan(v.maxHours) {
		fail("hours: must not exceed %s", v.maxHours.String())
	}
	return hours
}

func hasIdentity(row domain.MappedRow) bool {
	if row.EmployeeID.Present() || row.SSN.Present() || row.Email.Present() {
		return true
	}
	return row.FirstName.Present() && row.LastName.Present()
}

func parseDate(slot domain.Slot, field string, fail func(string, ...any)) *time.Time {
	if !slot.Present() {
		return nil
	}
	parsed, err := domain.ParseDate(slot.Value)
	if err != nil {
		fail("%s: %q is not a recognized date", field, slot.Value)
		return nil
	}
	return &parsed
}

func unmatchedDetail(match domain.MatchResult) string {
	detail := match.Reason
	if detail == "" {
		detail = "no match"
	}
	if len(match.Attempted) == 0 {
		return detail + "; no methods attempted"
	}
	methods := make([]string, len(match.Attempted))
	for i, method := range match.Attempted {
		methods[i] = string(method)
	}
	return fmt.Sprintf("%s; attempted %s", detail, strings.Join(methods, ", "))
}
