package validation

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

var (
	headers = []string{"Employee ID", "SSN", "Email", "First", "Last", "Hours", "Start", "End", "Notes"}
	mapping = domain.FieldMapping{
		"Employee ID": domain.FieldEmployeeID,
		"SSN":         domain.FieldSSN,
		"Email":       domain.FieldEmail,
		"First":       domain.FieldFirstName,
		"Last":        domain.FieldLastName,
		"Hours":       domain.FieldHours,
		"Start":       domain.FieldPeriodStart,
		"End":         domain.FieldPeriodEnd,
		"Notes":       domain.FieldNotes,
	}
	matched = domain.NewMatch(domain.Employee{ID: uuid.New(), EmployeeID: "E100", FirstName: "Ana", LastName: "Lopez"}, domain.MethodID, domain.ConfidenceExact, 1)
)

func mapped(cells ...string) domain.MappedRow {
	return domain.NewMappedRow(domain.Row{Number: 7, Cells: cells}, headers, mapping)
}

func TestValidateProducesNormalizedRecord(t *testing.T) {
	result := NewValidator(0).Validate(
		mapped("E100", "123-45-6789", " Ana@Example.com ", "Ana", "Lopez", "37.50", "01/01/2024", "2024-01-07", "night shift"),
		matched,
	)

	require.Equal(t, domain.ValidationValid, result.Status)
	assert.Empty(t, result.Errors)
	require.NotNil(t, result.Record)
	assert.Equal(t, 7, result.Record.RowNumber)
	assert.Equal(t, "123456789", result.Record.SSN)
	assert.Equal(t, "ana@example.com", result.Record.Email)
	assert.Equal(t, "37.5", result.Record.Hours.String())
	assert.Equal(t, "2024-01-01", result.Record.PeriodStart.Format("2006-01-02"))
	assert.Equal(t, "E100", result.Record.Employee.EmployeeID)
}

func TestValidateInvalidHours(t *testing.T) {
	for _, hours := range []string{"-5", "0", "abc", "745"} {
		result := NewValidator(DefaultMaxHours).Validate(mapped("E100", "", "", "", "", hours, "", "", ""), matched)

		require.Equal(t, domain.ValidationInvalid, result.Status, hours)
		require.Len(t, result.Errors, 1, hours)
		assert.True(t, strings.HasPrefix(result.Errors[0], "hours:"), result.Errors[0])
		assert.Nil(t, result.Record)
	}
}

func TestValidateHoursCommaHandling(t *testing.T) {
	result := NewValidator(0).Validate(mapped("E100", "", "", "", "", "7,5", "", "", ""), matched)
	require.Equal(t, domain.ValidationInvalid, result.Status)
	assert.Equal(t, []string{`hours: "7,5" is not a number`}, result.Errors)

	result = NewValidator(2000).Validate(mapped("E100", "", "", "", "", "1,234.5", "", "", ""), matched)
	require.Equal(t, domain.ValidationValid, result.Status, result.Errors)
	assert.Equal(t, "1234.5", result.Record.Hours.String())
}

func TestValidateMissingHours(t *testing.T) {
	result := NewValidator(0).Validate(mapped("E100", "", "", "", "", "", "", "", ""), matched)
	assert.Equal(t, []string{"hours: value is required"}, result.Errors)
}

func TestValidateCollectsErrorsInStableOrder(t *testing.T) {
	result := NewValidator(0).Validate(
		mapped("", "000-00-0000", "not-an-email", "", "", "x", "13/45/2024", "garbage", ""),
		domain.NewUnmatched("no employee with this ssn", []domain.MatchMethod{domain.MethodSSN}),
	)

	require.Equal(t, domain.ValidationInvalid, result.Status)
	prefixes := []string{"hours:", "ssn:", "email:", "periodStart:", "periodEnd:", "employee:"}
	require.Len(t, result.Errors, len(prefixes), "%v", result.Errors)
	for i, prefix := range prefixes {
		assert.True(t, strings.HasPrefix(result.Errors[i], prefix), "error %d = %q", i, result.Errors[i])
	}
	assert.Contains(t, result.Errors[5], "attempted ssn")
}

func TestValidateRequiresIdentity(t *testing.T) {
	result := NewValidator(0).Validate(mapped("", "", "", "Ana", "", "8", "", "", ""), matched)
	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasPrefix(result.Errors[0], "identity:"))
}

func TestValidateShortSSN(t *testing.T) {
	result := NewValidator(0).Validate(mapped("E100", "12345", "", "", "", "8", "", "", ""), matched)
	assert.Equal(t, []string{"ssn: must contain exactly 9 digits"}, result.Errors)
}

func TestValidatePeriodOrder(t *testing.T) {
	result := NewValidator(0).Validate(mapped("E100", "", "", "", "", "8", "2024-02-01", "2024-01-01", ""), matched)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "periodStart")
	assert.Contains(t, result.Errors[0], "after periodEnd")
}

func TestValidateUnmatched(t *testing.T) {
	result := NewValidator(0).Validate(
		mapped("E999", "", "", "", "", "8", "", "", ""),
		domain.NewUnmatched("no employee with this id", []domain.MatchMethod{domain.MethodID}),
	)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "employee: not matched (no employee with this id; attempted id)", result.Errors[0])
}

func TestValidateUnmappedOptionalFieldsAreSkipped(t *testing.T) {
	row := domain.NewMappedRow(
		domain.Row{Number: 2, Cells: []string{"E100", "8"}},
		[]string{"ID", "Hours"},
		domain.FieldMapping{"ID": domain.FieldEmployeeID, "Hours": domain.FieldHours},
	)
	result := NewValidator(0).Validate(row, matched)
	assert.Equal(t, domain.ValidationValid, result.Status)
	assert.Nil(t, result.Record.PeriodStart)
}
