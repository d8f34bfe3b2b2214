package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

func table(headers []string, rows ...[]string) domain.Table {
	t := domain.Table{Headers: headers}
	for i, cells := range rows {
		t.Rows = append(t.Rows, domain.Row{Number: i + 2, Cells: cells})
	}
	return t
}

func TestDetectSuggestsFieldsFromHeaderAndType(t *testing.T) {
	input := table(
		[]string{"Employee ID", "SSN", "Work Email", "First Name", "Last Name", "Hours Worked", "Period Start", "Period End", "Notes"},
		[]string{"E100", "123-45-6789", "ana@example.com", "Ana", "Lopez", "40", "01/01/2024", "01/07/2024", "ok"},
		[]string{"E101", "987-65-4321", "bo@example.com", "Bo", "Chen", "32.5", "01/01/2024", "01/07/2024", ""},
	)

	columns := NewDetector(5).Detect(input)
	require.Len(t, columns, 9)

	want := []domain.TargetField{
		domain.FieldEmployeeID, domain.FieldSSN, domain.FieldEmail, domain.FieldFirstName,
		domain.FieldLastName, domain.FieldHours, domain.FieldPeriodStart, domain.FieldPeriodEnd, domain.FieldNotes,
	}
	for i, column := range columns {
		require.NotNil(t, column.SuggestedField, "column %s", column.Name)
		assert.Equal(t, want[i], *column.SuggestedField, "column %s", column.Name)
		assert.Equal(t, 0.95, column.Confidence, "column %s", column.Name)
		assert.Equal(t, i, column.Index)
	}

	assert.Equal(t, domain.DataTypeIdentifier, columns[1].DataType)
	assert.Equal(t, domain.FormatSSN, columns[1].Format)
	assert.Equal(t, domain.FormatEmail, columns[2].Format)
	assert.Equal(t, domain.DataTypeNumber, columns[5].DataType)
	assert.Equal(t, domain.DataTypeDate, columns[6].DataType)
}

func TestDetectHeaderOnlyConfidence(t *testing.T) {
	input := table([]string{"Hours"}, []string{"eight"}, []string{"ten"})

	columns := NewDetector(5).Detect(input)
	require.NotNil(t, columns[0].SuggestedField)
	assert.Equal(t, domain.FieldHours, *columns[0].SuggestedField)
	assert.Equal(t, 0.70, columns[0].Confidence)
	assert.Equal(t, domain.DataTypeText, columns[0].DataType)
}

func TestDetectTypeOnlySuggestion(t *testing.T) {
	input := table([]string{"Col A", "Col B"},
		[]string{"123456789", "x@example.org"},
		[]string{"234-56-7890", "y@example.org"},
	)

	columns := NewDetector(5).Detect(input)
	require.NotNil(t, columns[0].SuggestedField)
	assert.Equal(t, domain.FieldSSN, *columns[0].SuggestedField)
	assert.Equal(t, 0.60, columns[0].Confidence)
	require.NotNil(t, columns[1].SuggestedField)
	assert.Equal(t, domain.FieldEmail, *columns[1].SuggestedField)
	assert.Equal(t, 0.60, columns[1].Confidence)
}

func TestDetectNoSuggestion(t *testing.T) {
	input := table([]string{"Department"}, []string{"Sales"}, []string{"Ops"})

	columns := NewDetector(5).Detect(input)
	assert.Nil(t, columns[0].SuggestedField)
	assert.Zero(t, columns[0].Confidence)
	assert.Equal(t, domain.DataTypeText, columns[0].DataType)
}

func TestDetectWithoutRows(t *testing.T) {
	columns := NewDetector(5).Detect(table([]string{"SSN", "Hours"}))
	require.Len(t, columns, 2)
	for _, column := range columns {
		assert.Equal(t, domain.DataTypeText, column.DataType)
		assert.Nil(t, column.SuggestedField)
		assert.Zero(t, column.Confidence)
		assert.Empty(t, column.SampleValues)
	}
}

func TestDetectSamplesFirstNonEmptyValues(t *testing.T) {
	input := table([]string{"Hours"},
		[]string{""}, []string{"1"}, []string{"2"}, []string{""}, []string{"3"}, []string{"4"},
	)

	columns := NewDetector(3).Detect(input)
	assert.Equal(t, []string{"1", "2", "3"}, columns[0].SampleValues)
}

func TestDetectMajorityDecidesType(t *testing.T) {
	input := table([]string{"Hours"}, []string{"8"}, []string{"n/a"}, []string{"7.5"})
	columns := NewDetector(5).Detect(input)
	assert.Equal(t, domain.DataTypeNumber, columns[0].DataType)

	tied := table([]string{"Hours"}, []string{"8"}, []string{"n/a"})
	columns = NewDetector(5).Detect(tied)
	assert.Equal(t, domain.DataTypeText, columns[0].DataType)
}

func TestDetectNumbersWithThousandsSeparators(t *testing.T) {
	grouped := table([]string{"Total"}, []string{"1,234.5"}, []string{"2,000"}, []string{"40"})
	assert.Equal(t, domain.DataTypeNumber, NewDetector(5).Detect(grouped)[0].DataType)

	decimalComma := table([]string{"Total"}, []string{"7,5"}, []string{"8,25"}, []string{"6,0"})
	assert.NotEqual(t, domain.DataTypeNumber, NewDetector(5).Detect(decimalComma)[0].DataType)
}

func TestDetectIsDeterministic(t *testing.T) {
	input := table([]string{"Emp #", "Email", "Hrs"},
		[]string{"A-1", "a@b.co", "4"},
		[]string{"A-2", "c@d.co", "5"},
	)
	detector := NewDetector(5)
	assert.Equal(t, detector.Detect(input), detector.Detect(input))
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "employee id", NormalizeHeader("  Employee_ID# "))
	assert.Equal(t, "e mail", NormalizeHeader("E-Mail"))
	assert.Equal(t, "", NormalizeHeader("---"))
}

func TestMatchHeaderPriority(t *testing.T) {
	cases := map[string]domain.TargetField{
		"Employee Email":   domain.FieldEmail,
		"Employee SSN":     domain.FieldSSN,
		"Emp No":           domain.FieldEmployeeID,
		"Pay Period Start": domain.FieldPeriodStart,
		"Week Ending":      domain.FieldPeriodEnd,
		"Total Hrs":        domain.FieldHours,
		"Surname":          domain.FieldLastName,
	}
	for header, want := range cases {
		got, ok := matchHeader(header)
		require.True(t, ok, header)
		assert.Equal(t, want, got, header)
	}

	_, ok := matchHeader("Department")
	assert.False(t, ok)
}
