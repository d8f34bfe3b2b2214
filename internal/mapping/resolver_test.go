package mapping

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

func suggested(name string, index int, field domain.TargetField, confidence float64) domain.DetectedColumn {
	column := domain.DetectedColumn{Name: name, Index: index, DataType: domain.DataTypeText, Confidence: confidence}
	if field != "" {
		column.SuggestedField = &field
	}
	return column
}

func TestResolveUsesConfidentSuggestions(t *testing.T) {
	columns := []domain.DetectedColumn{
		suggested("Employee ID", 0, domain.FieldEmployeeID, 0.95),
		suggested("Hours", 1, domain.FieldHours, 0.70),
		suggested("Dept", 2, "", 0),
	}

	resolution := NewResolver(0).Resolve(columns, nil, nil)

	assert.Equal(t, domain.FieldEmployeeID, resolution.Mapping["Employee ID"])
	assert.Equal(t, domain.FieldIgnore, resolution.Mapping["Hours"])
	assert.Equal(t, domain.FieldIgnore, resolution.Mapping["Dept"])
	assert.Equal(t, SourceDetector, resolution.Sources["Employee ID"])
	assert.Equal(t, []string{"Hours", "Dept"}, resolution.Unresolved)
	assert.Empty(t, resolution.Conflicts)
}

func TestResolvePrecedence(t *testing.T) {
	columns := []domain.DetectedColumn{
		suggested("A", 0, domain.FieldEmail, 0.95),
		suggested("B", 1, domain.FieldHours, 0.95),
		suggested("C", 2, domain.FieldNotes, 0.95),
	}
	template := domain.NewMappingTemplate(uuid.New(), "t", domain.FieldMapping{
		"A": domain.FieldSSN,
		"B": domain.FieldHours,
		"Z": domain.FieldEmployeeID,
	}, domain.MatchAuto)
	overrides := domain.FieldMapping{"A": domain.FieldEmployeeID, "Missing": domain.FieldLastName}

	resolution := NewResolver(0).Resolve(columns, &template, overrides)

	assert.Equal(t, domain.FieldMapping{
		"A": domain.FieldEmployeeID,
		"B": domain.FieldHours,
		"C": domain.FieldNotes,
	}, resolution.Mapping)
	assert.Equal(t, SourceOverride, resolution.Sources["A"])
	assert.Equal(t, SourceTemplate, resolution.Sources["B"])
	assert.Equal(t, SourceDetector, resolution.Sources["C"])
}

func TestResolveBreaksSingletonConflicts(t *testing.T) {
	columns := []domain.DetectedColumn{
		suggested("Hrs", 0, domain.FieldHours, 0.95),
		suggested("Hours Worked", 1, domain.FieldHours, 0.95),
		suggested("Total Hours", 2, domain.FieldHours, 0.90),
	}

	resolution := NewResolver(0).Resolve(columns, nil, domain.FieldMapping{"Total Hours": domain.FieldHours})

	assert.Equal(t, domain.FieldHours, resolution.Mapping["Total Hours"])
	assert.Equal(t, domain.FieldIgnore, resolution.Mapping["Hrs"])
	assert.Equal(t, domain.FieldIgnore, resolution.Mapping["Hours Worked"])
	require.Len(t, resolution.Conflicts, 1)
	assert.Equal(t, "Total Hours", resolution.Conflicts[0].Winner)
	assert.Equal(t, []string{"Hrs", "Hours Worked"}, resolution.Conflicts[0].Dropped)

	require.NoError(t, ValidateMapping(columns, resolution.Mapping))
}

func TestResolveConflictFallsBackToColumnOrder(t *testing.T) {
	columns := []domain.DetectedColumn{
		suggested("First", 0, domain.FieldFirstName, 0.95),
		suggested("Given", 1, domain.FieldFirstName, 0.95),
	}
	resolution := NewResolver(0).Resolve(columns, nil, nil)
	assert.Equal(t, domain.FieldFirstName, resolution.Mapping["First"])
	assert.Equal(t, domain.FieldIgnore, resolution.Mapping["Given"])
}

func TestResolveIsIdempotent(t *testing.T) {
	columns := []domain.DetectedColumn{
		suggested("ID", 0, domain.FieldEmployeeID, 0.95),
		suggested("Hours", 1, domain.FieldHours, 0.95),
	}
	resolver := NewResolver(0)
	first := resolver.Resolve(columns, nil, nil)
	second := resolver.Resolve(columns, nil, first.Mapping)
	assert.Equal(t, first.Mapping, second.Mapping)
}

func TestValidateMappingReportsAllProblems(t *testing.T) {
	columns := []domain.DetectedColumn{{Name: "A"}, {Name: "B"}}
	err := ValidateMapping(columns, domain.FieldMapping{
		"A":     domain.FieldHours,
		"B":     domain.FieldHours,
		"Ghost": domain.TargetField("salary"),
	})

	require.ErrorIs(t, err, domain.ErrInvalidMapping)
	assert.Contains(t, err.Error(), `column "Ghost" is not in the upload`)
	assert.Contains(t, err.Error(), `unknown field "salary"`)
	assert.Contains(t, err.Error(), "field hours is assigned to 2 columns")
}

func TestValidateMappingAllowsManyIgnores(t *testing.T) {
	columns := []domain.DetectedColumn{{Name: "A"}, {Name: "B"}}
	assert.NoError(t, ValidateMapping(columns, domain.FieldMapping{"A": domain.FieldIgnore, "B": domain.FieldIgnore}))
}

func TestCheckReadiness(t *testing.T) {
	ready := CheckReadiness(domain.FieldMapping{"ID": domain.FieldEmployeeID, "H": domain.FieldHours}, domain.MatchAuto)
	assert.True(t, ready.Ready)
	assert.Empty(t, ready.Missing)

	names := CheckReadiness(domain.FieldMapping{"F": domain.FieldFirstName, "L": domain.FieldLastName, "H": domain.FieldHours}, domain.MatchAuto)
	assert.True(t, names.Ready)

	missing := CheckReadiness(domain.FieldMapping{"F": domain.FieldFirstName}, domain.MatchAuto)
	assert.False(t, missing.Ready)
	assert.Len(t, missing.Missing, 2)

	warned := CheckReadiness(domain.FieldMapping{"ID": domain.FieldEmployeeID, "H": domain.FieldHours}, domain.MatchBySSN)
	assert.True(t, warned.Ready)
	require.Len(t, warned.Warnings, 1)
	assert.Contains(t, warned.Warnings[0], "ssn")
}
