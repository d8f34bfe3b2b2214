package mapping

import (
	"fmt"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

// Readiness says whether a mapping carries enough to preview.
type Readiness struct {
	Ready    bool     `json:"ready"`
	Missing  []string `json:"missing"`
	Warnings []string `json:"warnings"`
}

// CheckReadiness requires an identity signal and hours. A single-method
// strategy whose signal is unmapped only warns: its rows will be unmatched.
func CheckReadiness(mapping domain.FieldMapping, strategy domain.MatchStrategy) Readiness {
	readiness := Readiness{Missing: []string{}, Warnings: []string{}}

	hasName := mapping.Has(domain.FieldFirstName) && mapping.Has(domain.FieldLastName)
	hasIdentity := mapping.Has(domain.FieldEmployeeID) || mapping.Has(domain.FieldSSN) || mapping.Has(domain.FieldEmail) || hasName
	if !hasIdentity {
		readiness.Missing = append(readiness.Missing, "identity (employeeId, ssn, email, or firstName and lastName)")
	}
	if !mapping.Has(domain.FieldHours) {
		readiness.Missing = append(readiness.Missing, string(domain.FieldHours))
	}

	if warning := strategyWarning(mapping, strategy, hasName); warning != "" {
		readiness.Warnings = append(readiness.Warnings, warning)
	}
	if mapping.Has(domain.FieldFirstName) != mapping.Has(domain.FieldLastName) {
		readiness.Warnings = append(readiness.Warnings, "name matching needs both firstName and lastName")
	}

	readiness.Ready = len(readiness.Missing) == 0
	return readiness
}

func strategyWarning(mapping domain.FieldMapping, strategy domain.MatchStrategy, hasName bool) string {
	var mapped bool
	switch strategy {
	case domain.MatchByID:
		mapped = mapping.Has(domain.FieldEmployeeID)
	case domain.MatchBySSN:
		mapped = mapping.Has(domain.FieldSSN)
	case domain.MatchByEmail:
		mapped = mapping.Has(domain.FieldEmail)
	case domain.MatchByName:
		mapped = hasName
	default:
		return ""
	}
	if mapped {
		return ""
	}
	return fmt.Sprintf("match strategy %s has no mapped column; every row will be unmatched", strategy)
}
