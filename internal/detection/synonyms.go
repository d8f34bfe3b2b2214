package detection

import (
	"strings"
	"unicode"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

// headerRule lists the phrases that identify a target field in a header.
type headerRule struct {
	field   domain.TargetField
	phrases []string
}

// headerRules are tried in order; the first field with a matching phrase wins.
var headerRules = []headerRule{
	{domain.FieldSSN, []string{"ssn", "social security", "soc sec", "social"}},
	{domain.FieldEmail, []string{"email", "e mail", "mail"}},
	{domain.FieldEmployeeID, []string{
		"employee id", "employee number", "employee no", "employee num",
		"emp id", "emp no", "emp num", "empid", "worker id", "staff id",
		"payroll id", "badge", "id",
	}},
	{domain.FieldFirstName, []string{"first name", "given name", "fname", "firstname", "forename", "first"}},
	{domain.FieldLastName, []string{"last name", "family name", "lname", "lastname", "surname", "last"}},
	{domain.FieldPeriodStart, []string{"period start", "start date", "period begin", "begin date", "week start", "from", "start"}},
	{domain.FieldPeriodEnd, []string{"period end", "end date", "week end", "week ending", "through", "thru", "end"}},
	{domain.FieldHours, []string{"hours", "hrs", "hours worked", "hour", "worked"}},
	{domain.FieldNotes, []string{"notes", "note", "comments", "comment", "memo", "remarks"}},
}

// NormalizeHeader lower-cases a header and collapses every run of
// non-alphanumeric characters into a single space.
func NormalizeHeader(header string) string {
	fields := strings.FieldsFunc(strings.ToLower(header), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

// matchHeader returns the field whose synonym phrase appears as a whole-token
// run inside the normalized header.
func matchHeader(header string) (domain.TargetField, bool) {
	tokens := strings.Fields(NormalizeHeader(header))
	if len(tokens) == 0 {
		return "", false
	}
	for _, rule := range headerRules {
		for _, phrase := range rule.phrases {
			if containsRun(tokens, strings.Fields(phrase)) {
				return rule.field, true
			}
		}
	}
	return "", false
}

func containsRun(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
	for start := 0; start+len(phrase) <= len(tokens); start++ {
		matched := true
		for i, token := range phrase {
			if tokens[start+i] != token {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// compatible reports whether a detected type supports a header suggestion.
func compatible(field domain.TargetField, dataType domain.DataType, format domain.ValueFormat) bool {
	switch field {
	case domain.FieldSSN:
		return format == domain.FormatSSN
	case domain.FieldEmail:
		return format == domain.FormatEmail
	case domain.FieldEmployeeID:
		return format == domain.FormatNone && (dataType == domain.DataTypeIdentifier || dataType == domain.DataTypeNumber || dataType == domain.DataTypeText)
	case domain.FieldFirstName, domain.FieldLastName:
		return dataType == domain.DataTypeText
	case domain.FieldPeriodStart, domain.FieldPeriodEnd:
		return dataType == domain.DataTypeDate
	case domain.FieldHours:
		return dataType == domain.DataTypeNumber
	case domain.FieldNotes:
		return true
	default:
		return false
	}
}
