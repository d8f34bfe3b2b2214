package detection

import (
	"regexp"
	"strings"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

var (
	ssnPattern        = regexp.MustCompile(`^\d{3}-?\d{2}-?\d{4}$`)
	emailPattern      = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// classifier is one type predicate in the ordered cascade.
type classifier struct {
	dataType domain.DataType
	format   domain.ValueFormat
	matches  func(string) bool
}

// classifiers run most specific first; the first one a strict majority of
// samples satisfies decides the column type.
var classifiers = []classifier{
	{domain.DataTypeIdentifier, domain.FormatSSN, looksLikeSSN},
	{domain.DataTypeIdentifier, domain.FormatEmail, looksLikeEmail},
	{domain.DataTypeDate, domain.FormatNone, looksLikeDate},
	{domain.DataTypeNumber, domain.FormatNone, looksLikeNumber},
	{domain.DataTypeIdentifier, domain.FormatNone, looksLikeIdentifier},
}

func looksLikeSSN(value string) bool {
	return ssnPattern.MatchString(value)
}

// LooksLikeEmail reports whether value has the basic local@domain.tld shape.
func LooksLikeEmail(value string) bool {
	return emailPattern.MatchString(strings.TrimSpace(value))
}

func looksLikeEmail(value string) bool {
	return LooksLikeEmail(value)
}

func looksLikeDate(value string) bool {
	_, err := domain.ParseDate(value)
	return err == nil
}

func looksLikeNumber(value string) bool {
	_, err := domain.ParseDecimal(value)
	return err == nil
}

func looksLikeIdentifier(value string) bool {
	if !identifierPattern.MatchString(value) {
		return false
	}
	return strings.ContainsAny(value, "0123456789")
}

// classify returns the type of a sample set. Empty samples are text.
func classify(samples []string) (domain.DataType, domain.ValueFormat) {
	if len(samples) == 0 {
		return domain.DataTypeText, domain.FormatNone
	}
	for _, c := range classifiers {
		hits := 0
		for _, sample := range samples {
			if c.matches(sample) {
				hits++
			}
		}
		if hits*2 > len(samples) {
			return c.dataType, c.format
		}
	}
	return domain.DataTypeText, domain.FormatNone
}
