package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// groupedNumber is a number whose commas separate thousands only.
var groupedNumber = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// ParseDecimal parses raw as a decimal number. A comma is accepted only as a
// thousands separator, so "1,234.5" parses and "7,5" does not.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, ",") {
		if !groupedNumber.MatchString(raw) {
			return decimal.Zero, fmt.Errorf("%q uses a comma that is not a thousands separator", raw)
		}
		raw = strings.ReplaceAll(raw, ",", "")
	}
	return decimal.NewFromString(raw)
}
