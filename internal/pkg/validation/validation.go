package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MaxPartNameLength matches the sheet-name limit of the workbooks estimates are exchanged in.
const MaxPartNameLength = 31

// Part names become sheet names downstream: no / \ : * ? [ ].
var reservedPartNameRe = regexp.MustCompile(`[/\\:*?\[\]]`)

// PartNameError returns a message describing why name is unusable, or "".
func PartNameError(name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "part name is required"
	case utf8.RuneCountInString(name) > MaxPartNameLength:
		return fmt.Sprintf("part name must be at most %d characters", MaxPartNameLength)
	case reservedPartNameRe.MatchString(name):
		return `part name must not contain / \ : * ? [ ]`
	}
	return ""
}

// SameName compares names the way a workbook does: case-insensitive, trimmed.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func IsNonNegative(d decimal.Decimal) bool {
	return !d.IsNegative()
}

// FitsScale reports whether d has no significant digits beyond places decimals.
// Trailing zeros do not count: "12.3400" fits two places.
func FitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Round(places))
}

// ParseDecimal accepts the shapes a JSON body or form can carry a number in.
func ParseDecimal(v interface{}) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(x))
	}
	return decimal.Decimal{}, fmt.Errorf("not a number: %v", v)
}

// ParseNullDecimal is ParseDecimal with nil meaning "unset".
func ParseNullDecimal(v interface{}) (decimal.NullDecimal, error) {
	if v == nil {
		return decimal.NullDecimal{}, nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := ParseDecimal(v)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
