package normalize

import (
	"encoding/json"
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts an extracted monetary value into a decimal.
// It accepts native numbers and localized strings such as "1.234,56 €",
// "EUR 1,234.56" or "CHF 5'400.00". The boolean is false when the value
// cannot be read as an amount; callers drop the field in that case.
func ParseAmount(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return val, true
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero, false
		}
		return *val, true
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(val), true
	case float32:
		return ParseAmount(float64(val))
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int32:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case uint:
		return decimal.NewFromUint64(uint64(val)), true
	case uint32:
		return decimal.NewFromInt(int64(val)), true
	case uint64:
		return decimal.NewFromUint64(val), true
	case json.Number:
		return parseAmountString(val.String())
	case string:
		return parseAmountString(val)
	default:
		return decimal.Zero, false
	}
}

// AmountPtr is ParseAmount returning nil for unparsable input.
func AmountPtr(v any) *decimal.Decimal {
	d, ok := ParseAmount(v)
	if !ok {
		return nil
	}
	return &d
}

func isAmountSeparator(r rune) bool {
	switch r {
	case '.', ',', ' ', '\u00a0', '\u202f', '\'', '\u2019':
		return true
	}
	return false
}

func parseAmountString(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}

	start := strings.IndexFunc(s, unicode.IsDigit)
	end := strings.LastIndexFunc(s, unicode.IsDigit)
	if start < 0 {
		return decimal.Zero, false
	}
	prefix, body, suffix := s[:start], s[start:end+1], s[end+1:]

	// Prefix and suffix may only carry currency markers and sign.
	for _, part := range []string{prefix, suffix} {
		for _, r := range part {
			if unicode.IsDigit(r) {
				return decimal.Zero, false
			}
		}
	}
	negative := strings.Contains(prefix, "-") ||
		(strings.Contains(prefix, "(") && strings.Contains(suffix, ")"))

	var digits strings.Builder
	for _, r := range body {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == '.' || r == ',':
			digits.WriteRune(r)
		case isAmountSeparator(r):
			// thousands grouping
		default:
			return decimal.Zero, false
		}
	}

	normalized := normalizeSeparators(digits.String())
	if normalized == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// normalizeSeparators decides which of '.' and ',' is the decimal mark and
// returns a plain "1234.56" string.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		return resolveSingleSeparator(s, ",")
	case lastDot >= 0:
		return resolveSingleSeparator(s, ".")
	default:
		return s
	}
}

// resolveSingleSeparator handles strings with only one kind of separator.
// A single separator followed by exactly three digits is read as thousands
// grouping ("2.500" is 2500), except after a leading zero ("0.125").
func resolveSingleSeparator(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, "")
	}
	idx := strings.Index(s, sep)
	intPart, fracPart := s[:idx], s[idx+1:]
	if len(fracPart) == 3 && intPart != "" && intPart != "0" {
		return intPart + fracPart
	}
	if intPart == "" {
		intPart = "0"
	}
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}
