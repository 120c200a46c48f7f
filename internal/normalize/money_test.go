package normalize

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
		ok    bool
	}{
		{name: "integer", input: 2500, want: "2500", ok: true},
		{name: "float", input: 1234.56, want: "1234.56", ok: true},
		{name: "json number", input: json.Number("980.10"), want: "980.1", ok: true},
		{name: "plain string", input: "1500", want: "1500", ok: true},
		{name: "portuguese format", input: "1.234,56 €", want: "1234.56", ok: true},
		{name: "english format", input: "EUR 1,234.56", want: "1234.56", ok: true},
		{name: "swiss grouping", input: "CHF 5'400.00", want: "5400", ok: true},
		{name: "space grouping", input: "12 345,70", want: "12345.7", ok: true},
		{name: "non-breaking space grouping", input: "12\u00a0345,70", want: "12345.7", ok: true},
		{name: "thousands dot", input: "2.500", want: "2500", ok: true},
		{name: "leading zero fraction", input: "0.125", want: "0.125", ok: true},
		{name: "comma decimal", input: "980,5", want: "980.5", ok: true},
		{name: "repeated dots", input: "1.234.567", want: "1234567", ok: true},
		{name: "negative prefix", input: "-350,00", want: "-350", ok: true},
		{name: "negative after symbol", input: "€ -100", want: "-100", ok: true},
		{name: "accounting negative", input: "(42.00)", want: "-42", ok: true},
		{name: "decimal passthrough", input: decimal.NewFromInt(7), want: "7", ok: true},
		{name: "empty string", input: "", ok: false},
		{name: "not a number", input: "N/A", ok: false},
		{name: "letter inside digits", input: "1O00", ok: false},
		{name: "two numbers", input: "100 a 200", ok: false},
		{name: "nil", input: nil, ok: false},
		{name: "bool", input: true, ok: false},
		{name: "nan", input: math.NaN(), ok: false},
		{name: "map", input: map[string]any{"value": 1}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAmount(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s want %s", got, tt.want)
			}
		})
	}
}

func TestAmountPtr(t *testing.T) {
	assert.Nil(t, AmountPtr("garbage"))

	p := AmountPtr("1.000,00")
	if assert.NotNil(t, p) {
		assert.True(t, p.Equal(decimal.NewFromInt(1000)))
	}
}
