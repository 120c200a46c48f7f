package model

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/Veraticus/dossier/internal/normalize"
	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
)

var nullDecimalType = reflect.TypeOf(decimal.NullDecimal{})

// DecodeDocument converts a loose field map into the typed variant for docType.
// The returned document is always usable: fields that cannot be decoded are left
// empty and reported through the error, which callers treat as a warning.
func DecodeDocument(docType DocumentType, fields map[string]any) (Document, error) {
	var doc Document
	switch docType {
	case DocumentIdentity:
		doc = &IdentityDocument{}
	case DocumentPayslip:
		doc = &Payslip{}
	case DocumentTaxReturn:
		doc = &TaxReturn{}
	case DocumentCreditRegistry:
		doc = &CreditRegistryReport{}
	case DocumentEmploymentContract:
		doc = &EmploymentContract{}
	case DocumentPromissoryContract:
		doc = &PromissoryPurchaseContract{}
	case DocumentPropertyRegistry:
		doc = &PropertyRegistryExtract{}
	case DocumentCreditSimulation:
		doc = &CreditSimulation{}
	case DocumentBankStatement:
		doc = &BankStatement{}
	default:
		return &UnknownDocument{Fields: copyFields(fields)}, nil
	}

	if len(fields) == 0 {
		return doc, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       extractionHook,
		WeaklyTypedInput: true,
		Result:           doc,
	})
	if err != nil {
		return doc, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := decoder.Decode(fields); err != nil {
		return doc, fmt.Errorf("partial decode of %s: %w", docType, err)
	}
	return doc, nil
}

// extractionHook converts monetary values into decimal.NullDecimal (invalid when
// unparsable) and reads yes/no words as booleans.
func extractionHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	switch {
	case to == nullDecimalType:
		if from == nullDecimalType {
			return data, nil
		}
		d, ok := normalize.ParseAmount(data)
		return decimal.NullDecimal{Decimal: d, Valid: ok}, nil
	case to.Kind() == reflect.Bool && from.Kind() == reflect.String:
		return parseFlag(reflect.ValueOf(data).String()), nil
	}
	return data, nil
}

func parseFlag(s string) bool {
	switch normalize.Fold(strings.TrimSpace(s)) {
	case "true", "yes", "y", "sim", "s", "oui", "1", "x":
		return true
	}
	return false
}

// stringify renders scalar field values as trimmed strings.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return ""
	}
}

func copyFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
