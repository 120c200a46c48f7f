package normalize

import (
	"strings"
	"unicode"
)

// Rule maps any of its keywords, found as a substring of the folded input,
// to a canonical value.
type Rule struct {
	Value    string
	Keywords []string
}

// RuleTable is an ordered list of rules; the first matching rule wins, so more
// specific keywords ("nao casado") must come before broader ones ("casado").
type RuleTable []Rule

// Match returns the canonical value for s.
func (t RuleTable) Match(s string) (string, bool) {
	folded := CollapseSpaces(Fold(s))
	if folded == "" {
		return "", false
	}
	for _, rule := range t {
		for _, kw := range rule.Keywords {
			if strings.Contains(folded, kw) {
				return rule.Value, true
			}
		}
	}
	return "", false
}

// Canonical marital statuses.
const (
	MaritalSingle    = "single"
	MaritalMarried   = "married"
	MaritalUnion     = "union"
	MaritalDivorced  = "divorced"
	MaritalWidowed   = "widowed"
	MaritalSeparated = "separated"
)

// MaritalStatusRules recognizes Portuguese, English and French wording.
var MaritalStatusRules = RuleTable{
	{Value: MaritalSingle, Keywords: []string{"solteir", "single", "celibataire", "unmarried", "nao casad", "never married"}},
	{Value: MaritalUnion, Keywords: []string{"uniao de facto", "uniao facto", "union", "pacs", "concubin", "civil partner", "unido de facto"}},
	{Value: MaritalDivorced, Keywords: []string{"divorc"}},
	{Value: MaritalWidowed, Keywords: []string{"viuv", "widow", "veuf", "veuve"}},
	{Value: MaritalSeparated, Keywords: []string{"separad", "separated", "separe"}},
	{Value: MaritalMarried, Keywords: []string{"casad", "married", "marie", "verheiratet"}},
}

// MaritalStatus normalizes a free-text marital status. Unknown wording is
// returned trimmed so no information is lost.
func MaritalStatus(s string) string {
	if v, ok := MaritalStatusRules.Match(s); ok {
		return v
	}
	return strings.TrimSpace(s)
}

// CountryRules maps country names in several languages to ISO 3166 alpha-2 codes.
var CountryRules = RuleTable{
	{Value: "PT", Keywords: []string{"portugal", "portugues"}},
	{Value: "FR", Keywords: []string{"france", "franca", "francais", "french"}},
	{Value: "CH", Keywords: []string{"suisse", "switzerland", "suica", "schweiz", "swiss", "svizzera"}},
	{Value: "LU", Keywords: []string{"luxembourg", "luxemburgo"}},
	{Value: "GB", Keywords: []string{"united kingdom", "reino unido", "england", "inglaterra", "great britain", "royaume-uni"}},
	{Value: "ES", Keywords: []string{"spain", "espanha", "espana", "espagne"}},
	{Value: "DE", Keywords: []string{"germany", "alemanha", "deutschland", "allemagne"}},
	{Value: "BE", Keywords: []string{"belgium", "belgica", "belgique"}},
	{Value: "NL", Keywords: []string{"netherlands", "holanda", "paises baixos", "pays-bas"}},
	{Value: "IE", Keywords: []string{"ireland", "irlanda"}},
	{Value: "AD", Keywords: []string{"andorra", "andorre"}},
	{Value: "US", Keywords: []string{"united states", "estados unidos", "etats-unis"}},
	{Value: "AO", Keywords: []string{"angola"}},
	{Value: "BR", Keywords: []string{"brasil", "brazil", "bresil"}},
	{Value: "MZ", Keywords: []string{"mocambique", "mozambique"}},
	{Value: "CV", Keywords: []string{"cabo verde", "cape verde", "cap-vert"}},
}

var alpha3 = map[string]string{
	"PRT": "PT", "FRA": "FR", "CHE": "CH", "LUX": "LU", "GBR": "GB", "ESP": "ES",
	"DEU": "DE", "BEL": "BE", "NLD": "NL", "IRL": "IE", "AND": "AD", "USA": "US",
	"AGO": "AO", "BRA": "BR", "MOZ": "MZ", "CPV": "CV",
}

func isLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

// CountryCode resolves a country code or name. The boolean is false when the
// input is empty or unrecognized.
func CountryCode(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	upper := strings.ToUpper(trimmed)
	if len(upper) == 2 && isLetters(upper) {
		if upper == "UK" {
			return "GB", true
		}
		return upper, true
	}
	if code, ok := alpha3[upper]; ok {
		return code, true
	}
	return CountryRules.Match(trimmed)
}

var countryCurrency = map[string]string{
	"PT": "EUR", "FR": "EUR", "LU": "EUR", "ES": "EUR", "DE": "EUR", "BE": "EUR",
	"NL": "EUR", "IE": "EUR", "AD": "EUR", "CH": "CHF", "GB": "GBP", "US": "USD",
	"AO": "AOA", "BR": "BRL", "MZ": "MZN", "CV": "CVE",
}

// CurrencyForCountry returns the usual currency of an ISO country code.
func CurrencyForCountry(code string) (string, bool) {
	c, ok := countryCurrency[strings.ToUpper(code)]
	return c, ok
}

// CurrencyRules maps symbols and names to ISO 4217 codes.
var CurrencyRules = RuleTable{
	{Value: "EUR", Keywords: []string{"€", "eur"}},
	{Value: "CHF", Keywords: []string{"chf", "franco suico", "franc suisse", "swiss franc"}},
	{Value: "GBP", Keywords: []string{"£", "gbp", "libra", "pound"}},
	{Value: "USD", Keywords: []string{"usd", "us$", "dolar", "dollar"}},
	{Value: "BRL", Keywords: []string{"brl", "r$", "real"}},
	{Value: "AOA", Keywords: []string{"aoa", "kwanza"}},
}

// CurrencyCode resolves a currency code, symbol or name.
func CurrencyCode(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	upper := strings.ToUpper(trimmed)
	if len(upper) == 3 && isLetters(upper) {
		return upper, true
	}
	return CurrencyRules.Match(trimmed)
}
