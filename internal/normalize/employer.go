package normalize

import (
	"strings"
	"unicode"
)

// legalSuffixes are company-form tokens removed from the end of employer names.
var legalSuffixes = map[string]struct{}{
	"lda":        {},
	"limitada":   {},
	"sa":         {},
	"unipessoal": {},
	"sgps":       {},
	"crl":        {},
	"ltd":        {},
	"limited":    {},
	"inc":        {},
	"llc":        {},
	"plc":        {},
	"gmbh":       {},
	"ag":         {},
	"sarl":       {},
	"sas":        {},
	"sasu":       {},
	"sl":         {},
	"slu":        {},
	"srl":        {},
	"bv":         {},
	"nv":         {},
}

// EmployerKey returns the grouping key for salary records from one employer.
// "Empresa ABC, Lda" and "EMPRESA ABC LDA" both become "empresa abc".
func EmployerKey(name string) string {
	s := Fold(name)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)

	tokens := strings.Fields(s)
	for len(tokens) > 1 {
		if _, ok := legalSuffixes[tokens[len(tokens)-1]]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}
