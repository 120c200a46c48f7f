package testutil

import (
	"fmt"
	"maps"
	"sync/atomic"
	"time"

	"github.com/Veraticus/dossier/internal/model"
)

// ExtractionBuilder builds model.Extraction fixtures.
//
// Example:
//
//	ext := testutil.NewExtraction(model.DocumentPayslip).
//		With("employer_name", "Empresa ABC, Lda").
//		With("net_salary", "1.200,00").
//		Build()
type ExtractionBuilder struct {
	fields    map[string]any
	timestamp time.Time
	docType   model.DocumentType
	filename  string
}

var fixtureCounter atomic.Int64

// NewExtraction starts a fixture of the given type with a generated filename.
func NewExtraction(docType model.DocumentType) *ExtractionBuilder {
	n := fixtureCounter.Add(1)
	return &ExtractionBuilder{
		docType:   docType,
		fields:    make(map[string]any),
		filename:  fmt.Sprintf("%s-%d.pdf", docType, n),
		timestamp: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

// With sets one field.
func (b *ExtractionBuilder) With(key string, value any) *ExtractionBuilder {
	b.fields[key] = value
	return b
}

// WithFields merges fields into the fixture.
func (b *ExtractionBuilder) WithFields(fields map[string]any) *ExtractionBuilder {
	maps.Copy(b.fields, fields)
	return b
}

// Filename overrides the generated filename.
func (b *ExtractionBuilder) Filename(name string) *ExtractionBuilder {
	b.filename = name
	return b
}

// At overrides the extraction timestamp.
func (b *ExtractionBuilder) At(ts time.Time) *ExtractionBuilder {
	b.timestamp = ts
	return b
}

// Build returns the fixture. The builder can be reused; each call copies the fields.
func (b *ExtractionBuilder) Build() model.Extraction {
	return model.Extraction{
		Type:      string(b.docType),
		Fields:    maps.Clone(b.fields),
		Filename:  b.filename,
		Timestamp: b.timestamp,
	}
}

// Payslip is a shorthand for a payslip fixture with an employer and a net salary.
func Payslip(employer string, net any) model.Extraction {
	return NewExtraction(model.DocumentPayslip).
		With("employer_name", employer).
		With("net_salary", net).
		Build()
}

// Identity is a shorthand for an identity-document fixture.
func Identity(fullName, taxID string) model.Extraction {
	return NewExtraction(model.DocumentIdentity).
		With("full_name", fullName).
		With("tax_id", taxID).
		Build()
}
