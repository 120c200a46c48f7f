package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType labels the kind of document an extraction was produced from.
type DocumentType string

// Known document types. Anything else is treated as DocumentOther.
const (
	DocumentIdentity           DocumentType = "identity_document"
	DocumentPayslip            DocumentType = "payslip"
	DocumentTaxReturn          DocumentType = "tax_return"
	DocumentCreditRegistry     DocumentType = "credit_registry_report"
	DocumentEmploymentContract DocumentType = "employment_contract"
	DocumentPromissoryContract DocumentType = "promissory_purchase_contract"
	DocumentPropertyRegistry   DocumentType = "property_registry_extract"
	DocumentCreditSimulation   DocumentType = "credit_simulation"
	DocumentBankStatement      DocumentType = "bank_statement"
	DocumentOther              DocumentType = "other"
)

var knownDocumentTypes = map[DocumentType]struct{}{
	DocumentIdentity:           {},
	DocumentPayslip:            {},
	DocumentTaxReturn:          {},
	DocumentCreditRegistry:     {},
	DocumentEmploymentContract: {},
	DocumentPromissoryContract: {},
	DocumentPropertyRegistry:   {},
	DocumentCreditSimulation:   {},
	DocumentBankStatement:      {},
}

// ParseDocumentType maps a label to a known DocumentType, falling back to DocumentOther.
func ParseDocumentType(label string) DocumentType {
	t := DocumentType(strings.ToLower(strings.TrimSpace(label)))
	if _, ok := knownDocumentTypes[t]; ok {
		return t
	}
	return DocumentOther
}

// IsKnown reports whether t is one of the recognized document types.
func (t DocumentType) IsKnown() bool {
	_, ok := knownDocumentTypes[t]
	return ok
}

// Extraction is one AI-produced field map for a single uploaded document.
type Extraction struct {
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields"`
	Type      string         `json:"document_type"`
	Filename  string         `json:"filename"`
}

// Document is the typed view of an extraction. Each document type has its own
// variant; unrecognized labels decode to *UnknownDocument.
type Document interface {
	DocumentType() DocumentType
}

// IdentityDocument carries identity card / passport fields.
type IdentityDocument struct {
	FullName       string `mapstructure:"full_name"`
	TaxID          string `mapstructure:"tax_id"`
	DocumentID     string `mapstructure:"document_id"`
	DocumentExpiry string `mapstructure:"document_expiry"`
	BirthDate      string `mapstructure:"birth_date"`
	Birthplace     string `mapstructure:"birthplace"`
	Nationality    string `mapstructure:"nationality"`
	Sex            string `mapstructure:"sex"`
	Address        string `mapstructure:"address"`
	PostalCode     string `mapstructure:"postal_code"`
	City           string `mapstructure:"city"`
	FatherName     string `mapstructure:"father_name"`
	MotherName     string `mapstructure:"mother_name"`
	MaritalStatus  string `mapstructure:"marital_status"`
}

// Payslip carries one month of salary data for one employer.
type Payslip struct {
	GrossSalary          decimal.NullDecimal `mapstructure:"gross_salary"`
	NetSalary            decimal.NullDecimal `mapstructure:"net_salary"`
	EmployeeName         string              `mapstructure:"employee_name"`
	EmployerName         string              `mapstructure:"employer_name"`
	TaxID                string              `mapstructure:"tax_id"`
	SocialSecurityNumber string              `mapstructure:"social_security_number"`
	ContractType         string              `mapstructure:"contract_type"`
	JobTitle             string              `mapstructure:"job_title"`
	ReferenceMonth       string              `mapstructure:"reference_month"`
	Country              string              `mapstructure:"country"`
	Currency             string              `mapstructure:"currency"`
}

// TaxReturn carries the fields of an annual income tax declaration.
type TaxReturn struct {
	AnnualGrossIncome decimal.NullDecimal `mapstructure:"annual_gross_income"`
	AnnualNetIncome   decimal.NullDecimal `mapstructure:"annual_net_income"`
	FullName          string              `mapstructure:"full_name"`
	TaxID             string              `mapstructure:"tax_id"`
	FiscalAddress     string              `mapstructure:"fiscal_address"`
	FiscalCountry     string              `mapstructure:"fiscal_country"`
	MaritalStatus     string              `mapstructure:"marital_status"`
	TaxYear           string              `mapstructure:"tax_year"`
	CoHolderName      string              `mapstructure:"co_holder_name"`
	CoHolderTaxID     string              `mapstructure:"co_holder_tax_id"`
	Dependents        int                 `mapstructure:"dependents"`
}

// CreditLine is one credit entry of a credit registry report.
type CreditLine struct {
	OutstandingBalance decimal.NullDecimal `mapstructure:"outstanding_balance"`
	MonthlyPayment     decimal.NullDecimal `mapstructure:"monthly_payment"`
	Institution        string              `mapstructure:"institution"`
	ProductType        string              `mapstructure:"product_type"`
	EndDate            string              `mapstructure:"end_date"`
	InDefault          bool                `mapstructure:"in_default"`
}

// CreditRegistryReport is the central bank credit responsibility map.
type CreditRegistryReport struct {
	TotalDebt               decimal.NullDecimal `mapstructure:"total_debt"`
	TotalMonthlyInstallment decimal.NullDecimal `mapstructure:"total_monthly_installment"`
	Credits                 []CreditLine        `mapstructure:"credits"`
}

// EmploymentContract carries the terms of an employment contract.
type EmploymentContract struct {
	EmployerName string `mapstructure:"employer_name"`
	ContractType string `mapstructure:"contract_type"`
	StartDate    string `mapstructure:"start_date"`
	TaxID        string `mapstructure:"tax_id"`
}

// PromissoryPurchaseContract is the promissory contract for a property purchase.
type PromissoryPurchaseContract struct {
	Area               decimal.NullDecimal `mapstructure:"area"`
	PurchasePrice      decimal.NullDecimal `mapstructure:"purchase_price"`
	DownPayment        decimal.NullDecimal `mapstructure:"down_payment"`
	RequestedFinancing decimal.NullDecimal `mapstructure:"requested_financing"`
	PropertyLocation   string              `mapstructure:"property_location"`
	Typology           string              `mapstructure:"typology"`
	SigningDate        string              `mapstructure:"signing_date"`
	ExpectedDeedDate   string              `mapstructure:"expected_deed_date"`
	Buyers             []Party             `mapstructure:"buyers"`
}

// PropertyRegistryExtract is the land registry / tax registry record of a property.
type PropertyRegistryExtract struct {
	AssessedValue   decimal.NullDecimal `mapstructure:"assessed_value"`
	Area            decimal.NullDecimal `mapstructure:"area"`
	RegistryArticle string              `mapstructure:"registry_article"`
	Location        string              `mapstructure:"location"`
	Typology        string              `mapstructure:"typology"`
}

// CreditSimulation is a bank's mortgage simulation.
type CreditSimulation struct {
	RequestedFinancing   decimal.NullDecimal `mapstructure:"requested_financing"`
	EstimatedInstallment decimal.NullDecimal `mapstructure:"estimated_installment"`
	AcquisitionValue     decimal.NullDecimal `mapstructure:"acquisition_value"`
	BankName             string              `mapstructure:"bank_name"`
	TermMonths           int                 `mapstructure:"term_months"`
}

// BankStatement carries the header fields of a bank account statement.
type BankStatement struct {
	EndingBalance decimal.NullDecimal `mapstructure:"ending_balance"`
	AccountHolder string              `mapstructure:"account_holder"`
	TaxID         string              `mapstructure:"tax_id"`
}

// UnknownDocument keeps the raw field map of an unrecognized document.
type UnknownDocument struct {
	Fields map[string]any
}

// DocumentType implementations.
func (*IdentityDocument) DocumentType() DocumentType           { return DocumentIdentity }
func (*Payslip) DocumentType() DocumentType                    { return DocumentPayslip }
func (*TaxReturn) DocumentType() DocumentType                  { return DocumentTaxReturn }
func (*CreditRegistryReport) DocumentType() DocumentType       { return DocumentCreditRegistry }
func (*EmploymentContract) DocumentType() DocumentType         { return DocumentEmploymentContract }
func (*PromissoryPurchaseContract) DocumentType() DocumentType { return DocumentPromissoryContract }
func (*PropertyRegistryExtract) DocumentType() DocumentType    { return DocumentPropertyRegistry }
func (*CreditSimulation) DocumentType() DocumentType           { return DocumentCreditSimulation }
func (*BankStatement) DocumentType() DocumentType              { return DocumentBankStatement }
func (*UnknownDocument) DocumentType() DocumentType            { return DocumentOther }

var (
	unknownTaxIDKeys = []string{"tax_id", "nif", "vat_number", "tin"}
	unknownNameKeys  = []string{"full_name", "name", "nome", "holder_name"}
)

// TaxID returns the first tax identifier found under a common key.
func (d *UnknownDocument) TaxID() string {
	return d.firstString(unknownTaxIDKeys)
}

// Name returns the first person name found under a common key.
func (d *UnknownDocument) Name() string {
	return d.firstString(unknownNameKeys)
}

func (d *UnknownDocument) firstString(keys []string) string {
	for _, key := range keys {
		for k, v := range d.Fields {
			if !strings.EqualFold(k, key) {
				continue
			}
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}
