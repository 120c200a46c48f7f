package model

import (
	"maps"
	"reflect"
	"time"

	"github.com/Veraticus/dossier/internal/normalize"
	"github.com/shopspring/decimal"
)

// Party is a person named on a document besides the client: a co-buyer on a
// promissory contract or a co-holder of a tax return.
type Party struct {
	FullName      string `json:"full_name,omitempty" mapstructure:"full_name"`
	TaxID         string `json:"tax_id,omitempty" mapstructure:"tax_id"`
	DocumentID    string `json:"document_id,omitempty" mapstructure:"document_id"`
	BirthDate     string `json:"birth_date,omitempty" mapstructure:"birth_date"`
	Nationality   string `json:"nationality,omitempty" mapstructure:"nationality"`
	MaritalStatus string `json:"marital_status,omitempty" mapstructure:"marital_status"`
	Address       string `json:"address,omitempty" mapstructure:"address"`
	Email         string `json:"email,omitempty" mapstructure:"email"`
	Phone         string `json:"phone,omitempty" mapstructure:"phone"`
}

// PersonalAttributes are the identity facts of a client.
type PersonalAttributes struct {
	ForeignTaxIDs        map[string]string `json:"foreign_tax_ids,omitempty"`
	FullName             string            `json:"full_name,omitempty"`
	TaxID                string            `json:"tax_id,omitempty"`
	SocialSecurityNumber string            `json:"social_security_number,omitempty"`
	DocumentID           string            `json:"document_id,omitempty"`
	DocumentExpiry       string            `json:"document_expiry,omitempty"`
	BirthDate            string            `json:"birth_date,omitempty"`
	Birthplace           string            `json:"birthplace,omitempty"`
	Nationality          string            `json:"nationality,omitempty"`
	Sex                  string            `json:"sex,omitempty"`
	Address              string            `json:"address,omitempty"`
	PostalCode           string            `json:"postal_code,omitempty"`
	City                 string            `json:"city,omitempty"`
	FatherName           string            `json:"father_name,omitempty"`
	MotherName           string            `json:"mother_name,omitempty"`
	MaritalStatus        string            `json:"marital_status,omitempty"`
	FiscalAddress        string            `json:"fiscal_address,omitempty"`
	FiscalCountry        string            `json:"fiscal_country,omitempty"`
	ResidentAbroad       bool              `json:"resident_abroad,omitempty"`
}

// Clone returns a deep copy.
func (p PersonalAttributes) Clone() PersonalAttributes {
	p.ForeignTaxIDs = maps.Clone(p.ForeignTaxIDs)
	return p
}

// IsZero reports whether no attribute has been set.
func (p PersonalAttributes) IsZero() bool {
	if len(p.ForeignTaxIDs) > 0 {
		return false
	}
	p.ForeignTaxIDs = nil
	return reflect.DeepEqual(p, PersonalAttributes{})
}

// SalaryRecord is the latest salary data known for one employer.
type SalaryRecord struct {
	CapturedAt     time.Time           `json:"captured_at"`
	GrossAmount    decimal.NullDecimal `json:"gross_amount"`
	NetAmount      decimal.NullDecimal `json:"net_amount"`
	EmployerName   string              `json:"employer_name"`
	EmployerKey    string              `json:"employer_key"`
	ContractType   string              `json:"contract_type,omitempty"`
	JobTitle       string              `json:"job_title,omitempty"`
	ReferenceMonth string              `json:"reference_month,omitempty"`
	CountryCode    string              `json:"country_code"`
	Currency       string              `json:"currency"`
	SourceFile     string              `json:"source_file,omitempty"`
}

// HasAmount reports whether the record carries a gross or net amount.
func (r SalaryRecord) HasAmount() bool {
	return r.GrossAmount.Valid || r.NetAmount.Valid
}

// CreditRecord is one active credit line of the client.
type CreditRecord struct {
	OutstandingBalance decimal.NullDecimal `json:"outstanding_balance"`
	MonthlyPayment     decimal.NullDecimal `json:"monthly_payment"`
	Institution        string              `json:"institution"`
	ProductType        string              `json:"product_type"`
	EndDate            string              `json:"end_date,omitempty"`
	InDefault          bool                `json:"in_default"`
}

// SameLine reports whether two records describe the same credit line: equal
// institution, product type and outstanding balance.
func (c CreditRecord) SameLine(other CreditRecord) bool {
	if normalize.ClientKey(c.Institution) != normalize.ClientKey(other.Institution) {
		return false
	}
	if normalize.ClientKey(c.ProductType) != normalize.ClientKey(other.ProductType) {
		return false
	}
	if c.OutstandingBalance.Valid != other.OutstandingBalance.Valid {
		return false
	}
	return !c.OutstandingBalance.Valid || c.OutstandingBalance.Decimal.Equal(other.OutstandingBalance.Decimal)
}

// SalaryTotals are derived from the salary records at read time.
type SalaryTotals struct {
	GrossTotal decimal.Decimal `json:"gross_total"`
	NetTotal   decimal.Decimal `json:"net_total"`
	Sources    int             `json:"sources"`
}

// CreditTotals are derived from the credit records at read time.
type CreditTotals struct {
	OutstandingTotal    decimal.Decimal `json:"outstanding_total"`
	MonthlyPaymentTotal decimal.Decimal `json:"monthly_payment_total"`
	Count               int             `json:"count"`
}

// FinancialAttributes are the income and debt facts of a client.
type FinancialAttributes struct {
	AnnualGrossIncome          decimal.NullDecimal `json:"annual_gross_income"`
	AnnualNetIncome            decimal.NullDecimal `json:"annual_net_income"`
	DeclaredMonthlyIncome      decimal.NullDecimal `json:"declared_monthly_income"`
	ReportedTotalDebt          decimal.NullDecimal `json:"reported_total_debt"`
	ReportedMonthlyInstallment decimal.NullDecimal `json:"reported_monthly_installment"`
	BankBalance                decimal.NullDecimal `json:"bank_balance"`
	SalaryTotals               SalaryTotals        `json:"salary_totals"`
	CreditTotals               CreditTotals        `json:"credit_totals"`
	Salaries                   []SalaryRecord      `json:"salaries,omitempty"`
	Credits                    []CreditRecord      `json:"credits,omitempty"`
	ContractType               string              `json:"contract_type,omitempty"`
	EmploymentStartDate        string              `json:"employment_start_date,omitempty"`
	EmployerName               string              `json:"employer_name,omitempty"`
	TaxYear                    string              `json:"tax_year,omitempty"`
	AccountHolderName          string              `json:"account_holder_name,omitempty"`
	Dependents                 int                 `json:"dependents,omitempty"`
	WorksAbroad                bool                `json:"works_abroad,omitempty"`
}

// HasScalars reports whether any field outside the record lists is set.
func (f FinancialAttributes) HasScalars() bool {
	return f.AnnualGrossIncome.Valid || f.AnnualNetIncome.Valid || f.DeclaredMonthlyIncome.Valid ||
		f.ReportedTotalDebt.Valid || f.ReportedMonthlyInstallment.Valid || f.BankBalance.Valid ||
		f.ContractType != "" || f.EmploymentStartDate != "" || f.EmployerName != "" ||
		f.TaxYear != "" || f.AccountHolderName != "" || f.Dependents != 0 || f.WorksAbroad
}

// RealEstateAttributes are the facts about the property being financed.
type RealEstateAttributes struct {
	Area                 decimal.NullDecimal `json:"area"`
	PurchasePrice        decimal.NullDecimal `json:"purchase_price"`
	DownPayment          decimal.NullDecimal `json:"down_payment"`
	RequestedFinancing   decimal.NullDecimal `json:"requested_financing"`
	AssessedValue        decimal.NullDecimal `json:"assessed_value"`
	EstimatedInstallment decimal.NullDecimal `json:"estimated_installment"`
	AcquisitionValue     decimal.NullDecimal `json:"acquisition_value"`
	Location             string              `json:"location,omitempty"`
	Typology             string              `json:"typology,omitempty"`
	RegistryArticle      string              `json:"registry_article,omitempty"`
	PromissoryDate       string              `json:"promissory_date,omitempty"`
	ExpectedDeedDate     string              `json:"expected_deed_date,omitempty"`
	SimulationBank       string              `json:"simulation_bank,omitempty"`
	CreditTermMonths     int                 `json:"credit_term_months,omitempty"`
}

// IsZero reports whether no attribute has been set.
func (r RealEstateAttributes) IsZero() bool {
	return !r.Area.Valid && !r.PurchasePrice.Valid && !r.DownPayment.Valid &&
		!r.RequestedFinancing.Valid && !r.AssessedValue.Valid && !r.EstimatedInstallment.Valid &&
		!r.AcquisitionValue.Valid && r.Location == "" && r.Typology == "" &&
		r.RegistryArticle == "" && r.PromissoryDate == "" && r.ExpectedDeedDate == "" &&
		r.SimulationBank == "" && r.CreditTermMonths == 0
}
