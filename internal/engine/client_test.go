package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/dossier/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Clock = func() time.Time { return fixedTime }
	return cfg
}

func newTestClient() *ClientAggregator {
	return NewClientAggregator("joao silva", "João Silva", testConfig())
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestClientAggregator_ConsolidatedDataIsIdempotent(t *testing.T) {
	client := newTestClient()
	client.AddExtraction(model.DocumentIdentity, map[string]any{
		"full_name": "João Silva",
		"tax_id":    "123456789",
	}, "cc.pdf")
	client.AddExtraction(model.DocumentPayslip, map[string]any{
		"employer_name": "Empresa ABC, Lda",
		"gross_salary":  "1.500,00 €",
		"net_salary":    1200.5,
	}, "recibo.pdf")
	client.AddExtraction(model.DocumentCreditRegistry, map[string]any{
		"total_debt": "85000",
		"credits": []any{
			map[string]any{"institution": "Banco X", "product_type": "housing", "outstanding_balance": 85000},
		},
	}, "crc.pdf")

	first := client.ConsolidatedData()
	second := client.ConsolidatedData()
	assert.Equal(t, first, second)

	// Mutating the returned patch must not leak back into the aggregator.
	first.PersonalData.FullName = "changed"
	first.FinancialData.Salaries[0].EmployerName = "changed"
	first.ExtractionHistory[0].DocumentsProcessed[0] = "changed"

	third := client.ConsolidatedData()
	assert.Equal(t, second, third)
}

func TestClientAggregator_EmployerDedup(t *testing.T) {
	client := newTestClient()
	client.AddExtraction(model.DocumentPayslip, map[string]any{
		"employer_name": "Empresa ABC, Lda",
		"net_salary":    1000,
	}, "jan.pdf")
	client.AddExtraction(model.DocumentPayslip, map[string]any{
		"employer_name": "EMPRESA ABC LDA",
		"net_salary":    1100,
	}, "feb.pdf")

	patch := client.ConsolidatedData()
	require.NotNil(t, patch.FinancialData)
	require.Len(t, patch.FinancialData.Salaries, 1)

	salary := patch.FinancialData.Salaries[0]
	assert.Equal(t, "empresa abc", salary.EmployerKey)
	assert.True(t, salary.NetAmount.Decimal.Equal(dec("1100")))
	assert.Equal(t, "feb.pdf", salary.SourceFile)
	assert.Equal(t, 1, patch.FinancialData.SalaryTotals.Sources)
}

func TestClientAggregator_EmptyPayslipKeepsExistingRecord(t *testing.T) {
	client := newTestClient()
	client.AddExtraction(model.DocumentPayslip, map[string]any{
		"employer_name": "Empresa ABC",
		"net_salary":    1000,
		"job_title":     "Engineer",
	}, "jan.pdf")
	client.AddExtraction(model.DocumentPayslip, map[string]any{
		"employer_name": "Empresa ABC",
		"net_salary":    "n/a",
		"job_title":     "Senior Engineer",
	}, "feb.pdf")

	patch := client.ConsolidatedData()
	require.Len(t, patch.FinancialData.Salaries, 1)
	salary := patch.FinancialData.Salaries[0]
	assert.Equal(t, "Engineer", salary.JobTitle)
	assert.True(t, salary.NetAmount.Decimal.Equal(dec("1000")))
	assert.Equal(t, 2, patch.DocumentsCount)
}

func TestClientAggregator_EmployerAggregation(t *testing.T) {
	client := newTestClient()
	client.AddExtraction(model.DocumentPayslip, map[string]any{
		"employer_name": "Empresa A",
		"net_salary":    1000,
		"gross_salary":  1300,
	}, "a.pdf")
	client.AddExtraction(model.DocumentPayslip, map[string]any{
		"employer_name": "Empresa B",
		"net_salary":    "2.000,00",
	}, "b.pdf")

	totals := client.ConsolidatedData().FinancialData.SalaryTotals
	assert.True(t, totals.NetTotal.Equal(dec("3000")), "net total %s", totals.NetTotal)
	assert.True(t, totals.GrossTotal.Equal(dec("1300")), "gross total %s", totals.GrossTotal)
	assert.Equal(t, 2, totals.Sources)
}

func TestClientAggregator_UnnamedEmployersKeptApart(t *testing.T) {
	client := newTestClient()
	client.AddExtraction(model.DocumentPayslip, map[string]any{"net_salary": 500}, "first.pdf")
	client.AddExtraction(model.DocumentPayslip, map[string]any{"net_salary": 700}, "second.pdf")
	// The same file again replaces its own record.
	client.AddExtraction(model.DocumentPayslip, map[string]any{"net_salary": 750}, "second.pdf")

	financial := client.ConsolidatedData().FinancialData
	require.Len(t, financial.Salaries, 2)
	assert.Empty(t, financial.Salaries[0].EmployerKey)
	assert.True(t, financial.SalaryTotals.NetTotal.Equal(dec("1250")), "net total %s", financial.SalaryTotals.NetTotal)
}

func TestClientAggregator_CreditDedup(t *testing.T) {
	line := map[string]any{
		"institution":         "Banco X",
		"product_type":        "personal",
		"outstanding_balance": "5.000,00",
		"monthly_payment":     150,
	}
	report := map[string]any{"credits": []any{line}}

	client := newTestClient()
	client.AddExtraction(model.DocumentCreditRegistry, report, "crc-1.pdf")
	client.AddExtraction(model.DocumentCreditRegistry, report, "crc-2.pdf")
	client.AddExtraction(model.DocumentCreditRegistry, map[string]any{
		"credits": []any{
			map[string]any{"institution": "BANCO X", "product_type": "Personal", "outstanding_balance": 5000},
			map[string]any{"institution": "Banco X", "product_type": "personal", "outstanding_balance": 4000},
			map[string]any{},
		},
	}, "crc-3.pdf")

	financial := client.ConsolidatedData().FinancialData
	require.NotNil(t, financial)
	assert.Len(t, financial.Credits, 2)
	assert.Equal(t, 2, financial.CreditTotals.Count)
	assert.True(t, financial.CreditTotals.OutstandingTotal.Equal(dec("9000")))
	assert.True(t, financial.CreditTotals.MonthlyPaymentTotal.Equal(dec("150")))
}

func TestClientAggregator_CrossCountrySalary(t *testing.T) {
	client := newTestClient()
	client.AddExtraction(model.DocumentIdentity, map[string]any{"tax_id": "123456789"}, "cc.pdf")
	client.AddExtraction(model.DocumentPayslip, map[string]any{
		"employer_name": "Société Générale SA",
		"country":       "France",
		"net_salary":    "2 500,00",
		"tax_id":        "FR-998877",
	}, "fiche.pdf")

	patch := client.ConsolidatedData()
	require.NotNil(t, patch.FinancialData)
	require.Len(t, patch.FinancialData.Salaries, 1)

	salary := patch.FinancialData.Salaries[0]
	assert.Equal(t, "FR", salary.CountryCode)
	assert.Equal(t, "EUR", salary.Currency)
	assert.True(t, patch.FinancialData.WorksAbroad)

	require.NotNil(t, patch.PersonalData)
	assert.Equal(t, "123456789", patch.PersonalData.TaxID)
	assert.Equal(t, "FR-998877", patch.PersonalData.ForeignTaxIDs["FR"])
}

func TestClientAggregator_CurrencyDefaults(t *testing.T) {
	tests := []struct {
		name     string
		country  string
		currency string
		want     string
	}{
		{name: "home country", country: "", currency: "", want: "EUR"},
		{name: "swiss employer", country: "CH", currency: "", want: "CHF"},
		{name: "explicit currency", country: "CH", currency: "€", want: "EUR"},
		{name: "unknown country", country: "ZZ", currency: "", want: "EUR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient()
			client.AddExtraction(model.DocumentPayslip, map[string]any{
				"employer_name": "Employer",
				"country":       tt.country,
				"currency":      tt.currency,
				"net_salary":    1000,
			}, "p.pdf")

			salaries := client.ConsolidatedData().FinancialData.Salaries
			require.Len(t, salaries, 1)
			assert.Equal(t, tt.want, salaries[0].Currency)
		})
	}
}

func TestClientAggregator_NonDestructiveMerge(t *testing.T) {
	client := newTestClient()
	client.AddExtraction(model.DocumentIdentity, map[string]any{
		"full_name": "João Silva",
		"tax_id":    "123456789",
	}, "cc.pdf")
	client.AddExtraction(model.DocumentBankStatement, map[string]any{
		"account_holder": "JOAO SILVA",
		"tax_id":         "",
		"ending_balance": "12.345,67",
	}, "extrato.pdf")
	client.AddExtraction(model.DocumentEmploymentContract, map[string]any{
		"tax_id":        "   ",
		"contract_type": "permanent",
	}, "contrato.pdf")

	patch := client.ConsolidatedData()
	require.NotNil(t, patch.PersonalData)
	assert.Equal(t, "123456789", patch.PersonalData.TaxID)
	assert.Equal(t, "João Silva", patch.PersonalData.FullName)

	require.NotNil(t, patch.FinancialData)
	assert.Equal(t, "JOAO SILVA", patch.FinancialData.AccountHolderName)
	assert.True(t, patch.FinancialData.BankBalance.Decimal.Equal(dec("12345.67")))
	assert.Equal(t, "permanent", patch.FinancialData.ContractType)
}

func TestClientAggregator_UnknownDocumentType(t *testing.T) {
	client := newTestClient()
	assert.NotPanics(t, func() {
		client.AddExtraction("utility_bill", map[string]any{
			"nif":    "999888777",
			"amount": "not a number",
		}, "bill.pdf")
		client.AddExtraction("", nil, "empty.pdf")
	})

	patch := client.ConsolidatedData()
	assert.Equal(t, 2, patch.DocumentsCount)
	require.NotNil(t, patch.PersonalData)
	assert.Equal(t, "999888777", patch.PersonalData.TaxID)
	assert.Nil(t, patch.FinancialData)
	assert.Nil(t, patch.RealEstateData)

	summary := client.Summary()
	assert.Equal(t, 2, summary.DocumentsByType[model.DocumentOther])
	assert.NotContains(t, summary.DocumentsByType, model.DocumentType("utility_bill"))
}

func TestClientAggregator_MalformedMoneyStillCounts(t *testing.T) {
	client := newTestClient()
	client.AddExtraction(model.DocumentPayslip, map[string]any{
		"employer_name": "Empresa ABC",
		"gross_salary":  "abc",
		"net_salary":    []any{"x"},
	}, "bad.pdf")

	patch := client.ConsolidatedData()
	assert.Equal(t, 1, patch.DocumentsCount)
	require.NotNil(t, patch.FinancialData)
	require.Len(t, patch.FinancialData.Salaries, 1)
	assert.False(t, patch.FinancialData.Salaries[0].HasAmount())
	assert.True(t, patch.FinancialData.SalaryTotals.NetTotal.IsZero())
}

func TestClientAggregator_TaxReturn(t *testing.T) {
	t.Run("home country divides by fourteen", func(t *testing.T) {
		client := newTestClient()
		client.AddExtraction(model.DocumentTaxReturn, map[string]any{
			"annual_net_income": "28.000,00",
			"tax_id":            "123456789",
			"marital_status":    "Casado",
			"fiscal_address":    "Rua A, Lisboa",
			"co_holder_name":    "Maria Silva",
			"co_holder_tax_id":  "987654321",
		}, "irs.pdf")
		client.AddExtraction(model.DocumentTaxReturn, map[string]any{
			"co_holder_name":   "MARIA SILVA",
			"co_holder_tax_id": "987654321",
		}, "irs-2.pdf")

		patch := client.ConsolidatedData()
		require.NotNil(t, patch.FinancialData)
		assert.True(t, patch.FinancialData.DeclaredMonthlyIncome.Decimal.Equal(dec("2000")))
		assert.Equal(t, "married", patch.PersonalData.MaritalStatus)
		assert.Equal(t, "Rua A, Lisboa", patch.PersonalData.FiscalAddress)
		assert.False(t, patch.PersonalData.ResidentAbroad)
		require.Len(t, patch.CoApplicants, 1)
		assert.Equal(t, "MARIA SILVA", patch.CoApplicants[0].FullName)
	})

	t.Run("foreign fiscal country divides by twelve", func(t *testing.T) {
		client := newTestClient()
		client.AddExtraction(model.DocumentTaxReturn, map[string]any{
			"annual_net_income": 30000,
			"fiscal_country":    "Suisse",
			"tax_id":            "756.1234.5678.97",
			"marital_status":    "célibataire",
		}, "impots.pdf")

		patch := client.ConsolidatedData()
		assert.True(t, patch.FinancialData.DeclaredMonthlyIncome.Decimal.Equal(dec("2500")))
		assert.True(t, patch.PersonalData.ResidentAbroad)
		assert.Equal(t, "CH", patch.PersonalData.FiscalCountry)
		assert.Equal(t, "756.1234.5678.97", patch.PersonalData.ForeignTaxIDs["CH"])
		assert.Empty(t, patch.PersonalData.TaxID)
		assert.Equal(t, "single", patch.PersonalData.MaritalStatus)
	})
}

func TestClientAggregator_PromissoryContract(t *testing.T) {
	client := newTestClient()
	client.AddExtraction(model.DocumentPromissoryContract, map[string]any{
		"purchase_price":      "250.000,00 €",
		"down_payment":        25000,
		"requested_financing": "225000",
		"property_location":   "Lisboa",
		"typology":            "T2",
		"expected_deed_date":  "2025-06-30",
		"buyers": []any{
			map[string]any{"full_name": "João Silva", "tax_id": "123456789", "marital_status": "união de facto"},
			map[string]any{"full_name": "Maria Silva", "tax_id": "987654321"},
		},
	}, "cpcv.pdf")
	client.AddExtraction(model.DocumentPropertyRegistry, map[string]any{
		"registry_article": "U-1234",
		"assessed_value":   180000,
	}, "caderneta.pdf")
	client.AddExtraction(model.DocumentCreditSimulation, map[string]any{
		"term_months":           "360",
		"estimated_installment": "850,25",
		"bank_name":             "Banco Y",
	}, "fine.pdf")

	patch := client.ConsolidatedData()
	require.NotNil(t, patch.RealEstateData)
	re := patch.RealEstateData
	assert.True(t, re.PurchasePrice.Decimal.Equal(dec("250000")))
	assert.True(t, re.RequestedFinancing.Decimal.Equal(dec("225000")))
	assert.True(t, re.AssessedValue.Decimal.Equal(dec("180000")))
	assert.True(t, re.EstimatedInstallment.Decimal.Equal(dec("850.25")))
	assert.Equal(t, 360, re.CreditTermMonths)
	assert.Equal(t, "U-1234", re.RegistryArticle)
	assert.Equal(t, "Banco Y", re.SimulationBank)

	require.Len(t, patch.CoBuyers, 2)
	assert.Equal(t, "Maria Silva", patch.CoBuyers[1].FullName)
	assert.Equal(t, "union", patch.PersonalData.MaritalStatus)
	assert.Equal(t, "123456789", patch.PersonalData.TaxID)
}

func TestClientAggregator_EmptyGroupsOmitted(t *testing.T) {
	client := newTestClient()
	patch := client.ConsolidatedData()

	assert.Nil(t, patch.PersonalData)
	assert.Nil(t, patch.FinancialData)
	assert.Nil(t, patch.RealEstateData)
	assert.Nil(t, patch.CoBuyers)
	require.Len(t, patch.ExtractionHistory, 1)
	assert.Equal(t, 0, patch.ExtractionHistory[0].TotalDocuments)
	assert.Equal(t, fixedTime, patch.UpdatedAt)
}

func TestClientAggregator_ConcurrentPayslips(t *testing.T) {
	client := newTestClient()
	const employers = 50

	var wg sync.WaitGroup
	for i := range employers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client.AddExtraction(model.DocumentPayslip, map[string]any{
				"employer_name": fmt.Sprintf("Employer %d", i),
				"net_salary":    100,
			}, fmt.Sprintf("payslip-%d.pdf", i))
		}(i)
	}
	wg.Wait()

	patch := client.ConsolidatedData()
	assert.Len(t, patch.FinancialData.Salaries, employers)
	assert.Equal(t, employers, patch.DocumentsCount)
	assert.True(t, patch.FinancialData.SalaryTotals.NetTotal.Equal(dec("5000")))
}

func TestClientAggregator_Summary(t *testing.T) {
	client := newTestClient()
	client.AddExtraction(model.DocumentPayslip, map[string]any{"employer_name": "A", "net_salary": 1}, "a.pdf")
	client.AddExtraction(model.DocumentPayslip, map[string]any{"employer_name": "B", "net_salary": 1}, "b.pdf")
	client.AddExtraction(model.DocumentIdentity, map[string]any{"full_name": "João Silva"}, "cc.pdf")

	summary := client.Summary()
	assert.Equal(t, "joao silva", summary.ClientKey)
	assert.Equal(t, "João Silva", summary.DisplayName)
	assert.Equal(t, 3, summary.DocumentsProcessed)
	assert.Equal(t, 2, summary.DocumentsByType[model.DocumentPayslip])
	assert.Equal(t, 2, summary.SalaryRecords)
	assert.True(t, summary.HasPersonalData)
	assert.False(t, summary.HasRealEstateData)
	assert.Equal(t, fixedTime, summary.LastUpdate)
}
