package engine

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/dossier/internal/model"
	"github.com/Veraticus/dossier/internal/normalize"
	"github.com/shopspring/decimal"
)

// ClientAggregator accumulates the extractions of one client within a session.
// All methods are safe for concurrent use; merges for the same client are
// serialized by the aggregator's own lock.
type ClientAggregator struct {
	lastUpdate   time.Time
	salaries     map[string]model.SalaryRecord
	config       Config
	clientKey    string
	displayName  string
	personal     model.PersonalAttributes
	salaryOrder  []string
	credits      []model.CreditRecord
	coBuyers     []model.Party
	coApplicants []model.Party
	documents    []model.ProcessedDocument
	realEstate   model.RealEstateAttributes
	financial    model.FinancialAttributes
	mu           sync.RWMutex
}

// NewClientAggregator creates an empty aggregator for one client.
func NewClientAggregator(clientKey, displayName string, config Config) *ClientAggregator {
	return &ClientAggregator{
		config:      config.withDefaults(),
		clientKey:   clientKey,
		displayName: strings.TrimSpace(displayName),
		salaries:    make(map[string]model.SalaryRecord),
	}
}

// ClientKey returns the key the aggregator is registered under.
func (c *ClientAggregator) ClientKey() string {
	return c.clientKey
}

// DisplayName returns the human-readable client name.
func (c *ClientAggregator) DisplayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.displayName
}

func (c *ClientAggregator) setDisplayNameIfEmpty(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.displayName == "" {
		c.displayName = strings.TrimSpace(name)
	}
}

// AddExtraction decodes one field map and merges it into the client state.
// It never fails: undecodable fields are dropped, unknown document types go
// through the generic handler, and the document is always recorded as processed.
func (c *ClientAggregator) AddExtraction(docType model.DocumentType, fields map[string]any, filename string) {
	resolved := model.ParseDocumentType(string(docType))
	if resolved == model.DocumentOther {
		slog.Debug("Merging unrecognized document type as other",
			"client", c.clientKey,
			"label", docType,
			"filename", filename)
	}

	doc, err := model.DecodeDocument(resolved, fields)
	if err != nil {
		slog.Warn("Dropped undecodable extraction fields",
			"client", c.clientKey,
			"document_type", resolved,
			"filename", filename,
			"error", err)
	}
	c.AddDocument(doc, filename)
}

// AddDocument merges an already decoded document into the client state.
func (c *ClientAggregator) AddDocument(doc model.Document, filename string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.config.Clock()
	docType := model.DocumentOther
	if doc != nil {
		docType = doc.DocumentType()
	}

	switch d := doc.(type) {
	case *model.IdentityDocument:
		c.applyIdentity(d)
	case *model.Payslip:
		c.applyPayslip(d, filename, now)
	case *model.TaxReturn:
		c.applyTaxReturn(d)
	case *model.CreditRegistryReport:
		c.applyCreditRegistry(d)
	case *model.EmploymentContract:
		c.applyEmploymentContract(d)
	case *model.PromissoryPurchaseContract:
		c.applyPromissoryContract(d)
	case *model.PropertyRegistryExtract:
		c.applyPropertyRegistry(d)
	case *model.CreditSimulation:
		c.applyCreditSimulation(d)
	case *model.BankStatement:
		c.applyBankStatement(d)
	case *model.UnknownDocument:
		c.applyUnknown(d)
	}

	c.documents = append(c.documents, model.ProcessedDocument{
		Filename:    filename,
		Type:        docType,
		ProcessedAt: now,
	})
	c.lastUpdate = now

	slog.Debug("Merged extraction",
		"client", c.clientKey,
		"document_type", docType,
		"filename", filename,
		"documents", len(c.documents))
}

func (c *ClientAggregator) applyIdentity(d *model.IdentityDocument) {
	p := &c.personal
	setString(&p.FullName, d.FullName)
	setString(&p.TaxID, d.TaxID)
	setString(&p.DocumentID, d.DocumentID)
	setString(&p.DocumentExpiry, d.DocumentExpiry)
	setString(&p.BirthDate, d.BirthDate)
	setString(&p.Birthplace, d.Birthplace)
	setString(&p.Nationality, d.Nationality)
	setString(&p.Sex, d.Sex)
	setString(&p.Address, d.Address)
	setString(&p.PostalCode, d.PostalCode)
	setString(&p.City, d.City)
	setString(&p.FatherName, d.FatherName)
	setString(&p.MotherName, d.MotherName)
	setString(&p.MaritalStatus, normalize.MaritalStatus(d.MaritalStatus))
}

func (c *ClientAggregator) applyPayslip(d *model.Payslip, filename string, now time.Time) {
	country := c.config.HomeCountry
	if code, ok := normalize.CountryCode(d.Country); ok {
		country = code
	}
	currency := c.currencyFor(country, d.Currency)

	record := model.SalaryRecord{
		EmployerName:   strings.TrimSpace(d.EmployerName),
		EmployerKey:    normalize.EmployerKey(d.EmployerName),
		GrossAmount:    d.GrossSalary,
		NetAmount:      d.NetSalary,
		ContractType:   strings.TrimSpace(d.ContractType),
		JobTitle:       strings.TrimSpace(d.JobTitle),
		ReferenceMonth: strings.TrimSpace(d.ReferenceMonth),
		CountryCode:    country,
		Currency:       currency,
		SourceFile:     filename,
		CapturedAt:     now,
	}

	// Payslips without an employer cannot be matched to each other, so each
	// source file gets its own slot.
	key := record.EmployerKey
	if key == "" {
		key = "\x00file:" + filename
		slog.Warn("Payslip has no employer name, keeping it as a separate salary record",
			"client", c.clientKey,
			"filename", filename)
	}

	if _, exists := c.salaries[key]; !exists {
		c.salaries[key] = record
		c.salaryOrder = append(c.salaryOrder, key)
	} else if record.HasAmount() {
		c.salaries[key] = record
	} else {
		slog.Debug("Kept existing salary record, payslip has no amount",
			"client", c.clientKey,
			"employer_key", record.EmployerKey,
			"filename", filename)
	}

	c.setTaxID(country, d.TaxID)
	if country == c.config.HomeCountry {
		setString(&c.personal.SocialSecurityNumber, d.SocialSecurityNumber)
	} else {
		c.financial.WorksAbroad = true
	}
	if c.personal.FullName == "" {
		setString(&c.personal.FullName, d.EmployeeName)
	}
}

// currencyFor picks the extracted currency, else the country's usual one,
// else the home currency.
func (c *ClientAggregator) currencyFor(country, extracted string) string {
	if code, ok := normalize.CurrencyCode(extracted); ok {
		return code
	}
	if country == c.config.HomeCountry {
		return c.config.HomeCurrency
	}
	if code, ok := normalize.CurrencyForCountry(country); ok {
		return code
	}
	return c.config.HomeCurrency
}

// setTaxID stores a home tax id as the primary one and a foreign id under its country.
func (c *ClientAggregator) setTaxID(country, taxID string) {
	taxID = strings.TrimSpace(taxID)
	if taxID == "" {
		return
	}
	if country == c.config.HomeCountry {
		c.personal.TaxID = taxID
		return
	}
	if c.personal.ForeignTaxIDs == nil {
		c.personal.ForeignTaxIDs = make(map[string]string)
	}
	c.personal.ForeignTaxIDs[country] = taxID
}

func (c *ClientAggregator) applyTaxReturn(d *model.TaxReturn) {
	country := c.config.HomeCountry
	if code, ok := normalize.CountryCode(d.FiscalCountry); ok {
		country = code
		c.personal.FiscalCountry = code
	}
	if country != c.config.HomeCountry {
		c.personal.ResidentAbroad = true
	}

	c.setTaxID(country, d.TaxID)
	setString(&c.personal.FullName, d.FullName)
	setString(&c.personal.FiscalAddress, d.FiscalAddress)
	setString(&c.personal.MaritalStatus, normalize.MaritalStatus(d.MaritalStatus))

	f := &c.financial
	setAmount(&f.AnnualGrossIncome, d.AnnualGrossIncome)
	setString(&f.TaxYear, d.TaxYear)
	if d.Dependents > 0 {
		f.Dependents = d.Dependents
	}
	if d.AnnualNetIncome.Valid {
		months := c.config.HomeSalaryMonths
		if country != c.config.HomeCountry {
			months = c.config.ForeignSalaryMonths
		}
		f.AnnualNetIncome = d.AnnualNetIncome
		f.DeclaredMonthlyIncome = decimal.NullDecimal{
			Decimal: d.AnnualNetIncome.Decimal.Div(decimal.NewFromInt(months)).Round(2),
			Valid:   true,
		}
	}

	if strings.TrimSpace(d.CoHolderName) != "" || strings.TrimSpace(d.CoHolderTaxID) != "" {
		c.addCoApplicant(model.Party{
			FullName: strings.TrimSpace(d.CoHolderName),
			TaxID:    strings.TrimSpace(d.CoHolderTaxID),
		})
	}
}

// addCoApplicant replaces an entry with the same tax id (or name when either
// side has no tax id) and appends otherwise.
func (c *ClientAggregator) addCoApplicant(party model.Party) {
	for i, existing := range c.coApplicants {
		sameTaxID := party.TaxID != "" && existing.TaxID == party.TaxID
		sameName := (party.TaxID == "" || existing.TaxID == "") &&
			party.FullName != "" && normalize.ClientKey(existing.FullName) == normalize.ClientKey(party.FullName)
		if sameTaxID || sameName {
			setString(&existing.FullName, party.FullName)
			setString(&existing.TaxID, party.TaxID)
			c.coApplicants[i] = existing
			return
		}
	}
	c.coApplicants = append(c.coApplicants, party)
}

func (c *ClientAggregator) applyCreditRegistry(d *model.CreditRegistryReport) {
	setAmount(&c.financial.ReportedTotalDebt, d.TotalDebt)
	setAmount(&c.financial.ReportedMonthlyInstallment, d.TotalMonthlyInstallment)

	for _, line := range d.Credits {
		record := model.CreditRecord{
			Institution:        strings.TrimSpace(line.Institution),
			ProductType:        strings.TrimSpace(line.ProductType),
			OutstandingBalance: line.OutstandingBalance,
			MonthlyPayment:     line.MonthlyPayment,
			EndDate:            strings.TrimSpace(line.EndDate),
			InDefault:          line.InDefault,
		}
		if record.Institution == "" && record.ProductType == "" && !record.OutstandingBalance.Valid {
			continue
		}
		if slices.ContainsFunc(c.credits, record.SameLine) {
			continue
		}
		c.credits = append(c.credits, record)
	}
}

func (c *ClientAggregator) applyEmploymentContract(d *model.EmploymentContract) {
	setString(&c.financial.ContractType, d.ContractType)
	setString(&c.financial.EmploymentStartDate, d.StartDate)
	setString(&c.financial.EmployerName, d.EmployerName)
	setString(&c.personal.TaxID, d.TaxID)
}

func (c *ClientAggregator) applyPromissoryContract(d *model.PromissoryPurchaseContract) {
	r := &c.realEstate
	setString(&r.Location, d.PropertyLocation)
	setString(&r.Typology, d.Typology)
	setAmount(&r.Area, d.Area)
	setAmount(&r.PurchasePrice, d.PurchasePrice)
	setAmount(&r.DownPayment, d.DownPayment)
	setAmount(&r.RequestedFinancing, d.RequestedFinancing)
	setString(&r.PromissoryDate, d.SigningDate)
	setString(&r.ExpectedDeedDate, d.ExpectedDeedDate)

	if len(d.Buyers) == 0 {
		return
	}
	first := d.Buyers[0]
	p := &c.personal
	setString(&p.FullName, first.FullName)
	setString(&p.TaxID, first.TaxID)
	setString(&p.DocumentID, first.DocumentID)
	setString(&p.BirthDate, first.BirthDate)
	setString(&p.Nationality, first.Nationality)
	setString(&p.MaritalStatus, normalize.MaritalStatus(first.MaritalStatus))
	setString(&p.Address, first.Address)

	c.coBuyers = slices.Clone(d.Buyers)
}

func (c *ClientAggregator) applyPropertyRegistry(d *model.PropertyRegistryExtract) {
	r := &c.realEstate
	setString(&r.RegistryArticle, d.RegistryArticle)
	setAmount(&r.AssessedValue, d.AssessedValue)
	setAmount(&r.Area, d.Area)
	setString(&r.Location, d.Location)
	setString(&r.Typology, d.Typology)
}

func (c *ClientAggregator) applyCreditSimulation(d *model.CreditSimulation) {
	r := &c.realEstate
	setAmount(&r.RequestedFinancing, d.RequestedFinancing)
	if d.TermMonths > 0 {
		r.CreditTermMonths = d.TermMonths
	}
	setAmount(&r.EstimatedInstallment, d.EstimatedInstallment)
	setString(&r.SimulationBank, d.BankName)
	setAmount(&r.AcquisitionValue, d.AcquisitionValue)
}

func (c *ClientAggregator) applyBankStatement(d *model.BankStatement) {
	setString(&c.financial.AccountHolderName, d.AccountHolder)
	setString(&c.personal.TaxID, d.TaxID)
	setAmount(&c.financial.BankBalance, d.EndingBalance)
}

func (c *ClientAggregator) applyUnknown(d *model.UnknownDocument) {
	setString(&c.personal.TaxID, d.TaxID())
	setString(&c.personal.FullName, d.Name())
}

// ConsolidatedData returns the patch to persist for this client. Totals are
// recomputed from the current record lists on every call, and the result shares
// no memory with the aggregator. Calls without new extractions in between
// return identical data apart from timestamps.
func (c *ClientAggregator) ConsolidatedData() model.Patch {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.config.Clock()
	patch := model.Patch{
		UpdatedAt:      now,
		DocumentsCount: len(c.documents),
		CoBuyers:       slices.Clone(c.coBuyers),
		CoApplicants:   slices.Clone(c.coApplicants),
	}

	if !c.personal.IsZero() {
		personal := c.personal.Clone()
		patch.PersonalData = &personal
	}

	financial := c.financial
	financial.Salaries = c.orderedSalaries()
	financial.Credits = slices.Clone(c.credits)
	financial.SalaryTotals = salaryTotals(financial.Salaries)
	financial.CreditTotals = creditTotals(financial.Credits)
	if len(financial.Salaries) > 0 || len(financial.Credits) > 0 || financial.HasScalars() {
		patch.FinancialData = &financial
	}

	if !c.realEstate.IsZero() {
		realEstate := c.realEstate
		patch.RealEstateData = &realEstate
	}

	filenames := make([]string, 0, len(c.documents))
	for _, doc := range c.documents {
		filenames = append(filenames, doc.Filename)
	}
	patch.ExtractionHistory = []model.HistoryEntry{{
		Timestamp:          now,
		DocumentsProcessed: filenames,
		TotalDocuments:     len(c.documents),
	}}

	return patch
}

func (c *ClientAggregator) orderedSalaries() []model.SalaryRecord {
	if len(c.salaryOrder) == 0 {
		return nil
	}
	out := make([]model.SalaryRecord, 0, len(c.salaryOrder))
	for _, key := range c.salaryOrder {
		out = append(out, c.salaries[key])
	}
	return out
}

func salaryTotals(records []model.SalaryRecord) model.SalaryTotals {
	totals := model.SalaryTotals{Sources: len(records)}
	for _, r := range records {
		if r.GrossAmount.Valid {
			totals.GrossTotal = totals.GrossTotal.Add(r.GrossAmount.Decimal)
		}
		if r.NetAmount.Valid {
			totals.NetTotal = totals.NetTotal.Add(r.NetAmount.Decimal)
		}
	}
	return totals
}

func creditTotals(records []model.CreditRecord) model.CreditTotals {
	totals := model.CreditTotals{Count: len(records)}
	for _, r := range records {
		if r.OutstandingBalance.Valid {
			totals.OutstandingTotal = totals.OutstandingTotal.Add(r.OutstandingBalance.Decimal)
		}
		if r.MonthlyPayment.Valid {
			totals.MonthlyPaymentTotal = totals.MonthlyPaymentTotal.Add(r.MonthlyPayment.Decimal)
		}
	}
	return totals
}

// Summary returns a counts-only projection of the client state.
func (c *ClientAggregator) Summary() model.ClientSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byType := make(map[model.DocumentType]int)
	for _, doc := range c.documents {
		byType[doc.Type]++
	}

	return model.ClientSummary{
		ClientKey:          c.clientKey,
		DisplayName:        c.displayName,
		DocumentsProcessed: len(c.documents),
		DocumentsByType:    byType,
		SalaryRecords:      len(c.salaries),
		CreditRecords:      len(c.credits),
		CoBuyers:           len(c.coBuyers),
		CoApplicants:       len(c.coApplicants),
		HasPersonalData:    !c.personal.IsZero(),
		HasRealEstateData:  !c.realEstate.IsZero(),
		LastUpdate:         c.lastUpdate,
	}
}

// Documents returns the processed-document log in ingestion order.
func (c *ClientAggregator) Documents() []model.ProcessedDocument {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.documents)
}
