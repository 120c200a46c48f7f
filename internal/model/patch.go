package model

import "time"

// HistoryEntry is the audit record appended to a profile for each consolidation.
type HistoryEntry struct {
	Timestamp          time.Time `json:"timestamp"`
	DocumentsProcessed []string  `json:"documents_processed"`
	TotalDocuments     int       `json:"total_documents"`
}

// Patch is the consolidated update for one client profile. Empty attribute
// groups are nil and omitted.
type Patch struct {
	UpdatedAt         time.Time             `json:"updated_at"`
	PersonalData      *PersonalAttributes   `json:"personal_data,omitempty"`
	FinancialData     *FinancialAttributes  `json:"financial_data,omitempty"`
	RealEstateData    *RealEstateAttributes `json:"real_estate_data,omitempty"`
	CoBuyers          []Party               `json:"co_buyers,omitempty"`
	CoApplicants      []Party               `json:"co_applicants,omitempty"`
	ExtractionHistory []HistoryEntry        `json:"extraction_history"`
	DocumentsCount    int                   `json:"documents_count"`
}
