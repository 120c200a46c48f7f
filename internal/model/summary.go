package model

import "time"

// ProcessedDocument records one document merged into a client.
type ProcessedDocument struct {
	ProcessedAt time.Time    `json:"processed_at"`
	Filename    string       `json:"filename"`
	Type        DocumentType `json:"document_type"`
}

// ClientSummary is a counts-only view of one client's accumulated state.
type ClientSummary struct {
	LastUpdate         time.Time            `json:"last_update"`
	DocumentsByType    map[DocumentType]int `json:"documents_by_type"`
	ClientKey          string               `json:"client_key"`
	DisplayName        string               `json:"display_name"`
	DocumentsProcessed int                  `json:"documents_processed"`
	SalaryRecords      int                  `json:"salary_records"`
	CreditRecords      int                  `json:"credit_records"`
	CoBuyers           int                  `json:"co_buyers"`
	CoApplicants       int                  `json:"co_applicants"`
	HasPersonalData    bool                 `json:"has_personal_data"`
	HasRealEstateData  bool                 `json:"has_real_estate_data"`
}

// SessionSummary is the progress record of one import batch. It is also the
// only session state that is persisted: per-client detail never leaves memory.
type SessionSummary struct {
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	SessionID      string    `json:"session_id"`
	OwnerIdentity  string    `json:"owner_identity"`
	TotalFiles     int       `json:"total_files"`
	ProcessedFiles int       `json:"processed_files"`
	Errors         int       `json:"errors"`
	ClientsCount   int       `json:"clients_count"`
	IsActive       bool      `json:"is_active"`
	Recovered      bool      `json:"recovered,omitempty"`
}
