package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a healthy response stamped with the
// current time.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ReconcileResponse reports the outcome of a reconciliation run.
type ReconcileResponse struct {
	Total     int `json:"total"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
}

// RunResponse represents a reconciliation run in API responses.
type RunResponse struct {
	RunID       string `json:"run_id"`
	BankAccount string `json:"bank_account,omitempty"`
	FromDate    string `json:"from_date,omitempty"`
	ToDate      string `json:"to_date,omitempty"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	Total       int    `json:"total"`
	Matched     int    `json:"matched"`
	Unmatched   int    `json:"unmatched"`
	DurationMS  int64  `json:"duration_ms"`
	Status      string `json:"status"`
}

// RunListResponse is returned when listing reconciliation runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// SummaryResponse reports transaction counts by reconciliation
// status.
type SummaryResponse struct {
	TotalTransactions  int     `json:"total_transactions"`
	Reconciled         int     `json:"reconciled"`
	Pending            int     `json:"pending"`
	Unmatched          int     `json:"unmatched"`
	ReconciliationRate float64 `json:"reconciliation_rate"`
}

// TransactionResponse represents a bank transaction with its audit
// trail.
type TransactionResponse struct {
	ID              string   `json:"id"`
	Date            string   `json:"date"`
	Deposit         string   `json:"deposit"`
	Withdrawal      string   `json:"withdrawal"`
	Description     string   `json:"description"`
	BankAccount     string   `json:"bank_account"`
	ReferenceNumber string   `json:"reference_number,omitempty"`
	Status          string   `json:"status"`
	ReferenceType   string   `json:"reference_type,omitempty"`
	ReferenceName   string   `json:"reference_name,omitempty"`
	Comments        []string `json:"comments,omitempty"`
	Postings        []string `json:"postings,omitempty"`
}
