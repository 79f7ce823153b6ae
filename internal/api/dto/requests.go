package dto

// ReconcileRequest starts a reconciliation run. All fields are
// optional; empty fields mean no filtering.
type ReconcileRequest struct {
	BankAccount string `json:"bank_account,omitempty"`
	FromDate    string `json:"from_date,omitempty"`
	ToDate      string `json:"to_date,omitempty"`
}
