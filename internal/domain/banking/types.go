// Package banking defines the financial records the reconciliation
// engine reads and updates: bank transactions, invoices, direct-debit
// batches and payment-provider settlements.
package banking

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the reconciliation state of a bank transaction.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "Pending"
	StatusReconciled TransactionStatus = "Reconciled"
	StatusUnmatched  TransactionStatus = "Unmatched"
)

// BankTransaction is one imported bank feed line. Transactions are
// created by the bank import and only ever mutated here by the
// reconciliation executor, which transitions the status and attaches a
// reference to the created posting.
type BankTransaction struct {
	ID              string
	Date            time.Time
	Deposit         decimal.Decimal // credit amount, zero for withdrawals
	Withdrawal      decimal.Decimal // debit amount, zero for deposits
	Description     string
	BankAccount     string
	ReferenceNumber string
	Status          TransactionStatus
	ReferenceType   string // e.g. "Payment Entry", "Mollie Settlement"
	ReferenceName   string
}

// InvoiceStatus is the payment state of a sales invoice.
type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "Unpaid"
	InvoiceOverdue InvoiceStatus = "Overdue"
	InvoicePaid    InvoiceStatus = "Paid"
)

// Invoice is a sales invoice. The engine reads invoices; the only
// mutation it triggers is the status transition caused by posting a
// payment, which the ledger collaborator owns.
type Invoice struct {
	ID          string
	Customer    string
	Membership  string // linked membership, empty when none
	GrandTotal  decimal.Decimal
	Outstanding decimal.Decimal
	Status      InvoiceStatus
	DueDate     time.Time
}

// BatchStatus is the lifecycle state of a direct-debit batch.
type BatchStatus string

const (
	BatchDraft     BatchStatus = "Draft"
	BatchSubmitted BatchStatus = "Submitted"
	BatchProcessed BatchStatus = "Processed"
	BatchCancelled BatchStatus = "Cancelled"
)

// DirectDebitBatch is one SEPA collection batch. Read-only from the
// engine's perspective.
type DirectDebitBatch struct {
	ID             string
	CollectionDate time.Time
	TotalAmount    decimal.Decimal
	Status         BatchStatus
	Lines          []BatchLine
}

// BatchLine is one collection within a direct-debit batch.
type BatchLine struct {
	Invoice          string
	Amount           decimal.Decimal
	PartyName        string
	MandateReference string
}

// Member is an association member record.
type Member struct {
	ID       string
	FullName string
}

// Membership links a member to their (billed) membership period.
type Membership struct {
	ID            string
	Member        string
	PaymentStatus string
	PaymentDate   time.Time
}

// Settlement is a payment-service-provider payout covering many
// individual payments, settled as one bank transaction.
type Settlement struct {
	ID        string
	Reference string
	Amount    decimal.Decimal
}

// SettlementPayment is one constituent payment inside a settlement.
// Metadata may carry an invoice reference under "invoice_id"; otherwise
// the description is scanned for invoice identifier patterns.
type SettlementPayment struct {
	ID          string
	Amount      decimal.Decimal
	Description string
	Metadata    map[string]string
}
