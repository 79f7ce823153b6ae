// Package matcher implements the cascade of strategies that propose
// reconciliation candidates for pending bank transactions.
//
// Each strategy is pure read + compute: it may query the document
// store or the settlements client but never mutates a persisted
// record. The Arbiter runs all strategies, picks the highest-confidence
// candidate and enforces the acceptance threshold.
package matcher

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerlink/reconciliation-backend/internal/domain/banking"
)

// CandidateType tags what a candidate points at.
type CandidateType string

const (
	CandidateBatch      CandidateType = "batch"
	CandidateInvoice    CandidateType = "invoice"
	CandidateMultiple   CandidateType = "multiple"
	CandidateSettlement CandidateType = "mollie_settlement"
)

// Candidate is one proposed match for a bank transaction. Candidates
// are transient: created fresh per matching attempt, never persisted.
type Candidate struct {
	Type       CandidateType
	Reference  string  // invoice, batch or settlement identifier
	Batch      string  // parent batch for invoice matches found via batch lines
	Confidence float64 // in [0,1], used for ranking and threshold acceptance
	Reason     string

	// Matches carries the full hit list for CandidateMultiple, which is
	// deferred to manual review rather than auto-posted.
	Matches []BatchLineHit

	// Settlement carries the matched settlement for CandidateSettlement
	// so the executor does not have to re-fetch it.
	Settlement *banking.Settlement
}

// Strategy produces zero or one candidate for a transaction.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// TryMatch returns (nil, nil) when the strategy has no candidate.
	TryMatch(ctx context.Context, tx *banking.BankTransaction) (*Candidate, error)
}

// BatchLineHit is one direct-debit batch line matching an amount and
// reference query.
type BatchLineHit struct {
	Batch     string
	Invoice   string
	Amount    decimal.Decimal
	PartyName string
	Customer  string
}

// BatchLineQuery filters batch lines for the amount+reference strategy.
type BatchLineQuery struct {
	Amount     decimal.Decimal
	Reference  string // matched against the line's invoice id or the batch name
	Statuses   []banking.BatchStatus
	WindowFrom time.Time // collection date window
	WindowTo   time.Time
	Limit      int
}

// PartyInvoice is a party with one outstanding invoice, used by the
// fuzzy-name fallback.
type PartyInvoice struct {
	MemberID string
	FullName string
	Invoice  string
	Customer string
}

// Directory is the read-only document access the strategies need.
// Implemented by the storage layer.
type Directory interface {
	// BatchByNameToken finds a direct-debit batch whose identifier
	// contains the token. Returns (nil, nil) when there is none.
	BatchByNameToken(ctx context.Context, token string) (*banking.DirectDebitBatch, error)

	// FindBatchLines returns batch lines matching the query, newest
	// collection date first.
	FindBatchLines(ctx context.Context, q BatchLineQuery) ([]BatchLineHit, error)

	// InvoiceExists reports whether a sales invoice with the given
	// identifier exists.
	InvoiceExists(ctx context.Context, id string) (bool, error)

	// OpenInvoiceForMembership returns the identifier of an unpaid or
	// overdue invoice linked to the membership, or "" when none exists.
	OpenInvoiceForMembership(ctx context.Context, membershipID string) (string, error)

	// OpenInvoicesForMember returns unpaid/overdue invoices of the
	// member with the given outstanding amount, most recent due first.
	OpenInvoicesForMember(ctx context.Context, memberID string, amount decimal.Decimal) ([]string, error)

	// MemberForMandate resolves a SEPA mandate reference to its member,
	// or "" when the mandate is unknown.
	MemberForMandate(ctx context.Context, mandateRef string) (string, error)

	// PartiesWithOutstandingInvoice returns parties that have an
	// unpaid/overdue invoice with exactly the given outstanding amount.
	PartiesWithOutstandingInvoice(ctx context.Context, amount decimal.Decimal) ([]PartyInvoice, error)
}

// SettlementsClient fetches settlement data from the payment service
// provider. Network-bound; a failed fetch is treated as "no settlement
// candidates", never as a fatal error for the batch.
type SettlementsClient interface {
	SettlementsByDateRange(ctx context.Context, from, to time.Time) ([]banking.Settlement, error)
	PaymentsForSettlement(ctx context.Context, settlementID string) ([]banking.SettlementPayment, error)
}

// Config holds matching thresholds and provider wiring. The default
// values mirror hand-tuned production constants; they are configuration,
// not invariants.
type Config struct {
	// AcceptanceThreshold is the minimum confidence the arbiter accepts.
	AcceptanceThreshold float64

	// BatchDateWindowDays bounds the collection-date window around the
	// transaction date for amount+reference matching.
	BatchDateWindowDays int

	// SettlementDateWindowDays bounds the settlement search window.
	SettlementDateWindowDays int

	// SettlementTolerancePercent is the amount tolerance for matching a
	// settlement total against a transaction.
	SettlementTolerancePercent float64

	// FuzzyMinScore is the minimum raw similarity score for a fuzzy
	// name match.
	FuzzyMinScore float64

	// ProviderBankAccount is the bank account settlements are paid out
	// to. Settlement matching is disabled when empty.
	ProviderBankAccount string
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		AcceptanceThreshold:        0.85,
		BatchDateWindowDays:        7,
		SettlementDateWindowDays:   3,
		SettlementTolerancePercent: 0.1,
		FuzzyMinScore:              0.6,
	}
}
