// Package reconciler executes accepted matches: it creates financial
// postings, transitions bank transaction status and decomposes
// provider settlements into per-payment postings.
package reconciler

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerlink/reconciliation-backend/internal/domain/banking"
)

// PaymentPosting describes one payment posting to create in the ledger.
// Exactly one of Invoice or Batch is set.
type PaymentPosting struct {
	Invoice           string
	Batch             string
	Amount            decimal.Decimal
	Date              time.Time
	ReferenceNo       string
	ModeOfPayment     string
	SourceAccount     string // empty means the main bank account
	BankTransaction   string
	ProviderPaymentID string // settlement line payments only
	SettlementID      string
	Submit            bool // false leaves the posting in draft
}

// BalancingEntry describes a two-leg journal entry moving an amount
// between two accounts.
type BalancingEntry struct {
	DebitAccount  string
	CreditAccount string
	Amount        decimal.Decimal
	Date          time.Time
	Note          string
	Submit        bool
}

// Ledger creates financial postings. Implemented by the accounting
// integration. Postings created with Submit false stay in a draft
// state for manual review.
type Ledger interface {
	CreatePaymentPosting(ctx context.Context, posting PaymentPosting) (string, error)
	CreateBalancingEntry(ctx context.Context, entry BalancingEntry) (string, error)

	// PostingExistsForPayment reports whether a submitted posting
	// already references the provider payment id. This is the
	// authoritative duplicate check for settlement lines.
	PostingExistsForPayment(ctx context.Context, providerPaymentID string) (bool, error)

	// ProcessingFeesAccount returns the account fee balancing entries
	// are booked against: the configured account when set, otherwise a
	// best-effort discovered expense account.
	ProcessingFeesAccount(ctx context.Context) (string, error)
}

// TransactionStore persists bank transaction state changes and the
// documents the executor reads alongside them.
type TransactionStore interface {
	SaveTransaction(ctx context.Context, tx *banking.BankTransaction) error
	AddComment(ctx context.Context, transactionID, comment string) error

	// InvoiceByID returns (nil, nil) when the invoice does not exist.
	InvoiceByID(ctx context.Context, id string) (*banking.Invoice, error)

	// MarkMembershipPaid records the payment date on a membership.
	MarkMembershipPaid(ctx context.Context, membershipID string, paidOn time.Time) error
}

// Permissions is the injected permission capability. The engine
// consults it before posting creation and membership mutation; a denial
// downgrades or skips the sub-step instead of failing the run.
type Permissions interface {
	HasPermission(doctype, action string) bool
}

// AllowAll grants every permission. The default for scheduled runs
// executing under a system account.
type AllowAll struct{}

// HasPermission implements Permissions.
func (AllowAll) HasPermission(string, string) bool { return true }

// StaticPermissions denies exactly the listed "doctype:action" pairs
// and grants everything else. Used in tests and restricted API runs.
type StaticPermissions map[string]bool

// HasPermission implements Permissions.
func (p StaticPermissions) HasPermission(doctype, action string) bool {
	denied, ok := p[doctype+":"+action]
	return !ok || !denied
}
