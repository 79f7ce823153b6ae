package reconciler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlink/reconciliation-backend/internal/domain/banking"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/matcher"
)

// fakeStore is an in-memory TransactionStore.
type fakeStore struct {
	transactions    map[string]banking.BankTransaction
	comments        map[string][]string
	invoices        map[string]*banking.Invoice
	paidMemberships []string
	saveErr         error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		transactions: make(map[string]banking.BankTransaction),
		comments:     make(map[string][]string),
		invoices:     make(map[string]*banking.Invoice),
	}
}

func (f *fakeStore) SaveTransaction(_ context.Context, tx *banking.BankTransaction) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.transactions[tx.ID] = *tx
	return nil
}

func (f *fakeStore) AddComment(_ context.Context, transactionID, comment string) error {
	f.comments[transactionID] = append(f.comments[transactionID], comment)
	return nil
}

func (f *fakeStore) InvoiceByID(_ context.Context, id string) (*banking.Invoice, error) {
	return f.invoices[id], nil
}

func (f *fakeStore) MarkMembershipPaid(_ context.Context, membershipID string, _ time.Time) error {
	f.paidMemberships = append(f.paidMemberships, membershipID)
	return nil
}

// fakeLedger records created postings and entries.
type fakeLedger struct {
	postings    []PaymentPosting
	entries     []BalancingEntry
	existing    map[string]bool // provider payment ids with a submitted posting
	postingErr  error
	feesAccount string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{existing: make(map[string]bool), feesAccount: "Payment Processing Fees - NL"}
}

func (f *fakeLedger) CreatePaymentPosting(_ context.Context, posting PaymentPosting) (string, error) {
	if f.postingErr != nil {
		return "", f.postingErr
	}
	f.postings = append(f.postings, posting)
	return fmt.Sprintf("PE-%04d", len(f.postings)), nil
}

func (f *fakeLedger) CreateBalancingEntry(_ context.Context, entry BalancingEntry) (string, error) {
	f.entries = append(f.entries, entry)
	return fmt.Sprintf("JE-%04d", len(f.entries)), nil
}

func (f *fakeLedger) PostingExistsForPayment(_ context.Context, providerPaymentID string) (bool, error) {
	return f.existing[providerPaymentID], nil
}

func (f *fakeLedger) ProcessingFeesAccount(_ context.Context) (string, error) {
	return f.feesAccount, nil
}

// fakePayments serves a fixed payment list for any settlement.
type fakePayments struct {
	payments []banking.SettlementPayment
	err      error
}

func (f *fakePayments) SettlementsByDateRange(_ context.Context, _, _ time.Time) ([]banking.Settlement, error) {
	return nil, nil
}

func (f *fakePayments) PaymentsForSettlement(_ context.Context, _ string) ([]banking.SettlementPayment, error) {
	return f.payments, f.err
}

func makeTransaction(id string, deposit string) *banking.BankTransaction {
	return &banking.BankTransaction{
		ID:      id,
		Date:    time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		Deposit: decimal.RequireFromString(deposit),
		Status:  banking.StatusPending,
	}
}

func TestExecutor_ReconcileInvoice(t *testing.T) {
	// Arrange
	store := newFakeStore()
	ledger := newFakeLedger()
	executor := NewExecutor(store, ledger, nil, nil, nil)
	tx := makeTransaction("tx1", "45.00")
	candidate := &matcher.Candidate{
		Type:       matcher.CandidateInvoice,
		Reference:  "SI-2024-001",
		Confidence: 0.95,
		Reason:     "Amount and reference match for J. Smith",
	}

	// Act
	ok := executor.Reconcile(context.Background(), tx, candidate)

	// Assert
	assert.True(t, ok)
	assert.Equal(t, banking.StatusReconciled, tx.Status)
	assert.Equal(t, "Payment Entry", tx.ReferenceType)
	assert.NotEmpty(t, tx.ReferenceName)

	require.Len(t, ledger.postings, 1)
	posting := ledger.postings[0]
	assert.Equal(t, "SI-2024-001", posting.Invoice)
	assert.Empty(t, posting.Batch)
	assert.Equal(t, "45.00", posting.Amount.StringFixed(2))
	assert.Equal(t, "SEPA Direct Debit", posting.ModeOfPayment)
	assert.True(t, posting.Submit)

	require.Len(t, store.comments["tx1"], 1)
	assert.Contains(t, store.comments["tx1"][0], "Auto-reconciled")
	assert.Contains(t, store.comments["tx1"][0], "95%")
}

func TestExecutor_ReconcileBatch(t *testing.T) {
	store := newFakeStore()
	ledger := newFakeLedger()
	executor := NewExecutor(store, ledger, nil, nil, nil)
	tx := makeTransaction("tx1", "250.00")
	candidate := &matcher.Candidate{
		Type:       matcher.CandidateBatch,
		Reference:  "DDB2024-001",
		Confidence: 1.0,
		Reason:     "Exact batch reference match",
	}

	ok := executor.Reconcile(context.Background(), tx, candidate)

	assert.True(t, ok)
	require.Len(t, ledger.postings, 1)
	assert.Equal(t, "DDB2024-001", ledger.postings[0].Batch)
	assert.Empty(t, ledger.postings[0].Invoice)
	assert.Equal(t, "DDB2024-001", ledger.postings[0].ReferenceNo)
}

func TestExecutor_ValidationFailureMarksUnmatched(t *testing.T) {
	store := newFakeStore()
	ledger := newFakeLedger()
	ledger.postingErr = NewValidationError("invoice SI-2024-001 does not exist", nil)
	executor := NewExecutor(store, ledger, nil, nil, nil)
	tx := makeTransaction("tx1", "45.00")
	candidate := &matcher.Candidate{Type: matcher.CandidateInvoice, Reference: "SI-2024-001", Confidence: 0.95}

	ok := executor.Reconcile(context.Background(), tx, candidate)

	assert.False(t, ok)
	assert.Equal(t, banking.StatusUnmatched, tx.Status)
	require.Len(t, store.comments["tx1"], 1)
	assert.Contains(t, store.comments["tx1"][0], "Reconciliation failed")
}

func TestExecutor_MultipleMatchAnnotatesAndStaysPending(t *testing.T) {
	store := newFakeStore()
	ledger := newFakeLedger()
	executor := NewExecutor(store, ledger, nil, nil, nil)
	tx := makeTransaction("tx1", "100.00")
	candidate := &matcher.Candidate{
		Type:       matcher.CandidateMultiple,
		Confidence: 0.7,
		Matches:    []matcher.BatchLineHit{{Invoice: "SI-1"}, {Invoice: "SI-2"}},
	}

	ok := executor.Reconcile(context.Background(), tx, candidate)

	assert.False(t, ok)
	assert.Equal(t, banking.StatusPending, tx.Status)
	assert.Empty(t, ledger.postings)
	require.Len(t, store.comments["tx1"], 1)
	assert.Contains(t, store.comments["tx1"][0], "Multiple matches found: 2 invoices")
	assert.Contains(t, store.comments["tx1"][0], "Manual review required")
}

func TestExecutor_NoSubmitPermissionLeavesDraft(t *testing.T) {
	store := newFakeStore()
	ledger := newFakeLedger()
	perms := StaticPermissions{"Payment Entry:submit": true}
	executor := NewExecutor(store, ledger, perms, nil, nil)
	tx := makeTransaction("tx1", "45.00")
	candidate := &matcher.Candidate{Type: matcher.CandidateInvoice, Reference: "SI-2024-001", Confidence: 0.95}

	ok := executor.Reconcile(context.Background(), tx, candidate)

	// The transaction still reconciles; only the posting stays draft
	assert.True(t, ok)
	require.Len(t, ledger.postings, 1)
	assert.False(t, ledger.postings[0].Submit)
}

func TestExecutor_NoCreatePermissionBlocks(t *testing.T) {
	store := newFakeStore()
	ledger := newFakeLedger()
	perms := StaticPermissions{"Payment Entry:create": true}
	executor := NewExecutor(store, ledger, perms, nil, nil)
	tx := makeTransaction("tx1", "45.00")
	candidate := &matcher.Candidate{Type: matcher.CandidateInvoice, Reference: "SI-2024-001", Confidence: 0.95}

	ok := executor.Reconcile(context.Background(), tx, candidate)

	assert.False(t, ok)
	assert.Equal(t, banking.StatusUnmatched, tx.Status)
	assert.Empty(t, ledger.postings)
}

func TestExecutor_MembershipMarkedPaid(t *testing.T) {
	store := newFakeStore()
	store.invoices["SI-2024-001"] = &banking.Invoice{
		ID:         "SI-2024-001",
		Membership: "MEM-2024-07",
	}
	ledger := newFakeLedger()
	executor := NewExecutor(store, ledger, nil, nil, nil)
	tx := makeTransaction("tx1", "45.00")
	candidate := &matcher.Candidate{Type: matcher.CandidateInvoice, Reference: "SI-2024-001", Confidence: 0.95}

	ok := executor.Reconcile(context.Background(), tx, candidate)

	assert.True(t, ok)
	assert.Equal(t, []string{"MEM-2024-07"}, store.paidMemberships)
}

func settlementProcessor(store *fakeStore, ledger *fakeLedger, payments *fakePayments) *SettlementProcessor {
	config := DefaultSettlementConfig()
	config.ClearingAccount = "Mollie Clearing - NL"
	return NewSettlementProcessor(payments, store, ledger, nil, config, nil)
}

func TestSettlementProcessor_AllPaymentsMatched(t *testing.T) {
	// Arrange
	store := newFakeStore()
	store.invoices["SI-2024-001"] = &banking.Invoice{ID: "SI-2024-001", GrandTotal: decimal.RequireFromString("300.00")}
	store.invoices["SI-2024-002"] = &banking.Invoice{ID: "SI-2024-002", GrandTotal: decimal.RequireFromString("200.00")}
	ledger := newFakeLedger()
	payments := &fakePayments{payments: []banking.SettlementPayment{
		{ID: "pay_1", Amount: decimal.RequireFromString("300.00"), Metadata: map[string]string{"invoice_id": "SI-2024-001"}},
		{ID: "pay_2", Amount: decimal.RequireFromString("200.00"), Description: "Payment for SI-2024-002"},
	}}
	processor := settlementProcessor(store, ledger, payments)
	tx := makeTransaction("tx1", "495.00")
	settlement := &banking.Settlement{ID: "stl_123", Amount: decimal.RequireFromString("495.00")}

	// Act
	result, err := processor.Process(context.Background(), tx, settlement)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalPayments)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, "500.00", result.TotalReconciled.StringFixed(2))

	// 500.00 reconciled against a 495.00 payout leaves 5.00 in fees
	assert.Equal(t, "5.00", result.Fees.StringFixed(2))
	require.Len(t, ledger.entries, 1)
	entry := ledger.entries[0]
	assert.Equal(t, "5.00", entry.Amount.StringFixed(2))
	assert.Equal(t, "Mollie Clearing - NL", entry.DebitAccount)
	assert.Equal(t, "Payment Processing Fees - NL", entry.CreditAccount)
	assert.Contains(t, entry.Note, "stl_123")

	// Every posting flows through the clearing account
	require.Len(t, ledger.postings, 2)
	for _, posting := range ledger.postings {
		assert.Equal(t, "Mollie Clearing - NL", posting.SourceAccount)
		assert.Equal(t, "Mollie", posting.ModeOfPayment)
		assert.Equal(t, "stl_123", posting.SettlementID)
	}
}

func TestSettlementProcessor_DuplicatePaymentSkipped(t *testing.T) {
	store := newFakeStore()
	store.invoices["SI-2024-001"] = &banking.Invoice{ID: "SI-2024-001", GrandTotal: decimal.RequireFromString("300.00")}
	ledger := newFakeLedger()
	ledger.existing["pay_1"] = true
	payments := &fakePayments{payments: []banking.SettlementPayment{
		{ID: "pay_1", Amount: decimal.RequireFromString("300.00"), Metadata: map[string]string{"invoice_id": "SI-2024-001"}},
	}}
	processor := settlementProcessor(store, ledger, payments)
	tx := makeTransaction("tx1", "300.00")
	settlement := &banking.Settlement{ID: "stl_123", Amount: decimal.RequireFromString("300.00")}

	result, err := processor.Process(context.Background(), tx, settlement)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 0, result.Processed)
	assert.Empty(t, ledger.postings)
	assert.Equal(t, PaymentDuplicate, result.Outcomes[0].Status)
}

func TestSettlementProcessor_SamePaymentTwiceInOneRun(t *testing.T) {
	store := newFakeStore()
	store.invoices["SI-2024-001"] = &banking.Invoice{ID: "SI-2024-001", GrandTotal: decimal.RequireFromString("300.00")}
	ledger := newFakeLedger()
	payments := &fakePayments{payments: []banking.SettlementPayment{
		{ID: "pay_1", Amount: decimal.RequireFromString("300.00"), Metadata: map[string]string{"invoice_id": "SI-2024-001"}},
		{ID: "pay_1", Amount: decimal.RequireFromString("300.00"), Metadata: map[string]string{"invoice_id": "SI-2024-001"}},
	}}
	processor := settlementProcessor(store, ledger, payments)
	tx := makeTransaction("tx1", "300.00")
	settlement := &banking.Settlement{ID: "stl_123", Amount: decimal.RequireFromString("300.00")}

	result, err := processor.Process(context.Background(), tx, settlement)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Duplicates)
	require.Len(t, ledger.postings, 1)
}

func TestSettlementProcessor_NoInvoiceReference(t *testing.T) {
	store := newFakeStore()
	ledger := newFakeLedger()
	payments := &fakePayments{payments: []banking.SettlementPayment{
		{ID: "pay_1", Amount: decimal.RequireFromString("50.00"), Description: "donation, no invoice"},
	}}
	processor := settlementProcessor(store, ledger, payments)
	tx := makeTransaction("tx1", "50.00")
	settlement := &banking.Settlement{ID: "stl_123", Amount: decimal.RequireFromString("50.00")}

	result, err := processor.Process(context.Background(), tx, settlement)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Unmatched)
	assert.Equal(t, PaymentNoInvoiceMatch, result.Outcomes[0].Status)
}

func TestSettlementProcessor_InvoiceNotFound(t *testing.T) {
	store := newFakeStore()
	ledger := newFakeLedger()
	payments := &fakePayments{payments: []banking.SettlementPayment{
		{ID: "pay_1", Amount: decimal.RequireFromString("50.00"), Metadata: map[string]string{"invoice_id": "SI-9999-999"}},
	}}
	processor := settlementProcessor(store, ledger, payments)
	tx := makeTransaction("tx1", "50.00")
	settlement := &banking.Settlement{ID: "stl_123", Amount: decimal.RequireFromString("50.00")}

	result, err := processor.Process(context.Background(), tx, settlement)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, PaymentInvoiceNotFound, result.Outcomes[0].Status)
}

func TestSettlementProcessor_AmountMismatch(t *testing.T) {
	store := newFakeStore()
	store.invoices["SI-2024-001"] = &banking.Invoice{ID: "SI-2024-001", GrandTotal: decimal.RequireFromString("300.00")}
	ledger := newFakeLedger()
	payments := &fakePayments{payments: []banking.SettlementPayment{
		// 250 vs 300 is far outside the 1% tolerance
		{ID: "pay_1", Amount: decimal.RequireFromString("250.00"), Metadata: map[string]string{"invoice_id": "SI-2024-001"}},
	}}
	processor := settlementProcessor(store, ledger, payments)
	tx := makeTransaction("tx1", "250.00")
	settlement := &banking.Settlement{ID: "stl_123", Amount: decimal.RequireFromString("250.00")}

	result, err := processor.Process(context.Background(), tx, settlement)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, PaymentAmountMismatch, result.Outcomes[0].Status)
	assert.Empty(t, ledger.postings)
}

func TestSettlementProcessor_AmountWithinTolerance(t *testing.T) {
	store := newFakeStore()
	store.invoices["SI-2024-001"] = &banking.Invoice{ID: "SI-2024-001", GrandTotal: decimal.RequireFromString("300.00")}
	ledger := newFakeLedger()
	payments := &fakePayments{payments: []banking.SettlementPayment{
		// 1% of 300.00 is 3.00, so a 2.00 difference still matches
		{ID: "pay_1", Amount: decimal.RequireFromString("298.00"), Metadata: map[string]string{"invoice_id": "SI-2024-001"}},
	}}
	processor := settlementProcessor(store, ledger, payments)
	tx := makeTransaction("tx1", "298.00")
	settlement := &banking.Settlement{ID: "stl_123", Amount: decimal.RequireFromString("298.00")}

	result, err := processor.Process(context.Background(), tx, settlement)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	require.Len(t, ledger.postings, 1)
}

func TestSettlementProcessor_TinyFeeNotBooked(t *testing.T) {
	store := newFakeStore()
	store.invoices["SI-2024-001"] = &banking.Invoice{ID: "SI-2024-001", GrandTotal: decimal.RequireFromString("300.00")}
	ledger := newFakeLedger()
	payments := &fakePayments{payments: []banking.SettlementPayment{
		{ID: "pay_1", Amount: decimal.RequireFromString("300.00"), Metadata: map[string]string{"invoice_id": "SI-2024-001"}},
	}}
	processor := settlementProcessor(store, ledger, payments)
	tx := makeTransaction("tx1", "300.00")
	// Residual below a cent is rounding noise, not a fee
	settlement := &banking.Settlement{ID: "stl_123", Amount: decimal.RequireFromString("299.995")}

	_, err := processor.Process(context.Background(), tx, settlement)

	require.NoError(t, err)
	assert.Empty(t, ledger.entries)
}

func TestExtractInvoiceReference(t *testing.T) {
	tests := []struct {
		name    string
		payment banking.SettlementPayment
		want    string
	}{
		{
			"metadata wins over description",
			banking.SettlementPayment{
				Metadata:    map[string]string{"invoice_id": "SI-2024-001"},
				Description: "Payment for SI-2024-999",
			},
			"SI-2024-001",
		},
		{
			"sales invoice pattern",
			banking.SettlementPayment{Description: "Betaling SI-2024-042 contributie"},
			"SI-2024-042",
		},
		{
			"accounting invoice pattern",
			banking.SettlementPayment{Description: "ACC-INV-2024-0042"},
			"ACC-INV-2024-0042",
		},
		{
			"invoice keyword",
			banking.SettlementPayment{Description: "Invoice: XYZ-99"},
			"XYZ-99",
		},
		{
			"generic document pattern",
			banking.SettlementPayment{Description: "ref MEM-2024-042"},
			"MEM-2024-042",
		},
		{
			"no reference",
			banking.SettlementPayment{Description: "losse donatie"},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractInvoiceReference(&tt.payment))
		})
	}
}

// fakeAccounts is an in-memory AccountDirectory.
type fakeAccounts struct {
	existing map[string]bool
}

func (f fakeAccounts) AccountExists(_ context.Context, name string) (bool, error) {
	return f.existing[name], nil
}

func TestValidateProviderAccounts_LogsMisconfiguration(t *testing.T) {
	// Arrange: no bank account, clearing exists, fees account unknown
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	accounts := fakeAccounts{existing: map[string]bool{"Mollie Clearing - NL": true}}

	// Act
	ValidateProviderAccounts(context.Background(), accounts, ProviderAccounts{
		ClearingAccount: "Mollie Clearing - NL",
		FeesAccount:     "Payment Processing Fees - NL",
	}, logger)

	// Assert
	out := buf.String()
	assert.Contains(t, out, "bank account not configured")
	assert.Contains(t, out, "does not exist")
	assert.Contains(t, out, "Payment Processing Fees - NL")
	assert.NotContains(t, out, "clearing account not configured")
	assert.NotContains(t, out, "role=clearing")
}

func TestValidateProviderAccounts_SilentWhenConfigured(t *testing.T) {
	// Arrange: every account configured and present in the ledger
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	accounts := fakeAccounts{existing: map[string]bool{
		"Main Bank - NL":               true,
		"Mollie Clearing - NL":         true,
		"Payment Processing Fees - NL": true,
	}}

	// Act
	ValidateProviderAccounts(context.Background(), accounts, ProviderAccounts{
		BankAccount:     "Main Bank - NL",
		ClearingAccount: "Mollie Clearing - NL",
		FeesAccount:     "Payment Processing Fees - NL",
	}, logger)

	// Assert
	assert.Empty(t, buf.String())
}

func TestValidationError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("row not found")
	err := NewValidationError("invoice missing", inner)

	assert.True(t, IsValidation(err))
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "invoice missing")

	assert.False(t, IsValidation(fmt.Errorf("plain failure")))
}
