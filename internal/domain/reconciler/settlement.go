package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/ledgerlink/reconciliation-backend/internal/domain/banking"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/matcher"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/money"
)

// PaymentStatus is the outcome of processing one settlement line.
type PaymentStatus string

const (
	PaymentSuccess         PaymentStatus = "success"
	PaymentDuplicate       PaymentStatus = "duplicate"
	PaymentNoInvoiceMatch  PaymentStatus = "no_invoice_match"
	PaymentInvoiceNotFound PaymentStatus = "invoice_not_found"
	PaymentAmountMismatch  PaymentStatus = "amount_mismatch"
	PaymentValidationError PaymentStatus = "validation_error"
	PaymentError           PaymentStatus = "error"
)

// PaymentOutcome is the per-payment breakdown entry of a settlement.
type PaymentOutcome struct {
	PaymentID string
	Invoice   string
	Amount    decimal.Decimal
	PostingID string
	Status    PaymentStatus
	Detail    string
}

// SettlementResult summarizes one processed settlement. Individual line
// failures never reject the settlement as a whole.
type SettlementResult struct {
	SettlementID    string
	TotalPayments   int
	Processed       int
	Failed          int
	Duplicates      int
	Unmatched       int
	TotalReconciled decimal.Decimal
	Fees            decimal.Decimal
	Outcomes        []PaymentOutcome
}

// feeThreshold is the amount below which a settlement/payment
// difference is considered rounding noise rather than a fee.
var feeThreshold = decimal.NewFromFloat(0.01)

// invoiceRefPatterns extract an invoice identifier from a settlement
// payment's free-text description, probed in order.
var invoiceRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(SI-\d{4}-\d{3,4})\b`),
	regexp.MustCompile(`(?i)\b(ACC-INV-\d{4}-\d{3,4})\b`),
	regexp.MustCompile(`(?i)Invoice:?\s*([A-Z0-9-]+)`),
	regexp.MustCompile(`(?i)\b([A-Z]{2,3}-\d{4}-\d{3,4})\b`),
}

// SettlementConfig holds the ledger accounts settlement postings flow
// through.
type SettlementConfig struct {
	// ClearingAccount is the intermediate account settlement payments
	// are posted from; the payout is an aggregate, so individual
	// payments never touch the main bank account directly.
	ClearingAccount string

	// AmountTolerancePercent is the payment-vs-invoice tolerance.
	AmountTolerancePercent float64
}

// DefaultSettlementConfig returns the production tolerance.
func DefaultSettlementConfig() SettlementConfig {
	return SettlementConfig{AmountTolerancePercent: 1.0}
}

// SettlementProcessor decomposes a provider settlement into per-payment
// postings.
//
// Not safe for concurrent use: the processed-payment set is scoped to
// one processor instance per execution context. The set is only a
// cache; the authoritative duplicate check is posting existence in the
// ledger.
type SettlementProcessor struct {
	client      matcher.SettlementsClient
	store       TransactionStore
	ledger      Ledger
	permissions Permissions
	config      SettlementConfig
	normalizer  *money.Normalizer
	logger      *slog.Logger

	processed map[string]bool
}

// NewSettlementProcessor creates a settlement processor.
func NewSettlementProcessor(
	client matcher.SettlementsClient,
	store TransactionStore,
	ledger Ledger,
	permissions Permissions,
	config SettlementConfig,
	logger *slog.Logger,
) *SettlementProcessor {
	if permissions == nil {
		permissions = AllowAll{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SettlementProcessor{
		client:      client,
		store:       store,
		ledger:      ledger,
		permissions: permissions,
		config:      config,
		normalizer:  money.NewNormalizer(logger),
		logger:      logger,
		processed:   make(map[string]bool),
	}
}

// Process reconciles every payment of the settlement against its
// invoice and books the residual provider fee. It returns an error only
// when the payment list cannot be fetched at all; individual line
// failures are recorded in the result and processing continues.
func (p *SettlementProcessor) Process(ctx context.Context, tx *banking.BankTransaction, settlement *banking.Settlement) (*SettlementResult, error) {
	payments, err := p.client.PaymentsForSettlement(ctx, settlement.ID)
	if err != nil {
		return nil, fmt.Errorf("fetching payments for settlement %s: %w", settlement.ID, err)
	}

	result := &SettlementResult{
		SettlementID:    settlement.ID,
		TotalPayments:   len(payments),
		TotalReconciled: decimal.Zero,
	}

	for i := range payments {
		outcome := p.processPayment(ctx, tx, settlement, &payments[i])
		result.Outcomes = append(result.Outcomes, outcome)

		switch outcome.Status {
		case PaymentSuccess:
			result.Processed++
			result.TotalReconciled = result.TotalReconciled.Add(outcome.Amount)
		case PaymentDuplicate:
			result.Duplicates++
		case PaymentNoInvoiceMatch:
			result.Unmatched++
		default:
			result.Failed++
		}
	}

	result.Fees = result.TotalReconciled.Sub(settlement.Amount)
	if result.Fees.Abs().GreaterThan(feeThreshold) {
		if err := p.bookFees(ctx, tx, settlement, result.Fees); err != nil {
			p.logger.Error("Failed to book settlement fees",
				"settlement_id", settlement.ID,
				"fees", result.Fees.StringFixed(2),
				"error", err.Error())
		}
	}

	return result, nil
}

// processPayment handles one settlement line. Every failure mode maps
// to an outcome status; nothing escapes as an error.
func (p *SettlementProcessor) processPayment(ctx context.Context, tx *banking.BankTransaction, settlement *banking.Settlement, payment *banking.SettlementPayment) PaymentOutcome {
	if payment.ID == "" {
		return PaymentOutcome{PaymentID: "unknown", Status: PaymentError, Detail: "missing provider payment id"}
	}

	duplicate, err := p.isPaymentProcessed(ctx, payment.ID)
	if err != nil {
		return PaymentOutcome{PaymentID: payment.ID, Status: PaymentError, Detail: err.Error()}
	}
	if duplicate {
		return PaymentOutcome{PaymentID: payment.ID, Status: PaymentDuplicate, Detail: "payment already processed"}
	}

	invoiceRef := extractInvoiceReference(payment)
	if invoiceRef == "" {
		return PaymentOutcome{
			PaymentID: payment.ID,
			Amount:    payment.Amount,
			Status:    PaymentNoInvoiceMatch,
			Detail:    "could not match payment to invoice, no reference found",
		}
	}

	invoice, err := p.store.InvoiceByID(ctx, invoiceRef)
	if err != nil {
		return PaymentOutcome{PaymentID: payment.ID, Invoice: invoiceRef, Status: PaymentError, Detail: err.Error()}
	}
	if invoice == nil {
		return PaymentOutcome{
			PaymentID: payment.ID,
			Invoice:   invoiceRef,
			Amount:    payment.Amount,
			Status:    PaymentInvoiceNotFound,
			Detail:    fmt.Sprintf("invoice %s not found", invoiceRef),
		}
	}

	kind, diff := money.Compare(payment.Amount, invoice.GrandTotal, p.config.AmountTolerancePercent)
	if !kind.Matched() {
		return PaymentOutcome{
			PaymentID: payment.ID,
			Invoice:   invoiceRef,
			Amount:    payment.Amount,
			Status:    PaymentAmountMismatch,
			Detail: fmt.Sprintf("payment amount %s doesn't match invoice %s (diff: %s)",
				payment.Amount.StringFixed(2), invoice.GrandTotal.StringFixed(2), diff.StringFixed(2)),
		}
	}

	postingID, err := p.ledger.CreatePaymentPosting(ctx, PaymentPosting{
		Invoice:           invoiceRef,
		Amount:            payment.Amount,
		Date:              tx.Date,
		ReferenceNo:       payment.ID,
		ModeOfPayment:     "Mollie",
		SourceAccount:     p.config.ClearingAccount,
		BankTransaction:   tx.ID,
		ProviderPaymentID: payment.ID,
		SettlementID:      settlement.ID,
		Submit:            p.permissions.HasPermission("Payment Entry", "submit"),
	})
	if err != nil {
		status := PaymentError
		if IsValidation(err) {
			status = PaymentValidationError
		}
		p.logger.Error("Error processing settlement payment",
			"payment_id", payment.ID, "error", err.Error(),
			"channel", string(status))
		return PaymentOutcome{PaymentID: payment.ID, Invoice: invoiceRef, Amount: payment.Amount, Status: status, Detail: err.Error()}
	}

	p.processed[payment.ID] = true

	return PaymentOutcome{
		PaymentID: payment.ID,
		Invoice:   invoiceRef,
		Amount:    payment.Amount,
		PostingID: postingID,
		Status:    PaymentSuccess,
		Detail:    string(kind),
	}
}

// isPaymentProcessed checks the in-process cache first, then the
// ledger. A ledger hit back-fills the cache.
func (p *SettlementProcessor) isPaymentProcessed(ctx context.Context, paymentID string) (bool, error) {
	if p.processed[paymentID] {
		return true, nil
	}

	exists, err := p.ledger.PostingExistsForPayment(ctx, paymentID)
	if err != nil {
		return false, fmt.Errorf("checking posting for payment %s: %w", paymentID, err)
	}
	if exists {
		p.processed[paymentID] = true
	}
	return exists, nil
}

// bookFees creates the balancing entry moving the settlement/payment
// difference between the clearing account and the processing-fees
// account. The sign of the fee decides the direction.
func (p *SettlementProcessor) bookFees(ctx context.Context, tx *banking.BankTransaction, settlement *banking.Settlement, fees decimal.Decimal) error {
	if p.config.ClearingAccount == "" {
		return NewValidationError("cannot book settlement fees, clearing account not configured", nil)
	}

	feeAccount, err := p.ledger.ProcessingFeesAccount(ctx)
	if err != nil {
		return fmt.Errorf("resolving processing fees account: %w", err)
	}

	entry := BalancingEntry{
		Amount: fees.Abs(),
		Date:   tx.Date,
		Note:   fmt.Sprintf("Mollie settlement fees - Settlement %s", settlement.ID),
		Submit: p.permissions.HasPermission("Journal Entry", "submit"),
	}
	if fees.IsPositive() {
		entry.DebitAccount = p.config.ClearingAccount
		entry.CreditAccount = feeAccount
	} else {
		entry.DebitAccount = feeAccount
		entry.CreditAccount = p.config.ClearingAccount
	}

	entryID, err := p.ledger.CreateBalancingEntry(ctx, entry)
	if err != nil {
		return err
	}

	p.logger.Info("Settlement fee entry created",
		"settlement_id", settlement.ID,
		"entry_id", entryID,
		"fees", fees.StringFixed(2))
	return nil
}

// extractInvoiceReference pulls an invoice reference from payment
// metadata first, then from the description.
func extractInvoiceReference(payment *banking.SettlementPayment) string {
	if ref := payment.Metadata["invoice_id"]; ref != "" {
		return ref
	}
	for _, pattern := range invoiceRefPatterns {
		if m := pattern.FindStringSubmatch(payment.Description); m != nil {
			return m[1]
		}
	}
	return ""
}
