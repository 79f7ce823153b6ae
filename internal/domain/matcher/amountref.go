package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledgerlink/reconciliation-backend/internal/domain/banking"
)

// activeBatchStatuses are the batch states a collection can credibly
// originate from.
var activeBatchStatuses = []banking.BatchStatus{banking.BatchSubmitted, banking.BatchProcessed}

// AmountReferenceStrategy matches a transaction against direct-debit
// batch lines by amount equality and reference-number equality, bounded
// to batches collecting near the transaction date.
type AmountReferenceStrategy struct {
	directory Directory
	config    Config
}

// NewAmountReferenceStrategy creates the amount+reference strategy.
func NewAmountReferenceStrategy(directory Directory, config Config) *AmountReferenceStrategy {
	return &AmountReferenceStrategy{directory: directory, config: config}
}

// Name implements Strategy.
func (s *AmountReferenceStrategy) Name() string { return "amount_reference" }

// TryMatch implements Strategy.
func (s *AmountReferenceStrategy) TryMatch(ctx context.Context, tx *banking.BankTransaction) (*Candidate, error) {
	reference := strings.TrimSpace(tx.ReferenceNumber)
	if tx.Deposit.IsZero() || reference == "" {
		return nil, nil
	}

	window := s.config.BatchDateWindowDays
	hits, err := s.directory.FindBatchLines(ctx, BatchLineQuery{
		Amount:     tx.Deposit,
		Reference:  reference,
		Statuses:   activeBatchStatuses,
		WindowFrom: tx.Date.AddDate(0, 0, -window),
		WindowTo:   tx.Date.AddDate(0, 0, window),
		Limit:      10,
	})
	if err != nil {
		return nil, err
	}

	switch len(hits) {
	case 0:
		return nil, nil
	case 1:
		return &Candidate{
			Type:       CandidateInvoice,
			Reference:  hits[0].Invoice,
			Batch:      hits[0].Batch,
			Confidence: 0.95,
			Reason:     fmt.Sprintf("Amount and reference match for %s", hits[0].PartyName),
		}, nil
	default:
		// Multiple lines share the amount and reference; deciding which
		// invoice was paid needs a human.
		return &Candidate{
			Type:       CandidateMultiple,
			Matches:    hits,
			Confidence: 0.7,
			Reason: fmt.Sprintf("Multiple invoices match amount %s and reference %s",
				tx.Deposit.StringFixed(2), reference),
		}, nil
	}
}
