package matcher

import (
	"context"
	"regexp"

	"github.com/ledgerlink/reconciliation-backend/internal/domain/banking"
)

// batchRefPattern extracts the batch token from descriptions like
// "SEPA COLLECTION BATCH-DDB2024-001".
var batchRefPattern = regexp.MustCompile(`BATCH-([A-Z0-9-]+)`)

// BatchReferenceStrategy matches a transaction against a direct-debit
// batch referenced in the description. The structural reference plus an
// exact total-amount check makes this the most trustworthy strategy.
type BatchReferenceStrategy struct {
	directory Directory
}

// NewBatchReferenceStrategy creates the batch-reference strategy.
func NewBatchReferenceStrategy(directory Directory) *BatchReferenceStrategy {
	return &BatchReferenceStrategy{directory: directory}
}

// Name implements Strategy.
func (s *BatchReferenceStrategy) Name() string { return "batch_reference" }

// TryMatch implements Strategy.
func (s *BatchReferenceStrategy) TryMatch(ctx context.Context, tx *banking.BankTransaction) (*Candidate, error) {
	m := batchRefPattern.FindStringSubmatch(tx.Description)
	if m == nil {
		return nil, nil
	}

	batch, err := s.directory.BatchByNameToken(ctx, m[1])
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, nil
	}

	// The batch total must match the deposited amount exactly; a batch
	// reference with a different amount is a partial collection and
	// needs manual review.
	if !tx.Deposit.Equal(batch.TotalAmount) {
		return nil, nil
	}

	return &Candidate{
		Type:       CandidateBatch,
		Reference:  batch.ID,
		Confidence: 1.0,
		Reason:     "Exact batch reference match",
	}, nil
}
