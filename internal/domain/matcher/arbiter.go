package matcher

import (
	"context"
	"log/slog"

	"github.com/ledgerlink/reconciliation-backend/internal/domain/banking"
)

// Arbiter runs all strategies against a transaction and selects the
// best candidate. Strategies are held in priority order: at equal
// confidence the earlier strategy wins, since structural matches are
// more trustworthy than text heuristics.
type Arbiter struct {
	strategies []Strategy
	config     Config
	logger     *slog.Logger
}

// NewArbiter creates an arbiter over the given strategies. The slice
// order is the tie-break priority.
func NewArbiter(strategies []Strategy, config Config, logger *slog.Logger) *Arbiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Arbiter{strategies: strategies, config: config, logger: logger}
}

// Match returns the accepted candidate for the transaction, or nil when
// no candidate reaches the acceptance threshold. A strategy error is
// logged and treated as "no candidate from that strategy"; the other
// strategies still run.
//
// An ambiguous CandidateMultiple is returned even below the threshold:
// the executor never posts it, but it annotates the transaction for
// manual review, which a silent rejection would suppress.
func (a *Arbiter) Match(ctx context.Context, tx *banking.BankTransaction) *Candidate {
	var best *Candidate
	var ambiguous *Candidate

	for _, strategy := range a.strategies {
		candidate, err := strategy.TryMatch(ctx, tx)
		if err != nil {
			a.logger.Warn("Matching strategy failed",
				"strategy", strategy.Name(),
				"transaction_id", tx.ID,
				"error", err.Error())
			continue
		}
		if candidate == nil {
			continue
		}

		a.logger.Debug("Strategy produced candidate",
			"strategy", strategy.Name(),
			"transaction_id", tx.ID,
			"type", string(candidate.Type),
			"confidence", candidate.Confidence)

		if candidate.Type == CandidateMultiple && ambiguous == nil {
			ambiguous = candidate
		}

		// Strictly greater: ties go to the earlier, higher-priority
		// strategy.
		if best == nil || candidate.Confidence > best.Confidence {
			best = candidate
		}
	}

	if best != nil && best.Confidence >= a.config.AcceptanceThreshold {
		return best
	}

	if best != nil {
		a.logger.Debug("Best candidate below acceptance threshold",
			"transaction_id", tx.ID,
			"confidence", best.Confidence,
			"threshold", a.config.AcceptanceThreshold)
	}

	return ambiguous
}
