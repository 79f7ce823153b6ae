package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledgerlink/reconciliation-backend/internal/domain/banking"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/money"
)

// settlementKeywords gate settlement matching: only transactions whose
// description mentions the provider are candidates.
var settlementKeywords = []string{"mollie", "settlement", "payout"}

// SettlementStrategy matches payout transactions on the provider bank
// account against settlements fetched from the payment service
// provider.
type SettlementStrategy struct {
	client SettlementsClient
	config Config
	logger *slog.Logger
}

// NewSettlementStrategy creates the settlement strategy.
func NewSettlementStrategy(client SettlementsClient, config Config, logger *slog.Logger) *SettlementStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettlementStrategy{client: client, config: config, logger: logger}
}

// Name implements Strategy.
func (s *SettlementStrategy) Name() string { return "mollie_settlement" }

// TryMatch implements Strategy.
func (s *SettlementStrategy) TryMatch(ctx context.Context, tx *banking.BankTransaction) (*Candidate, error) {
	if s.client == nil || s.config.ProviderBankAccount == "" {
		return nil, nil
	}
	if tx.BankAccount != s.config.ProviderBankAccount {
		return nil, nil
	}
	if tx.Deposit.IsZero() {
		return nil, nil
	}

	description := strings.ToLower(tx.Description)
	keyworded := false
	for _, kw := range settlementKeywords {
		if strings.Contains(description, kw) {
			keyworded = true
			break
		}
	}
	if !keyworded {
		return nil, nil
	}

	window := s.config.SettlementDateWindowDays
	settlements, err := s.client.SettlementsByDateRange(ctx,
		tx.Date.AddDate(0, 0, -window), tx.Date.AddDate(0, 0, window))
	if err != nil {
		// A failed settlement fetch means no candidates from this
		// strategy; the other strategies still get their turn.
		s.logger.Warn("Settlement fetch failed, skipping settlement matching",
			"transaction_id", tx.ID, "error", err.Error())
		return nil, nil
	}

	for i := range settlements {
		settlement := settlements[i]
		kind, diff := money.Compare(tx.Deposit, settlement.Amount, s.config.SettlementTolerancePercent)
		if !kind.Matched() {
			continue
		}

		confidence := 0.92
		if kind == money.MatchExact {
			confidence = 0.98
		}

		return &Candidate{
			Type:       CandidateSettlement,
			Reference:  settlement.ID,
			Confidence: confidence,
			Reason: fmt.Sprintf("Mollie settlement %s %s (diff: %s)",
				settlement.ID, kind, diff.StringFixed(2)),
			Settlement: &settlement,
		}, nil
	}

	return nil, nil
}
