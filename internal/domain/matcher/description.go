package matcher

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledgerlink/reconciliation-backend/internal/domain/banking"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/similarity"
)

// descriptionPatterns are the structural tokens SEPA descriptions tend
// to carry, probed in order against the uppercased description.
var descriptionPatterns = []struct {
	re   *regexp.Regexp
	kind string
}{
	{regexp.MustCompile(`INVOICE\s+([A-Z0-9-]+)`), "invoice"},
	{regexp.MustCompile(`MEMBERSHIP\s+([A-Z0-9-]+)`), "membership"},
	{regexp.MustCompile(`MEMBER\s+ID\s*:?\s*([A-Z0-9-]+)`), "member"},
	{regexp.MustCompile(`MANDATE\s*:?\s*([A-Z0-9-]+)`), "mandate"},
}

// DescriptionStrategy matches on textual tokens in the transaction
// description, falling back to fuzzy party-name matching against
// outstanding invoices of the exact transaction amount.
type DescriptionStrategy struct {
	directory Directory
	config    Config
}

// NewDescriptionStrategy creates the description-pattern strategy.
func NewDescriptionStrategy(directory Directory, config Config) *DescriptionStrategy {
	return &DescriptionStrategy{directory: directory, config: config}
}

// Name implements Strategy.
func (s *DescriptionStrategy) Name() string { return "description" }

// TryMatch implements Strategy.
func (s *DescriptionStrategy) TryMatch(ctx context.Context, tx *banking.BankTransaction) (*Candidate, error) {
	description := strings.ToUpper(tx.Description)

	for _, p := range descriptionPatterns {
		m := p.re.FindStringSubmatch(description)
		if m == nil {
			continue
		}
		reference := m[1]

		candidate, err := s.resolveToken(ctx, tx, p.kind, reference)
		if err != nil {
			return nil, err
		}
		if candidate != nil {
			return candidate, nil
		}
	}

	return s.fuzzyNameMatch(ctx, tx)
}

// resolveToken turns an extracted description token into a candidate,
// or nil when the token does not resolve to an open invoice.
func (s *DescriptionStrategy) resolveToken(ctx context.Context, tx *banking.BankTransaction, kind, reference string) (*Candidate, error) {
	switch kind {
	case "invoice":
		exists, err := s.directory.InvoiceExists(ctx, reference)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, nil
		}
		return &Candidate{
			Type:       CandidateInvoice,
			Reference:  reference,
			Confidence: 0.9,
			Reason:     "Invoice number found in description",
		}, nil

	case "membership":
		invoice, err := s.directory.OpenInvoiceForMembership(ctx, reference)
		if err != nil {
			return nil, err
		}
		if invoice == "" {
			return nil, nil
		}
		return &Candidate{
			Type:       CandidateInvoice,
			Reference:  invoice,
			Confidence: 0.85,
			Reason:     fmt.Sprintf("Membership %s found in description", reference),
		}, nil

	case "member":
		invoices, err := s.directory.OpenInvoicesForMember(ctx, reference, tx.Deposit)
		if err != nil {
			return nil, err
		}
		if len(invoices) == 0 {
			return nil, nil
		}
		return &Candidate{
			Type:       CandidateInvoice,
			Reference:  invoices[0],
			Confidence: 0.8,
			Reason:     fmt.Sprintf("Member ID %s found in description", reference),
		}, nil

	case "mandate":
		member, err := s.directory.MemberForMandate(ctx, reference)
		if err != nil {
			return nil, err
		}
		if member == "" {
			return nil, nil
		}
		invoices, err := s.directory.OpenInvoicesForMember(ctx, member, tx.Deposit)
		if err != nil {
			return nil, err
		}
		if len(invoices) == 0 {
			return nil, nil
		}
		return &Candidate{
			Type:       CandidateInvoice,
			Reference:  invoices[0],
			Confidence: 0.8,
			Reason:     fmt.Sprintf("Mandate %s found in description", reference),
		}, nil
	}

	return nil, nil
}

// fuzzyNameMatch scores party names against the description for all
// parties with an outstanding invoice of exactly the deposited amount.
// A fuzzy match is never reported as more confident than a structural
// one, so the raw score is scaled down by 0.9.
func (s *DescriptionStrategy) fuzzyNameMatch(ctx context.Context, tx *banking.BankTransaction) (*Candidate, error) {
	if tx.Deposit.IsZero() {
		return nil, nil
	}

	parties, err := s.directory.PartiesWithOutstandingInvoice(ctx, tx.Deposit)
	if err != nil {
		return nil, err
	}

	var best *PartyInvoice
	bestScore := 0.0
	for i := range parties {
		score := similarity.Ratio(parties[i].FullName, tx.Description)
		if score > bestScore && score > s.config.FuzzyMinScore {
			bestScore = score
			best = &parties[i]
		}
	}

	if best == nil {
		return nil, nil
	}

	return &Candidate{
		Type:       CandidateInvoice,
		Reference:  best.Invoice,
		Confidence: bestScore * 0.9,
		Reason:     fmt.Sprintf("Name match: %s (score: %.2f)", best.FullName, bestScore),
	}, nil
}
