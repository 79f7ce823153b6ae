// Package money provides exact decimal handling for monetary values.
//
// Every amount comparison in the reconciliation engine goes through
// Compare. No strategy or processor compares currency values with float
// arithmetic of its own; bank feeds and settlement APIs deliver amounts
// in enough shapes (floats, strings with currency symbols, nested JSON
// objects) that a single normalization point is the only way to keep
// comparisons honest.
package money

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MatchKind classifies the outcome of a tolerance-aware comparison.
type MatchKind string

const (
	MatchExact            MatchKind = "exact"
	MatchWithinTolerance  MatchKind = "within_tolerance"
	MatchOutsideTolerance MatchKind = "outside_tolerance"
)

// Matched reports whether the comparison outcome counts as a match.
func (k MatchKind) Matched() bool {
	return k == MatchExact || k == MatchWithinTolerance
}

// currencyJunk matches everything that is not part of a plain decimal
// number, e.g. currency symbols, spaces and thousands separators.
var currencyJunk = regexp.MustCompile(`[^0-9.\-]`)

// Normalizer converts heterogeneous amount inputs into exact decimals.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a normalizer. A nil logger falls back to the
// default slog logger.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize converts a value of any supported type into an exact
// decimal. Nil, empty and unparseable inputs normalize to zero; the
// anomaly is logged rather than returned as an error, so a single bad
// amount never aborts a reconciliation run.
func (n *Normalizer) Normalize(value any) decimal.Decimal {
	switch v := value.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return v
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case float64:
		return decimal.NewFromFloat(v)
	case float32:
		return decimal.NewFromFloat32(v)
	case string:
		cleaned := currencyJunk.ReplaceAllString(strings.TrimSpace(v), "")
		if cleaned == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			n.logger.Warn("Unparseable amount normalized to zero",
				"value", v, "error", err.Error())
			return decimal.Zero
		}
		return d
	default:
		n.logger.Warn("Unexpected amount type normalized to zero",
			"value", v)
		return decimal.Zero
	}
}

// Compare compares an actual amount against an expected amount with a
// percentage tolerance. Exact equality short-circuits to MatchExact;
// otherwise the tolerance window is expected * tolerancePercent / 100
// and the absolute difference is checked against it. The absolute
// difference is returned alongside the kind for reporting.
func Compare(actual, expected decimal.Decimal, tolerancePercent float64) (MatchKind, decimal.Decimal) {
	if actual.Equal(expected) {
		return MatchExact, decimal.Zero
	}

	difference := actual.Sub(expected).Abs()
	tolerance := expected.Mul(decimal.NewFromFloat(tolerancePercent / 100)).Abs()

	if difference.LessThanOrEqual(tolerance) {
		return MatchWithinTolerance, difference
	}
	return MatchOutsideTolerance, difference
}
