package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizer_StringInputs(t *testing.T) {
	normalizer := NewNormalizer(nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain number", "123.45", "123.45"},
		{"currency symbol", "€ 123.45", "123.45"},
		{"thousands separator", "1 234.56", "1234.56"},
		{"negative", "-42.00", "-42.00"},
		{"whitespace", "  99.95  ", "99.95"},
		{"empty", "", "0.00"},
		{"garbage", "n/a", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizer.Normalize(tt.input)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestNormalizer_NumericInputs(t *testing.T) {
	normalizer := NewNormalizer(nil)

	assert.Equal(t, "100.00", normalizer.Normalize(100).StringFixed(2))
	assert.Equal(t, "100.00", normalizer.Normalize(int64(100)).StringFixed(2))
	assert.Equal(t, "99.99", normalizer.Normalize(99.99).StringFixed(2))
	assert.Equal(t, "0.00", normalizer.Normalize(nil).StringFixed(2))

	d := decimal.RequireFromString("12.34")
	assert.True(t, d.Equal(normalizer.Normalize(d)))
}

func TestCompare_Exact(t *testing.T) {
	// Arrange
	actual := decimal.RequireFromString("100.00")
	expected := decimal.RequireFromString("100.00")

	// Act
	kind, diff := Compare(actual, expected, 0.1)

	// Assert
	assert.Equal(t, MatchExact, kind)
	assert.True(t, diff.IsZero())
	assert.True(t, kind.Matched())
}

func TestCompare_WithinTolerance(t *testing.T) {
	// 0.1% of 100.05 is just over 0.10, so a 5 cent difference matches
	actual := decimal.RequireFromString("100.00")
	expected := decimal.RequireFromString("100.05")

	kind, diff := Compare(actual, expected, 0.1)

	assert.Equal(t, MatchWithinTolerance, kind)
	assert.Equal(t, "0.05", diff.StringFixed(2))
	assert.True(t, kind.Matched())
}

func TestCompare_OutsideTolerance(t *testing.T) {
	actual := decimal.RequireFromString("100.00")
	expected := decimal.RequireFromString("102.00")

	kind, diff := Compare(actual, expected, 0.1)

	assert.Equal(t, MatchOutsideTolerance, kind)
	assert.Equal(t, "2.00", diff.StringFixed(2))
	assert.False(t, kind.Matched())
}

func TestCompare_FloatArtifactsStayExact(t *testing.T) {
	// 0.1 + 0.2 style artifacts must not appear with decimal arithmetic
	a := decimal.RequireFromString("0.1").Add(decimal.RequireFromString("0.2"))
	b := decimal.RequireFromString("0.3")

	kind, _ := Compare(a, b, 0)

	assert.Equal(t, MatchExact, kind)
}
