package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio_Identical(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("J. Smith", "J. Smith"))
}

func TestRatio_CaseInsensitive(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("j. smith", "J. SMITH"))
}

func TestRatio_BothEmpty(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("", ""))
}

func TestRatio_OneEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Ratio("J. Smith", ""))
}

func TestRatio_CloseNames(t *testing.T) {
	// "J. SMITH" vs "J. SMIT": 7 matched chars over 15 total
	score := Ratio("J. Smith", "J. Smit")
	assert.InDelta(t, 2.0*7.0/15.0, score, 0.001)
}

func TestRatio_Unrelated(t *testing.T) {
	score := Ratio("J. Smith", "XYZ Corp")
	assert.Less(t, score, 0.4)
}

func TestRatio_NameInsideLongerText(t *testing.T) {
	// Longer surrounding text dilutes the score; callers that match
	// names inside full descriptions need to account for that.
	short := Ratio("J. Smith", "J. Smith")
	long := Ratio("J. Smith", "Payment from J. Smith")
	assert.Greater(t, short, long)
	assert.Greater(t, long, 0.5)
}
