package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"contractrag/internal/domain"
)

func TestSimilarityConfidence(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.1, SimilarityConfidence(nil, "any text"))
	assert.Equal(t, 0.1, SimilarityConfidence([]float64{}, "any text"))

	// (0.8+1)/2=0.9, (0.6+1)/2=0.8, (0.4+1)/2=0.7; mean 0.8; the fourth score is ignored.
	got := SimilarityConfidence([]float64{0.8, 0.6, 0.4, -1}, strings.Repeat("a", 90))
	assert.InDelta(t, 0.8*0.7+0.5*0.3, got, 1e-9)

	assert.Equal(t, 0.95, SimilarityConfidence([]float64{1, 1, 1}, strings.Repeat("a", 500)))
	assert.Equal(t, 0.05, SimilarityConfidence([]float64{-1}, ""))
}

func TestAnswerConfidence(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.7, AnswerConfidence("The customer shall pay within 30 days."))
	assert.Equal(t, 0.4, AnswerConfidence("The contract is uncertain on this point."))
}

func TestRiskIndex(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Risk{Index: 0, Level: "Low"}, RiskIndex(nil, 1000))

	flags := []domain.RedFlagResult{{Confidence: 80}, {Confidence: 60}, {Confidence: 10}}
	// raw 3+2+1=6, short document so denom is 1: 6*14=84.
	assert.Equal(t, Risk{Index: 84, Level: "High"}, RiskIndex(flags, 500))

	// log10(99000/1000+1)=2 halves the score.
	assert.Equal(t, Risk{Index: 42, Level: "Moderate"}, RiskIndex(flags, 99000))

	many := make([]domain.RedFlagResult, 20)
	for i := range many {
		many[i].Confidence = 90
	}
	assert.Equal(t, 100, RiskIndex(many, 0).Index)
}

func TestSeverityOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, SeverityHigh, SeverityOf(75))
	assert.Equal(t, SeverityMedium, SeverityOf(50))
	assert.Equal(t, SeverityLow, SeverityOf(49.9))
}

func TestExtractEntities(t *testing.T) {
	t.Parallel()
	text := "This Agreement is made between Acme Corp and Beta LLC. The Effective Date: March 3, 2024.\n" +
		"This Agreement shall be governed by the laws of England and Wales.\n" +
		"The initial term shall be 24 months from the Effective Date."
	e := ExtractEntities(text)
	assert.Equal(t, "Acme Corp & Beta LLC", e.Parties)
	assert.Equal(t, "March 3, 2024", e.EffectiveDate)
	assert.Equal(t, "England and Wales", e.GoverningLaw)
	assert.Equal(t, "24 months", e.TermLength)

	assert.Equal(t, Entities{}, ExtractEntities("nothing to see"))
}
