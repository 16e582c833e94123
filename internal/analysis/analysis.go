// Package analysis derives contract-level indicators from retrieval scores,
// red flags and raw text.
package analysis

import (
	"math"
	"regexp"
	"strings"

	"contractrag/internal/domain"
	"contractrag/internal/textutil"
)

// SimilarityConfidence estimates answer confidence from cosine similarities
// given in rank order and the answer text. The result is in [0.05,0.95]
// rounded to two decimals; no similarities yields exactly 0.1.
func SimilarityConfidence(similarities []float64, answer string) float64 {
	if len(similarities) == 0 {
		return 0.1
	}
	top := similarities[:min(3, len(similarities))]
	var sum float64
	for _, s := range top {
		sum += (s + 1) / 2
	}
	base := sum / float64(len(top))
	length := math.Min(1, float64(textutil.Len(answer))/180)
	c := base*0.7 + length*0.3
	return round2(math.Max(0.05, math.Min(0.95, c)))
}

// AnswerConfidence scores free-form model answers on wording alone.
func AnswerConfidence(answer string) float64 {
	low := strings.ToLower(answer)
	score := 0.5
	if containsAny(low, "cannot", "not provided", "unsure", "uncertain") {
		score -= 0.2
	}
	if textutil.Len(answer) < 400 {
		score += 0.1
	}
	if containsAny(low, "must", "shall", "requires") {
		score += 0.1
	}
	return round2(math.Max(0.05, math.Min(0.95, score)))
}

// Severity buckets a red flag by confidence.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// SeverityOf maps a confidence in [0,100] to a severity.
func SeverityOf(confidence float64) Severity {
	switch {
	case confidence >= 75:
		return SeverityHigh
	case confidence >= 50:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func (s Severity) weight() float64 {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

// Risk is a contract-level risk score.
type Risk struct {
	Index int    `json:"index"`
	Level string `json:"level"`
}

// RiskIndex weighs flags by severity and damps the total for long documents
// so that a long contract is not penalized for its length alone.
func RiskIndex(flags []domain.RedFlagResult, totalChars int) Risk {
	var raw float64
	for _, f := range flags {
		raw += SeverityOf(f.Confidence).weight()
	}
	denom := math.Max(1, math.Log10(float64(max(50, totalChars))/1000+1))
	scaled := math.Min(100, raw/denom*14)
	level := "High"
	switch {
	case scaled < 26:
		level = "Low"
	case scaled < 56:
		level = "Moderate"
	case scaled < 76:
		level = "Elevated"
	}
	return Risk{Index: int(math.RoundToEven(scaled)), Level: level}
}

// Entities are headline contract facts; empty fields were not found.
type Entities struct {
	EffectiveDate string `json:"effective_date,omitempty"`
	Parties       string `json:"parties,omitempty"`
	GoverningLaw  string `json:"governing_law,omitempty"`
	TermLength    string `json:"term_length,omitempty"`
}

var (
	effectiveDateRe = regexp.MustCompile(`(Effective Date|Commencement Date)[^\n]{0,40}?\b(on|:)?\s*([A-Z][a-z]+\s+\d{1,2},\s+\d{4})`)
	partiesRe       = regexp.MustCompile(`(?i)This (Agreement|Contract|Lease) (is made|made and entered) (?:on[^\n]{0,60}? between|between)?\s*(.+?)\s+(and|&)\s+(.+?)\.`)
	governingLawRe  = regexp.MustCompile(`(?i)governed by the laws? of ([A-Z][A-Za-z &]+)`)
	termLengthRe    = regexp.MustCompile(`(?i)(initial term|term of this (agreement|contract))[^\n]{0,100}? (\d+\s+(months?|years?))`)
)

// ExtractEntities pulls the effective date, parties, governing law and term
// length out of the document text.
func ExtractEntities(text string) Entities {
	var e Entities
	if m := effectiveDateRe.FindStringSubmatch(text); m != nil {
		e.EffectiveDate = m[3]
	}
	if m := partiesRe.FindStringSubmatch(text); m != nil {
		e.Parties = strings.TrimSpace(m[3]) + " & " + strings.TrimSpace(m[5])
	}
	if m := governingLawRe.FindStringSubmatch(text); m != nil {
		e.GoverningLaw = strings.TrimSpace(m[1])
	}
	if m := termLengthRe.FindStringSubmatch(text); m != nil {
		e.TermLength = m[3]
	}
	return e
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
