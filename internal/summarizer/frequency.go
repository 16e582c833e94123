package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"contractrag/internal/textutil"
)

// frequencyRanker ranks sentences by normalized word frequency with
// stopwords filtered. It backs the heuristic summary when no sentence carries
// a category keyword.
type frequencyRanker struct {
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

func newFrequencyRanker() *frequencyRanker {
	return &frequencyRanker{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}
}

// top returns up to n sentences in document order.
func (r *frequencyRanker) top(text string, n int) []string {
	var sentences []string
	for _, s := range textutil.SplitSentences(text) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 || n <= 0 {
		return nil
	}
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range r.tokens(sent) {
			if _, ok := r.stopwords[tok]; !ok {
				freq[tok]++
			}
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := r.tokens(sent)
		score := 0.0
		for _, tok := range toks {
			score += freq[tok]
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	n = min(n, len(scores))
	selected := make([]int, n)
	for i := range n {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, n)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return out
}

func (r *frequencyRanker) tokens(text string) []string {
	return r.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"shall", "may", "any", "all", "each", "party", "parties", "agreement",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
