package vectorstore

import (
	"math"
	"regexp"
	"strings"

	"contractrag/internal/domain"
)

var unicodeWordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// lexicalSearch ranks chunks by the Ochiai coefficient of their word sets
// against the query's word set.
func lexicalSearch(chunks []domain.Chunk, query string, k int) []domain.SearchResult {
	qset := toTokenSet(query)
	scores := make([]float64, len(chunks))
	for i, ch := range chunks {
		scores[i] = overlapOchiai(qset, ch.Content)
	}
	return topK(chunks, scores, k)
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func overlapOchiai(qset map[string]struct{}, text string) float64 {
	seen := toTokenSet(text)
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	inter := 0
	for t := range seen {
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	// |A∩B| / sqrt(|A||B|)
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(seen)))
}
