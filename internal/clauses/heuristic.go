package clauses

import (
	"cmp"
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"contractrag/internal/domain"
	"contractrag/internal/textutil"
)

const (
	minUnit         = 30
	maxUnit         = 450
	minRelaxedUnit  = 20
	maxRelaxedUnit  = 500
	minScore        = 3
	perGroup        = 2
	snippetLen      = 350
	explanationLen  = 180
	relaxedExplLen  = 160
	maxReplacements = 5
)

// definitionNoise matches "Heading: means ..." style boilerplate.
var definitionNoise = regexp.MustCompile(`^[A-Z][A-Za-z0-9\s]{0,40}:\s*(means|the)`)

type scored struct {
	score int
	text  string
}

type groupKey struct {
	clauseType string
	page       int
}

// Heuristic scores sentence units against keyword evidence. When the strict
// pass finds nothing, a relaxed pass accepts any unit with one keyword hit.
// The result is not yet deduplicated or sorted.
func Heuristic(chunks []domain.Chunk) []domain.ClauseResult {
	groups := make(map[groupKey][]scored)
	var order []groupKey
	for _, ch := range chunks {
		if strings.Count(ch.Content, "\uFFFD") > maxReplacements {
			continue
		}
		for _, unit := range textutil.SplitUnits(ch.Content) {
			unit = strings.TrimSpace(unit)
			if n := textutil.Len(unit); n < minUnit || n > maxUnit {
				continue
			}
			if definitionNoise.MatchString(unit) {
				continue
			}
			low := strings.ToLower(unit)
			for _, c := range categories {
				sc := c.score(low)
				if sc < minScore {
					continue
				}
				k := groupKey{c.name, ch.Page}
				if _, ok := groups[k]; !ok {
					order = append(order, k)
				}
				groups[k] = append(groups[k], scored{sc, unit})
			}
		}
	}

	var out []domain.ClauseResult
	seen := make(map[string]struct{})
	for _, k := range order {
		list := groups[k]
		slices.SortStableFunc(list, func(a, b scored) int {
			if c := cmp.Compare(b.score, a.score); c != 0 {
				return c
			}
			return cmp.Compare(textutil.Len(a.text), textutil.Len(b.text))
		})
		for _, s := range list[:min(perGroup, len(list))] {
			snippet := textutil.Truncate(s.text, snippetLen)
			h := digest(k.clauseType + strconv.Itoa(k.page) + strings.ToLower(snippet))
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
			out = append(out, domain.ClauseResult{
				ClauseType:  k.clauseType,
				Explanation: firstSentence(snippet, explanationLen),
				Snippet:     snippet,
				Page:        k.page,
				Importance:  upgrade(k.clauseType, s.score),
			})
		}
	}
	if len(out) == 0 {
		out = relaxed(chunks)
	}
	return out
}

func relaxed(chunks []domain.Chunk) []domain.ClauseResult {
	var out []domain.ClauseResult
	for _, ch := range chunks {
		for _, unit := range textutil.SplitUnits(ch.Content) {
			unit = strings.TrimSpace(unit)
			if n := textutil.Len(unit); n < minRelaxedUnit || n > maxRelaxedUnit {
				continue
			}
			low := strings.ToLower(unit)
			for _, c := range categories {
				if c.hits(low) == 0 {
					continue
				}
				out = append(out, domain.ClauseResult{
					ClauseType:  c.name,
					Explanation: firstSentence(unit, relaxedExplLen),
					Snippet:     textutil.Truncate(unit, snippetLen),
					Page:        ch.Page,
					Importance:  DefaultImportance(c.name),
				})
				break
			}
		}
	}
	return out
}

func upgrade(clauseType string, score int) domain.Importance {
	imp := DefaultImportance(clauseType)
	switch {
	case (clauseType == "Indemnity" || clauseType == "Liability") && score >= 5:
		return domain.ImportanceHigh
	case score >= 6 && imp == domain.ImportanceLow:
		return domain.ImportanceMedium
	}
	return imp
}

func firstSentence(s string, n int) string {
	head, _, _ := strings.Cut(s, ". ")
	return textutil.Truncate(head, n)
}

func digest(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
