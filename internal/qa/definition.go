package qa

import (
	"cmp"
	"context"
	"regexp"
	"slices"
	"strings"

	"contractrag/internal/domain"
	"contractrag/internal/llm"
	"contractrag/internal/prompts"
	"contractrag/internal/textutil"
)

var (
	definitionQuestion = regexp.MustCompile(`^(what\s+is|define|meaning\s+of)\s+([\w\-&/\s.]+?)\?*$`)
	leadingArticle     = regexp.MustCompile(`^(the|a|an)\s+`)
	definitionCue      = regexp.MustCompile(`\b(is|means|refers to|shall mean)\b`)
	meansWord          = regexp.MustCompile(`(?i)\bmeans\b`)

	// Registration and address boilerplate. The first two stop before the
	// closing '.' or ';', which is kept.
	incorporatedClause = regexp.MustCompile(`(?i),?\s*incorporated and registered in.*?\bwith company number\b.*?[.;]`)
	registeredOffice   = regexp.MustCompile(`(?i),?\s*whose registered office is at.*?[.;]`)
	registrationNumber = regexp.MustCompile(`(?i)\b(company number|registration number)\s+[A-Z0-9]+`)
)

var acronyms = map[string][]string{
	"saas": {"software as a service", "saas"},
	"sla":  {"service level agreement", "sla"},
	"nda":  {"non-disclosure agreement", "nda"},
}

const (
	minDefinitionSentence = 10
	maxDefinitionSentence = 420
	longDefinition        = 260
	maxDefinition         = 320
)

// definitionTerm returns the term asked about by "what is X", "define X" or
// "meaning of X" questions.
func definitionTerm(question string) (string, bool) {
	m := definitionQuestion.FindStringSubmatch(strings.ToLower(strings.TrimSpace(question)))
	if m == nil {
		return "", false
	}
	term := leadingArticle.ReplaceAllString(strings.TrimSpace(m[2]), "")
	return term, term != ""
}

type definitionHit struct {
	score    int
	page     int
	sentence string
}

// define answers a definition question from the best definitional sentence
// in the corpus. ok is false when no sentence qualifies.
func (e *Engine) define(ctx context.Context, term string) (domain.QAResult, bool) {
	targets := append([]string{term}, acronyms[term]...)
	var hits []definitionHit
	for _, ch := range e.retriever.Chunks() {
		for _, s := range textutil.SplitSentences(ch.Content) {
			s = strings.TrimSpace(s)
			if n := textutil.Len(s); n <= minDefinitionSentence || n >= maxDefinitionSentence {
				continue
			}
			low := strings.ToLower(s)
			score := 0
			for _, t := range targets {
				if strings.Contains(low, t) {
					score += 4
				}
			}
			if score == 0 || !definitionCue.MatchString(low) {
				continue
			}
			if strings.Contains(low, "means") {
				score += 3
			}
			if strings.Contains(low, "refers to") {
				score += 2
			}
			if strings.Contains(low, "is") {
				score++
			}
			hits = append(hits, definitionHit{score, ch.Page, s})
		}
	}
	if len(hits) == 0 {
		return domain.QAResult{}, false
	}
	slices.SortStableFunc(hits, func(a, b definitionHit) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(textutil.Len(a.sentence), textutil.Len(b.sentence))
	})
	top := hits[0]
	citations := []domain.Citation{{Page: top.page, Snippet: textutil.Truncate(top.sentence, citationLen)}}

	if e.llm != nil && e.llm.Available() && e.prompts != nil {
		prompt, err := e.prompts.Render(prompts.Definition, map[string]string{"term": term, "sentence": top.sentence})
		if err == nil {
			refined, err := e.llm.Generate(ctx, prompt)
			refined = strings.TrimSpace(refined)
			if err == nil && !llm.IsDegraded(refined) && textutil.Len(refined) > 15 && textutil.Len(refined) < 400 {
				return domain.QAResult{Answer: refined, Citations: citations}, true
			}
			if err != nil {
				e.logger.Warn("definition refinement failed", "error", err)
			}
		}
	}

	concise := conciseDefinition(top.sentence)
	if concise == "" {
		concise = top.sentence
	}
	return domain.QAResult{Answer: concise, Citations: citations}, true
}

// conciseDefinition strips registration boilerplate and shortens long
// definitions to the clause around "means".
func conciseDefinition(s string) string {
	keepTerminator := func(m string) string { return m[len(m)-1:] }
	s = incorporatedClause.ReplaceAllStringFunc(s, keepTerminator)
	s = registeredOffice.ReplaceAllStringFunc(s, keepTerminator)
	s = registrationNumber.ReplaceAllString(s, "")

	if textutil.Len(s) > longDefinition && strings.Contains(strings.ToLower(s), " means ") {
		parts := meansWord.Split(s, -1)
		if len(parts) >= 2 {
			pre, _, _ := strings.Cut(strings.TrimSpace(parts[0]), ",")
			post, _, _ := strings.Cut(parts[1], ".")
			s = pre + " means" + post + "."
		}
	}
	if textutil.Len(s) > maxDefinition {
		s = strings.TrimRight(textutil.Truncate(s, maxDefinition-3), ",; ") + "..."
	}
	return strings.TrimSpace(s)
}
