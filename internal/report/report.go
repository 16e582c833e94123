// Package report renders an analysis run as JSON or Markdown.
package report

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"contractrag/internal/analysis"
	"contractrag/internal/domain"
	"contractrag/internal/service"
)

// Format names an output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts "json", "markdown" or "md".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// Meta describes the run that produced a report.
type Meta struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Embedder    string            `json:"embedder"`
	Model       string            `json:"model"`
	Chunks      int               `json:"chunks"`
	Risk        analysis.Risk     `json:"risk"`
	Entities    analysis.Entities `json:"entities"`
}

// Document is a per-file entry.
type Document struct {
	Name  string `json:"name"`
	Pages int    `json:"pages"`
}

// Summary is one document's bullet summary.
type Summary struct {
	Document string `json:"document"`
	Bullets  string `json:"bullets"`
}

// Clause is a serialized clause.
type Clause struct {
	ClauseType  string `json:"clause_type"`
	Explanation string `json:"explanation"`
	Snippet     string `json:"snippet"`
	Page        int    `json:"page"`
	Importance  string `json:"importance"`
}

// RedFlag is a serialized red flag.
type RedFlag struct {
	RiskType   string  `json:"risk_type"`
	Reason     string  `json:"reason"`
	Snippet    string  `json:"snippet"`
	Page       int     `json:"page"`
	Confidence float64 `json:"confidence"`
}

// QA is one question and its answer.
type QA struct {
	ID         string            `json:"id"`
	Question   string            `json:"question"`
	Answer     string            `json:"answer"`
	Citations  []domain.Citation `json:"citations"`
	Confidence *float64          `json:"confidence,omitempty"`
	AskedAt    time.Time         `json:"asked_at"`
}

// Report is the exported document.
type Report struct {
	Meta      Meta       `json:"meta"`
	Documents []Document `json:"documents"`
	Summaries []Summary  `json:"summaries"`
	Clauses   []Clause   `json:"clauses"`
	RedFlags  []RedFlag  `json:"red_flags"`
	QAHistory []QA       `json:"qa_history"`
}

// Build assembles a report from an analysis and QA history. Summaries follow
// document order.
func Build(a *service.Analysis, history []service.QARecord) *Report {
	r := &Report{
		Documents: []Document{},
		Summaries: []Summary{},
		Clauses:   []Clause{},
		RedFlags:  []RedFlag{},
		QAHistory: []QA{},
	}
	if a != nil {
		r.Meta = Meta{
			RunID:       a.RunID,
			GeneratedAt: a.CreatedAt,
			Embedder:    a.Embedder,
			Model:       a.Model,
			Chunks:      a.ChunkCount,
			Risk:        a.Risk,
			Entities:    a.Entities,
		}
		for _, d := range a.Documents {
			r.Documents = append(r.Documents, Document{Name: d.Name, Pages: d.PageCount})
			if s, ok := a.Summaries[d.Name]; ok {
				r.Summaries = append(r.Summaries, Summary{Document: d.Name, Bullets: s})
			}
		}
		for _, c := range a.Clauses {
			r.Clauses = append(r.Clauses, Clause{
				ClauseType:  c.ClauseType,
				Explanation: c.Explanation,
				Snippet:     c.Snippet,
				Page:        c.Page,
				Importance:  string(c.Importance),
			})
		}
		for _, f := range a.RedFlags {
			r.RedFlags = append(r.RedFlags, RedFlag(f))
		}
	}
	for _, h := range history {
		r.QAHistory = append(r.QAHistory, QA{
			ID:         h.ID,
			Question:   h.Question,
			Answer:     h.Result.Answer,
			Citations:  slices.Clone(h.Result.Citations),
			Confidence: h.Result.Confidence,
			AskedAt:    h.AskedAt,
		})
	}
	return r
}

// Writer renders a report.
type Writer interface {
	Write(r *Report) error
}

// NewWriter returns the writer for format.
func NewWriter(format Format, out io.Writer) (Writer, error) {
	switch format {
	case FormatJSON:
		return NewJSONWriter(out, WithPrettyPrint()), nil
	case FormatMarkdown:
		return NewMarkdownWriter(out), nil
	}
	return nil, fmt.Errorf("unknown report format %q", format)
}
