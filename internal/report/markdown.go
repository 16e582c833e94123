package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"contractrag/internal/textutil"
)

// MarkdownWriter outputs reports as GitHub-flavored Markdown.
type MarkdownWriter struct {
	output io.Writer
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output}
}

// Write renders the full report.
func (w *MarkdownWriter) Write(r *Report) error {
	md := markdown.NewMarkdown(w.output)
	w.writeHeader(md, r)
	w.writeSummaries(md, r)
	w.writeClauses(md, r)
	w.writeRedFlags(md, r)
	w.writeQA(md, r)
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated %s*", r.Meta.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	return md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, r *Report) {
	md.H1("Contract Analysis Report")
	md.PlainText("")

	rows := [][]string{
		{"Run", "`" + r.Meta.RunID + "`"},
		{"Embedder", r.Meta.Embedder},
		{"Model", r.Meta.Model},
		{"Chunks", strconv.Itoa(r.Meta.Chunks)},
		{"Risk index", fmt.Sprintf("%d (%s)", r.Meta.Risk.Index, r.Meta.Risk.Level)},
	}
	e := r.Meta.Entities
	for _, kv := range [][2]string{
		{"Parties", e.Parties},
		{"Effective date", e.EffectiveDate},
		{"Governing law", e.GoverningLaw},
		{"Term", e.TermLength},
	} {
		if kv[1] != "" {
			rows = append(rows, []string{kv[0], cell(kv[1], 80)})
		}
	}
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")

	switch r.Meta.Risk.Level {
	case "High":
		md.Cautionf("High contract risk: %d red flag(s) need review.", len(r.RedFlags))
	case "Elevated":
		md.Warningf("Elevated contract risk: %d red flag(s) found.", len(r.RedFlags))
	case "Moderate":
		md.Importantf("Moderate contract risk: %d red flag(s) found.", len(r.RedFlags))
	default:
		md.Tip("No significant contract risk detected.")
	}
	md.PlainText("")

	md.H2("Documents")
	md.PlainText("")
	if len(r.Documents) == 0 {
		md.PlainText("No documents ingested.")
		md.PlainText("")
		return
	}
	items := make([]string, len(r.Documents))
	for i, d := range r.Documents {
		items[i] = fmt.Sprintf("%s (%d pages)", d.Name, d.Pages)
	}
	md.BulletList(items...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummaries(md *markdown.Markdown, r *Report) {
	md.H2("Summaries")
	md.PlainText("")
	for _, s := range r.Summaries {
		md.PlainText("### " + s.Document)
		md.PlainText("")
		md.PlainText(s.Bullets)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeClauses(md *markdown.Markdown, r *Report) {
	md.H2("Clauses")
	md.PlainText("")
	if len(r.Clauses) == 0 {
		md.PlainText("No clauses detected.")
		md.PlainText("")
		return
	}
	rows := make([][]string, len(r.Clauses))
	for i, c := range r.Clauses {
		rows[i] = []string{c.ClauseType, c.Importance, strconv.Itoa(c.Page), cell(c.Explanation, 120)}
	}
	md.Table(markdown.TableSet{Header: []string{"Clause", "Importance", "Page", "Explanation"}, Rows: rows})
	md.PlainText("")
}

func (w *MarkdownWriter) writeRedFlags(md *markdown.Markdown, r *Report) {
	md.H2("Red Flags")
	md.PlainText("")
	if len(r.RedFlags) == 0 {
		md.PlainText("No red flags detected.")
		md.PlainText("")
		return
	}
	rows := make([][]string, len(r.RedFlags))
	for i, f := range r.RedFlags {
		rows[i] = []string{f.RiskType, strconv.FormatFloat(f.Confidence, 'f', 0, 64), strconv.Itoa(f.Page), cell(f.Reason, 100)}
	}
	md.Table(markdown.TableSet{Header: []string{"Risk", "Confidence", "Page", "Reason"}, Rows: rows})
	md.PlainText("")
	for _, f := range r.RedFlags {
		md.Details(f.RiskType, f.Snippet)
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeQA(md *markdown.Markdown, r *Report) {
	if len(r.QAHistory) == 0 {
		return
	}
	md.H2("Questions")
	md.PlainText("")
	for _, q := range r.QAHistory {
		md.PlainText("### " + q.Question)
		md.PlainText("")
		md.PlainText(q.Answer)
		md.PlainText("")
		if len(q.Citations) > 0 {
			cites := make([]string, len(q.Citations))
			for i, c := range q.Citations {
				cites[i] = fmt.Sprintf("Page %d: %s", c.Page, cell(c.Snippet, 160))
			}
			md.BulletList(cites...)
			md.PlainText("")
		}
	}
}

// cell flattens text for a table cell.
func cell(s string, n int) string {
	s = strings.ReplaceAll(strings.Join(strings.Fields(s), " "), "|", "/")
	if textutil.Len(s) <= n {
		return s
	}
	return textutil.Truncate(s, n-3) + "..."
}
