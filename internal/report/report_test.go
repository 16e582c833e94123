package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractrag/internal/analysis"
	"contractrag/internal/domain"
	"contractrag/internal/service"
)

func sampleAnalysis() (*service.Analysis, []service.QARecord) {
	conf := 72.0
	a := &service.Analysis{
		RunID:      "run-1",
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Embedder:   "hashing",
		Model:      "local",
		ChunkCount: 4,
		Documents: []domain.Document{
			{Name: "msa.pdf", PageCount: 3},
			{Name: "nda.txt", PageCount: 1},
		},
		Summaries: map[string]string{
			"nda.txt": "- Confidentiality: Each party keeps secrets.",
			"msa.pdf": "- Term: Two years.",
		},
		Clauses: []domain.ClauseResult{{
			ClauseType:  "Termination",
			Explanation: "Either party may terminate | with notice.",
			Snippet:     "Either party may terminate with 30 days notice.",
			Page:        2,
			Importance:  domain.ImportanceHigh,
		}},
		RedFlags: []domain.RedFlagResult{{
			RiskType:   "Termination",
			Reason:     "Termination for convenience",
			Snippet:    "Either party may terminate for convenience.",
			Page:       2,
			Confidence: 80,
		}},
		Risk:     analysis.Risk{Index: 60, Level: "Elevated"},
		Entities: analysis.Entities{GoverningLaw: "State of Delaware"},
	}
	history := []service.QARecord{{
		ID:       "q-1",
		Question: "Can we terminate?",
		Result: domain.QAResult{
			Answer:     "Yes, with **notice**.",
			Citations:  []domain.Citation{{Page: 2, Snippet: "Either party may terminate."}},
			Confidence: &conf,
		},
		AskedAt: time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC),
	}}
	return a, history
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, " JSON ": FormatJSON, "md": FormatMarkdown, "markdown": FormatMarkdown} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestBuildOrdersSummariesByDocument(t *testing.T) {
	r := Build(sampleAnalysis())
	require.Len(t, r.Summaries, 2)
	assert.Equal(t, "msa.pdf", r.Summaries[0].Document)
	assert.Equal(t, "nda.txt", r.Summaries[1].Document)
	assert.Equal(t, []Document{{"msa.pdf", 3}, {"nda.txt", 1}}, r.Documents)
	assert.Equal(t, "High", r.Clauses[0].Importance)
	require.Len(t, r.QAHistory, 1)
	assert.Equal(t, "Yes, with **notice**.", r.QAHistory[0].Answer)
}

func TestBuildEmpty(t *testing.T) {
	r := Build(nil, nil)
	assert.Empty(t, r.Clauses)
	assert.NotNil(t, r.Clauses)
	assert.NotNil(t, r.QAHistory)
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter(&buf, WithPrettyPrint()).Write(Build(sampleAnalysis())))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	for _, key := range []string{"meta", "documents", "summaries", "clauses", "red_flags", "qa_history"} {
		assert.Contains(t, out, key)
	}
	meta := out["meta"].(map[string]any)
	assert.Equal(t, "run-1", meta["run_id"])
	assert.Equal(t, "Elevated", meta["risk"].(map[string]any)["level"])
	assert.Contains(t, buf.String(), "\n  \"meta\"")
	assert.Contains(t, buf.String(), "**notice**")
}

func TestJSONWriterCompact(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter(&buf).Write(Build(nil, nil)))
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestMarkdownWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownWriter(&buf).Write(Build(sampleAnalysis())))
	out := buf.String()

	assert.Contains(t, out, "# Contract Analysis Report")
	assert.Contains(t, out, "## Clauses")
	assert.Contains(t, out, "### msa.pdf")
	assert.Contains(t, out, "msa.pdf (3 pages)")
	assert.Contains(t, out, "Either party may terminate / with notice.")
	assert.Contains(t, out, "### Can we terminate?")
	assert.Contains(t, out, "Page 2: Either party may terminate.")
	assert.Contains(t, out, "State of Delaware")
	assert.Contains(t, out, "Elevated contract risk: 1 red flag(s) found.")
}

func TestMarkdownWriterEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownWriter(&buf).Write(Build(nil, nil)))
	out := buf.String()
	assert.Contains(t, out, "No documents ingested.")
	assert.Contains(t, out, "No red flags detected.")
	assert.NotContains(t, out, "## Questions")
}

func TestCell(t *testing.T) {
	assert.Equal(t, "a / b c", cell("a |\n b   c", 20))
	assert.Equal(t, "abcdefg...", cell("abcdefghijklmnop", 10))
}

func TestNewWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(FormatMarkdown, &buf)
	require.NoError(t, err)
	assert.IsType(t, &MarkdownWriter{}, w)
	_, err = NewWriter("xml", &buf)
	assert.Error(t, err)
}
