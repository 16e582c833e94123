package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contract = "MASTER SERVICES AGREEMENT\n\nThis Agreement is made between Acme Corp and Beta LLC. This Agreement shall be governed by the laws of England.\n" +
	"\fFees are payable within thirty days of each invoice. The Customer shall indemnify and hold harmless the Provider against any and all claims.\n" +
	"\fSoftware as a Service (SaaS) means a subscription based hosted software delivery model."

// setup writes a contract and a config that keeps everything local.
func setup(t *testing.T) (cfgPath, contractPath string) {
	t.Helper()
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("EMBEDDER", "")
	t.Setenv("WORKSPACE_DIR", "")
	dir := t.TempDir()
	contractPath = filepath.Join(dir, "msa.txt")
	require.NoError(t, os.WriteFile(contractPath, []byte(contract), 0o644))

	cfgPath = filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf(`llm:
  provider: stub
embedder:
  type: hashing
  dimension: 64
chunker:
  chunk_size: 200
  chunk_overlap: 40
index:
  workspace_dir: %q
logging:
  level: error
`, filepath.Join(dir, "workspace"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath, contractPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "contractrag", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"ingest", "ask", "analyze", "export", "tui", "watch", "reset"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	flag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, flag)
	assert.Equal(t, "v", flag.Shorthand)
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestIngestThenAsk(t *testing.T) {
	cfg, file := setup(t)

	out, err := execute(t, "--config", cfg, "ingest", file)
	require.NoError(t, err)
	assert.Contains(t, out, "1 document(s)")
	assert.Contains(t, out, "using hashing / stub")

	out, err = execute(t, "--config", cfg, "ask", "What", "is", "SaaS?")
	require.NoError(t, err)
	assert.Contains(t, out, "subscription")
	assert.Contains(t, out, "[Page 3]")
	assert.Contains(t, out, "Confidence:")
}

func TestAskWithoutIndex(t *testing.T) {
	cfg, _ := setup(t)
	_, err := execute(t, "--config", cfg, "ask", "What is SaaS?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run ingest first")
}

func TestAskRebuildsFromSource(t *testing.T) {
	cfg, file := setup(t)
	out, err := execute(t, "--config", cfg, "ask", "What is SaaS?", "--source", file)
	require.NoError(t, err)
	assert.Contains(t, out, "subscription")
}

func TestAnalyze(t *testing.T) {
	cfg, file := setup(t)
	out, err := execute(t, "--config", cfg, "analyze", file)
	require.NoError(t, err)
	assert.Contains(t, out, "== msa.txt (3 pages)")
	assert.Contains(t, out, "Clauses:")
	assert.Contains(t, out, "Red flags:")
	assert.Contains(t, out, "Indemnity")
}

func TestExportJSON(t *testing.T) {
	cfg, file := setup(t)
	path := filepath.Join(t.TempDir(), "out", "report.json")

	_, err := execute(t, "--config", cfg, "export", file, "-o", path, "-q", "What is SaaS?")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rep struct {
		Meta struct {
			RunID string `json:"run_id"`
		} `json:"meta"`
		RedFlags  []json.RawMessage `json:"red_flags"`
		QAHistory []struct {
			Question string `json:"question"`
		} `json:"qa_history"`
	}
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.NotEmpty(t, rep.Meta.RunID)
	assert.NotEmpty(t, rep.RedFlags)
	require.Len(t, rep.QAHistory, 1)
	assert.Equal(t, "What is SaaS?", rep.QAHistory[0].Question)
}

func TestExportMarkdownToStdout(t *testing.T) {
	cfg, file := setup(t)
	out, err := execute(t, "--config", cfg, "export", file, "--format", "md")
	require.NoError(t, err)
	assert.Contains(t, out, "# Contract Analysis Report")
}

func TestExportRejectsFormat(t *testing.T) {
	cfg, file := setup(t)
	_, err := execute(t, "--config", cfg, "export", file, "--format", "xml")
	assert.ErrorContains(t, err, "unknown report format")
}

func TestIngestNoMatch(t *testing.T) {
	cfg, _ := setup(t)
	_, err := execute(t, "--config", cfg, "ingest", filepath.Join(t.TempDir(), "*.pdf"))
	assert.Error(t, err)
}

func TestReset(t *testing.T) {
	cfg, file := setup(t)
	_, err := execute(t, "--config", cfg, "ingest", file)
	require.NoError(t, err)
	out, err := execute(t, "--config", cfg, "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Index deleted.")
	_, err = execute(t, "--config", cfg, "ask", "What is SaaS?")
	assert.Error(t, err)
}
