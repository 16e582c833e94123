package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractrag/internal/domain"
)

var overrideKeys = []string{
	"USE_GEMINI", "LLM_PROVIDER", "CONFIDENCE_THRESHOLD", "WORKSPACE_DIR", "EMBEDDER",
	"DISABLE_REMOTE_EMBED", "MAX_TOKENS", "TEMPERATURE", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range overrideKeys {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 0.3, cfg.LLM.Temperature)
	assert.Equal(t, 2048, cfg.LLM.MaxTokens)
	assert.Equal(t, "gemini-1.5-flash", cfg.LLM.Gemini.Model)
	assert.Equal(t, "GOOGLE_API_KEY", cfg.LLM.Gemini.APIKeyEnv)
	assert.Equal(t, 3, cfg.LLM.Gemini.MaxAttempts)
	assert.Equal(t, 65.0, cfg.Analysis.ConfidenceThreshold)
	assert.Equal(t, 30.0, cfg.Analysis.BaseScore)
	assert.Equal(t, "workspace_tmp", cfg.Index.WorkspaceDir)
	assert.Equal(t, 1100, cfg.Chunker.ChunkSize)
	assert.Equal(t, 150, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 384, cfg.Embedder.Dimension)
}

func TestLoadPartialYAMLKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("llm:\n  provider: ollama\nembedder:\n  type: openai\nanalysis:\n  confidence_threshold: 40\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 40.0, cfg.Analysis.ConfidenceThreshold)
	assert.Equal(t, 12, cfg.Analysis.FlagBatch)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.Ollama.BaseURL)
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unterminated"), 0o644))
	_, err := Load(path)
	require.ErrorIs(t, err, domain.ErrConfig)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("USE_GEMINI", "false")
	t.Setenv("CONFIDENCE_THRESHOLD", "50")
	t.Setenv("WORKSPACE_DIR", "/tmp/idx")
	t.Setenv("EMBEDDER", "TFIDF")
	t.Setenv("DISABLE_REMOTE_EMBED", "true")
	t.Setenv("MAX_TOKENS", "512")
	t.Setenv("TEMPERATURE", "0.9")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 50.0, cfg.Analysis.ConfidenceThreshold)
	assert.Equal(t, "/tmp/idx", cfg.Index.WorkspaceDir)
	assert.Equal(t, "tfidf", cfg.Embedder.Type)
	assert.True(t, cfg.Embedder.DisableRemote)
	assert.Equal(t, 512, cfg.LLM.MaxTokens)
	assert.Equal(t, 0.9, cfg.LLM.Temperature)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestProviderOverrideWinsOverUseGemini(t *testing.T) {
	clearEnv(t)
	t.Setenv("USE_GEMINI", "false")
	t.Setenv("LLM_PROVIDER", "none")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.LLM.Provider)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONTRACTRAG_TEST_KEY", "")

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"defaults allow fallback", func(*AppConfig) {}, false},
		{"hosted without key and no fallback", func(c *AppConfig) {
			c.LLM.AllowFallback = false
		}, true},
		{"local provider needs no key", func(c *AppConfig) {
			c.LLM.Provider = "ollama"
			c.LLM.AllowFallback = false
		}, false},
		{"unknown embedder", func(c *AppConfig) { c.Embedder.Type = "bert" }, true},
		{"overlap too large", func(c *AppConfig) { c.Chunker.ChunkOverlap = c.Chunker.ChunkSize }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.LLM.Gemini.APIKeyEnv = "CONTRACTRAG_TEST_KEY"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateHostedWithKey(t *testing.T) {
	t.Setenv("CONTRACTRAG_TEST_KEY", "secret")
	cfg := Default()
	cfg.LLM.Gemini.APIKeyEnv = "CONTRACTRAG_TEST_KEY"
	cfg.LLM.AllowFallback = false
	require.NoError(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Index.TopK = 9
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Index.TopK)
	assert.Equal(t, cfg.LLM, got.LLM)
}
