package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"contractrag/internal/domain"
)

// GeminiConfig holds configuration for the hosted generateContent client.
type GeminiConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	MaxAttempts       int     `yaml:"max_attempts"`
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
}

// OllamaConfig holds configuration for a local Ollama server.
type OllamaConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// LLMConfig selects the generative backend.
type LLMConfig struct {
	Provider      string       `yaml:"provider"`
	AllowFallback bool         `yaml:"allow_fallback"`
	Temperature   float64      `yaml:"temperature"`
	MaxTokens     int          `yaml:"max_tokens"`
	Gemini        GeminiConfig `yaml:"gemini"`
	Ollama        OllamaConfig `yaml:"ollama"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type          string                `yaml:"type"`
	Dimension     int                   `yaml:"dimension"`
	DisableRemote bool                  `yaml:"disable_remote"`
	OpenAI        *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// IndexConfig configures the persisted vector index.
type IndexConfig struct {
	WorkspaceDir string `yaml:"workspace_dir"`
	TopK         int    `yaml:"top_k"`
}

// RiskRule is a configurable red-flag scoring rule.
type RiskRule struct {
	Pattern string  `yaml:"pattern"`
	Delta   float64 `yaml:"delta"`
	Label   string  `yaml:"label"`
}

// AnalysisConfig carries the clause and red-flag scoring parameters.
type AnalysisConfig struct {
	ConfidenceThreshold float64    `yaml:"confidence_threshold"`
	BaseScore           float64    `yaml:"base_score"`
	HeuristicCap        float64    `yaml:"heuristic_cap"`
	ClauseBatch         int        `yaml:"clause_batch"`
	FlagBatch           int        `yaml:"flag_batch"`
	RiskRules           []RiskRule `yaml:"risk_rules,omitempty"`
}

// PromptsConfig points at an optional directory of template overrides.
type PromptsConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LLM      LLMConfig      `yaml:"llm"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Chunker  ChunkerConfig  `yaml:"chunker"`
	Index    IndexConfig    `yaml:"index"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Prompts  PromptsConfig  `yaml:"prompts"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfig, path, err)
	}
	applyConfigDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then $XDG_CONFIG_HOME/contractrag/config.yaml.
// If neither exists, it writes defaults to the XDG location and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnvOverrides(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports configuration problems that must stop the process.
// The only fatal case is an explicitly selected hosted provider with no
// credential and fallback disabled.
func (c *AppConfig) Validate() error {
	if c.LLM.Provider == "gemini" && !c.LLM.AllowFallback {
		if os.Getenv(c.LLM.Gemini.APIKeyEnv) == "" {
			return fmt.Errorf("%w: llm.provider is gemini but %s is not set and allow_fallback is false",
				domain.ErrConfig, c.LLM.Gemini.APIKeyEnv)
		}
	}
	switch c.Embedder.Type {
	case "hashing", "tfidf", "openai":
	default:
		return fmt.Errorf("%w: unknown embedder type %q", domain.ErrConfig, c.Embedder.Type)
	}
	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be smaller than chunk_size %d",
			domain.ErrConfig, c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	return xdg.ConfigFile(filepath.Join("contractrag", "config.yaml"))
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{
		LLM: LLMConfig{
			Provider:      "gemini",
			AllowFallback: true,
			Temperature:   0.3,
			MaxTokens:     2048,
		},
		Embedder: EmbedderConfig{Type: "hashing", Dimension: 384},
		Chunker:  ChunkerConfig{ChunkSize: 1100, ChunkOverlap: 150},
		Index:    IndexConfig{WorkspaceDir: "workspace_tmp", TopK: 5},
		Analysis: AnalysisConfig{
			ConfidenceThreshold: 65,
			BaseScore:           30,
			HeuristicCap:        95,
			ClauseBatch:         10,
			FlagBatch:           12,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	g := &cfg.LLM.Gemini
	if g.BaseURL == "" {
		g.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if g.APIKeyEnv == "" {
		g.APIKeyEnv = "GOOGLE_API_KEY"
	}
	if g.Model == "" {
		g.Model = "gemini-1.5-flash"
	}
	if g.MaxAttempts == 0 {
		g.MaxAttempts = 3
	}
	if g.TimeoutSecs == 0 {
		g.TimeoutSecs = 60
	}
	o := &cfg.LLM.Ollama
	if o.BaseURL == "" {
		o.BaseURL = "http://localhost:11434"
	}
	if o.Model == "" {
		o.Model = "llama3.2"
	}
	if o.TimeoutSecs == 0 {
		o.TimeoutSecs = 120
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 384
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI == nil {
		cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
	}
	if cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1100
	}
	if cfg.Index.WorkspaceDir == "" {
		cfg.Index.WorkspaceDir = "workspace_tmp"
	}
	if cfg.Index.TopK == 0 {
		cfg.Index.TopK = 5
	}
	a := &cfg.Analysis
	if a.BaseScore == 0 {
		a.BaseScore = 30
	}
	if a.HeuristicCap == 0 {
		a.HeuristicCap = 95
	}
	if a.ClauseBatch == 0 {
		a.ClauseBatch = 10
	}
	if a.FlagBatch == 0 {
		a.FlagBatch = 12
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v, ok := lookupBool("USE_GEMINI"); ok && !v && cfg.LLM.Provider == "gemini" {
		cfg.LLM.Provider = "ollama"
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = strings.ToLower(v)
	}
	if v, ok := lookupFloat("CONFIDENCE_THRESHOLD"); ok {
		cfg.Analysis.ConfidenceThreshold = v
	}
	if v := os.Getenv("WORKSPACE_DIR"); v != "" {
		cfg.Index.WorkspaceDir = v
	}
	if v := os.Getenv("EMBEDDER"); v != "" {
		cfg.Embedder.Type = strings.ToLower(v)
		applyConfigDefaults(cfg)
	}
	if v, ok := lookupBool("DISABLE_REMOTE_EMBED"); ok {
		cfg.Embedder.DisableRemote = v
	}
	if v, ok := lookupFloat("MAX_TOKENS"); ok {
		cfg.LLM.MaxTokens = int(v)
	}
	if v, ok := lookupFloat("TEMPERATURE"); ok {
		cfg.LLM.Temperature = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

func lookupBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, false
	}
	return b, true
}

func lookupFloat(key string) (float64, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
