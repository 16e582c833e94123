// Package llm selects the generative backend: the hosted client when a key is
// configured, a local server when one answers, and the Stub otherwise.
package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"contractrag/internal/config"
	"contractrag/internal/domain"
	"contractrag/internal/llm/gemini"
	"contractrag/internal/llm/ollama"
	"contractrag/internal/logging"
	"contractrag/internal/textutil"
)

// FallbackPrefix starts every Stub response.
const FallbackPrefix = "Fallback (no local model). Context signals: "

// pingTimeout bounds the local server reachability check in New.
const pingTimeout = 2 * time.Second

// Stub stands in when no model is reachable. It is never Available and echoes
// the tail of the prompt.
type Stub struct{}

func (Stub) Name() string    { return "stub" }
func (Stub) Available() bool { return false }

// Generate returns FallbackPrefix followed by the last 8 prompt lines, each
// cut to 60 characters, joined with spaces and capped at 400 characters.
func (Stub) Generate(_ context.Context, prompt string) (string, error) {
	lines := splitLines(prompt)
	if len(lines) > 8 {
		lines = lines[len(lines)-8:]
	}
	for i, l := range lines {
		lines[i] = textutil.Truncate(l, 60)
	}
	return FallbackPrefix + textutil.Truncate(strings.Join(lines, " "), 400), nil
}

// IsFallback reports whether text is a Stub response.
func IsFallback(text string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), "fallback (no local model)")
}

// IsDegraded reports whether text is a stand-in rather than model output:
// a Stub response or the local client's failure notice.
func IsDegraded(text string) bool {
	return IsFallback(text) || strings.TrimSpace(text) == ollama.ErrorMessage
}

// New builds the client for cfg.Provider ("gemini", "ollama" or "none").
// A hosted provider without credentials degrades to the local server, and an
// unreachable local server degrades to Stub.
func New(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) domain.LLM {
	logger = logging.OrDiscard(logger)
	switch cfg.Provider {
	case "none", "stub":
		return Stub{}
	case "gemini":
		client, err := gemini.NewClient(gemini.Config{
			BaseURL:           cfg.Gemini.BaseURL,
			APIKeyEnv:         cfg.Gemini.APIKeyEnv,
			Model:             cfg.Gemini.Model,
			Temperature:       cfg.Temperature,
			MaxTokens:         cfg.MaxTokens,
			MaxAttempts:       cfg.Gemini.MaxAttempts,
			RequestsPerMinute: cfg.Gemini.RequestsPerMinute,
			Timeout:           time.Duration(cfg.Gemini.TimeoutSecs) * time.Second,
		}, logger)
		if err == nil {
			return client
		}
		logger.Warn("hosted model unavailable, trying local model", "reason", err.Error())
	}

	local := ollama.NewClient(ollama.Config{
		BaseURL:     cfg.Ollama.BaseURL,
		Model:       cfg.Ollama.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     time.Duration(cfg.Ollama.TimeoutSecs) * time.Second,
	}, logger)
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := local.Ping(pctx); err != nil {
		logger.Warn("local model unreachable, using heuristic fallback", "reason", err.Error())
		return Stub{}
	}
	return local
}

// splitLines splits on \n, \r\n and \r without producing a trailing empty line.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
