// Package embedding selects the embedding provider for the configured backend.
package embedding

import (
	"errors"
	"log/slog"
	"time"

	"contractrag/internal/config"
	"contractrag/internal/domain"
	"contractrag/internal/embedding/hashing"
	"contractrag/internal/embedding/openai"
	"contractrag/internal/embedding/tfidf"
	"contractrag/internal/logging"
)

// New builds the configured embedder. A remote backend that is disabled or
// lacks credentials is replaced by the hashing embedder; this never fails.
func New(cfg config.EmbedderConfig, logger *slog.Logger) domain.Embedder {
	logger = logging.OrDiscard(logger)
	switch cfg.Type {
	case "tfidf":
		return tfidf.NewEmbedder()
	case "openai":
		if cfg.DisableRemote {
			logger.Warn("remote embeddings disabled, using hashing embedder")
			return hashing.New(cfg.Dimension)
		}
		oc := config.OpenAIEmbedderConfig{}
		if cfg.OpenAI != nil {
			oc = *cfg.OpenAI
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   oc.BaseURL,
			APIKeyEnv: oc.APIKeyEnv,
			Model:     oc.Model,
			Timeout:   time.Duration(oc.TimeoutSecs) * time.Second,
		})
		if err != nil {
			if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
				logger.Error("openai embedder init failed", "error", err)
			}
			logger.Warn("embedding backend unavailable, using hashing embedder", "reason", err.Error())
			return hashing.New(cfg.Dimension)
		}
		return client
	default:
		return hashing.New(cfg.Dimension)
	}
}
