package embed

import (
	"context"
	"log/slog"

	"github.com/devdocai/docfed/internal/config"
)

// NewEmbedder creates an embedder from configuration.
// Provider "ollama" falls back to the static embedder when the API is
// unreachable so ingestion keeps working offline; the fallback is logged.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		embedder, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
		if err != nil {
			slog.Warn("ollama_unavailable_falling_back_to_static",
				"host", cfg.OllamaHost,
				"model", cfg.Model,
				"error", err)
			return NewStaticEmbedder(), nil
		}
		slog.Info("embedder_ready", "provider", "ollama", "model", embedder.ModelName(), "dimensions", embedder.Dimensions())
		return embedder, nil

	default:
		return NewStaticEmbedder(), nil
	}
}
