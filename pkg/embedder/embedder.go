// Package embedder provides the embedding client used to vectorize query
// text for the vector retrieval channel. Document embeddings are computed at
// ingestion time by another system; this package only embeds queries.
package embedder

import (
	"context"
)

// Client generates embeddings for text.
type Client interface {
	// Embed generates embeddings for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the dimensionality of produced embeddings.
	Dimensions() int
}

// Config holds embedder configuration shared across providers.
type Config struct {
	Model      string `json:"model" mapstructure:"model"`
	APIKey     string `json:"api_key" mapstructure:"api_key"`
	BaseURL    string `json:"base_url" mapstructure:"base_url"`
	Dimensions int    `json:"dimensions" mapstructure:"dimensions"`
}
