// Package crossencoder provides the external neural scorer used by the
// cross-encoder rerank strategy. A scorer computes one relevance scalar per
// query-passage pair; the engine treats it as a black box that may fail
// independently of the graph store.
package crossencoder

import (
	"context"
	"errors"
)

// ErrScorerUnavailable is returned when the external scorer cannot be
// reached or errors. The reranker degrades to RRF on this condition instead
// of failing the request.
var ErrScorerUnavailable = errors.New("cross-encoder scorer unavailable")

// Client scores passages against a query.
type Client interface {
	// Score returns one relevance scalar per passage, positionally aligned
	// with the input. Scores are on a [0,1] scale.
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

// Config holds scorer configuration shared across providers.
type Config struct {
	Model          string `json:"model" mapstructure:"model"`
	APIKey         string `json:"api_key" mapstructure:"api_key"`
	BaseURL        string `json:"base_url" mapstructure:"base_url"`
	MaxConcurrency int    `json:"max_concurrency" mapstructure:"max_concurrency"`
}
