package recall

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/soundprediction/recall/pkg/config"
	"github.com/soundprediction/recall/pkg/crossencoder"
	"github.com/soundprediction/recall/pkg/embedder"
	"github.com/soundprediction/recall/pkg/search"
	"github.com/soundprediction/recall/pkg/store"
	"github.com/soundprediction/recall/pkg/types"
)

// Recall is the main interface for querying temporal knowledge graphs. It
// fronts the hybrid retrieval pipeline: lexical, vector, and graph-traversal
// channels fused by a configurable reranker, with bitemporal validity
// filtering.
type Recall interface {
	// Search runs one hybrid retrieval request across the selected entity
	// classes and returns results grouped per class.
	Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error)

	// HealthCheck verifies connectivity to the graph store.
	HealthCheck(ctx context.Context) error

	// Close releases the underlying store connections.
	Close(ctx context.Context) error
}

// Engine wires the graph store, embedder, and scorer into the search
// orchestrator. It is safe for concurrent use.
type Engine struct {
	store        store.GraphStore
	orchestrator *search.Orchestrator
	logger       *slog.Logger
}

// Options configures optional Engine collaborators.
type Options struct {
	Logger *slog.Logger

	// Store overrides the Neo4j store built from config, for tests.
	Store store.GraphStore

	// Embedder overrides the OpenAI embedder built from config.
	Embedder embedder.Client

	// Scorer overrides the OpenAI cross-encoder built from config.
	Scorer crossencoder.Client
}

// New builds an Engine from configuration. The graph store is wrapped in a
// circuit breaker when the config enables one.
func New(cfg *config.Config, opts *Options) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts == nil {
		opts = &Options{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	graphStore := opts.Store
	if graphStore == nil {
		neoStore, err := store.NewNeo4jStore(cfg.Database.URI, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to create graph store: %w", err)
		}
		neoStore.SetMaxTraversalDepth(cfg.Search.TraversalDepth)
		graphStore = neoStore
	}

	if cfg.CircuitBreaker.Enabled {
		graphStore = store.NewBreakerStore(graphStore, store.BreakerConfig{
			MaxRequests:      cfg.CircuitBreaker.MaxRequests,
			Interval:         time.Duration(cfg.CircuitBreaker.Interval) * time.Second,
			Timeout:          time.Duration(cfg.CircuitBreaker.Timeout) * time.Second,
			ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
		}, logger)
	}

	embedderClient := opts.Embedder
	if embedderClient == nil && cfg.Embedding.APIKey != "" {
		embedderClient = embedder.NewOpenAIClient(embedder.Config{
			Model:      cfg.Embedding.Model,
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Dimensions: cfg.Embedding.Dimensions,
		})
	}

	scorer := opts.Scorer
	if scorer == nil && cfg.Scorer.APIKey != "" {
		scorer = crossencoder.NewOpenAIClient(crossencoder.Config{
			Model:   cfg.Scorer.Model,
			APIKey:  cfg.Scorer.APIKey,
			BaseURL: cfg.Scorer.BaseURL,
		})
	}

	orchestrator := search.NewOrchestrator(graphStore, embedderClient,
		search.WithScorer(scorer),
		search.WithMaxConcurrency(cfg.Search.MaxConcurrency),
		search.WithLogger(logger),
	)

	return &Engine{
		store:        graphStore,
		orchestrator: orchestrator,
		logger:       logger,
	}, nil
}

// Search implements Recall.
func (e *Engine) Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	return e.orchestrator.Search(ctx, req)
}

// HealthCheck implements Recall.
func (e *Engine) HealthCheck(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// Close implements Recall.
func (e *Engine) Close(ctx context.Context) error {
	return e.store.Close(ctx)
}
