// Package store defines the graph-store query interface consumed by the
// retrieval engine and provides the Neo4j implementation. The engine only
// reads: one method per retrieval channel, each returning scored candidates
// on that channel's own scale.
package store

import (
	"context"
	"errors"

	"github.com/soundprediction/recall/pkg/types"
)

// Store failure conditions. Adapters must wrap transport and backend errors
// into one of these so the orchestrator can apply its degraded-channel policy.
var (
	ErrStoreUnavailable = errors.New("graph store unavailable")
	ErrStoreTimeout     = errors.New("graph store timeout")
)

// GraphStore answers the three retrieval channels for one entity class at a
// time. Implementations are stateless from the engine's point of view and
// safe for concurrent use across requests.
type GraphStore interface {
	// QueryLexical performs keyword/fulltext matching. Scores are the
	// backend's lexical relevance scores.
	QueryLexical(ctx context.Context, class types.EntityClass, query, groupID string, limit int) ([]*types.Candidate, error)

	// QueryVector performs nearest-neighbor search over precomputed
	// embeddings. Scores are cosine similarities.
	QueryVector(ctx context.Context, class types.EntityClass, vector []float32, groupID string, limit int) ([]*types.Candidate, error)

	// QueryTraversal performs bounded breadth-first expansion from seed
	// nodes matched by the query text. Scores decay with traversal depth.
	QueryTraversal(ctx context.Context, class types.EntityClass, query, groupID string, limit int) ([]*types.Candidate, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying driver.
	Close(ctx context.Context) error
}
