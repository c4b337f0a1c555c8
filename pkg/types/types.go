package types

import (
	"errors"
	"strings"
	"time"
)

// Validation errors
var (
	ErrEmptyQuery        = errors.New("query cannot be empty")
	ErrInvalidLimit      = errors.New("limit must be positive")
	ErrUnknownClass      = errors.New("unknown entity class")
	ErrNoClassesSelected = errors.New("at least one entity class must be selected")
)

// ErrOrchestratorFatal marks internal invariant violations. It is the only
// error class that surfaces to the caller as a failed search; everything else
// degrades into a partial response.
var ErrOrchestratorFatal = errors.New("orchestrator fatal")

// EntityClass identifies the kind of a search result. Every candidate and
// ranked result belongs to exactly one class.
type EntityClass string

const (
	// ClassEdge represents graph edges carrying fact statements.
	ClassEdge EntityClass = "edge"
	// ClassNode represents extracted entities.
	ClassNode EntityClass = "node"
	// ClassEpisode represents source documents or messages.
	ClassEpisode EntityClass = "episode"
	// ClassCommunity represents clusters of related entities.
	ClassCommunity EntityClass = "community"
)

// AllEntityClasses lists the classes in their canonical response order.
var AllEntityClasses = []EntityClass{ClassEdge, ClassNode, ClassEpisode, ClassCommunity}

// ParseEntityClass resolves a string to an EntityClass.
func ParseEntityClass(s string) (EntityClass, error) {
	switch EntityClass(strings.ToLower(strings.TrimSpace(s))) {
	case ClassEdge:
		return ClassEdge, nil
	case ClassNode:
		return ClassNode, nil
	case ClassEpisode:
		return ClassEpisode, nil
	case ClassCommunity:
		return ClassCommunity, nil
	default:
		return "", ErrUnknownClass
	}
}

// SearchMethod identifies a retrieval channel.
type SearchMethod string

const (
	// MethodLexical is keyword/BM25-style fulltext matching.
	MethodLexical SearchMethod = "lexical"
	// MethodVector is nearest-neighbor search over precomputed embeddings.
	MethodVector SearchMethod = "vector"
	// MethodTraversal is bounded breadth-first graph expansion from seed nodes.
	MethodTraversal SearchMethod = "traversal"
)

// RerankStrategy identifies a fusion strategy for per-channel candidate lists.
type RerankStrategy string

const (
	// RerankRRF is reciprocal rank fusion.
	RerankRRF RerankStrategy = "rrf"
	// RerankMMR is diversity-aware maximal marginal relevance.
	RerankMMR RerankStrategy = "mmr"
	// RerankCrossEncoder delegates scoring to an external neural scorer.
	RerankCrossEncoder RerankStrategy = "cross_encoder"
)

// Candidate is a single retrieval hit produced by one channel. The Score is
// channel-local: scores from different channels are not comparable until a
// reranker has fused them.
type Candidate struct {
	ID      string      `json:"id" mapstructure:"id"`
	Class   EntityClass `json:"class" mapstructure:"class"`
	Name    string      `json:"name" mapstructure:"name"`
	Content string      `json:"content" mapstructure:"content"`
	Score   float64     `json:"score" mapstructure:"score"`
	GroupID string      `json:"group_id,omitempty" mapstructure:"group_id"`

	// Edge-specific fields
	SourceID string `json:"source_id,omitempty" mapstructure:"source_id"`
	TargetID string `json:"target_id,omitempty" mapstructure:"target_id"`

	// Bitemporal validity window. A nil ValidTo means the fact is still valid.
	ValidFrom time.Time  `json:"valid_from" mapstructure:"valid_from"`
	ValidTo   *time.Time `json:"valid_to,omitempty" mapstructure:"valid_to"`

	CreatedAt time.Time `json:"created_at,omitempty" mapstructure:"created_at"`

	Embedding []float32              `json:"embedding,omitempty" mapstructure:"embedding"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" mapstructure:"metadata"`
}

// RankedResult is a candidate plus its fused score and the channels that
// retrieved it.
type RankedResult struct {
	Candidate *Candidate     `json:"candidate"`
	Score     float64        `json:"score"`
	Channels  []SearchMethod `json:"channels"`
}

// SearchRequest is the engine's single entry-point payload.
type SearchRequest struct {
	Query   string `json:"query"`
	GroupID string `json:"group_id,omitempty"`

	// Entity class selections. Edges and nodes are on by default at the DTO
	// boundary; episodes and communities are opt-in.
	SearchEdges       bool `json:"search_edges"`
	SearchNodes       bool `json:"search_nodes"`
	SearchEpisodes    bool `json:"search_episodes"`
	SearchCommunities bool `json:"search_communities"`

	// Channel toggles, applied globally and narrowed per class by the planner.
	UseLexical   bool `json:"use_lexical"`
	UseVector    bool `json:"use_vector"`
	UseTraversal bool `json:"use_traversal"`

	// Reranker key. Unknown keys resolve to RRF; the response echoes the
	// resolved strategy, never the raw input.
	Reranker  string  `json:"reranker,omitempty"`
	MMRLambda float64 `json:"mmr_lambda,omitempty"`

	// AsOf restricts results to facts valid at that instant.
	AsOf *time.Time `json:"as_of,omitempty"`

	Limit int `json:"limit,omitempty"`
}

// Validate rejects structurally invalid requests before any planning happens.
func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	if !r.SearchEdges && !r.SearchNodes && !r.SearchEpisodes && !r.SearchCommunities {
		return ErrNoClassesSelected
	}
	if r.MMRLambda < 0 || r.MMRLambda > 1 {
		return errors.New("mmr_lambda must be in [0,1]")
	}
	return nil
}

// SearchResponse groups ranked results by entity class. Classes are never
// interleaved by score; each class keeps its own fused ordering.
type SearchResponse struct {
	Edges       []RankedResult `json:"edges"`
	Nodes       []RankedResult `json:"nodes"`
	Episodes    []RankedResult `json:"episodes"`
	Communities []RankedResult `json:"communities"`

	Query string     `json:"query"`
	AsOf  *time.Time `json:"as_of,omitempty"`

	// MethodsUsed echoes, per class, the channels that actually produced
	// results after planning and degradation. A class whose channels all
	// failed is present with an empty slice.
	MethodsUsed map[EntityClass][]SearchMethod `json:"methods_used"`

	// RerankerUsed echoes the resolved strategy per class, after any
	// unknown-key or cross-encoder fallback.
	RerankerUsed map[EntityClass]RerankStrategy `json:"reranker_used"`

	// Degraded lists "class/method" pairs whose channel failed but whose
	// class still produced results from other channels.
	Degraded []string `json:"degraded,omitempty"`

	// Partial is set when the deadline expired and the response was
	// assembled from whatever channels had completed.
	Partial bool `json:"partial,omitempty"`

	Total int `json:"total"`
}

// ResultsFor returns the ranked list for the given class.
func (r *SearchResponse) ResultsFor(class EntityClass) []RankedResult {
	switch class {
	case ClassEdge:
		return r.Edges
	case ClassNode:
		return r.Nodes
	case ClassEpisode:
		return r.Episodes
	case ClassCommunity:
		return r.Communities
	default:
		return nil
	}
}
