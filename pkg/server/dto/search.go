package dto

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/soundprediction/recall/pkg/types"
)

// MaxEpisodeContentLength caps episode content in responses.
const MaxEpisodeContentLength = 500

// SearchRequest is the hybrid search request body for POST /search/hybrid.
// Boolean fields are pointers so absent and explicit-false are
// distinguishable; edges and nodes default to selected, lexical and vector
// channels default to enabled.
type SearchRequest struct {
	Query             string   `json:"query" binding:"required"`
	GroupID           string   `json:"group_id,omitempty"`
	SearchEdges       *bool    `json:"search_edges,omitempty"`
	SearchNodes       *bool    `json:"search_nodes,omitempty"`
	SearchEpisodes    *bool    `json:"search_episodes,omitempty"`
	SearchCommunities *bool    `json:"search_communities,omitempty"`
	UseLexical        *bool    `json:"use_lexical,omitempty"`
	UseVector         *bool    `json:"use_vector,omitempty"`
	UseTraversal      *bool    `json:"use_traversal,omitempty"`
	Reranker          string   `json:"reranker,omitempty"`
	MMRLambda         *float64 `json:"mmr_lambda,omitempty"`
	AsOf              *string  `json:"as_of,omitempty"`
	Limit             int      `json:"limit,omitempty"`
}

// Validate performs validation on SearchRequest
func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return errors.New("query field is required and cannot be empty")
	}
	if r.MMRLambda != nil && (*r.MMRLambda < 0 || *r.MMRLambda > 1) {
		return errors.New("mmr_lambda must be between 0 and 1")
	}
	if r.AsOf != nil {
		if _, err := time.Parse(time.RFC3339, *r.AsOf); err != nil {
			return errors.New("as_of must be an RFC3339 timestamp")
		}
	}
	return nil
}

// ToSearchRequest converts the DTO into the internal request, applying the
// API-level defaults.
func (r *SearchRequest) ToSearchRequest() *types.SearchRequest {
	req := &types.SearchRequest{
		Query:             strings.TrimSpace(r.Query),
		GroupID:           r.GroupID,
		SearchEdges:       boolOr(r.SearchEdges, true),
		SearchNodes:       boolOr(r.SearchNodes, true),
		SearchEpisodes:    boolOr(r.SearchEpisodes, false),
		SearchCommunities: boolOr(r.SearchCommunities, false),
		UseLexical:        boolOr(r.UseLexical, true),
		UseVector:         boolOr(r.UseVector, true),
		UseTraversal:      boolOr(r.UseTraversal, false),
		Reranker:          r.Reranker,
		MMRLambda:         0.5,
		Limit:             r.Limit,
	}
	if r.MMRLambda != nil {
		req.MMRLambda = *r.MMRLambda
	}
	if r.AsOf != nil {
		if t, err := time.Parse(time.RFC3339, *r.AsOf); err == nil {
			req.AsOf = &t
		}
	}
	return req
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// truncateToRuneBoundary caps s at max bytes without splitting a multi-byte
// rune; the cut point walks back to the start of the rune it would bisect.
func truncateToRuneBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// TemporalSearchRequest is the request body for POST /search/temporal. It is
// a hybrid search with a required point-in-time.
type TemporalSearchRequest struct {
	SearchRequest
	AsOf string `json:"as_of" binding:"required"`
}

// ToSearchRequest converts the DTO, parsing the mandatory as_of.
func (r *TemporalSearchRequest) ToSearchRequest() (*types.SearchRequest, error) {
	t, err := time.Parse(time.RFC3339, r.AsOf)
	if err != nil {
		return nil, errors.New("as_of must be an RFC3339 timestamp")
	}
	req := r.SearchRequest.ToSearchRequest()
	req.AsOf = &t
	return req, nil
}

// SearchResult is one ranked entity in the response.
type SearchResult struct {
	UUID      string                 `json:"uuid"`
	Name      string                 `json:"name,omitempty"`
	Content   string                 `json:"content,omitempty"`
	Score     float64                `json:"score"`
	Channels  []string               `json:"channels"`
	GroupID   string                 `json:"group_id,omitempty"`
	SourceID  string                 `json:"source_id,omitempty"`
	TargetID  string                 `json:"target_id,omitempty"`
	ValidAt   *time.Time             `json:"valid_at,omitempty"`
	InvalidAt *time.Time             `json:"invalid_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// SearchResponse is the grouped hybrid search response. Classes are never
// interleaved; each group keeps its own reranked order.
type SearchResponse struct {
	Edges             []SearchResult      `json:"edges"`
	Nodes             []SearchResult      `json:"nodes"`
	Episodes          []SearchResult      `json:"episodes"`
	Communities       []SearchResult      `json:"communities"`
	Query             string              `json:"query"`
	AsOf              *time.Time          `json:"as_of,omitempty"`
	SearchMethodsUsed map[string][]string `json:"search_methods_used"`
	RerankerUsed      map[string]string   `json:"reranker_used"`
	Degraded          []string            `json:"degraded,omitempty"`
	Partial           bool                `json:"partial,omitempty"`
	TotalResults      int                 `json:"total_results"`
}

// FromSearchResponse maps the internal response into the wire shape.
func FromSearchResponse(resp *types.SearchResponse) *SearchResponse {
	out := &SearchResponse{
		Edges:             toResults(resp.Edges, false),
		Nodes:             toResults(resp.Nodes, false),
		Episodes:          toResults(resp.Episodes, true),
		Communities:       toResults(resp.Communities, false),
		Query:             resp.Query,
		AsOf:              resp.AsOf,
		SearchMethodsUsed: make(map[string][]string, len(resp.MethodsUsed)),
		RerankerUsed:      make(map[string]string, len(resp.RerankerUsed)),
		Degraded:          resp.Degraded,
		Partial:           resp.Partial,
		TotalResults:      resp.Total,
	}
	for class, methods := range resp.MethodsUsed {
		names := make([]string, len(methods))
		for i, m := range methods {
			names[i] = string(m)
		}
		out.SearchMethodsUsed[string(class)] = names
	}
	for class, reranker := range resp.RerankerUsed {
		out.RerankerUsed[string(class)] = string(reranker)
	}
	return out
}

func toResults(ranked []types.RankedResult, truncateContent bool) []SearchResult {
	results := make([]SearchResult, 0, len(ranked))
	for _, r := range ranked {
		c := r.Candidate
		channels := make([]string, len(r.Channels))
		for i, ch := range r.Channels {
			channels[i] = string(ch)
		}

		content := c.Content
		if truncateContent {
			content = truncateToRuneBoundary(content, MaxEpisodeContentLength)
		}

		result := SearchResult{
			UUID:      c.ID,
			Name:      c.Name,
			Content:   content,
			Score:     r.Score,
			Channels:  channels,
			GroupID:   c.GroupID,
			SourceID:  c.SourceID,
			TargetID:  c.TargetID,
			CreatedAt: c.CreatedAt,
			Metadata:  c.Metadata,
		}
		if !c.ValidFrom.IsZero() {
			validAt := c.ValidFrom
			result.ValidAt = &validAt
		}
		result.InvalidAt = c.ValidTo

		results = append(results, result)
	}
	return results
}

// BasicSearchResult is one flat hit in the POST /search response.
type BasicSearchResult struct {
	UUID       string                 `json:"uuid"`
	Name       string                 `json:"name"`
	Content    string                 `json:"content"`
	Score      float64                `json:"score"`
	ResultType string                 `json:"result_type"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// BasicSearchResponse is the POST /search body: a flat list of edge hits
// rather than the grouped hybrid shape.
type BasicSearchResponse struct {
	Results []BasicSearchResult `json:"results"`
	Total   int                 `json:"total"`
	Query   string              `json:"query"`
}

// ToBasicSearchResponse flattens an edge-only engine response.
func ToBasicSearchResponse(resp *types.SearchResponse) *BasicSearchResponse {
	results := make([]BasicSearchResult, 0, len(resp.Edges))
	for _, r := range resp.Edges {
		c := r.Candidate
		metadata := c.Metadata
		if metadata == nil {
			metadata = map[string]interface{}{}
		}
		results = append(results, BasicSearchResult{
			UUID:       c.ID,
			Name:       c.Name,
			Content:    c.Content,
			Score:      r.Score,
			ResultType: string(types.ClassEdge),
			Metadata:   metadata,
		})
	}
	return &BasicSearchResponse{
		Results: results,
		Total:   len(results),
		Query:   resp.Query,
	}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}
