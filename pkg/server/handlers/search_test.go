package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/recall/pkg/server/dto"
	"github.com/soundprediction/recall/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRecall records the request it received and returns a canned response.
type mockRecall struct {
	lastRequest *types.SearchRequest
	response    *types.SearchResponse
	err         error
	healthErr   error
}

func (m *mockRecall) Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	m.lastRequest = req
	if m.err != nil {
		return nil, m.err
	}
	if m.response != nil {
		return m.response, nil
	}
	return &types.SearchResponse{
		Edges:        []types.RankedResult{},
		Nodes:        []types.RankedResult{},
		Episodes:     []types.RankedResult{},
		Communities:  []types.RankedResult{},
		Query:        req.Query,
		MethodsUsed:  map[types.EntityClass][]types.SearchMethod{},
		RerankerUsed: map[types.EntityClass]types.RerankStrategy{},
	}, nil
}

func (m *mockRecall) HealthCheck(ctx context.Context) error { return m.healthErr }
func (m *mockRecall) Close(ctx context.Context) error       { return nil }

func setupRouter(m *mockRecall) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	searchHandler := NewSearchHandler(m)
	healthHandler := NewHealthHandler(m)
	router.POST("/search", searchHandler.Search)
	router.POST("/search/hybrid", searchHandler.HybridSearch)
	router.POST("/search/temporal", searchHandler.TemporalSearch)
	router.GET("/health", healthHandler.HealthCheck)
	return router
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHybridSearchDefaults(t *testing.T) {
	mock := &mockRecall{}
	router := setupRouter(mock)

	w := postJSON(router, "/search/hybrid", map[string]interface{}{"query": "acme"})
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, mock.lastRequest)
	assert.True(t, mock.lastRequest.SearchEdges)
	assert.True(t, mock.lastRequest.SearchNodes)
	assert.False(t, mock.lastRequest.SearchEpisodes)
	assert.True(t, mock.lastRequest.UseLexical)
	assert.True(t, mock.lastRequest.UseVector)
	assert.False(t, mock.lastRequest.UseTraversal)
	assert.Equal(t, 0.5, mock.lastRequest.MMRLambda)
}

func TestHybridSearchExplicitToggles(t *testing.T) {
	mock := &mockRecall{}
	router := setupRouter(mock)

	w := postJSON(router, "/search/hybrid", map[string]interface{}{
		"query":         "acme",
		"search_edges":  false,
		"search_nodes":  true,
		"use_vector":    false,
		"use_traversal": true,
		"reranker":      "mmr",
		"mmr_lambda":    0.0,
		"group_id":      "tenant-1",
		"limit":         3,
	})
	require.Equal(t, http.StatusOK, w.Code)

	req := mock.lastRequest
	require.NotNil(t, req)
	assert.False(t, req.SearchEdges)
	assert.True(t, req.SearchNodes)
	assert.False(t, req.UseVector)
	assert.True(t, req.UseTraversal)
	assert.Equal(t, "mmr", req.Reranker)
	// An explicit zero lambda survives; it is not replaced by the default.
	assert.Equal(t, 0.0, req.MMRLambda)
	assert.Equal(t, "tenant-1", req.GroupID)
	assert.Equal(t, 3, req.Limit)
}

func TestHybridSearchRejectsMissingQuery(t *testing.T) {
	router := setupRouter(&mockRecall{})

	w := postJSON(router, "/search/hybrid", map[string]interface{}{"limit": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var errResp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "invalid_request", errResp.Error)
}

func TestHybridSearchRejectsBadLambda(t *testing.T) {
	router := setupRouter(&mockRecall{})

	w := postJSON(router, "/search/hybrid", map[string]interface{}{
		"query":      "acme",
		"mmr_lambda": 1.5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTemporalSearchRequiresAsOf(t *testing.T) {
	router := setupRouter(&mockRecall{})

	w := postJSON(router, "/search/temporal", map[string]interface{}{"query": "acme"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTemporalSearchParsesAsOf(t *testing.T) {
	mock := &mockRecall{}
	router := setupRouter(mock)

	w := postJSON(router, "/search/temporal", map[string]interface{}{
		"query": "acme",
		"as_of": "2024-06-15T12:00:00Z",
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, mock.lastRequest.AsOf)
	expected := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	assert.True(t, mock.lastRequest.AsOf.Equal(expected))
}

func TestBasicSearchIsEdgeOnly(t *testing.T) {
	mock := &mockRecall{}
	router := setupRouter(mock)

	w := postJSON(router, "/search", map[string]interface{}{
		"query":           "acme",
		"search_nodes":    true,
		"search_episodes": true,
		"use_traversal":   true,
		"reranker":        "cross_encoder",
	})
	require.Equal(t, http.StatusOK, w.Code)

	req := mock.lastRequest
	require.NotNil(t, req)
	assert.True(t, req.SearchEdges)
	assert.False(t, req.SearchNodes)
	assert.False(t, req.SearchEpisodes)
	assert.False(t, req.SearchCommunities)
	assert.True(t, req.UseLexical)
	assert.True(t, req.UseVector)
	assert.False(t, req.UseTraversal)
	assert.Empty(t, req.Reranker)
}

func TestBasicSearchReturnsFlatResults(t *testing.T) {
	mock := &mockRecall{
		response: &types.SearchResponse{
			Edges: []types.RankedResult{{
				Candidate: &types.Candidate{
					ID: "e1", Class: types.ClassEdge, Name: "works_at",
					Content: "alice works at acme",
				},
				Score: 0.032,
			}},
			Nodes:        []types.RankedResult{},
			Episodes:     []types.RankedResult{},
			Communities:  []types.RankedResult{},
			Query:        "acme",
			MethodsUsed:  map[types.EntityClass][]types.SearchMethod{},
			RerankerUsed: map[types.EntityClass]types.RerankStrategy{},
			Total:        1,
		},
	}
	router := setupRouter(mock)

	w := postJSON(router, "/search", map[string]interface{}{"query": "acme"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.BasicSearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "e1", resp.Results[0].UUID)
	assert.Equal(t, "alice works at acme", resp.Results[0].Content)
	assert.Equal(t, "edge", resp.Results[0].ResultType)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "acme", resp.Query)

	// The body is the flat shape, not the grouped hybrid one.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Contains(t, raw, "results")
	assert.NotContains(t, raw, "edges")
	assert.NotContains(t, raw, "total_results")
}

func TestSearchResponseShape(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock := &mockRecall{
		response: &types.SearchResponse{
			Edges: []types.RankedResult{{
				Candidate: &types.Candidate{
					ID: "e1", Class: types.ClassEdge, Name: "works_at",
					Content: "alice works at acme", ValidFrom: now, CreatedAt: now,
				},
				Score:    0.032,
				Channels: []types.SearchMethod{types.MethodLexical, types.MethodVector},
			}},
			Nodes:       []types.RankedResult{},
			Episodes:    []types.RankedResult{},
			Communities: []types.RankedResult{},
			Query:       "acme",
			MethodsUsed: map[types.EntityClass][]types.SearchMethod{
				types.ClassEdge: {types.MethodLexical, types.MethodVector},
			},
			RerankerUsed: map[types.EntityClass]types.RerankStrategy{
				types.ClassEdge: types.RerankRRF,
			},
			Total: 1,
		},
	}
	router := setupRouter(mock)

	w := postJSON(router, "/search/hybrid", map[string]interface{}{"query": "acme"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Len(t, resp.Edges, 1)
	assert.Equal(t, "e1", resp.Edges[0].UUID)
	assert.Equal(t, []string{"lexical", "vector"}, resp.Edges[0].Channels)
	assert.Equal(t, []string{"lexical", "vector"}, resp.SearchMethodsUsed["edge"])
	assert.Equal(t, "rrf", resp.RerankerUsed["edge"])
	assert.Equal(t, 1, resp.TotalResults)
	assert.NotNil(t, resp.Nodes)
	assert.NotNil(t, resp.Communities)
}

func TestSearchEngineErrorMapsToStatus(t *testing.T) {
	mock := &mockRecall{err: types.ErrEmptyQuery}
	router := setupRouter(mock)

	w := postJSON(router, "/search/hybrid", map[string]interface{}{"query": "acme"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	mock.err = types.ErrOrchestratorFatal
	w = postJSON(router, "/search/hybrid", map[string]interface{}{"query": "acme"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthCheck(t *testing.T) {
	mock := &mockRecall{}
	router := setupRouter(mock)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	mock.healthErr = context.DeadlineExceeded
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
