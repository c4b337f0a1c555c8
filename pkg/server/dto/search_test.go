package dto

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/soundprediction/recall/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchRequestDefaults(t *testing.T) {
	dtoReq := &SearchRequest{Query: " acme "}
	req := dtoReq.ToSearchRequest()

	assert.Equal(t, "acme", req.Query)
	assert.True(t, req.SearchEdges)
	assert.True(t, req.SearchNodes)
	assert.False(t, req.SearchEpisodes)
	assert.False(t, req.SearchCommunities)
	assert.True(t, req.UseLexical)
	assert.True(t, req.UseVector)
	assert.False(t, req.UseTraversal)
	assert.Equal(t, 0.5, req.MMRLambda)
	assert.Nil(t, req.AsOf)
}

func TestSearchRequestExplicitFalseSurvives(t *testing.T) {
	f := false
	lambda := 0.0
	dtoReq := &SearchRequest{
		Query:       "acme",
		SearchEdges: &f,
		UseVector:   &f,
		MMRLambda:   &lambda,
	}
	req := dtoReq.ToSearchRequest()

	assert.False(t, req.SearchEdges)
	assert.True(t, req.SearchNodes)
	assert.False(t, req.UseVector)
	assert.Equal(t, 0.0, req.MMRLambda)
}

func TestSearchRequestValidation(t *testing.T) {
	assert.Error(t, (&SearchRequest{Query: "  "}).Validate())

	bad := 2.0
	assert.Error(t, (&SearchRequest{Query: "acme", MMRLambda: &bad}).Validate())

	badTime := "yesterday"
	assert.Error(t, (&SearchRequest{Query: "acme", AsOf: &badTime}).Validate())

	goodTime := "2024-06-15T12:00:00Z"
	assert.NoError(t, (&SearchRequest{Query: "acme", AsOf: &goodTime}).Validate())
}

func TestTemporalSearchRequestParsesAsOf(t *testing.T) {
	dtoReq := &TemporalSearchRequest{
		SearchRequest: SearchRequest{Query: "acme"},
		AsOf:          "2024-06-15T12:00:00Z",
	}

	req, err := dtoReq.ToSearchRequest()
	require.NoError(t, err)
	require.NotNil(t, req.AsOf)
	assert.True(t, req.AsOf.Equal(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)))

	dtoReq.AsOf = "not-a-time"
	_, err = dtoReq.ToSearchRequest()
	assert.Error(t, err)
}

func TestFromSearchResponseTruncatesEpisodeContent(t *testing.T) {
	long := strings.Repeat("x", MaxEpisodeContentLength+100)
	resp := &types.SearchResponse{
		Episodes: []types.RankedResult{{
			Candidate: &types.Candidate{ID: "ep1", Class: types.ClassEpisode, Content: long},
			Score:     1.0,
		}},
		Edges: []types.RankedResult{{
			Candidate: &types.Candidate{ID: "e1", Class: types.ClassEdge, Content: long},
			Score:     1.0,
		}},
		MethodsUsed:  map[types.EntityClass][]types.SearchMethod{},
		RerankerUsed: map[types.EntityClass]types.RerankStrategy{},
	}

	out := FromSearchResponse(resp)
	require.Len(t, out.Episodes, 1)
	assert.Len(t, out.Episodes[0].Content, MaxEpisodeContentLength)
	// Only episode content is truncated.
	assert.Len(t, out.Edges[0].Content, MaxEpisodeContentLength+100)
}

func TestFromSearchResponseTruncationRespectsRuneBoundaries(t *testing.T) {
	// Three-byte runes placed so the byte cap lands mid-rune.
	long := strings.Repeat("語", MaxEpisodeContentLength)
	resp := &types.SearchResponse{
		Episodes: []types.RankedResult{{
			Candidate: &types.Candidate{ID: "ep1", Class: types.ClassEpisode, Content: long},
			Score:     1.0,
		}},
		MethodsUsed:  map[types.EntityClass][]types.SearchMethod{},
		RerankerUsed: map[types.EntityClass]types.RerankStrategy{},
	}

	out := FromSearchResponse(resp)
	require.Len(t, out.Episodes, 1)
	got := out.Episodes[0].Content
	assert.LessOrEqual(t, len(got), MaxEpisodeContentLength)
	assert.True(t, utf8.ValidString(got))
	// A byte-sliced cut at 500 would bisect a rune; the boundary walk lands
	// on a whole number of them.
	assert.Equal(t, 0, len(got)%3)
}

func TestTruncateToRuneBoundary(t *testing.T) {
	assert.Equal(t, "short", truncateToRuneBoundary("short", 10))
	assert.Equal(t, "abcde", truncateToRuneBoundary("abcdef", 5))
	// "é" is two bytes; a cap of 2 splits it and must back off.
	assert.Equal(t, "a", truncateToRuneBoundary("aé", 2))
	assert.Equal(t, "aé", truncateToRuneBoundary("aé", 3))
}
