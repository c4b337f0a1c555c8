package recall

import (
	"context"
	"testing"
	"time"

	"github.com/soundprediction/recall/pkg/config"
	"github.com/soundprediction/recall/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore answers every channel with the same candidates.
type stubStore struct {
	candidates []*types.Candidate
	pingErr    error
}

func (s *stubStore) QueryLexical(ctx context.Context, class types.EntityClass, query, groupID string, limit int) ([]*types.Candidate, error) {
	return s.forClass(class), nil
}

func (s *stubStore) QueryVector(ctx context.Context, class types.EntityClass, vector []float32, groupID string, limit int) ([]*types.Candidate, error) {
	return s.forClass(class), nil
}

func (s *stubStore) QueryTraversal(ctx context.Context, class types.EntityClass, query, groupID string, limit int) ([]*types.Candidate, error) {
	return s.forClass(class), nil
}

func (s *stubStore) forClass(class types.EntityClass) []*types.Candidate {
	var out []*types.Candidate
	for _, c := range s.candidates {
		if c.Class == class {
			out = append(out, c)
		}
	}
	return out
}

func (s *stubStore) Ping(ctx context.Context) error  { return s.pingErr }
func (s *stubStore) Close(ctx context.Context) error { return nil }

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (stubEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (stubEmbedder) Dimensions() int { return 3 }

func testConfig() *config.Config {
	return &config.Config{
		Search: config.SearchConfig{MaxConcurrency: 4},
	}
}

func TestEngineSearch(t *testing.T) {
	st := &stubStore{candidates: []*types.Candidate{
		{ID: "e1", Class: types.ClassEdge, Name: "works_at", Content: "alice works at acme",
			Score: 1.0, ValidFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "n1", Class: types.ClassNode, Name: "acme", Content: "acme corp",
			Score: 0.9, ValidFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}}

	engine, err := New(testConfig(), &Options{Store: st, Embedder: stubEmbedder{}})
	require.NoError(t, err)

	resp, err := engine.Search(context.Background(), &types.SearchRequest{
		Query:       "acme",
		SearchEdges: true,
		SearchNodes: true,
		UseLexical:  true,
		UseVector:   true,
	})
	require.NoError(t, err)

	assert.Len(t, resp.Edges, 1)
	assert.Len(t, resp.Nodes, 1)
	assert.Equal(t, 2, resp.Total)
}

func TestEngineRequiresConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestEngineHealthCheck(t *testing.T) {
	engine, err := New(testConfig(), &Options{Store: &stubStore{}, Embedder: stubEmbedder{}})
	require.NoError(t, err)
	assert.NoError(t, engine.HealthCheck(context.Background()))
}

func TestEngineBreakerWrapsStore(t *testing.T) {
	cfg := testConfig()
	cfg.CircuitBreaker = config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      3,
		Interval:         60,
		Timeout:          30,
		ReadyToTripRatio: 0.6,
	}

	st := &stubStore{candidates: []*types.Candidate{
		{ID: "n1", Class: types.ClassNode, Name: "acme", Score: 1.0,
			ValidFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}}

	engine, err := New(cfg, &Options{Store: st, Embedder: stubEmbedder{}})
	require.NoError(t, err)

	resp, err := engine.Search(context.Background(), &types.SearchRequest{
		Query:       "acme",
		SearchNodes: true,
		UseLexical:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
}
