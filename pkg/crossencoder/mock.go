package crossencoder

import (
	"context"
	"strings"
)

// MockClient is a deterministic scorer for tests and offline development.
// Score is the fraction of query terms contained in the passage.
type MockClient struct {
	// Err, when set, is returned from every call.
	Err error
}

// NewMockClient creates a mock scorer.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Score implements Client.
func (m *MockClient) Score(_ context.Context, query string, passages []string) ([]float64, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	terms := strings.Fields(strings.ToLower(query))
	scores := make([]float64, len(passages))
	for i, p := range passages {
		if len(terms) == 0 {
			scores[i] = 0.5
			continue
		}
		lower := strings.ToLower(p)
		hits := 0
		for _, t := range terms {
			if strings.Contains(lower, t) {
				hits++
			}
		}
		scores[i] = float64(hits) / float64(len(terms))
	}
	return scores, nil
}
