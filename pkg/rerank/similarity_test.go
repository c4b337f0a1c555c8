package rerank

import (
	"testing"

	"github.com/soundprediction/recall/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 0}))
}

func TestTextCosine(t *testing.T) {
	assert.InDelta(t, 1.0, textCosine("acme builds rockets", "Acme builds rockets"), 1e-9)
	assert.Equal(t, 0.0, textCosine("acme builds rockets", "weather in oslo"))
	assert.Equal(t, 0.0, textCosine("", "anything"))

	partial := textCosine("acme builds rockets", "acme sells anvils")
	assert.Greater(t, partial, 0.0)
	assert.Less(t, partial, 1.0)
}

func TestSimilarityPrefersEmbeddings(t *testing.T) {
	a := &types.Candidate{Content: "identical text", Embedding: []float32{1, 0}}
	b := &types.Candidate{Content: "identical text", Embedding: []float32{0, 1}}

	// Text is identical but embeddings are orthogonal; embeddings win.
	assert.InDelta(t, 0.0, similarity(a, b), 1e-9)

	// Without embeddings the text cosine takes over.
	a.Embedding = nil
	b.Embedding = nil
	assert.InDelta(t, 1.0, similarity(a, b), 1e-9)
}
