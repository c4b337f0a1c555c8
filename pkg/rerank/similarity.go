package rerank

import (
	"math"
	"strings"

	"github.com/soundprediction/recall/pkg/types"
)

// similarity measures content overlap between two candidates for MMR's
// redundancy penalty. Embeddings are used when both candidates carry them;
// otherwise a term-frequency cosine over the content text.
func similarity(a, b *types.Candidate) float64 {
	if len(a.Embedding) > 0 && len(a.Embedding) == len(b.Embedding) {
		return cosine(a.Embedding, b.Embedding)
	}
	return textCosine(contentOf(a), contentOf(b))
}

func contentOf(c *types.Candidate) string {
	if c.Content != "" {
		return c.Content
	}
	return c.Name
}

// cosine computes cosine similarity between two equal-length vectors.
func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// textCosine computes cosine similarity of term-frequency vectors over
// lowercased whitespace tokens.
func textCosine(a, b string) float64 {
	ta := termFrequencies(a)
	tb := termFrequencies(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for term, fa := range ta {
		normA += fa * fa
		if fb, ok := tb[term]; ok {
			dot += fa * fb
		}
	}
	for _, fb := range tb {
		normB += fb * fb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func termFrequencies(text string) map[string]float64 {
	freqs := make(map[string]float64)
	for _, term := range strings.Fields(strings.ToLower(text)) {
		freqs[strings.Trim(term, ".,;:!?\"'()")]++
	}
	delete(freqs, "")
	return freqs
}
