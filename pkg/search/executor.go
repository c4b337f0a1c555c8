package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/soundprediction/recall/pkg/store"
	"github.com/soundprediction/recall/pkg/types"
)

// errNoQueryVector marks vector channels that could not run because the
// query embedding was unavailable. It degrades the channel like a store
// failure would.
var errNoQueryVector = errors.New("query embedding unavailable")

// overfetchFactor widens per-channel limits so fusion has more candidates to
// work with than the final cut.
const overfetchFactor = 2

// channelResult is the outcome of one (class, method) retrieval task.
type channelResult struct {
	class      types.EntityClass
	method     types.SearchMethod
	candidates []*types.Candidate
	err        error
}

// executeChannel issues one retrieval query against the graph store. A store
// or embedding failure comes back as an explicit error, never as an empty
// list; the orchestrator decides what degradation means.
func executeChannel(ctx context.Context, graphStore store.GraphStore, class types.EntityClass, method types.SearchMethod, query string, queryVector []float32, groupID string, limit int) channelResult {
	result := channelResult{class: class, method: method}
	fetchLimit := limit * overfetchFactor

	switch method {
	case types.MethodLexical:
		result.candidates, result.err = graphStore.QueryLexical(ctx, class, query, groupID, fetchLimit)
	case types.MethodVector:
		if len(queryVector) == 0 {
			result.err = errNoQueryVector
			return result
		}
		result.candidates, result.err = graphStore.QueryVector(ctx, class, queryVector, groupID, fetchLimit)
	case types.MethodTraversal:
		result.candidates, result.err = graphStore.QueryTraversal(ctx, class, query, groupID, fetchLimit)
	default:
		result.err = fmt.Errorf("unknown search method %q", method)
	}
	return result
}
