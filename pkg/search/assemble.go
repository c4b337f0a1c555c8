package search

import (
	"sort"

	"github.com/soundprediction/recall/pkg/types"
)

// assemble merges per-class outcomes into the final response. Classes keep
// their own fused order and are never interleaved by score; echo fields
// reflect post-planning, post-degradation reality rather than the raw
// request flags.
func assemble(req *types.SearchRequest, outcomes map[types.EntityClass]*classOutcome, partial bool) *types.SearchResponse {
	resp := &types.SearchResponse{
		Edges:        []types.RankedResult{},
		Nodes:        []types.RankedResult{},
		Episodes:     []types.RankedResult{},
		Communities:  []types.RankedResult{},
		Query:        req.Query,
		AsOf:         req.AsOf,
		MethodsUsed:  make(map[types.EntityClass][]types.SearchMethod, len(outcomes)),
		RerankerUsed: make(map[types.EntityClass]types.RerankStrategy, len(outcomes)),
		Partial:      partial,
	}

	for _, class := range types.AllEntityClasses {
		outcome, ok := outcomes[class]
		if !ok {
			continue
		}

		switch class {
		case types.ClassEdge:
			resp.Edges = outcome.results
		case types.ClassNode:
			resp.Nodes = outcome.results
		case types.ClassEpisode:
			resp.Episodes = outcome.results
		case types.ClassCommunity:
			resp.Communities = outcome.results
		}

		resp.MethodsUsed[class] = outcome.methodsUsed
		resp.RerankerUsed[class] = outcome.reranker
		resp.Degraded = append(resp.Degraded, outcome.degraded...)
		resp.Total += len(outcome.results)
	}

	sort.Strings(resp.Degraded)
	return resp
}
