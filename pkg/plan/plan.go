// Package plan turns a search request's feature toggles into concrete
// per-entity-class retrieval plans. Planning is a pure function of the
// request; it performs no I/O and never fails, it only narrows.
package plan

import (
	"github.com/soundprediction/recall/pkg/types"
)

// DefaultLimit is substituted when a request carries a non-positive limit.
const DefaultLimit = 10

// RetrievalPlan describes how one entity class will be searched: which
// channels to query, how to fuse their results, and how many results to keep.
// Built once per request and never mutated afterwards.
type RetrievalPlan struct {
	Class     types.EntityClass    `json:"class"`
	Methods   []types.SearchMethod `json:"methods"`
	Reranker  types.RerankStrategy `json:"reranker"`
	MMRLambda float64              `json:"mmr_lambda"`
	Limit     int                  `json:"limit"`
}

// rerankerTable resolves caller-supplied reranker keys. Unknown keys resolve
// to RRF; this is a documented permissive default, and the resolved value is
// echoed in the response so the fallback is never silent.
var rerankerTable = map[string]types.RerankStrategy{
	"rrf":           types.RerankRRF,
	"mmr":           types.RerankMMR,
	"cross_encoder": types.RerankCrossEncoder,
	"none":          types.RerankRRF,
	"":              types.RerankRRF,
}

// ResolveReranker maps a reranker key to a strategy, falling back to RRF.
func ResolveReranker(key string) types.RerankStrategy {
	if strategy, ok := rerankerTable[key]; ok {
		return strategy
	}
	return types.RerankRRF
}

// BuildPlans maps the request's toggles to one plan per selected entity
// class. Classes with no enabled channels are omitted entirely rather than
// planned empty. Communities only support lexical and vector channels; a
// traversal toggle is dropped for that class alone.
func BuildPlans(req *types.SearchRequest) map[types.EntityClass]RetrievalPlan {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	reranker := ResolveReranker(req.Reranker)

	methods := enabledMethods(req)

	plans := make(map[types.EntityClass]RetrievalPlan, len(types.AllEntityClasses))
	for _, class := range types.AllEntityClasses {
		if !classSelected(req, class) {
			continue
		}
		classMethods := methodsForClass(class, methods)
		if len(classMethods) == 0 {
			continue
		}
		plans[class] = RetrievalPlan{
			Class:     class,
			Methods:   classMethods,
			Reranker:  reranker,
			MMRLambda: req.MMRLambda,
			Limit:     limit,
		}
	}
	return plans
}

func enabledMethods(req *types.SearchRequest) []types.SearchMethod {
	var methods []types.SearchMethod
	if req.UseLexical {
		methods = append(methods, types.MethodLexical)
	}
	if req.UseVector {
		methods = append(methods, types.MethodVector)
	}
	if req.UseTraversal {
		methods = append(methods, types.MethodTraversal)
	}
	return methods
}

func classSelected(req *types.SearchRequest, class types.EntityClass) bool {
	switch class {
	case types.ClassEdge:
		return req.SearchEdges
	case types.ClassNode:
		return req.SearchNodes
	case types.ClassEpisode:
		return req.SearchEpisodes
	case types.ClassCommunity:
		return req.SearchCommunities
	default:
		return false
	}
}

func methodsForClass(class types.EntityClass, methods []types.SearchMethod) []types.SearchMethod {
	if class != types.ClassCommunity {
		return methods
	}
	filtered := make([]types.SearchMethod, 0, len(methods))
	for _, m := range methods {
		if m == types.MethodTraversal {
			continue
		}
		filtered = append(filtered, m)
	}
	return filtered
}
