// Package rerank fuses per-channel candidate lists for one entity class into
// a single ordered list with normalized scores. Fusion is pure and
// deterministic for identical inputs; only the cross-encoder strategy calls
// out, and it degrades to RRF when the scorer fails.
package rerank

import (
	"context"
	"log/slog"
	"sort"

	"github.com/soundprediction/recall/pkg/crossencoder"
	"github.com/soundprediction/recall/pkg/types"
)

// DefaultRankConstant is the RRF smoothing constant k in 1/(k+rank).
const DefaultRankConstant = 60

// ChannelLists holds the ranked candidates per retrieval channel for one
// entity class.
type ChannelLists map[types.SearchMethod][]*types.Candidate

// channelOrder fixes iteration order over channel maps so fusion is
// deterministic.
var channelOrder = []types.SearchMethod{types.MethodLexical, types.MethodVector, types.MethodTraversal}

// Params carries the per-class fusion settings from the retrieval plan.
type Params struct {
	Strategy  types.RerankStrategy
	MMRLambda float64
	Limit     int
	Query     string
}

// Fuse merges the channel lists using the requested strategy and returns the
// fused results plus the strategy actually applied (which differs from the
// request only when the cross-encoder degraded to RRF).
func Fuse(ctx context.Context, lists ChannelLists, params Params, scorer crossencoder.Client, logger *slog.Logger) ([]types.RankedResult, types.RerankStrategy) {
	if logger == nil {
		logger = slog.Default()
	}
	switch params.Strategy {
	case types.RerankMMR:
		return MMR(lists, params.MMRLambda, params.Limit), types.RerankMMR
	case types.RerankCrossEncoder:
		results, err := CrossEncoder(ctx, lists, params.Query, params.Limit, scorer)
		if err == nil {
			return results, types.RerankCrossEncoder
		}
		logger.Warn("cross-encoder unavailable, degrading to rrf", "error", err)
		return RRF(lists, params.Limit), types.RerankRRF
	default:
		return RRF(lists, params.Limit), types.RerankRRF
	}
}

// entry tracks one deduplicated candidate across channels.
type entry struct {
	candidate *types.Candidate
	channels  map[types.SearchMethod]bool
	// rank per channel, 1-based
	ranks map[types.SearchMethod]int
	// best per-channel score normalized to [0,1]
	relevance float64
}

// collect deduplicates candidates by identifier, recording per-channel ranks
// and the union of contributing channels. Per-channel scores are normalized
// by the channel's maximum so they become comparable as relevance in [0,1].
func collect(lists ChannelLists) map[string]*entry {
	entries := make(map[string]*entry)

	for _, method := range channelOrder {
		candidates, ok := lists[method]
		if !ok {
			continue
		}
		var maxScore float64
		for _, c := range candidates {
			if c.Score > maxScore {
				maxScore = c.Score
			}
		}
		for i, c := range candidates {
			e, exists := entries[c.ID]
			if !exists {
				e = &entry{
					candidate: c,
					channels:  make(map[types.SearchMethod]bool),
					ranks:     make(map[types.SearchMethod]int),
				}
				entries[c.ID] = e
			}
			e.channels[method] = true
			if _, seen := e.ranks[method]; !seen {
				e.ranks[method] = i + 1
			}
			normalized := c.Score
			if maxScore > 0 {
				normalized = c.Score / maxScore
			}
			if normalized > e.relevance {
				e.relevance = normalized
			}
		}
	}
	return entries
}

func (e *entry) provenance() []types.SearchMethod {
	channels := make([]types.SearchMethod, 0, len(e.channels))
	for _, method := range channelOrder {
		if e.channels[method] {
			channels = append(channels, method)
		}
	}
	return channels
}

// RRF performs reciprocal rank fusion: each channel appearance at 1-based
// rank r contributes 1/(k+r), contributions sum across channels, ties break
// by identifier.
func RRF(lists ChannelLists, limit int) []types.RankedResult {
	entries := collect(lists)

	type scored struct {
		id    string
		e     *entry
		score float64
	}
	fused := make([]scored, 0, len(entries))
	for id, e := range entries {
		var score float64
		for _, rank := range e.ranks {
			score += 1.0 / float64(DefaultRankConstant+rank)
		}
		fused = append(fused, scored{id: id, e: e, score: score})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].id < fused[j].id
	})

	return truncate(fused, limit, func(s scored) types.RankedResult {
		return types.RankedResult{Candidate: s.e.candidate, Score: s.score, Channels: s.e.provenance()}
	})
}

// MMR performs diversity-aware greedy selection: each pick maximizes
// lambda*relevance - (1-lambda)*maxSimilarityToSelected, where relevance is
// the candidate's best normalized channel score and similarity is measured
// over embeddings when present, content term frequencies otherwise.
func MMR(lists ChannelLists, lambda float64, limit int) []types.RankedResult {
	entries := collect(lists)

	remaining := make([]*entry, 0, len(entries))
	for _, e := range entries {
		remaining = append(remaining, e)
	}
	// Deterministic scan order for equal MMR scores: relevance, then id.
	sort.Slice(remaining, func(i, j int) bool {
		if remaining[i].relevance != remaining[j].relevance {
			return remaining[i].relevance > remaining[j].relevance
		}
		return remaining[i].candidate.ID < remaining[j].candidate.ID
	})

	var selected []types.RankedResult
	for len(remaining) > 0 && len(selected) < limit {
		bestIdx := -1
		bestScore := 0.0
		for i, e := range remaining {
			maxSim := 0.0
			for _, picked := range selected {
				sim := similarity(e.candidate, picked.Candidate)
				if sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*e.relevance - (1-lambda)*maxSim
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}

		pick := remaining[bestIdx]
		selected = append(selected, types.RankedResult{
			Candidate: pick.candidate,
			Score:     bestScore,
			Channels:  pick.provenance(),
		})
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// CrossEncoder scores every deduplicated candidate against the query through
// the external scorer and sorts by that scalar. The error is returned so the
// caller can degrade to RRF.
func CrossEncoder(ctx context.Context, lists ChannelLists, query string, limit int, scorer crossencoder.Client) ([]types.RankedResult, error) {
	if scorer == nil {
		return nil, crossencoder.ErrScorerUnavailable
	}
	entries := collect(lists)

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	passages := make([]string, len(ids))
	for i, id := range ids {
		c := entries[id].candidate
		if c.Content != "" {
			passages[i] = c.Content
		} else {
			passages[i] = c.Name
		}
	}

	scores, err := scorer.Score(ctx, query, passages)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(ids) {
		return nil, crossencoder.ErrScorerUnavailable
	}

	type scored struct {
		id    string
		e     *entry
		score float64
	}
	fused := make([]scored, len(ids))
	for i, id := range ids {
		fused[i] = scored{id: id, e: entries[id], score: scores[i]}
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].id < fused[j].id
	})

	return truncate(fused, limit, func(s scored) types.RankedResult {
		return types.RankedResult{Candidate: s.e.candidate, Score: s.score, Channels: s.e.provenance()}
	}), nil
}

func truncate[T any](items []T, limit int, convert func(T) types.RankedResult) []types.RankedResult {
	n := len(items)
	if limit > 0 && limit < n {
		n = limit
	}
	results := make([]types.RankedResult, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, convert(items[i]))
	}
	return results
}
