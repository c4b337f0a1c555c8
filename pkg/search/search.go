// Package search contains the orchestrator: the top-level coordinator that
// plans a request, fans retrieval channels out against the graph store,
// applies the temporal validity filter, fuses per-channel results per entity
// class, and assembles the typed response.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/soundprediction/recall/pkg/crossencoder"
	"github.com/soundprediction/recall/pkg/embedder"
	"github.com/soundprediction/recall/pkg/plan"
	"github.com/soundprediction/recall/pkg/rerank"
	"github.com/soundprediction/recall/pkg/store"
	"github.com/soundprediction/recall/pkg/temporal"
	"github.com/soundprediction/recall/pkg/types"
)

// State names the orchestrator's linear phases. Transitions never loop;
// retries live inside the channel adapters, not here.
type State string

const (
	StatePlanning   State = "planning"
	StateFanningOut State = "fanning_out"
	StateFiltering  State = "filtering"
	StateReranking  State = "reranking"
	StateAssembling State = "assembling"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// DefaultMaxConcurrency bounds in-flight channel tasks per request.
const DefaultMaxConcurrency = 8

// Orchestrator coordinates one search request end to end. It holds only
// immutable collaborators; all per-request state is local to Search, so one
// instance serves concurrent requests.
type Orchestrator struct {
	store          store.GraphStore
	embedder       embedder.Client
	scorer         crossencoder.Client
	logger         *slog.Logger
	maxConcurrency int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithScorer sets the cross-encoder scorer. Without one, the cross-encoder
// strategy degrades to RRF.
func WithScorer(scorer crossencoder.Client) Option {
	return func(o *Orchestrator) { o.scorer = scorer }
}

// WithMaxConcurrency bounds concurrent channel tasks.
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator creates an orchestrator over the given collaborators.
func NewOrchestrator(graphStore store.GraphStore, embedderClient embedder.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:          graphStore,
		embedder:       embedderClient,
		logger:         slog.Default(),
		maxConcurrency: DefaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// classOutcome carries one class's results through reranking to assembly.
type classOutcome struct {
	results     []types.RankedResult
	methodsUsed []types.SearchMethod
	reranker    types.RerankStrategy
	degraded    []string
}

// Search runs the full pipeline. Partial failures degrade into response
// metadata; only invalid requests and internal invariant violations return
// an error.
func (o *Orchestrator) Search(ctx context.Context, req *types.SearchRequest) (resp *types.SearchResponse, err error) {
	// Plan building and fusion are pure code; a panic there is an internal
	// invariant violation, the one condition that fails the request.
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("%w: %v", types.ErrOrchestratorFatal, r)
			o.logger.Error("search failed", "state", string(StateFailed), "panic", r)
		}
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	o.logger.Debug("search planning", "state", string(StatePlanning), "query", req.Query)

	plans := plan.BuildPlans(req)
	if len(plans) == 0 {
		// Every selected class ended up with zero channels; nothing to ask.
		return assemble(req, nil, false), nil
	}

	queryVector := o.embedQuery(ctx, req, plans)

	o.logger.Debug("search fan-out", "state", string(StateFanningOut), "classes", len(plans))

	outcomes := make(map[types.EntityClass]*classOutcome, len(plans))
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, o.maxConcurrency)

	// Each class runs its own pipeline: channels fan out under the shared
	// semaphore, then the class filters and reranks as soon as its own
	// channels are done. A slow channel in one class never gates another
	// class's reranking; assembly waits for all of them.
	for _, p := range plans {
		wg.Add(1)
		go func(p plan.RetrievalPlan) {
			defer wg.Done()
			outcome := o.searchClass(ctx, req, p, queryVector, semaphore)
			mu.Lock()
			outcomes[p.Class] = outcome
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	o.logger.Debug("search assembling", "state", string(StateAssembling))
	partial := ctx.Err() != nil
	resp = assemble(req, outcomes, partial)

	o.logger.Info("search complete", "state", string(StateDone), "total", resp.Total, "partial", resp.Partial, "degraded", len(resp.Degraded))
	return resp, nil
}

// searchClass executes one class's retrieval plan: fan out its channels,
// barrier, temporal-filter, rerank.
func (o *Orchestrator) searchClass(ctx context.Context, req *types.SearchRequest, p plan.RetrievalPlan, queryVector []float32, semaphore chan struct{}) *classOutcome {
	results := make([]channelResult, len(p.Methods))
	var wg sync.WaitGroup

	for i, method := range p.Methods {
		wg.Add(1)
		go func(idx int, method types.SearchMethod) {
			defer wg.Done()
			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				results[idx] = channelResult{class: p.Class, method: method, err: ctx.Err()}
				return
			}
			results[idx] = executeChannel(ctx, o.store, p.Class, method, req.Query, queryVector, req.GroupID, p.Limit)
		}(i, method)
	}
	wg.Wait()

	outcome := &classOutcome{
		methodsUsed: make([]types.SearchMethod, 0, len(p.Methods)),
		reranker:    p.Reranker,
	}

	o.logger.Debug("class filtering", "state", string(StateFiltering), "class", string(p.Class))
	lists := make(rerank.ChannelLists, len(p.Methods))
	for _, r := range results {
		if r.err != nil {
			o.logger.Warn("channel degraded", "class", string(r.class), "method", string(r.method), "error", r.err)
			outcome.degraded = append(outcome.degraded, string(r.class)+"/"+string(r.method))
			continue
		}
		lists[r.method] = temporal.FilterValid(r.candidates, req.AsOf)
		outcome.methodsUsed = append(outcome.methodsUsed, r.method)
	}

	if len(lists) == 0 {
		// Every channel for this class failed: the class is unavailable,
		// contributing an empty list rather than failing the request. The
		// empty methodsUsed slice is what marks it unavailable.
		outcome.results = []types.RankedResult{}
		sort.Slice(outcome.degraded, func(i, j int) bool { return outcome.degraded[i] < outcome.degraded[j] })
		return outcome
	}

	o.logger.Debug("class reranking", "state", string(StateReranking), "class", string(p.Class))
	fused, used := rerank.Fuse(ctx, lists, rerank.Params{
		Strategy:  p.Reranker,
		MMRLambda: p.MMRLambda,
		Limit:     p.Limit,
		Query:     req.Query,
	}, o.scorer, o.logger)

	outcome.results = fused
	outcome.reranker = used
	sort.Slice(outcome.degraded, func(i, j int) bool { return outcome.degraded[i] < outcome.degraded[j] })
	return outcome
}

// embedQuery vectorizes the query once per request when any plan carries the
// vector channel. Failure degrades those channels instead of the request.
func (o *Orchestrator) embedQuery(ctx context.Context, req *types.SearchRequest, plans map[types.EntityClass]plan.RetrievalPlan) []float32 {
	needed := false
	for _, p := range plans {
		for _, m := range p.Methods {
			if m == types.MethodVector {
				needed = true
			}
		}
	}
	if !needed || o.embedder == nil {
		return nil
	}

	vector, err := o.embedder.EmbedSingle(ctx, strings.ReplaceAll(req.Query, "\n", " "))
	if err != nil {
		o.logger.Warn("query embedding failed, vector channels degraded", "error", err)
		return nil
	}
	return vector
}
