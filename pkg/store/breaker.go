package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/soundprediction/recall/pkg/types"
)

// BreakerConfig tunes the circuit breaker wrapping a GraphStore.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ReadyToTripRatio float64
}

// DefaultBreakerConfig returns the settings used when none are configured.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		ReadyToTripRatio: 0.6,
	}
}

// BreakerStore wraps a GraphStore with a circuit breaker and one internal
// retry on transient failures. Retries are a channel-adapter policy and are
// invisible to the orchestrator.
type BreakerStore struct {
	store  GraphStore
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// NewBreakerStore wraps the given store.
func NewBreakerStore(store GraphStore, cfg BreakerConfig, logger *slog.Logger) *BreakerStore {
	if logger == nil {
		logger = slog.Default()
	}
	st := gobreaker.Settings{
		Name:        "graph-store",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerStore{
		store:  store,
		cb:     gobreaker.NewCircuitBreaker(st),
		logger: logger,
	}
}

func (b *BreakerStore) QueryLexical(ctx context.Context, class types.EntityClass, query, groupID string, limit int) ([]*types.Candidate, error) {
	return b.execute(ctx, func() ([]*types.Candidate, error) {
		return b.store.QueryLexical(ctx, class, query, groupID, limit)
	})
}

func (b *BreakerStore) QueryVector(ctx context.Context, class types.EntityClass, vector []float32, groupID string, limit int) ([]*types.Candidate, error) {
	return b.execute(ctx, func() ([]*types.Candidate, error) {
		return b.store.QueryVector(ctx, class, vector, groupID, limit)
	})
}

func (b *BreakerStore) QueryTraversal(ctx context.Context, class types.EntityClass, query, groupID string, limit int) ([]*types.Candidate, error) {
	return b.execute(ctx, func() ([]*types.Candidate, error) {
		return b.store.QueryTraversal(ctx, class, query, groupID, limit)
	})
}

func (b *BreakerStore) Ping(ctx context.Context) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.store.Ping(ctx)
	})
	return err
}

func (b *BreakerStore) Close(ctx context.Context) error {
	return b.store.Close(ctx)
}

// execute runs the query through the breaker, retrying once on an
// unavailable backend. Timeouts are not retried: the caller's deadline is
// already gone.
func (b *BreakerStore) execute(ctx context.Context, fn func() ([]*types.Candidate, error)) ([]*types.Candidate, error) {
	run := func() ([]*types.Candidate, error) {
		result, err := b.cb.Execute(func() (interface{}, error) {
			return fn()
		})
		if err != nil {
			return nil, err
		}
		return result.([]*types.Candidate), nil
	}

	candidates, err := run()
	if err != nil && errors.Is(err, ErrStoreUnavailable) && ctx.Err() == nil {
		b.logger.Debug("retrying store query after transient failure", "error", err)
		candidates, err = run()
	}
	if err != nil && (errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)) {
		err = errors.Join(ErrStoreUnavailable, err)
	}
	return candidates, err
}
