package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/soundprediction/recall/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails a configurable number of calls before succeeding.
type flakyStore struct {
	mu        sync.Mutex
	failUntil int
	calls     int
	err       error
}

func (f *flakyStore) answer() ([]*types.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failUntil {
		return nil, f.err
	}
	return []*types.Candidate{{ID: "ok", Class: types.ClassNode}}, nil
}

func (f *flakyStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *flakyStore) QueryLexical(ctx context.Context, class types.EntityClass, query, groupID string, limit int) ([]*types.Candidate, error) {
	return f.answer()
}

func (f *flakyStore) QueryVector(ctx context.Context, class types.EntityClass, vector []float32, groupID string, limit int) ([]*types.Candidate, error) {
	return f.answer()
}

func (f *flakyStore) QueryTraversal(ctx context.Context, class types.EntityClass, query, groupID string, limit int) ([]*types.Candidate, error) {
	return f.answer()
}

func (f *flakyStore) Ping(ctx context.Context) error  { return nil }
func (f *flakyStore) Close(ctx context.Context) error { return nil }

func TestBreakerStoreRetriesTransientFailure(t *testing.T) {
	inner := &flakyStore{failUntil: 1, err: ErrStoreUnavailable}
	breaker := NewBreakerStore(inner, DefaultBreakerConfig(), nil)

	candidates, err := breaker.QueryLexical(context.Background(), types.ClassNode, "acme", "", 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 2, inner.callCount())
}

func TestBreakerStoreDoesNotRetryTimeout(t *testing.T) {
	inner := &flakyStore{failUntil: 10, err: ErrStoreTimeout}
	breaker := NewBreakerStore(inner, DefaultBreakerConfig(), nil)

	_, err := breaker.QueryLexical(context.Background(), types.ClassNode, "acme", "", 10)
	assert.ErrorIs(t, err, ErrStoreTimeout)
	assert.Equal(t, 1, inner.callCount())
}

func TestBreakerStoreOpensAfterRepeatedFailures(t *testing.T) {
	inner := &flakyStore{failUntil: 100, err: ErrStoreUnavailable}
	cfg := BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		ReadyToTripRatio: 0.6,
	}
	breaker := NewBreakerStore(inner, cfg, nil)

	for i := 0; i < 5; i++ {
		_, _ = breaker.QueryLexical(context.Background(), types.ClassNode, "acme", "", 10)
	}

	callsBefore := inner.callCount()
	_, err := breaker.QueryLexical(context.Background(), types.ClassNode, "acme", "", 10)
	require.Error(t, err)
	// The breaker is open: the error maps to unavailable and the inner store
	// is no longer being called.
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, callsBefore, inner.callCount())
}
