package crossencoder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClientScoresTermOverlap(t *testing.T) {
	mock := NewMockClient()

	scores, err := mock.Score(context.Background(), "acme rockets", []string{
		"Acme Corp builds rockets in Nevada",
		"rockets are loud",
		"weather in oslo",
	})
	require.NoError(t, err)
	require.Len(t, scores, 3)

	assert.Equal(t, 1.0, scores[0])
	assert.Equal(t, 0.5, scores[1])
	assert.Equal(t, 0.0, scores[2])
}

func TestMockClientErrorInjection(t *testing.T) {
	mock := NewMockClient()
	mock.Err = errors.New("offline")

	_, err := mock.Score(context.Background(), "q", []string{"p"})
	assert.Error(t, err)
}
