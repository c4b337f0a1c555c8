package temporal

import (
	"testing"
	"time"

	"github.com/soundprediction/recall/pkg/types"
	"github.com/stretchr/testify/assert"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tsp(s string) *time.Time {
	t := ts(s)
	return &t
}

func TestValidAt(t *testing.T) {
	asOf := ts("2024-06-15T12:00:00Z")

	tests := []struct {
		name      string
		validFrom time.Time
		validTo   *time.Time
		expected  bool
	}{
		{
			name:      "open window started before asOf",
			validFrom: ts("2024-01-01T00:00:00Z"),
			expected:  true,
		},
		{
			name:      "window starts exactly at asOf",
			validFrom: asOf,
			expected:  true,
		},
		{
			name:      "window starts after asOf",
			validFrom: ts("2024-07-01T00:00:00Z"),
			expected:  false,
		},
		{
			name:      "closed window covering asOf",
			validFrom: ts("2024-01-01T00:00:00Z"),
			validTo:   tsp("2024-12-31T00:00:00Z"),
			expected:  true,
		},
		{
			name:      "window ends exactly at asOf",
			validFrom: ts("2024-01-01T00:00:00Z"),
			validTo:   &asOf,
			expected:  false,
		},
		{
			name:      "window ended before asOf",
			validFrom: ts("2024-01-01T00:00:00Z"),
			validTo:   tsp("2024-03-01T00:00:00Z"),
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &types.Candidate{ValidFrom: tt.validFrom, ValidTo: tt.validTo}
			assert.Equal(t, tt.expected, ValidAt(c, asOf))
		})
	}
}

func TestFilterValid(t *testing.T) {
	asOf := ts("2024-06-15T12:00:00Z")
	candidates := []*types.Candidate{
		{ID: "current", ValidFrom: ts("2024-01-01T00:00:00Z")},
		{ID: "expired", ValidFrom: ts("2024-01-01T00:00:00Z"), ValidTo: tsp("2024-02-01T00:00:00Z")},
		{ID: "future", ValidFrom: ts("2025-01-01T00:00:00Z")},
	}

	t.Run("nil asOf keeps everything", func(t *testing.T) {
		assert.Len(t, FilterValid(candidates, nil), 3)
	})

	t.Run("filters by point in time", func(t *testing.T) {
		filtered := FilterValid(candidates, &asOf)
		assert.Len(t, filtered, 1)
		assert.Equal(t, "current", filtered[0].ID)
	})

	t.Run("all filtered yields empty not nil decision", func(t *testing.T) {
		past := ts("2020-01-01T00:00:00Z")
		filtered := FilterValid(candidates, &past)
		assert.Empty(t, filtered)
	})
}
