package temporal

import (
	"time"

	"github.com/soundprediction/recall/pkg/types"
)

// ValidAt reports whether a candidate's bitemporal window contains the given
// instant. The window is closed-open: asOf equal to ValidFrom is inside,
// asOf equal to ValidTo is outside. A nil ValidTo means the fact has not been
// invalidated.
func ValidAt(c *types.Candidate, asOf time.Time) bool {
	if c.ValidFrom.After(asOf) {
		return false
	}
	if c.ValidTo == nil {
		return true
	}
	return c.ValidTo.After(asOf)
}

// FilterValid returns the candidates valid at asOf, preserving order. A nil
// asOf passes everything through untouched.
func FilterValid(candidates []*types.Candidate, asOf *time.Time) []*types.Candidate {
	if asOf == nil {
		return candidates
	}
	filtered := make([]*types.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if ValidAt(c, *asOf) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
