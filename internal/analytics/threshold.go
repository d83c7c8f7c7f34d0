package analytics

import (
	"fmt"
	"math"
	"sort"

	"insider-risk/internal/models"
)

const DefaultPercentile = 95.0

// DeriveThreshold returns the given percentile of scores using linear
// interpolation between closest ranks. A batch of one score yields that
// score, so a lone entity can never exceed its own threshold.
func DeriveThreshold(scores []float64, percentile float64) (float64, error) {
	if len(scores) == 0 {
		return 0, fmt.Errorf("%w: no scores to derive a threshold from", models.ErrInvalidInput)
	}
	if math.IsNaN(percentile) || percentile < 0 || percentile > 100 {
		return 0, fmt.Errorf("%w: percentile %v outside [0, 100]", models.ErrInvalidInput, percentile)
	}

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)

	rank := percentile / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo], nil
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo]), nil
}

// Ties at the threshold are not anomalous.
func IsAnomalous(score, threshold float64) bool {
	return score > threshold
}
