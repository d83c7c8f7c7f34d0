package scorer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"insider-risk/internal/models"
)

const DefaultTimeout = 5 * time.Second

// Model is the external reconstruction capability: N×6 in, N×6 out.
type Model interface {
	Reconstruct(ctx context.Context, batch [][]float64) ([][]float64, error)
}

type Observer interface {
	ModelCall(duration time.Duration, err error)
}

type ReconstructionScorer struct {
	model   Model
	timeout time.Duration
	obs     Observer
}

func NewReconstructionScorer(model Model, timeout time.Duration, obs Observer) *ReconstructionScorer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ReconstructionScorer{model: model, timeout: timeout, obs: obs}
}

// Score returns the mean squared reconstruction error of every row in batch.
// Any failure of the model, including a deadline or a malformed reply, is
// reported as ErrScoringUnavailable; no row is ever defaulted.
func (s *ReconstructionScorer) Score(ctx context.Context, batch [][]float64) ([]float64, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("%w: empty batch", models.ErrInvalidInput)
	}
	for i, row := range batch {
		if len(row) != models.FeatureCount {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", models.ErrInvalidInput, i, len(row), models.FeatureCount)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	out, err := s.model.Reconstruct(ctx, batch)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if s.obs != nil {
		s.obs.ModelCall(time.Since(start), err)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: model did not answer within %s: %w", models.ErrScoringUnavailable, s.timeout, err)
		}
		return nil, fmt.Errorf("%w: %w", models.ErrScoringUnavailable, err)
	}

	if len(out) != len(batch) {
		return nil, fmt.Errorf("%w: model returned %d rows for %d inputs", models.ErrScoringUnavailable, len(out), len(batch))
	}

	errs := make([]float64, len(batch))
	for i := range batch {
		if len(out[i]) != models.FeatureCount {
			return nil, fmt.Errorf("%w: model row %d has %d values, want %d", models.ErrScoringUnavailable, i, len(out[i]), models.FeatureCount)
		}
		mse, err := meanSquaredError(batch[i], out[i])
		if err != nil {
			return nil, fmt.Errorf("%w: model row %d: %v", models.ErrScoringUnavailable, i, err)
		}
		errs[i] = mse
	}

	return errs, nil
}

func meanSquaredError(in, out []float64) (float64, error) {
	var sum float64
	for j := range in {
		if math.IsNaN(out[j]) || math.IsInf(out[j], 0) {
			return 0, fmt.Errorf("non-finite value at feature %d", j)
		}
		d := in[j] - out[j]
		sum += d * d
	}
	return sum / float64(len(in)), nil
}
