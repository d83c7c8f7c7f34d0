package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"insider-risk/internal/models"
	"insider-risk/internal/scorer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, model scorer.Model, obs Observer) *Engine {
	t.Helper()
	e, err := NewEngine(model, Options{ModelTimeout: 50 * time.Millisecond, Observer: obs})
	require.NoError(t, err)
	return e
}

func newTestSession(t *testing.T, e *Engine) *Session {
	t.Helper()
	s, err := e.NewSession(outlierPopulation(t))
	require.NoError(t, err)
	return s
}

func engIDs() []string {
	ids := make([]string, 0, 10)
	for i := 1; i <= 9; i++ {
		ids = append(ids, entityID(i))
	}
	return append(ids, "E10")
}

func TestNewEngine_Defaults(t *testing.T) {
	e, err := NewEngine(zeroModel{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPercentile, e.Percentile())
	assert.Equal(t, DefaultBandPolicy(), e.Bands())
}

func TestNewEngine_Invalid(t *testing.T) {
	_, err := NewEngine(nil, Options{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = NewEngine(zeroModel{}, Options{Percentile: 120})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = NewEngine(zeroModel{}, Options{Bands: BandPolicy{CriticalRatio: 2}})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestEngine_ScoreCohortFlagsOutlier(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestEngine(t, zeroModel{}, obs)
	s := newTestSession(t, e)

	res, err := e.ScoreCohort(context.Background(), s, engIDs(), 95)
	require.NoError(t, err)
	assert.Equal(t, 95.0, res.Percentile)
	assert.InDelta(t, 0.55, res.Threshold, 1e-9)
	require.Len(t, res.Results, 10)

	for _, r := range res.Results {
		assert.GreaterOrEqual(t, r.ReconstructionError, 0.0)
		assert.Equal(t, res.Threshold, r.Threshold)
		if r.EntityID == "E10" {
			assert.True(t, r.IsAnomaly)
			assert.InDelta(t, 1.0, r.ReconstructionError, 1e-12)
			// the statistical flag does not rewrite the recorded label
			assert.Equal(t, models.LabelNormal, r.BehaviorLabel)
		} else {
			assert.False(t, r.IsAnomaly, r.EntityID)
		}
	}

	assert.Equal(t, 10, obs.scored)
	stats := e.Stats()
	assert.EqualValues(t, 1, stats.Runs)
	assert.EqualValues(t, 10, stats.EntitiesScored)
	assert.EqualValues(t, 1, stats.AnomaliesFlagged)
}

func TestEngine_ScoreEntitySingletonNeverFlagged(t *testing.T) {
	e := newTestEngine(t, zeroModel{}, nil)
	s := newTestSession(t, e)

	res, err := e.ScoreEntity(context.Background(), s, "E10")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.ReconstructionError, 1e-12)
	assert.Equal(t, res.ReconstructionError, res.Threshold)
	assert.False(t, res.IsAnomaly)
	assert.Equal(t, "Eng", res.Department)
	assert.Equal(t, 9.0, res.SessionHours)
}

func TestEngine_ProfileIsReused(t *testing.T) {
	e := newTestEngine(t, zeroModel{}, nil)
	s := newTestSession(t, e)

	// scoring a cohort without E10 must still use the population-wide scale
	res, err := e.ScoreCohort(context.Background(), s, []string{"E1", "O1"}, 95)
	require.NoError(t, err)
	for _, r := range res.Results {
		assert.Equal(t, 0.0, r.ReconstructionError)
	}
	assert.Equal(t, 12, s.Profile.PopulationSize)
}

func TestEngine_ScoreErrors(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestEngine(t, zeroModel{}, obs)
	s := newTestSession(t, e)
	ctx := context.Background()

	_, err := e.ScoreEntity(ctx, s, "nobody")
	assert.ErrorIs(t, err, models.ErrEntityNotFound)
	assert.Contains(t, err.Error(), "classify:")

	_, err = e.ScoreCohort(ctx, s, nil, 95)
	assert.ErrorIs(t, err, models.ErrEmptyCohort)

	_, err = e.ScoreCohort(ctx, s, []string{"E1", "E1"}, 95)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = e.ScoreCohort(ctx, s, []string{"E1", "E2"}, 101)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Contains(t, err.Error(), "threshold:")

	_, err = e.ScoreEntity(ctx, nil, "E1")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	assert.Contains(t, obs.failed, "classify")
	assert.Contains(t, obs.failed, "threshold")
	assert.EqualValues(t, 5, e.Stats().Failures)
}

func TestEngine_ModelFailuresAreScoringUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		model scorer.Model
	}{
		{"model error", failingModel{}},
		{"wrong row count", shortModel{}},
		{"timeout", blockingModel{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			e := newTestEngine(t, tt.model, obs)
			s := newTestSession(t, e)

			_, err := e.ScoreCohort(context.Background(), s, []string{"E1", "E10"}, 95)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrScoringUnavailable)
			assert.Contains(t, err.Error(), "reconstruct:")
			assert.Equal(t, []string{"reconstruct"}, obs.failed)
			assert.Zero(t, obs.scored)
		})
	}
}

func TestEngine_TimeoutKeepsDeadlineCause(t *testing.T) {
	e := newTestEngine(t, blockingModel{}, nil)
	s := newTestSession(t, e)

	start := time.Now()
	_, err := e.ScoreEntity(context.Background(), s, "E1")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEngine_ScoreDepartment(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestEngine(t, zeroModel{}, obs)
	s := newTestSession(t, e)

	sum, res, err := e.ScoreDepartment(context.Background(), s, "Eng")
	require.NoError(t, err)
	assert.Len(t, res.Results, 10)
	assert.Equal(t, "Eng", sum.Department)
	assert.Equal(t, 10, sum.Total)
	assert.Equal(t, 1, sum.AnomalyCount)
	assert.Equal(t, 10.0, sum.AnomalyRate)
	assert.Equal(t, models.BandNormal, sum.Status)
	assert.Equal(t, 10, sum.Labels.Normal)
	require.Len(t, obs.summaries, 1)

	_, _, err = e.ScoreDepartment(context.Background(), s, "Nowhere")
	assert.ErrorIs(t, err, models.ErrEmptyCohort)
	assert.Contains(t, err.Error(), "summarize:")
}

func TestEngine_SummarizeRecorded(t *testing.T) {
	e := newTestEngine(t, failingModel{}, nil)
	s := newTestSession(t, e)

	// never calls the model
	sum, err := e.SummarizeRecorded(s, "Ops")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 0, sum.AnomalyCount)
	assert.Equal(t, 1, sum.SuspiciousCount)
	assert.Equal(t, 1, sum.CriticalCount)
	assert.Equal(t, models.BandPoor, sum.Status)

	_, err = e.SummarizeRecorded(s, "Nowhere")
	assert.ErrorIs(t, err, models.ErrEmptyCohort)
}
