package analytics

import (
	"math"
	"testing"
	"time"

	"insider-risk/internal/dataset"
	"insider-risk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_PassesLabelThrough(t *testing.T) {
	r := record("C1", "Legal", models.LabelCritical, 3)
	r.LoginTimestamp = baseDay.Add(7*time.Hour + 30*time.Minute)
	r.LogoutTimestamp = baseDay.Add(17 * time.Hour)
	pop, err := dataset.NewPopulation([]models.BehavioralRecord{r})
	require.NoError(t, err)

	res, err := Classify(pop, "C1", Score{ReconstructionError: 0.01, Threshold: 0.5, Anomalous: false})
	require.NoError(t, err)
	assert.Equal(t, models.LabelCritical, res.BehaviorLabel)
	assert.False(t, res.IsAnomaly)
	assert.Equal(t, "Legal", res.Department)
	assert.Equal(t, "Analyst", res.Role)
	assert.Equal(t, 3.0, res.FileAccessFrequency)
	assert.Equal(t, 9.5, res.SessionHours)
	assert.Equal(t, 7, res.LoginHour)
	assert.Equal(t, 17, res.LogoutHour)
}

func TestClassify_Errors(t *testing.T) {
	pop, err := dataset.NewPopulation([]models.BehavioralRecord{record("C1", "Legal", models.LabelNormal, 1)})
	require.NoError(t, err)

	_, err = Classify(pop, "missing", Score{})
	assert.ErrorIs(t, err, models.ErrEntityNotFound)

	_, err = Classify(pop, "C1", Score{ReconstructionError: -0.1})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = Classify(pop, "C1", Score{ReconstructionError: math.NaN()})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestNewSession(t *testing.T) {
	pop := outlierPopulation(t)

	s, err := NewSession(pop)
	require.NoError(t, err)
	_, err = uuid.Parse(s.ID)
	assert.NoError(t, err)
	assert.False(t, s.CreatedAt.IsZero())
	assert.Equal(t, pop.Len(), s.Profile.PopulationSize)

	other, err := NewSession(pop)
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, other.ID)
	assert.Equal(t, s.Profile, other.Profile)
}

func TestNewSession_Invalid(t *testing.T) {
	_, err := NewSession(nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	empty, err := dataset.NewPopulation(nil)
	require.NoError(t, err)
	_, err = NewSession(empty)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Contains(t, err.Error(), "normalize:")
}

func TestTracker(t *testing.T) {
	tr := NewTracker(90)
	tr.Record([]models.ScoringResult{{IsAnomaly: true}, {}, {}, {}})
	tr.Record([]models.ScoringResult{{}})
	tr.RecordFailure()

	stats := tr.Snapshot()
	assert.EqualValues(t, 2, stats.Runs)
	assert.EqualValues(t, 5, stats.EntitiesScored)
	assert.EqualValues(t, 1, stats.AnomaliesFlagged)
	assert.EqualValues(t, 1, stats.Failures)
	assert.InDelta(t, 20.0, stats.AnomalyRate, 1e-12)
	assert.Equal(t, 90.0, stats.Percentile)
	assert.False(t, stats.LastRunTime.IsZero())
	assert.False(t, stats.LastAnomalyTime.IsZero())
}
