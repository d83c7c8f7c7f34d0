package analytics

import (
	"fmt"
	"testing"

	"insider-risk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cohort(dept string, total, anomalies, suspicious, critical int) []models.ScoringResult {
	out := make([]models.ScoringResult, total)
	for i := range out {
		label := models.LabelNormal
		switch {
		case i < critical:
			label = models.LabelCritical
		case i < critical+suspicious:
			label = models.LabelSuspicious
		}
		out[i] = models.ScoringResult{
			EntityID:      fmt.Sprintf("%s-%03d", dept, i),
			Department:    dept,
			BehaviorLabel: label,
			IsAnomaly:     i >= total-anomalies,
		}
	}
	return out
}

func TestSummarize_AnomalyRate(t *testing.T) {
	members := cohort("Finance", 10, 3, 0, 0)

	sum, err := Summarize(members, "Finance", DefaultBandPolicy())
	require.NoError(t, err)
	assert.Equal(t, 10, sum.Total)
	assert.Equal(t, 3, sum.AnomalyCount)
	assert.Equal(t, 30.0, sum.AnomalyRate)
	assert.Equal(t, models.BandNormal, sum.Status)
}

func TestSummarize_Banding(t *testing.T) {
	tests := []struct {
		name       string
		suspicious int
		critical   int
		want       models.StatusBand
	}{
		{"critical at ratio is not poor", 0, 20, models.BandNormal},
		{"critical above ratio", 0, 21, models.BandPoor},
		{"suspicious at ratio is not neutral", 10, 0, models.BandNormal},
		{"suspicious above ratio", 11, 0, models.BandNeutral},
		{"critical wins over suspicious", 50, 21, models.BandPoor},
		{"suspicious with critical at ratio", 11, 20, models.BandNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			members := cohort("Sales", 100, 0, tt.suspicious, tt.critical)
			sum, err := Summarize(members, "Sales", DefaultBandPolicy())
			require.NoError(t, err)
			assert.Equal(t, tt.want, sum.Status)
			assert.Equal(t, tt.suspicious, sum.SuspiciousCount)
			assert.Equal(t, tt.critical, sum.CriticalCount)
			assert.Equal(t, 100-tt.suspicious-tt.critical, sum.Labels.Normal)
		})
	}
}

func TestSummarize_FiltersDepartment(t *testing.T) {
	members := append(cohort("HR", 4, 1, 1, 0), cohort("IT", 6, 6, 0, 6)...)

	sum, err := Summarize(members, "HR", DefaultBandPolicy())
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 1, sum.AnomalyCount)
	assert.Equal(t, 25.0, sum.AnomalyRate)
	assert.Equal(t, models.BandNeutral, sum.Status)
}

func TestSummarize_EmptyCohort(t *testing.T) {
	_, err := Summarize([]models.ScoringResult{}, "Legal", DefaultBandPolicy())
	assert.ErrorIs(t, err, models.ErrEmptyCohort)

	_, err = Summarize(cohort("HR", 3, 0, 0, 0), "Legal", DefaultBandPolicy())
	assert.ErrorIs(t, err, models.ErrEmptyCohort)
}

func TestSummarize_RecordedFlagsAndAverages(t *testing.T) {
	yes, no := true, false
	a := record("a", "Eng", models.LabelNormal, 2)
	a.AccessAnomalyFlag = &yes
	b := record("b", "Eng", models.LabelSuspicious, 4)
	b.AccessAnomalyFlag = &no
	c := record("c", "Eng", models.LabelNormal, 6)

	sum, err := Summarize([]models.BehavioralRecord{a, b, c}, "Eng", DefaultBandPolicy())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.AnomalyCount)
	assert.InDelta(t, 100.0/3, sum.AnomalyRate, 1e-9)
	assert.Equal(t, models.LabelCounts{Normal: 2, Suspicious: 1}, sum.Labels)
	require.Len(t, sum.FeatureAverages, models.FeatureCount)
	for _, name := range models.FeatureNames {
		assert.InDelta(t, 4.0, sum.FeatureAverages[name], 1e-12, name)
	}
}

func TestBandPolicy_Custom(t *testing.T) {
	policy := BandPolicy{CriticalRatio: 0.5, SuspiciousRatio: 0.25}
	require.NoError(t, policy.Validate())

	assert.Equal(t, models.BandNormal, policy.Band(8, 2, 4))
	assert.Equal(t, models.BandNeutral, policy.Band(8, 3, 4))
	assert.Equal(t, models.BandPoor, policy.Band(8, 0, 5))

	assert.ErrorIs(t, BandPolicy{CriticalRatio: 1.2}.Validate(), models.ErrInvalidInput)
	assert.ErrorIs(t, BandPolicy{SuspiciousRatio: -0.1}.Validate(), models.ErrInvalidInput)
}
