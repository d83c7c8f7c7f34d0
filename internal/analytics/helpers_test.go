package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"insider-risk/internal/dataset"
	"insider-risk/internal/models"

	"github.com/stretchr/testify/require"
)

var baseDay = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func record(id, dept string, label models.BehaviorLabel, v float64) models.BehavioralRecord {
	return models.BehavioralRecord{
		EntityID:            id,
		Department:          dept,
		Role:                "Analyst",
		WorkDuration:        v,
		IdleTime:            v,
		FileAccessFrequency: v,
		VPNUsage:            v,
		Latitude:            v,
		Longitude:           v,
		BehaviorLabel:       label,
		LoginTimestamp:      baseDay.Add(8 * time.Hour),
		LogoutTimestamp:     baseDay.Add(17 * time.Hour),
	}
}

// outlierPopulation has ten "Eng" entities with all features at 0 except
// E10 at 10, plus two "Ops" entities. With a zero-output model E10 scores
// an error of 1 and every other Eng entity 0.
func outlierPopulation(t *testing.T) *dataset.Population {
	t.Helper()
	var records []models.BehavioralRecord
	for i := 1; i <= 9; i++ {
		records = append(records, record(entityID(i), "Eng", models.LabelNormal, 0))
	}
	records = append(records, record("E10", "Eng", models.LabelNormal, 10))
	records = append(records,
		record("O1", "Ops", models.LabelSuspicious, 0),
		record("O2", "Ops", models.LabelCritical, 0),
	)

	pop, err := dataset.NewPopulation(records)
	require.NoError(t, err)
	return pop
}

func entityID(i int) string {
	return "E" + string(rune('0'+i))
}

type zeroModel struct{}

func (zeroModel) Reconstruct(_ context.Context, batch [][]float64) ([][]float64, error) {
	out := make([][]float64, len(batch))
	for i := range batch {
		out[i] = make([]float64, models.FeatureCount)
	}
	return out, nil
}

type failingModel struct{}

func (failingModel) Reconstruct(context.Context, [][]float64) ([][]float64, error) {
	return nil, errors.New("connection refused")
}

type shortModel struct{}

func (shortModel) Reconstruct(_ context.Context, batch [][]float64) ([][]float64, error) {
	return make([][]float64, len(batch)-1), nil
}

type blockingModel struct{}

func (blockingModel) Reconstruct(ctx context.Context, _ [][]float64) ([][]float64, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingObserver struct {
	mu        sync.Mutex
	scored    int
	failed    []string
	summaries []models.DepartmentSummary
}

func (o *recordingObserver) Scored(results []models.ScoringResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scored += len(results)
}

func (o *recordingObserver) Failed(step string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, step)
}

func (o *recordingObserver) Summarized(s models.DepartmentSummary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.summaries = append(o.summaries, s)
}
