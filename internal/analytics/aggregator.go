package analytics

import (
	"fmt"

	"insider-risk/internal/models"
)

// CohortMember is satisfied by scored results (statistical flag) and by raw
// records (flag stored by the data source).
type CohortMember interface {
	DepartmentName() string
	Label() models.BehaviorLabel
	Anomalous() bool
	Features() []float64
}

type BandPolicy struct {
	CriticalRatio   float64
	SuspiciousRatio float64
}

func DefaultBandPolicy() BandPolicy {
	return BandPolicy{CriticalRatio: 0.20, SuspiciousRatio: 0.10}
}

func (b BandPolicy) Validate() error {
	if b.CriticalRatio < 0 || b.CriticalRatio > 1 {
		return fmt.Errorf("%w: critical ratio %v outside [0, 1]", models.ErrInvalidInput, b.CriticalRatio)
	}
	if b.SuspiciousRatio < 0 || b.SuspiciousRatio > 1 {
		return fmt.Errorf("%w: suspicious ratio %v outside [0, 1]", models.ErrInvalidInput, b.SuspiciousRatio)
	}
	return nil
}

// Band is evaluated in order, first match wins; both comparisons are strict.
func (b BandPolicy) Band(total, suspicious, critical int) models.StatusBand {
	switch {
	case float64(critical) > b.CriticalRatio*float64(total):
		return models.BandPoor
	case float64(suspicious) > b.SuspiciousRatio*float64(total):
		return models.BandNeutral
	default:
		return models.BandNormal
	}
}

// Summarize rolls up the members of one department.
//
//	total         = members whose department matches
//	anomaly_count = members flagged anomalous
//	anomaly_rate  = 100 · anomaly_count / total
//
// An empty department is an error rather than a 0% or NaN rate.
func Summarize[T CohortMember](members []T, department string, policy BandPolicy) (models.DepartmentSummary, error) {
	sum := models.DepartmentSummary{
		Department:      department,
		FeatureAverages: make(map[string]float64, models.FeatureCount),
	}
	totals := make([]float64, models.FeatureCount)

	for _, m := range members {
		if m.DepartmentName() != department {
			continue
		}
		sum.Total++
		if m.Anomalous() {
			sum.AnomalyCount++
		}
		switch m.Label() {
		case models.LabelNormal:
			sum.Labels.Normal++
		case models.LabelSuspicious:
			sum.Labels.Suspicious++
		case models.LabelCritical:
			sum.Labels.Critical++
		}
		for j, v := range m.Features() {
			totals[j] += v
		}
	}

	if sum.Total == 0 {
		return models.DepartmentSummary{}, fmt.Errorf("%w: no entities in department %q", models.ErrEmptyCohort, department)
	}

	sum.SuspiciousCount = sum.Labels.Suspicious
	sum.CriticalCount = sum.Labels.Critical
	sum.AnomalyRate = float64(sum.AnomalyCount) * 100 / float64(sum.Total)
	sum.Status = policy.Band(sum.Total, sum.SuspiciousCount, sum.CriticalCount)
	for j, name := range models.FeatureNames {
		sum.FeatureAverages[name] = totals[j] / float64(sum.Total)
	}

	return sum, nil
}
