package analytics

import (
	"fmt"
	"math"

	"insider-risk/internal/dataset"
	"insider-risk/internal/models"
)

type Score struct {
	ReconstructionError float64
	Threshold           float64
	Anomalous           bool
}

// Classify builds the result record for one entity. The recorded behaviour
// label and the statistical flag are both kept as-is; neither overrides the
// other, so a Normal entity that is a statistical outlier still shows up as one.
func Classify(pop *dataset.Population, entityID string, score Score) (models.ScoringResult, error) {
	rec, ok := pop.Lookup(entityID)
	if !ok {
		return models.ScoringResult{}, fmt.Errorf("%w: %s", models.ErrEntityNotFound, entityID)
	}
	if math.IsNaN(score.ReconstructionError) || score.ReconstructionError < 0 {
		return models.ScoringResult{}, fmt.Errorf("%w: reconstruction error %v for %s", models.ErrInvalidInput, score.ReconstructionError, entityID)
	}

	return models.ScoringResult{
		EntityID:            rec.EntityID,
		Department:          rec.Department,
		Role:                rec.Role,
		ReconstructionError: score.ReconstructionError,
		Threshold:           score.Threshold,
		IsAnomaly:           score.Anomalous,
		BehaviorLabel:       rec.BehaviorLabel,
		WorkDuration:        rec.WorkDuration,
		IdleTime:            rec.IdleTime,
		FileAccessFrequency: rec.FileAccessFrequency,
		VPNUsage:            rec.VPNUsage,
		Latitude:            rec.Latitude,
		Longitude:           rec.Longitude,
		LoginTimestamp:      rec.LoginTimestamp,
		LogoutTimestamp:     rec.LogoutTimestamp,
		SessionHours:        rec.LogoutTimestamp.Sub(rec.LoginTimestamp).Hours(),
		LoginHour:           rec.LoginTimestamp.Hour(),
		LogoutHour:          rec.LogoutTimestamp.Hour(),
	}, nil
}
