package analytics

import (
	"fmt"
	"math"

	"insider-risk/internal/models"
)

type FeatureRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// NormalizationProfile holds per-feature min/max of a reference population,
// in models.FeatureNames order. Fit it once per population and reuse it; a
// refit over a different population changes the scale of every vector.
type NormalizationProfile struct {
	Features       []string       `json:"features"`
	Ranges         []FeatureRange `json:"ranges"`
	PopulationSize int            `json:"population_size"`
}

func Fit(population []models.BehavioralRecord) (NormalizationProfile, error) {
	if len(population) == 0 {
		return NormalizationProfile{}, fmt.Errorf("%w: empty reference population", models.ErrInvalidInput)
	}

	ranges := make([]FeatureRange, models.FeatureCount)
	for j := range ranges {
		ranges[j] = FeatureRange{Min: math.Inf(1), Max: math.Inf(-1)}
	}

	for _, r := range population {
		for j, v := range r.Features() {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return NormalizationProfile{}, fmt.Errorf("%w: entity %s has non-finite %s", models.ErrInvalidInput, r.EntityID, models.FeatureNames[j])
			}
			ranges[j].Min = math.Min(ranges[j].Min, v)
			ranges[j].Max = math.Max(ranges[j].Max, v)
		}
	}

	return NormalizationProfile{
		Features:       append([]string(nil), models.FeatureNames...),
		Ranges:         ranges,
		PopulationSize: len(population),
	}, nil
}

// Apply min-max scales one record. A feature that is constant across the
// reference population maps to 0.
func (p NormalizationProfile) Apply(r models.BehavioralRecord) ([]float64, error) {
	if err := p.checkSchema(); err != nil {
		return nil, err
	}

	raw := r.Features()
	out := make([]float64, len(raw))
	for j, x := range raw {
		span := p.Ranges[j].Max - p.Ranges[j].Min
		if span == 0 {
			out[j] = 0
			continue
		}
		out[j] = (x - p.Ranges[j].Min) / span
	}
	return out, nil
}

func (p NormalizationProfile) ApplyAll(records []models.BehavioralRecord) ([][]float64, error) {
	out := make([][]float64, 0, len(records))
	for _, r := range records {
		v, err := p.Apply(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (p NormalizationProfile) checkSchema() error {
	if len(p.Features) != models.FeatureCount || len(p.Ranges) != models.FeatureCount {
		return fmt.Errorf("%w: profile has %d features, want %d", models.ErrInvalidInput, len(p.Features), models.FeatureCount)
	}
	for j, name := range models.FeatureNames {
		if p.Features[j] != name {
			return fmt.Errorf("%w: profile feature %d is %q, want %q", models.ErrInvalidInput, j, p.Features[j], name)
		}
	}
	return nil
}
