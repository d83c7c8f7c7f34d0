package analytics

import (
	"context"
	"fmt"
	"time"

	"insider-risk/internal/dataset"
	"insider-risk/internal/models"
	"insider-risk/internal/scorer"

	"go.uber.org/zap"
)

type Observer interface {
	Scored(results []models.ScoringResult)
	Failed(step string)
	Summarized(summary models.DepartmentSummary)
}

type Options struct {
	Percentile    float64
	Bands         BandPolicy
	ModelTimeout  time.Duration
	ModelObserver scorer.Observer
	Observer      Observer
	Logger        *zap.Logger
}

type CohortResult struct {
	Percentile float64                `json:"percentile"`
	Threshold  float64                `json:"threshold"`
	Results    []models.ScoringResult `json:"results"`
}

// Engine runs normalize → reconstruct → threshold → classify → summarize.
// It holds no analysis state of its own; every call gets its Session.
type Engine struct {
	scorer     *scorer.ReconstructionScorer
	percentile float64
	bands      BandPolicy
	tracker    *Tracker
	obs        Observer
	logger     *zap.Logger
}

func NewEngine(model scorer.Model, opts Options) (*Engine, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: no reconstruction model", models.ErrInvalidInput)
	}
	if opts.Percentile == 0 {
		opts.Percentile = DefaultPercentile
	}
	if opts.Percentile < 0 || opts.Percentile > 100 {
		return nil, fmt.Errorf("%w: percentile %v outside [0, 100]", models.ErrInvalidInput, opts.Percentile)
	}
	if opts.Bands == (BandPolicy{}) {
		opts.Bands = DefaultBandPolicy()
	}
	if err := opts.Bands.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Engine{
		scorer:     scorer.NewReconstructionScorer(model, opts.ModelTimeout, opts.ModelObserver),
		percentile: opts.Percentile,
		bands:      opts.Bands,
		tracker:    NewTracker(opts.Percentile),
		obs:        opts.Observer,
		logger:     opts.Logger,
	}, nil
}

func (e *Engine) Percentile() float64 {
	return e.percentile
}

func (e *Engine) Bands() BandPolicy {
	return e.bands
}

func (e *Engine) Stats() models.RunStats {
	return e.tracker.Snapshot()
}

func (e *Engine) NewSession(pop *dataset.Population) (*Session, error) {
	s, err := NewSession(pop)
	if err != nil {
		e.fail("normalize")
		return nil, err
	}
	e.logger.Info("session created",
		zap.String("session_id", s.ID),
		zap.Int("population", s.Profile.PopulationSize),
	)
	return s, nil
}

// ScoreEntity scores a single entity on its own. The threshold is derived
// from that one score, so the result is never flagged anomalous; use
// ScoreCohort when the flag has to mean something.
func (e *Engine) ScoreEntity(ctx context.Context, s *Session, entityID string) (models.ScoringResult, error) {
	res, err := e.score(ctx, s, []string{entityID}, e.percentile)
	if err != nil {
		return models.ScoringResult{}, err
	}
	return res.Results[0], nil
}

// ScoreCohort scores entities together and thresholds each against the
// error distribution of the whole batch.
func (e *Engine) ScoreCohort(ctx context.Context, s *Session, entityIDs []string, percentile float64) (CohortResult, error) {
	if len(entityIDs) == 0 {
		e.fail("classify")
		return CohortResult{}, fmt.Errorf("classify: %w: no entities requested", models.ErrEmptyCohort)
	}
	return e.score(ctx, s, entityIDs, percentile)
}

// ScoreDepartment scores every entity of a department as one cohort and
// summarises the statistical flags.
func (e *Engine) ScoreDepartment(ctx context.Context, s *Session, department string) (models.DepartmentSummary, CohortResult, error) {
	if err := e.checkSession(s); err != nil {
		return models.DepartmentSummary{}, CohortResult{}, err
	}
	members := s.Population.InDepartment(department)
	if len(members) == 0 {
		e.fail("summarize")
		return models.DepartmentSummary{}, CohortResult{}, fmt.Errorf("summarize: %w: no entities in department %q", models.ErrEmptyCohort, department)
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.EntityID
	}

	res, err := e.score(ctx, s, ids, e.percentile)
	if err != nil {
		return models.DepartmentSummary{}, CohortResult{}, err
	}

	summary, err := e.summarized(Summarize(res.Results, department, e.bands))
	if err != nil {
		return models.DepartmentSummary{}, CohortResult{}, err
	}
	return summary, res, nil
}

// SummarizeRecorded summarises a department from the anomaly flags stored
// with the raw records, without calling the model.
func (e *Engine) SummarizeRecorded(s *Session, department string) (models.DepartmentSummary, error) {
	if err := e.checkSession(s); err != nil {
		return models.DepartmentSummary{}, err
	}
	return e.summarized(Summarize(s.Population.InDepartment(department), department, e.bands))
}

func (e *Engine) summarized(summary models.DepartmentSummary, err error) (models.DepartmentSummary, error) {
	if err != nil {
		e.fail("summarize")
		return models.DepartmentSummary{}, fmt.Errorf("summarize: %w", err)
	}

	if e.obs != nil {
		e.obs.Summarized(summary)
	}
	e.logger.Info("department summarized",
		zap.String("department", summary.Department),
		zap.Int("total", summary.Total),
		zap.Int("anomalies", summary.AnomalyCount),
		zap.String("status", string(summary.Status)),
	)
	return summary, nil
}

func (e *Engine) score(ctx context.Context, s *Session, entityIDs []string, percentile float64) (CohortResult, error) {
	if err := e.checkSession(s); err != nil {
		return CohortResult{}, err
	}

	records := make([]models.BehavioralRecord, 0, len(entityIDs))
	seen := make(map[string]struct{}, len(entityIDs))
	for _, id := range entityIDs {
		if _, dup := seen[id]; dup {
			e.fail("classify")
			return CohortResult{}, fmt.Errorf("classify: %w: entity %s requested twice", models.ErrInvalidInput, id)
		}
		seen[id] = struct{}{}

		rec, ok := s.Population.Lookup(id)
		if !ok {
			e.fail("classify")
			return CohortResult{}, fmt.Errorf("classify: %w: %s", models.ErrEntityNotFound, id)
		}
		records = append(records, rec)
	}

	vectors, err := s.Profile.ApplyAll(records)
	if err != nil {
		e.fail("normalize")
		return CohortResult{}, fmt.Errorf("normalize: %w", err)
	}

	errs, err := e.scorer.Score(ctx, vectors)
	if err != nil {
		e.fail("reconstruct")
		e.logger.Error("reconstruction failed",
			zap.String("session_id", s.ID),
			zap.Int("batch", len(vectors)),
			zap.Error(err),
		)
		return CohortResult{}, fmt.Errorf("reconstruct: %w", err)
	}

	threshold, err := DeriveThreshold(errs, percentile)
	if err != nil {
		e.fail("threshold")
		return CohortResult{}, fmt.Errorf("threshold: %w", err)
	}

	results := make([]models.ScoringResult, len(records))
	for i, rec := range records {
		res, err := Classify(s.Population, rec.EntityID, Score{
			ReconstructionError: errs[i],
			Threshold:           threshold,
			Anomalous:           IsAnomalous(errs[i], threshold),
		})
		if err != nil {
			e.fail("classify")
			return CohortResult{}, fmt.Errorf("classify: %w", err)
		}
		results[i] = res
	}

	e.tracker.Record(results)
	if e.obs != nil {
		e.obs.Scored(results)
	}
	e.logger.Debug("cohort scored",
		zap.String("session_id", s.ID),
		zap.Int("size", len(results)),
		zap.Float64("percentile", percentile),
		zap.Float64("threshold", threshold),
	)

	return CohortResult{Percentile: percentile, Threshold: threshold, Results: results}, nil
}

func (e *Engine) checkSession(s *Session) error {
	if s == nil || s.Population == nil {
		e.fail("normalize")
		return fmt.Errorf("normalize: %w: no session", models.ErrInvalidInput)
	}
	return nil
}

func (e *Engine) fail(step string) {
	e.tracker.RecordFailure()
	if e.obs != nil {
		e.obs.Failed(step)
	}
}
