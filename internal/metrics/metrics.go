package metrics

import (
	"time"

	"insider-risk/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	entitiesScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "entities_scored_total",
		Help: "Total number of entities scored",
	})

	anomaliesFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anomalies_flagged_total",
		Help: "Total number of entities flagged as statistical outliers",
	})

	lastThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "last_threshold",
		Help: "Threshold derived for the most recent scored batch",
	})

	modelCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "model_call_duration_seconds",
		Help:    "Duration of reconstruction model calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	pipelineFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_failures_total",
		Help: "Scoring pipeline failures by step",
	}, []string{"step"})

	departmentAnomalyRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "department_anomaly_rate",
		Help: "Anomaly rate (percent) of the last summary per department",
	}, []string{"department"})

	departmentStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "department_status",
		Help: "Status band of the last summary per department (0 Normal, 1 Neutral, 2 Poor)",
	}, []string{"department"})
)

// Recorder feeds the engine and model callbacks into the prometheus
// collectors above.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (Recorder) ModelCall(d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	modelCallDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (Recorder) Scored(results []models.ScoringResult) {
	entitiesScored.Add(float64(len(results)))
	for _, r := range results {
		if r.IsAnomaly {
			anomaliesFlagged.Inc()
		}
	}
	if len(results) > 0 {
		lastThreshold.Set(results[0].Threshold)
	}
}

func (Recorder) Failed(step string) {
	pipelineFailures.WithLabelValues(step).Inc()
}

func (Recorder) Summarized(s models.DepartmentSummary) {
	departmentAnomalyRate.WithLabelValues(s.Department).Set(s.AnomalyRate)
	departmentStatus.WithLabelValues(s.Department).Set(bandValue(s.Status))
}

func bandValue(b models.StatusBand) float64 {
	switch b {
	case models.BandPoor:
		return 2
	case models.BandNeutral:
		return 1
	default:
		return 0
	}
}

// ObserveRequest records one handled HTTP request.
func ObserveRequest(method, endpoint, status string, start time.Time) {
	RequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}
