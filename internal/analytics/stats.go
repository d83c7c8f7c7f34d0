package analytics

import (
	"sync"
	"time"

	"insider-risk/internal/models"
)

// Tracker keeps operational counters about scoring runs. It never holds
// results themselves.
type Tracker struct {
	mu    sync.RWMutex
	stats models.RunStats
}

func NewTracker(percentile float64) *Tracker {
	return &Tracker{stats: models.RunStats{Percentile: percentile}}
}

func (t *Tracker) Record(results []models.ScoringResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.stats.Runs++
	t.stats.LastRunTime = now
	t.stats.EntitiesScored += int64(len(results))

	for _, r := range results {
		if r.IsAnomaly {
			t.stats.AnomaliesFlagged++
			t.stats.LastAnomalyTime = now
		}
	}

	if t.stats.EntitiesScored > 0 {
		t.stats.AnomalyRate = float64(t.stats.AnomaliesFlagged) * 100 / float64(t.stats.EntitiesScored)
	}
}

func (t *Tracker) RecordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Failures++
}

func (t *Tracker) Snapshot() models.RunStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}
