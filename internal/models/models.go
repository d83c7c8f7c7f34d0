package models

import "time"

type BehaviorLabel string

const (
	LabelNormal     BehaviorLabel = "Normal"
	LabelSuspicious BehaviorLabel = "Suspicious"
	LabelCritical   BehaviorLabel = "Critical"
)

func (l BehaviorLabel) Valid() bool {
	switch l {
	case LabelNormal, LabelSuspicious, LabelCritical:
		return true
	}
	return false
}

type StatusBand string

const (
	BandNormal  StatusBand = "Normal"
	BandNeutral StatusBand = "Neutral"
	BandPoor    StatusBand = "Poor"
)

// Feature order is fixed; profiles and model vectors rely on it.
var FeatureNames = []string{
	"work_duration",
	"idle_time",
	"file_access_frequency",
	"vpn_usage",
	"latitude",
	"longitude",
}

const FeatureCount = 6

type BehavioralRecord struct {
	EntityID            string        `json:"entity_id"`
	Department          string        `json:"department"`
	Role                string        `json:"role"`
	WorkDuration        float64       `json:"work_duration"`
	IdleTime            float64       `json:"idle_time"`
	FileAccessFrequency float64       `json:"file_access_frequency"`
	VPNUsage            float64       `json:"vpn_usage"`
	Latitude            float64       `json:"latitude"`
	Longitude           float64       `json:"longitude"`
	BehaviorLabel       BehaviorLabel `json:"behavior_label"`
	LoginTimestamp      time.Time     `json:"login_timestamp"`
	LogoutTimestamp     time.Time     `json:"logout_timestamp"`
	AccessAnomalyFlag   *bool         `json:"access_anomaly_flag,omitempty"`
}

func (r BehavioralRecord) Features() []float64 {
	return []float64{
		r.WorkDuration,
		r.IdleTime,
		r.FileAccessFrequency,
		r.VPNUsage,
		r.Latitude,
		r.Longitude,
	}
}

func (r BehavioralRecord) DepartmentName() string { return r.Department }
func (r BehavioralRecord) Label() BehaviorLabel   { return r.BehaviorLabel }

// Raw records carry only the flag stored by the data source; a missing flag counts as not anomalous.
func (r BehavioralRecord) Anomalous() bool {
	return r.AccessAnomalyFlag != nil && *r.AccessAnomalyFlag
}

type ScoringResult struct {
	EntityID            string        `json:"entity_id"`
	Department          string        `json:"department"`
	Role                string        `json:"role"`
	ReconstructionError float64       `json:"reconstruction_error"`
	Threshold           float64       `json:"threshold"`
	IsAnomaly           bool          `json:"is_anomaly"`
	BehaviorLabel       BehaviorLabel `json:"behavior_label"`
	WorkDuration        float64       `json:"work_duration"`
	IdleTime            float64       `json:"idle_time"`
	FileAccessFrequency float64       `json:"file_access_frequency"`
	VPNUsage            float64       `json:"vpn_usage"`
	Latitude            float64       `json:"latitude"`
	Longitude           float64       `json:"longitude"`
	LoginTimestamp      time.Time     `json:"login_timestamp"`
	LogoutTimestamp     time.Time     `json:"logout_timestamp"`
	SessionHours        float64       `json:"session_hours"`
	LoginHour           int           `json:"login_hour"`
	LogoutHour          int           `json:"logout_hour"`
}

func (r ScoringResult) DepartmentName() string { return r.Department }
func (r ScoringResult) Label() BehaviorLabel   { return r.BehaviorLabel }
func (r ScoringResult) Anomalous() bool        { return r.IsAnomaly }

func (r ScoringResult) Features() []float64 {
	return []float64{
		r.WorkDuration,
		r.IdleTime,
		r.FileAccessFrequency,
		r.VPNUsage,
		r.Latitude,
		r.Longitude,
	}
}

type LabelCounts struct {
	Normal     int `json:"normal"`
	Suspicious int `json:"suspicious"`
	Critical   int `json:"critical"`
}

type DepartmentSummary struct {
	Department      string             `json:"department"`
	Total           int                `json:"total"`
	AnomalyCount    int                `json:"anomaly_count"`
	AnomalyRate     float64            `json:"anomaly_rate"`
	SuspiciousCount int                `json:"suspicious_count"`
	CriticalCount   int                `json:"critical_count"`
	Labels          LabelCounts        `json:"labels"`
	Status          StatusBand         `json:"status"`
	FeatureAverages map[string]float64 `json:"feature_averages"`
}

type RunStats struct {
	Runs             int64     `json:"runs"`
	EntitiesScored   int64     `json:"entities_scored"`
	AnomaliesFlagged int64     `json:"anomalies_flagged"`
	Failures         int64     `json:"failures"`
	AnomalyRate      float64   `json:"anomaly_rate"`
	LastRunTime      time.Time `json:"last_run_time,omitempty"`
	LastAnomalyTime  time.Time `json:"last_anomaly_time,omitempty"`
	Percentile       float64   `json:"percentile"`
}
