package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"insider-risk/internal/models"
)

const (
	colEntityID            = "entity_id"
	colDepartment          = "department"
	colRole                = "role"
	colWorkDuration        = "work_duration"
	colIdleTime            = "idle_time"
	colFileAccessFrequency = "file_access_frequency"
	colVPNUsage            = "vpn_usage"
	colLatitude            = "latitude"
	colLongitude           = "longitude"
	colBehaviorLabel       = "behavior_label"
	colLoginTimestamp      = "login_timestamp"
	colLogoutTimestamp     = "logout_timestamp"
	colAccessAnomalyFlag   = "access_anomaly_flag"
)

var requiredColumns = []string{
	colEntityID,
	colDepartment,
	colRole,
	colWorkDuration,
	colIdleTime,
	colFileAccessFrequency,
	colVPNUsage,
	colLatitude,
	colLongitude,
	colBehaviorLabel,
	colLoginTimestamp,
	colLogoutTimestamp,
}

// Headers of the HR export this service was first fed with.
var columnAliases = map[string]string{
	"employee_id": colEntityID,
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

type CSVSource struct {
	Path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

func (s *CSVSource) Load(ctx context.Context) ([]models.BehavioralRecord, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.Path, err)
	}
	defer f.Close()

	return ReadCSV(f)
}

func ReadCSV(r io.Reader) ([]models.BehavioralRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: csv has no header", models.ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if alias, ok := columnAliases[key]; ok {
			key = alias
		}
		cols[key] = i
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", models.ErrInvalidInput, strings.Join(missing, ", "))
	}

	var records []models.BehavioralRecord
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		rec, err := parseRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", models.ErrInvalidInput, line, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseRow(row []string, cols map[string]int) (models.BehavioralRecord, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := models.BehavioralRecord{
		EntityID:      get(colEntityID),
		Department:    get(colDepartment),
		Role:          get(colRole),
		BehaviorLabel: models.BehaviorLabel(get(colBehaviorLabel)),
	}
	if rec.EntityID == "" {
		return rec, errors.New("entity_id is empty")
	}
	if !rec.BehaviorLabel.Valid() {
		return rec, fmt.Errorf("unknown behavior_label %q", rec.BehaviorLabel)
	}

	floats := []struct {
		col string
		dst *float64
	}{
		{colWorkDuration, &rec.WorkDuration},
		{colIdleTime, &rec.IdleTime},
		{colFileAccessFrequency, &rec.FileAccessFrequency},
		{colVPNUsage, &rec.VPNUsage},
		{colLatitude, &rec.Latitude},
		{colLongitude, &rec.Longitude},
	}
	for _, f := range floats {
		v, err := strconv.ParseFloat(get(f.col), 64)
		if err != nil {
			return rec, fmt.Errorf("%s: %v", f.col, err)
		}
		*f.dst = v
	}

	var err error
	if rec.LoginTimestamp, err = ParseTimestamp(get(colLoginTimestamp)); err != nil {
		return rec, fmt.Errorf("%s: %v", colLoginTimestamp, err)
	}
	if rec.LogoutTimestamp, err = ParseTimestamp(get(colLogoutTimestamp)); err != nil {
		return rec, fmt.Errorf("%s: %v", colLogoutTimestamp, err)
	}

	if raw := get(colAccessAnomalyFlag); raw != "" {
		flag, err := parseFlag(raw)
		if err != nil {
			return rec, fmt.Errorf("%s: %v", colAccessAnomalyFlag, err)
		}
		rec.AccessAnomalyFlag = &flag
	}

	return rec, nil
}

func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// pandas exports flags as 0/1 or True/False
func parseFlag(s string) (bool, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0, nil
	}
	return strconv.ParseBool(s)
}

func WriteCSV(w io.Writer, records []models.BehavioralRecord) error {
	cw := csv.NewWriter(w)

	header := append(append([]string{}, requiredColumns...), colAccessAnomalyFlag)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range records {
		flag := ""
		if r.AccessAnomalyFlag != nil {
			flag = strconv.FormatBool(*r.AccessAnomalyFlag)
		}
		row := []string{
			r.EntityID,
			r.Department,
			r.Role,
			formatFloat(r.WorkDuration),
			formatFloat(r.IdleTime),
			formatFloat(r.FileAccessFrequency),
			formatFloat(r.VPNUsage),
			formatFloat(r.Latitude),
			formatFloat(r.Longitude),
			string(r.BehaviorLabel),
			r.LoginTimestamp.Format(time.RFC3339),
			r.LogoutTimestamp.Format(time.RFC3339),
			flag,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write record %s: %w", r.EntityID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
