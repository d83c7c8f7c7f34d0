package dataset

import (
	"fmt"
	"time"

	"insider-risk/internal/models"

	"github.com/brianvoe/gofakeit/v7"
)

var DefaultDepartments = []string{"Engineering", "Finance", "HR", "Sales", "IT", "Legal"}

type SynthOptions struct {
	Count          int
	Departments    []string
	SuspiciousRate float64
	CriticalRate   float64
	Day            time.Time
}

// Synthesize builds a population for demos and local runs. Suspicious and
// critical entities get skewed features so the model has something to find.
func Synthesize(faker *gofakeit.Faker, opts SynthOptions) []models.BehavioralRecord {
	departments := opts.Departments
	if len(departments) == 0 {
		departments = DefaultDepartments
	}
	day := opts.Day
	if day.IsZero() {
		day = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	}

	records := make([]models.BehavioralRecord, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		label := models.LabelNormal
		roll := faker.Float64Range(0, 1)
		switch {
		case roll < opts.CriticalRate:
			label = models.LabelCritical
		case roll < opts.CriticalRate+opts.SuspiciousRate:
			label = models.LabelSuspicious
		}

		rec := models.BehavioralRecord{
			EntityID:      fmt.Sprintf("E%05d", i+1),
			Department:    faker.RandomString(departments),
			Role:          faker.JobTitle(),
			BehaviorLabel: label,
		}
		fillFeatures(faker, &rec, day)

		flag := label != models.LabelNormal && faker.Float64Range(0, 1) < 0.7
		rec.AccessAnomalyFlag = &flag

		records = append(records, rec)
	}

	return records
}

func fillFeatures(faker *gofakeit.Faker, rec *models.BehavioralRecord, day time.Time) {
	loginHour := faker.Number(7, 10)
	rec.WorkDuration = faker.Float64Range(7, 9.5)
	rec.IdleTime = faker.Float64Range(0.2, 1.5)
	rec.FileAccessFrequency = float64(faker.Number(10, 60))
	rec.VPNUsage = float64(faker.Number(0, 1))
	rec.Latitude = faker.Float64Range(40.5, 41)
	rec.Longitude = faker.Float64Range(-74.2, -73.7)

	switch rec.BehaviorLabel {
	case models.LabelSuspicious:
		rec.IdleTime = faker.Float64Range(1.5, 3)
		rec.FileAccessFrequency = float64(faker.Number(60, 120))
		rec.WorkDuration = faker.Float64Range(5, 7)
	case models.LabelCritical:
		loginHour = faker.Number(0, 4)
		rec.IdleTime = faker.Float64Range(3, 6)
		rec.FileAccessFrequency = float64(faker.Number(150, 400))
		rec.WorkDuration = faker.Float64Range(1, 4)
		rec.VPNUsage = 1
		rec.Latitude = faker.Latitude()
		rec.Longitude = faker.Longitude()
	}

	rec.LoginTimestamp = day.Add(time.Duration(loginHour)*time.Hour + time.Duration(faker.Number(0, 59))*time.Minute)
	rec.LogoutTimestamp = rec.LoginTimestamp.Add(time.Duration(rec.WorkDuration * float64(time.Hour)))
}
