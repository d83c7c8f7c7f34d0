package analytics

import (
	"fmt"
	"time"

	"insider-risk/internal/dataset"
	"insider-risk/internal/models"

	"github.com/google/uuid"
)

// Session is the explicit analysis context handed to every engine call: the
// population being analysed and the profile fitted on it. Both are read-only
// after construction and safe to share between requests.
type Session struct {
	ID         string
	CreatedAt  time.Time
	Population *dataset.Population
	Profile    NormalizationProfile
}

func NewSession(pop *dataset.Population) (*Session, error) {
	if pop == nil {
		return nil, fmt.Errorf("normalize: %w: nil population", models.ErrInvalidInput)
	}
	profile, err := Fit(pop.Records())
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	return RestoreSession(uuid.NewString(), time.Now().UTC(), pop, profile), nil
}

// RestoreSession rebuilds a session from a stored profile without refitting.
func RestoreSession(id string, createdAt time.Time, pop *dataset.Population, profile NormalizationProfile) *Session {
	return &Session{
		ID:         id,
		CreatedAt:  createdAt,
		Population: pop,
		Profile:    profile,
	}
}
