package dataset

import (
	"context"
	"fmt"
	"sort"

	"insider-risk/internal/models"
)

type Source interface {
	Load(ctx context.Context) ([]models.BehavioralRecord, error)
}

// Population is the caller-owned set of records a scoring session works over.
// It is not modified after construction.
type Population struct {
	records []models.BehavioralRecord
	index   map[string]int
}

func NewPopulation(records []models.BehavioralRecord) (*Population, error) {
	p := &Population{
		records: make([]models.BehavioralRecord, len(records)),
		index:   make(map[string]int, len(records)),
	}
	copy(p.records, records)

	for i, r := range p.records {
		if r.EntityID == "" {
			return nil, fmt.Errorf("%w: record %d has no entity_id", models.ErrInvalidInput, i)
		}
		if _, dup := p.index[r.EntityID]; dup {
			return nil, fmt.Errorf("%w: duplicate entity_id %q", models.ErrInvalidInput, r.EntityID)
		}
		p.index[r.EntityID] = i
	}

	return p, nil
}

func Load(ctx context.Context, src Source) (*Population, error) {
	records, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	return NewPopulation(records)
}

func (p *Population) Len() int {
	return len(p.records)
}

func (p *Population) Records() []models.BehavioralRecord {
	out := make([]models.BehavioralRecord, len(p.records))
	copy(out, p.records)
	return out
}

func (p *Population) Lookup(entityID string) (models.BehavioralRecord, bool) {
	i, ok := p.index[entityID]
	if !ok {
		return models.BehavioralRecord{}, false
	}
	return p.records[i], true
}

func (p *Population) Departments() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range p.records {
		if _, ok := seen[r.Department]; ok {
			continue
		}
		seen[r.Department] = struct{}{}
		out = append(out, r.Department)
	}
	sort.Strings(out)
	return out
}

func (p *Population) InDepartment(department string) []models.BehavioralRecord {
	var out []models.BehavioralRecord
	for _, r := range p.records {
		if r.Department == department {
			out = append(out, r)
		}
	}
	return out
}
