package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/govtrack/backend/internal/models"
)

// MemorySources is a SourceRepository backed by a map.
type MemorySources struct {
	mu   sync.RWMutex
	rows map[string]models.Source
}

// NewMemorySources returns a store seeded with sources.
func NewMemorySources(seed ...models.Source) *MemorySources {
	m := &MemorySources{rows: make(map[string]models.Source, len(seed))}
	for _, s := range seed {
		m.rows[s.ID] = s
	}
	return m
}

func (m *MemorySources) ListActive(_ context.Context) ([]models.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Source, 0, len(m.rows))
	for _, s := range m.rows {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemorySources) UpdateLastCheck(_ context.Context, sourceID, digest string, checkedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.rows[sourceID]
	if !ok {
		return fmt.Errorf("source %s: %w", sourceID, ErrNotFound)
	}
	d := digest
	ts := checkedAt.UTC()
	s.LastHash = &d
	s.LastCheckedAt = &ts
	m.rows[sourceID] = s
	return nil
}

func (m *MemorySources) GetByID(_ context.Context, id string) (*models.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("source %s: %w", id, ErrNotFound)
	}
	return &s, nil
}

func (m *MemorySources) Save(_ context.Context, source models.Source) (models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	m.rows[source.ID] = source
	return source, nil
}

// MemoryOpportunities is an OpportunityRepository backed by a map.
type MemoryOpportunities struct {
	mu   sync.RWMutex
	rows map[string]models.Opportunity
}

// NewMemoryOpportunities returns a store seeded with opportunities.
func NewMemoryOpportunities(seed ...models.Opportunity) *MemoryOpportunities {
	m := &MemoryOpportunities{rows: make(map[string]models.Opportunity, len(seed))}
	for _, o := range seed {
		m.rows[o.ID] = o
	}
	return m
}

func (m *MemoryOpportunities) Save(_ context.Context, opp models.Opportunity) (models.Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if opp.ID == "" {
		opp.ID = uuid.NewString()
	}
	m.rows[opp.ID] = opp
	return opp, nil
}

func (m *MemoryOpportunities) GetByID(_ context.Context, id string) (*models.Opportunity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("opportunity %s: %w", id, ErrNotFound)
	}
	return &o, nil
}

func (m *MemoryOpportunities) ListVerified(_ context.Context, filter OpportunityFilter) ([]models.Opportunity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Opportunity, 0)
	for _, o := range m.rows {
		if !o.IsVerified() {
			continue
		}
		if filter.State != "" && o.State != filter.State {
			continue
		}
		if filter.Qualification != "" && o.Qualification != filter.Qualification {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EndDate == out[j].EndDate {
			return out[i].ID < out[j].ID
		}
		return out[i].EndDate < out[j].EndDate
	})
	return out, nil
}

// MemoryTracking is a TrackingRepository backed by a map.
type MemoryTracking struct {
	mu   sync.RWMutex
	rows map[string]models.Tracking
	now  func() time.Time
}

// NewMemoryTracking returns an empty tracking store.
func NewMemoryTracking() *MemoryTracking {
	return &MemoryTracking{rows: make(map[string]models.Tracking), now: time.Now}
}

func (m *MemoryTracking) Save(_ context.Context, t models.Tracking) (models.Tracking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t.ID = models.TrackingID(t.UserID, t.OpportunityID)
	t.UpdatedAt = m.now().UTC()
	m.rows[t.ID] = t
	return t, nil
}

func (m *MemoryTracking) ListByUser(_ context.Context, userID string) ([]models.Tracking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Tracking, 0)
	for _, t := range m.rows {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Len reports the number of stored tracking rows.
func (m *MemoryTracking) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}
