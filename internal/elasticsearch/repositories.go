package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/govtrack/backend/internal/models"
	"github.com/govtrack/backend/internal/repository"
)

// Sources implements repository.SourceRepository.
type Sources struct{ c *Client }

// Opportunities implements repository.OpportunityRepository.
type Opportunities struct{ c *Client }

// Tracking implements repository.TrackingRepository.
type Tracking struct {
	c   *Client
	now func() time.Time
}

var (
	_ repository.SourceRepository      = (*Sources)(nil)
	_ repository.OpportunityRepository = (*Opportunities)(nil)
	_ repository.TrackingRepository    = (*Tracking)(nil)
)

// Sources returns the source repository on this client.
func (c *Client) Sources() *Sources { return &Sources{c: c} }

// Opportunities returns the opportunity repository on this client.
func (c *Client) Opportunities() *Opportunities { return &Opportunities{c: c} }

// Tracking returns the tracking repository on this client.
func (c *Client) Tracking() *Tracking { return &Tracking{c: c, now: time.Now} }

func (r *Sources) ListActive(ctx context.Context) ([]models.Source, error) {
	out := make([]models.Source, 0)
	err := r.c.searchAll(ctx, sourcesIndex,
		[]map[string]any{term("status", string(models.SourceActive))},
		ascending("id"),
		func(raw json.RawMessage) error {
			var s models.Source
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("decode source: %w", err)
			}
			out = append(out, s)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Sources) UpdateLastCheck(ctx context.Context, sourceID, digest string, checkedAt time.Time) error {
	return r.c.updateFields(ctx, sourcesIndex, sourceID, map[string]any{
		"lastHash":      digest,
		"lastCheckedAt": checkedAt.UTC(),
	})
}

func (r *Sources) GetByID(ctx context.Context, id string) (*models.Source, error) {
	var s models.Source
	if err := r.c.getDoc(ctx, sourcesIndex, id, &s); err != nil {
		return nil, err
	}
	s.ID = id
	return &s, nil
}

func (r *Sources) Save(ctx context.Context, source models.Source) (models.Source, error) {
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	if err := r.c.upsertDoc(ctx, sourcesIndex, source.ID, source); err != nil {
		return models.Source{}, err
	}
	return source, nil
}

func (r *Opportunities) Save(ctx context.Context, opp models.Opportunity) (models.Opportunity, error) {
	if opp.ID == "" {
		opp.ID = uuid.NewString()
	}
	if err := r.c.upsertDoc(ctx, opportunitiesIndex, opp.ID, opp); err != nil {
		return models.Opportunity{}, err
	}
	return opp, nil
}

func (r *Opportunities) GetByID(ctx context.Context, id string) (*models.Opportunity, error) {
	var o models.Opportunity
	if err := r.c.getDoc(ctx, opportunitiesIndex, id, &o); err != nil {
		return nil, err
	}
	o.ID = id
	return &o, nil
}

func (r *Opportunities) ListVerified(ctx context.Context, filter repository.OpportunityFilter) ([]models.Opportunity, error) {
	filters := []map[string]any{term("verified", string(models.Verified))}
	if filter.State != "" {
		filters = append(filters, term("state", filter.State))
	}
	if filter.Qualification != "" {
		filters = append(filters, term("qualification", filter.Qualification))
	}

	out := make([]models.Opportunity, 0)
	err := r.c.searchAll(ctx, opportunitiesIndex, filters, ascending("endDate", "id"),
		func(raw json.RawMessage) error {
			var o models.Opportunity
			if err := json.Unmarshal(raw, &o); err != nil {
				return fmt.Errorf("decode opportunity: %w", err)
			}
			// The index may lag a write; never leak a record that is not verified.
			if o.IsVerified() {
				out = append(out, o)
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Tracking) Save(ctx context.Context, t models.Tracking) (models.Tracking, error) {
	t.ID = models.TrackingID(t.UserID, t.OpportunityID)
	t.UpdatedAt = r.now().UTC()
	if err := r.c.upsertDoc(ctx, trackingIndex, t.ID, t); err != nil {
		return models.Tracking{}, err
	}
	return t, nil
}

func (r *Tracking) ListByUser(ctx context.Context, userID string) ([]models.Tracking, error) {
	out := make([]models.Tracking, 0)
	err := r.c.searchAll(ctx, trackingIndex,
		[]map[string]any{term("userId", userID)},
		ascending("id"),
		func(raw json.RawMessage) error {
			var t models.Tracking
			if err := json.Unmarshal(raw, &t); err != nil {
				return fmt.Errorf("decode tracking: %w", err)
			}
			out = append(out, t)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}
