// Package repository declares the persistence capabilities the domain depends on.
// Each storage backend provides one implementor per interface.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/govtrack/backend/internal/models"
)

// ErrNotFound is returned (optionally wrapped) when a referenced entity is absent.
var ErrNotFound = errors.New("not found")

// SourceRepository stores monitored sources.
type SourceRepository interface {
	// ListActive returns every source whose status is active.
	ListActive(ctx context.Context) ([]models.Source, error)
	// UpdateLastCheck records the latest digest and check time of a source.
	UpdateLastCheck(ctx context.Context, sourceID, digest string, checkedAt time.Time) error
	GetByID(ctx context.Context, id string) (*models.Source, error)
	Save(ctx context.Context, source models.Source) (models.Source, error)
}

// OpportunityFilter narrows the public listing. Empty fields do not filter.
type OpportunityFilter struct {
	State         string
	Qualification string
}

// OpportunityRepository stores opportunities.
type OpportunityRepository interface {
	// Save merge-upserts by ID and returns the stored record.
	Save(ctx context.Context, opp models.Opportunity) (models.Opportunity, error)
	GetByID(ctx context.Context, id string) (*models.Opportunity, error)
	// ListVerified returns verified opportunities matching filter, ascending by end date.
	ListVerified(ctx context.Context, filter OpportunityFilter) ([]models.Opportunity, error)
}

// TrackingRepository stores per-user tracking rows.
type TrackingRepository interface {
	// Save upserts on (userId, opportunityId) and stamps updatedAt.
	Save(ctx context.Context, t models.Tracking) (models.Tracking, error)
	ListByUser(ctx context.Context, userID string) ([]models.Tracking, error)
}
