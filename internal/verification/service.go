// Package verification holds the publication gate: an opportunity is
// publishable and notifiable only while its status is verified.
package verification

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/govtrack/backend/internal/models"
	"github.com/govtrack/backend/internal/repository"
)

// Service evaluates the verification gate against the current stored state.
type Service struct {
	opportunities repository.OpportunityRepository
	log           *slog.Logger
}

// NewService wires the gate to an opportunity store.
func NewService(opportunities repository.OpportunityRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{opportunities: opportunities, log: log}
}

// PublishOpportunity reloads the opportunity and reports whether it may be
// published. A missing record yields an error wrapping repository.ErrNotFound.
func (s *Service) PublishOpportunity(ctx context.Context, opportunityID string) (bool, error) {
	opp, err := s.opportunities.GetByID(ctx, opportunityID)
	if err != nil {
		return false, fmt.Errorf("load opportunity %s: %w", opportunityID, err)
	}

	if !opp.IsVerified() {
		s.log.Warn("attempt to publish unverified opportunity",
			slog.String("opportunity_id", opportunityID),
			slog.String("verified", string(opp.Verified)),
		)
		return false, nil
	}

	return true, nil
}

// HasContentChanged reports whether digest differs from the last one seen.
// A source that was never checked always counts as changed.
func (s *Service) HasContentChanged(source models.Source, digest string) bool {
	return HasContentChanged(source, digest)
}

// HasContentChanged is the pure form used where no Service is at hand.
func HasContentChanged(source models.Source, digest string) bool {
	return source.LastHash == nil || *source.LastHash != digest
}
