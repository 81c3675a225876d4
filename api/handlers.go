package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/govtrack/backend/internal/models"
	"github.com/govtrack/backend/internal/policy"
	"github.com/govtrack/backend/internal/repository"
)

const maxBodyBytes = 1 << 20

// ValidationError is a malformed or incomplete request body. Its message is
// returned to the caller verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// fail maps err to a status and writes the error envelope. Internal error
// text is never returned for 5xx answers.
func (s *server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		sendError(w, verr.Message, http.StatusBadRequest)
	case errors.Is(err, policy.ErrForbidden):
		sendError(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, repository.ErrNotFound):
		sendError(w, "Not found", http.StatusNotFound)
	default:
		s.log.ErrorContext(r.Context(), msg,
			slog.Any("err", err),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		sendError(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &ValidationError{Message: "Invalid JSON body"}
	}
	return nil
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.health != nil {
		if err := s.health(ctx); err != nil {
			s.log.WarnContext(ctx, "store health check failed", slog.Any("err", err))
			sendError(w, "Store unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "alive",
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
		"region":    s.region,
	})
}

func (s *server) handleListOpportunities(w http.ResponseWriter, r *http.Request) {
	filter := repository.OpportunityFilter{
		State:         strings.TrimSpace(r.URL.Query().Get("state")),
		Qualification: strings.TrimSpace(r.URL.Query().Get("qualification")),
	}

	opps, err := s.opportunities.ListVerified(r.Context(), filter)
	if err != nil {
		s.fail(w, r, "list opportunities", err)
		return
	}

	caller := callerFrom(r.Context())
	visible := make([]models.Opportunity, 0, len(opps))
	for _, o := range opps {
		if s.policy.Allow(caller, policy.Read, policy.Resource{Collection: policy.Opportunities, ID: o.ID, Verified: o.Verified}) {
			visible = append(visible, o)
		}
	}

	sendSuccess(w, map[string]any{"opportunities": visible})
}

type trackingInput struct {
	OpportunityID string `json:"opportunityId"`
	Status        string `json:"status"`
}

func (s *server) handleSaveTracking(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())

	var in trackingInput
	if err := decodeBody(w, r, &in); err != nil {
		s.fail(w, r, "decode tracking", err)
		return
	}
	in.OpportunityID = strings.TrimSpace(in.OpportunityID)
	status, err := models.ParseTrackingStatus(in.Status)
	if in.OpportunityID == "" || err != nil {
		sendError(w, "Invalid input. Status must be one of: applied, admit_card, exam_done", http.StatusBadRequest)
		return
	}

	row := models.Tracking{
		UserID:        caller.UID,
		OpportunityID: in.OpportunityID,
		Status:        status,
	}
	if err := s.policy.Check(caller, policy.Write, policy.Resource{Collection: policy.Tracking, OwnerID: row.UserID}); err != nil {
		s.fail(w, r, "tracking write", err)
		return
	}

	saved, err := s.tracking.Save(r.Context(), row)
	if err != nil {
		s.fail(w, r, "save tracking", fmt.Errorf("save tracking %s: %w", models.TrackingID(row.UserID, row.OpportunityID), err))
		return
	}

	s.log.InfoContext(r.Context(), "tracking updated",
		slog.String("uid", saved.UserID),
		slog.String("opportunity_id", saved.OpportunityID),
		slog.String("status", string(saved.Status)),
	)
	sendSuccess(w, map[string]any{"tracking": saved})
}

func (s *server) handleListTracking(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())

	rows, err := s.tracking.ListByUser(r.Context(), caller.UID)
	if err != nil {
		s.fail(w, r, "list tracking", err)
		return
	}

	out := make([]models.Tracking, 0, len(rows))
	for _, t := range rows {
		if s.policy.Allow(caller, policy.Read, policy.Resource{Collection: policy.Tracking, ID: t.ID, OwnerID: t.UserID}) {
			out = append(out, t)
		}
	}
	sendSuccess(w, map[string]any{"tracking": out})
}

// opportunityInput is the admin write payload. Absent fields keep their stored
// value on update. Any verification status in the body is ignored.
type opportunityInput struct {
	ID            string  `json:"id"`
	Title         *string `json:"title"`
	State         *string `json:"state"`
	Qualification *string `json:"qualification"`
	StartDate     *string `json:"startDate"`
	EndDate       *string `json:"endDate"`
	OfficialURL   *string `json:"officialUrl"`
	SourceID      *string `json:"sourceId"`
}

func (in opportunityInput) validate() error {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" ||
		in.OfficialURL == nil || strings.TrimSpace(*in.OfficialURL) == "" {
		return &ValidationError{Message: "Missing required fields: title, officialUrl"}
	}
	return nil
}

func (in opportunityInput) applyTo(o *models.Opportunity) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&o.Title, in.Title)
	set(&o.State, in.State)
	set(&o.Qualification, in.Qualification)
	set(&o.StartDate, in.StartDate)
	set(&o.EndDate, in.EndDate)
	set(&o.OfficialURL, in.OfficialURL)
	set(&o.SourceID, in.SourceID)
}

func (s *server) handleSaveOpportunity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in opportunityInput
	if err := decodeBody(w, r, &in); err != nil {
		s.fail(w, r, "decode opportunity", err)
		return
	}
	if err := in.validate(); err != nil {
		s.fail(w, r, "validate opportunity", err)
		return
	}

	var before *models.Opportunity
	if id := strings.TrimSpace(in.ID); id != "" {
		existing, err := s.opportunities.GetByID(ctx, id)
		switch {
		case err == nil:
			before = existing
		case !errors.Is(err, repository.ErrNotFound):
			s.fail(w, r, "load opportunity", err)
			return
		}
	}

	now := s.now().UTC()
	var opp models.Opportunity
	if before != nil {
		opp = *before
	} else {
		opp = models.Opportunity{ID: strings.TrimSpace(in.ID), CreatedAt: now}
	}
	in.applyTo(&opp)
	opp.MarkUnverified()
	opp.UpdatedAt = now

	saved, err := s.opportunities.Save(ctx, opp)
	if err != nil {
		s.fail(w, r, "save opportunity", err)
		return
	}
	s.metrics.OpportunitiesSaved.Inc()

	if err := s.publishWrite(ctx, before, &saved); err != nil {
		s.fail(w, r, "publish opportunity write", err)
		return
	}

	s.log.InfoContext(ctx, "opportunity saved", slog.String("opportunity_id", saved.ID), slog.Bool("created", before == nil))
	sendSuccess(w, map[string]any{"message": "Opportunity saved", "id": saved.ID})
}

func (s *server) handleVerify(w http.ResponseWriter, r *http.Request) {
	s.setVerification(w, r, models.Verified)
}

func (s *server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.setVerification(w, r, models.Rejected)
}

func (s *server) setVerification(w http.ResponseWriter, r *http.Request, status models.VerificationStatus) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	existing, err := s.opportunities.GetByID(ctx, id)
	if err != nil {
		s.fail(w, r, "load opportunity", err)
		return
	}
	if existing.Verified == status {
		sendSuccess(w, existing)
		return
	}

	updated := *existing
	switch status {
	case models.Verified:
		updated.MarkVerified(s.now())
	case models.Rejected:
		updated.MarkRejected()
	}
	updated.UpdatedAt = s.now().UTC()

	saved, err := s.opportunities.Save(ctx, updated)
	if err != nil {
		s.fail(w, r, "save opportunity", err)
		return
	}
	s.metrics.Verifications.WithLabelValues(string(status)).Inc()

	if err := s.publishWrite(ctx, existing, &saved); err != nil {
		s.fail(w, r, "publish opportunity write", err)
		return
	}

	s.log.InfoContext(ctx, "opportunity verification changed",
		slog.String("opportunity_id", saved.ID),
		slog.String("from", string(existing.Verified)),
		slog.String("to", string(saved.Verified)),
	)
	sendSuccess(w, saved)
}

func (s *server) publishWrite(ctx context.Context, before, after *models.Opportunity) error {
	id := ""
	if after != nil {
		id = after.ID
	} else if before != nil {
		id = before.ID
	}
	evt := models.OpportunityWritten{
		OpportunityID: id,
		Before:        before,
		After:         after,
		WrittenAt:     s.now().UTC(),
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		return fmt.Errorf("publish write of %s: %w", id, err)
	}
	return nil
}

type sourceInput struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	URL                   string `json:"url"`
	CheckFrequencyMinutes int    `json:"checkFrequencyMinutes"`
	Status                string `json:"status"`
}

func (s *server) handleSaveSource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in sourceInput
	if err := decodeBody(w, r, &in); err != nil {
		s.fail(w, r, "decode source", err)
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	in.URL = strings.TrimSpace(in.URL)
	if in.Name == "" || in.URL == "" {
		sendError(w, "Missing required fields: name, url", http.StatusBadRequest)
		return
	}

	src := models.NewSource(strings.TrimSpace(in.ID), in.Name, in.URL)
	if src.ID != "" {
		existing, err := s.sources.GetByID(ctx, src.ID)
		switch {
		case err == nil:
			src.Status = existing.Status
			src.CheckFrequencyMinutes = existing.CheckFrequencyMinutes
			// A new URL starts a fresh digest history.
			if existing.URL == src.URL {
				src.LastHash = existing.LastHash
				src.LastCheckedAt = existing.LastCheckedAt
			}
		case !errors.Is(err, repository.ErrNotFound):
			s.fail(w, r, "load source", err)
			return
		}
	}
	if in.CheckFrequencyMinutes > 0 {
		src.CheckFrequencyMinutes = in.CheckFrequencyMinutes
	}
	switch models.SourceStatus(in.Status) {
	case "":
	case models.SourceActive, models.SourceInactive:
		src.Status = models.SourceStatus(in.Status)
	default:
		sendError(w, "Invalid input. Status must be one of: active, inactive", http.StatusBadRequest)
		return
	}

	saved, err := s.sources.Save(ctx, src)
	if err != nil {
		s.fail(w, r, "save source", err)
		return
	}

	s.log.InfoContext(ctx, "source saved", slog.String("source_id", saved.ID), slog.String("url", saved.URL))
	sendSuccess(w, saved)
}
