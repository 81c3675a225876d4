// Package publication reacts to opportunity writes. When an opportunity
// crosses into verified it re-checks the gate against the store and hands
// the opportunity to the notifier.
//
// Events may arrive more than once and out of order. The trigger never trusts
// the event payload for the final decision: it asks the verification service,
// which reads the current record.
package publication

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/govtrack/backend/internal/metrics"
	"github.com/govtrack/backend/internal/models"
	"github.com/govtrack/backend/internal/notify"
)

const defaultNotifyTimeout = 10 * time.Second

// Outcome records what the trigger did with one event.
type Outcome string

const (
	OutcomeDeleted        Outcome = "deleted"
	OutcomeIgnored        Outcome = "ignored"
	OutcomeNotPublishable Outcome = "not_publishable"
	OutcomeNotified       Outcome = "notified"
	OutcomeNotifyFailed   Outcome = "notify_failed"
)

// Gate is the verification check the trigger defers to.
type Gate interface {
	PublishOpportunity(ctx context.Context, opportunityID string) (bool, error)
}

// Trigger handles OpportunityWritten events.
type Trigger struct {
	gate          Gate
	notifier      notify.Notifier
	log           *slog.Logger
	metrics       *metrics.Trigger
	notifyTimeout time.Duration
}

// NewTrigger wires the trigger. m may be nil.
func NewTrigger(gate Gate, notifier notify.Notifier, log *slog.Logger, m *metrics.Trigger, notifyTimeout time.Duration) *Trigger {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}
	return &Trigger{gate: gate, notifier: notifier, log: log, metrics: m, notifyTimeout: notifyTimeout}
}

// BecameVerified reports whether a write crossed from any other status into verified.
func BecameVerified(evt models.OpportunityWritten) bool {
	if evt.After == nil || evt.After.Verified != models.Verified {
		return false
	}
	return evt.Before == nil || evt.Before.Verified != models.Verified
}

// Handle processes one event. Errors come only from the gate re-check
// (missing record, store failure); notifier failures are logged and reported
// through the outcome.
func (t *Trigger) Handle(ctx context.Context, evt models.OpportunityWritten) (Outcome, error) {
	outcome, err := t.handle(ctx, evt)
	if t.metrics != nil {
		label := string(outcome)
		if err != nil {
			label = "error"
		}
		t.metrics.EventsHandled.WithLabelValues(label).Inc()
	}
	return outcome, err
}

func (t *Trigger) handle(ctx context.Context, evt models.OpportunityWritten) (Outcome, error) {
	if evt.After == nil {
		return OutcomeDeleted, nil
	}
	if !BecameVerified(evt) {
		return OutcomeIgnored, nil
	}

	opp := *evt.After
	if opp.ID == "" {
		opp.ID = evt.OpportunityID
	}

	ok, err := t.gate.PublishOpportunity(ctx, opp.ID)
	if err != nil {
		return "", fmt.Errorf("verify opportunity %s: %w", opp.ID, err)
	}
	if !ok {
		return OutcomeNotPublishable, nil
	}

	t.log.Info("opportunity verified, sending notifications",
		slog.String("opportunity_id", opp.ID),
		slog.String("title", opp.Title),
	)

	nctx, cancel := context.WithTimeout(ctx, t.notifyTimeout)
	defer cancel()

	if err := t.notifier.Notify(nctx, opp); err != nil {
		t.log.Warn("notification failed",
			slog.String("opportunity_id", opp.ID),
			slog.Any("err", err),
		)
		if t.metrics != nil {
			t.metrics.NotificationsFailed.Inc()
		}
		return OutcomeNotifyFailed, nil
	}

	if t.metrics != nil {
		t.metrics.NotificationsSent.Inc()
	}
	return OutcomeNotified, nil
}
