// Package notify delivers verified opportunities to interested users.
// Delivery is best effort: callers log failures and move on.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/govtrack/backend/internal/models"
)

// Notifier accepts a verified opportunity for delivery.
type Notifier interface {
	Notify(ctx context.Context, opp models.Opportunity) error
}

// Throttle decides whether another notification may go out now.
// Limits such as "N per user per day" live outside this service.
type Throttle interface {
	Allow(ctx context.Context, opp models.Opportunity) bool
}

// AllowAll never throttles.
type AllowAll struct{}

func (AllowAll) Allow(context.Context, models.Opportunity) bool { return true }

// Message is the push payload handed to the delivery channel.
type Message struct {
	OpportunityID string
	Title         string
	Body          string
	State         string
	Qualification string
	URL           string
}

// BuildMessage renders the push text for an opportunity.
func BuildMessage(opp models.Opportunity) Message {
	state := strings.TrimSpace(opp.State)
	if state == "" {
		state = "All India"
	}
	return Message{
		OpportunityID: opp.ID,
		Title:         "New Government Job",
		Body:          fmt.Sprintf("New Government Job in %s: %s", state, opp.Title),
		State:         opp.State,
		Qualification: opp.Qualification,
		URL:           opp.OfficialURL,
	}
}

// LogNotifier only logs what would be sent.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier returns a notifier that writes messages to log.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, opp models.Opportunity) error {
	msg := BuildMessage(opp)
	n.log.Info("push notification (log only)",
		slog.String("opportunity_id", msg.OpportunityID),
		slog.String("body", msg.Body),
	)
	return nil
}

// RedisNotifier appends push messages to a Redis stream read by the push sender.
type RedisNotifier struct {
	rdb      *redis.Client
	stream   string
	maxLen   int64
	throttle Throttle
	log      *slog.Logger
}

// NewRedisNotifier returns a notifier writing to stream. A nil throttle allows everything.
func NewRedisNotifier(rdb *redis.Client, stream string, throttle Throttle, log *slog.Logger) *RedisNotifier {
	if throttle == nil {
		throttle = AllowAll{}
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RedisNotifier{rdb: rdb, stream: stream, maxLen: 100_000, throttle: throttle, log: log}
}

func (n *RedisNotifier) Notify(ctx context.Context, opp models.Opportunity) error {
	if !n.throttle.Allow(ctx, opp) {
		n.log.Info("notification throttled", slog.String("opportunity_id", opp.ID))
		return nil
	}

	args := streamArgs(n.stream, n.maxLen, BuildMessage(opp))
	id, err := n.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", n.stream, err)
	}

	n.log.Info("push notification queued",
		slog.String("opportunity_id", opp.ID),
		slog.String("stream_id", id),
	)
	return nil
}

func streamArgs(stream string, maxLen int64, msg Message) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]any{
			"opportunityId": msg.OpportunityID,
			"title":         msg.Title,
			"body":          msg.Body,
			"state":         msg.State,
			"qualification": msg.Qualification,
			"url":           msg.URL,
		},
	}
}
