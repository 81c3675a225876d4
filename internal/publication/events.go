package publication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/govtrack/backend/internal/models"
)

// Publisher emits opportunity write events.
type Publisher interface {
	Publish(ctx context.Context, evt models.OpportunityWritten) error
}

// Encode serializes an event for the wire.
func Encode(evt models.OpportunityWritten) ([]byte, error) {
	if evt.OpportunityID == "" {
		return nil, errors.New("event without opportunity id")
	}
	return json.Marshal(evt)
}

// ErrMalformedEvent marks payloads that can never be handled.
var ErrMalformedEvent = errors.New("malformed event")

// Decode parses an event read from the wire.
func Decode(data []byte) (models.OpportunityWritten, error) {
	var evt models.OpportunityWritten
	if err := json.Unmarshal(data, &evt); err != nil {
		return models.OpportunityWritten{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.OpportunityID == "" {
		return models.OpportunityWritten{}, fmt.Errorf("%w: no opportunity id", ErrMalformedEvent)
	}
	return evt, nil
}

// KafkaPublisher writes events keyed by opportunity id, so writes to one
// opportunity stay on one partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt models.OpportunityWritten) error {
	msg, err := Message(evt)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Message builds the Kafka message carrying evt.
func Message(evt models.OpportunityWritten) (kafka.Message, error) {
	payload, err := Encode(evt)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(evt.OpportunityID),
		Value: payload,
		Time:  evt.WrittenAt,
	}, nil
}

// InProcess hands events straight to a Trigger. Used when no broker is configured.
type InProcess struct {
	trigger *Trigger
	log     *slog.Logger
}

// NewInProcess returns a publisher that runs trigger synchronously.
func NewInProcess(trigger *Trigger, log *slog.Logger) *InProcess {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &InProcess{trigger: trigger, log: log}
}

func (p *InProcess) Publish(ctx context.Context, evt models.OpportunityWritten) error {
	outcome, err := p.trigger.Handle(ctx, evt)
	if err != nil {
		return err
	}
	p.log.Debug("event handled in process",
		slog.String("opportunity_id", evt.OpportunityID),
		slog.String("outcome", string(outcome)),
	)
	return nil
}
