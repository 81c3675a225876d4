package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/govtrack/backend/internal/config"
	"github.com/govtrack/backend/internal/logger"
	"github.com/govtrack/backend/internal/metrics"
	"github.com/govtrack/backend/internal/models"
	"github.com/govtrack/backend/internal/notify"
	"github.com/govtrack/backend/internal/publication"
	"github.com/govtrack/backend/internal/repository"
	"github.com/govtrack/backend/internal/storage"
	"github.com/govtrack/backend/internal/verification"
)

const (
	dlqAttempts     = 5
	maxRetryBackoff = 30 * time.Second
)

type eventHandler interface {
	Handle(ctx context.Context, evt models.OpportunityWritten) (publication.Outcome, error)
}

func main() {
	log := logger.New("trigger")
	if err := config.LoadDotEnv(); err != nil {
		log.Error("load .env", slog.Any("err", err))
		os.Exit(1)
	}
	cfg, err := config.LoadTrigger()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	stores, err := storage.Open(ctx, cfg.Common, log)
	if err != nil {
		log.Error("open store", slog.Any("err", err))
		os.Exit(1)
	}

	notifier, closeNotifier, err := notify.Open(ctx, cfg.RedisURL, cfg.NotifyStream, log)
	if err != nil {
		log.Error("init notifier", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := closeNotifier(); err != nil {
			log.Warn("close notifier", slog.Any("err", err))
		}
	}()

	reg := prometheus.NewRegistry()
	trigger := publication.NewTrigger(
		verification.NewService(stores.Opportunities, log),
		notifier,
		log,
		metrics.NewTrigger(reg),
		cfg.NotifyTimeout,
	)

	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", slog.Any("err", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.EventsTopic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit only
	})
	defer reader.Close()

	dlqTopic := cfg.EventsTopic + "_dlq"
	dlqWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        dlqTopic,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	defer dlqWriter.Close()

	log.Info("publication trigger started",
		slog.String("topic", cfg.EventsTopic),
		slog.String("group", cfg.ConsumerGroup),
		slog.String("dlq_topic", dlqTopic),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processWithRetry(ctx, log, trigger, msg, time.Second); err != nil {
			if ctx.Err() != nil {
				// Left uncommitted; redelivered after restart.
				return
			}
			log.Warn("process event failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)
			if !sendToDLQ(ctx, log, dlqWriter, msg, err) {
				if ctx.Err() != nil {
					return
				}
				log.Error("DLQ write exhausted retries, event may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// processMessage decodes one write event and runs the trigger on it.
func processMessage(ctx context.Context, log *slog.Logger, h eventHandler, msg kafka.Message) error {
	evt, err := publication.Decode(msg.Value)
	if err != nil {
		return err
	}

	outcome, err := h.Handle(ctx, evt)
	if err != nil {
		return err
	}

	log.Debug("event handled",
		slog.String("opportunity_id", evt.OpportunityID),
		slog.String("outcome", string(outcome)),
	)
	return nil
}

// permanent reports whether err can never succeed on redelivery. Only those
// events go to the DLQ.
func permanent(err error) bool {
	return errors.Is(err, publication.ErrMalformedEvent) || errors.Is(err, repository.ErrNotFound)
}

// processWithRetry handles msg, retrying transient failures such as a store
// outage with capped exponential backoff until they succeed or ctx ends.
// The returned error is permanent or ctx's error.
func processWithRetry(ctx context.Context, log *slog.Logger, h eventHandler, msg kafka.Message, base time.Duration) error {
	backoff := base
	for attempt := 1; ; attempt++ {
		err := processMessage(ctx, log, h, msg)
		if err == nil || permanent(err) {
			return err
		}

		log.Warn("transient failure handling event, retrying",
			slog.Any("err", err),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// sendToDLQ writes msg with its failure context, retrying with exponential backoff.
func sendToDLQ(ctx context.Context, log *slog.Logger, w messageWriter, msg kafka.Message, cause error) bool {
	dlqMsg := dlqMessage(msg, cause, time.Now())

	for attempt := range dlqAttempts {
		dlqErr := w.WriteMessages(ctx, dlqMsg)
		if dlqErr == nil {
			log.Info("event sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			log.Info("context canceled during DLQ retry")
			return false
		}
	}
	return false
}

func dlqMessage(msg kafka.Message, cause error, at time.Time) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers)+4)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
		kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
		kafka.Header{Key: "timestamp", Value: []byte(at.UTC().Format(time.RFC3339))},
	)
	return kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}
}
