package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/govtrack/backend/internal/cache"
	"github.com/govtrack/backend/internal/config"
	"github.com/govtrack/backend/internal/identity"
	"github.com/govtrack/backend/internal/logger"
	"github.com/govtrack/backend/internal/metrics"
	"github.com/govtrack/backend/internal/notify"
	"github.com/govtrack/backend/internal/policy"
	"github.com/govtrack/backend/internal/publication"
	"github.com/govtrack/backend/internal/storage"
	"github.com/govtrack/backend/internal/verification"
)

func main() {
	log := logger.New("api")
	if err := config.LoadDotEnv(); err != nil {
		log.Error("load .env", slog.Any("err", err))
		os.Exit(1)
	}
	cfg, err := config.LoadAPI()
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

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	events, closeEvents, err := openPublisher(ctx, cfg, stores, reg, log)
	if err != nil {
		log.Error("init event publisher", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := closeEvents(); err != nil {
			log.Warn("close event publisher", slog.Any("err", err))
		}
	}()

	if cfg.AuthEmulator {
		if identity.BypassCompiled() {
			log.Warn("auth emulator enabled, DEV_TOKEN is accepted")
		} else {
			log.Warn("AUTH_EMULATOR set but binary built without devauth tag, bypass disabled")
		}
	}

	srv := &server{
		log:           log,
		sources:       stores.Sources,
		opportunities: stores.Opportunities,
		tracking:      stores.Tracking,
		health:        stores.Health,
		verifier: identity.NewCached(
			identity.NewJWTVerifier(cfg.SigningKey, cfg.TokenIssuer),
			cache.NewIdentities(cfg.AuthCacheSize, cfg.AuthCacheTTL),
		),
		policy:   policy.New(cfg.AdminEmail),
		events:   events,
		metrics:  metrics.NewAPI(reg),
		region:   cfg.Region,
		emulator: cfg.AuthEmulator,
		now:      time.Now,
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(cfg.RequestTimeout, reg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.String("store", cfg.Store),
			slog.String("events", cfg.EventsTransport),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

// openPublisher returns the Kafka publisher, or an in-process trigger when
// EVENTS_TRANSPORT=inprocess.
func openPublisher(ctx context.Context, cfg *config.API, stores *storage.Stores, reg prometheus.Registerer, log *slog.Logger) (publication.Publisher, func() error, error) {
	if cfg.EventsTransport == config.EventsKafka {
		p := publication.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventsTopic)
		log.Info("publishing opportunity writes to kafka", slog.String("topic", cfg.EventsTopic))
		return p, p.Close, nil
	}

	notifier, closeNotifier, err := notify.Open(ctx, cfg.RedisURL, cfg.NotifyStream, log)
	if err != nil {
		return nil, nil, err
	}
	trigger := publication.NewTrigger(
		verification.NewService(stores.Opportunities, log),
		notifier,
		log,
		metrics.NewTrigger(reg),
		cfg.NotifyTimeout,
	)
	log.Info("handling opportunity writes in process")
	return publication.NewInProcess(trigger, log), closeNotifier, nil
}
