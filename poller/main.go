package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/govtrack/backend/internal/config"
	"github.com/govtrack/backend/internal/logger"
	"github.com/govtrack/backend/internal/metrics"
	"github.com/govtrack/backend/internal/poller"
	"github.com/govtrack/backend/internal/storage"
)

func main() {
	log := logger.New("poller")
	if err := config.LoadDotEnv(); err != nil {
		log.Error("load .env", slog.Any("err", err))
		os.Exit(1)
	}
	cfg, err := config.LoadPoller()
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
	fetcher := newFetcher(cfg)
	p := poller.New(stores.Sources, fetcher, log, poller.Options{
		Concurrency: cfg.Concurrency,
		Metrics:     metrics.NewPoller(reg),
	})

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

	sched := newScheduler(log)
	if err := sched.Add(cfg.Schedule, func() { runOnce(ctx, log, p, cfg.RunTimeout) }); err != nil {
		log.Error("invalid POLLER_SCHEDULE", slog.String("schedule", cfg.Schedule), slog.Any("err", err))
		os.Exit(1)
	}
	sched.Start()

	log.Info("change poller running",
		slog.String("schedule", cfg.Schedule),
		slog.Int("concurrency", cfg.Concurrency),
		slog.String("fetch_mode", cfg.FetchMode),
	)

	if cfg.RunOnStart {
		sched.RunNow()
	}

	<-ctx.Done()
	log.Info("shutdown signal received")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics server shutdown", slog.Any("err", err))
	}
}

func newFetcher(cfg *config.Poller) poller.ContentFetcher {
	if cfg.FetchMode == "mock" {
		return poller.MockFetcher{}
	}
	return poller.NewHTTPFetcher(cfg.FetchTimeout)
}

// runOnce performs a single poll. Failures are logged and retried on the next tick.
func runOnce(ctx context.Context, log *slog.Logger, p *poller.Poller, timeout time.Duration) poller.RunReport {
	subCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	report, err := p.Run(subCtx)
	if err != nil {
		log.Warn("poll run failed (will retry on next tick)", slog.Any("err", err))
		return report
	}

	log.Info("poll run completed",
		slog.Int("checked", report.Checked),
		slog.Int("changed", report.Changed),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("failed", report.Failed),
		slog.Duration("took", time.Since(start)),
	)
	return report
}

// scheduler runs one job on a cron spec. Scheduled and on-demand runs share
// the same chain, so they never overlap.
type scheduler struct {
	cron  *cron.Cron
	id    cron.EntryID
	extra sync.WaitGroup
}

func newScheduler(log *slog.Logger) *scheduler {
	return &scheduler{cron: cron.New(cron.WithChain(
		cron.Recover(cronLogger(log)),
		cron.SkipIfStillRunning(cronLogger(log)),
	))}
}

func (s *scheduler) Add(spec string, job func()) error {
	id, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return err
	}
	s.id = id
	return nil
}

func (s *scheduler) Start() { s.cron.Start() }

// RunNow triggers the job outside the schedule. It is skipped when a run is
// already in flight.
func (s *scheduler) RunNow() {
	job := s.cron.Entry(s.id).WrappedJob
	if job == nil {
		return
	}
	s.extra.Add(1)
	go func() {
		defer s.extra.Done()
		job.Run()
	}()
}

// Stop halts the schedule and waits for every in-flight run.
func (s *scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.extra.Wait()
}

func cronLogger(log *slog.Logger) cron.Logger {
	return cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelInfo))
}
