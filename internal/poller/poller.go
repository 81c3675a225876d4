// Package poller detects content changes on monitored sources.
//
// A run fetches every active source, normalizes and digests its content and
// stamps the source with the digest and check time. Detecting a change is
// informational only: the poller never touches opportunities and never
// triggers notifications.
package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/govtrack/backend/internal/metrics"
	"github.com/govtrack/backend/internal/models"
	"github.com/govtrack/backend/internal/processing"
	"github.com/govtrack/backend/internal/repository"
	"github.com/govtrack/backend/internal/verification"
)

const defaultConcurrency = 4

// RunReport summarizes one poll over all active sources.
type RunReport struct {
	Checked   int
	Changed   int
	Unchanged int
	Failed    int
}

// Options tune a Poller. Zero values pick defaults.
type Options struct {
	Concurrency int
	Metrics     *metrics.Poller
	Now         func() time.Time
}

// Poller checks sources for content changes.
type Poller struct {
	sources     repository.SourceRepository
	fetcher     ContentFetcher
	log         *slog.Logger
	metrics     *metrics.Poller
	concurrency int
	now         func() time.Time
}

// New constructs a Poller.
func New(sources repository.SourceRepository, fetcher ContentFetcher, log *slog.Logger, opts Options) *Poller {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Poller{
		sources:     sources,
		fetcher:     fetcher,
		log:         log,
		metrics:     opts.Metrics,
		concurrency: opts.Concurrency,
		now:         opts.Now,
	}
}

// Run polls every active source once. Per-source failures are logged and
// counted; only failing to list the sources aborts the run.
func (p *Poller) Run(ctx context.Context) (RunReport, error) {
	sources, err := p.sources.ListActive(ctx)
	if err != nil {
		return RunReport{}, fmt.Errorf("list active sources: %w", err)
	}

	p.log.Info("sources to check", slog.Int("count", len(sources)))

	var (
		mu     sync.Mutex
		report RunReport
	)

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for _, src := range sources {
		g.Go(func() error {
			changed, err := p.checkSource(ctx, src)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
			case changed:
				report.Checked++
				report.Changed++
			default:
				report.Checked++
				report.Unchanged++
			}
			return nil
		})
	}
	_ = g.Wait()

	return report, nil
}

func (p *Poller) checkSource(ctx context.Context, src models.Source) (bool, error) {
	log := p.log.With(
		slog.String("source_id", src.ID),
		slog.String("source_name", src.Name),
		slog.String("url", src.URL),
	)
	log.Debug("checking source")

	raw, err := p.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			log.Warn("source unreachable, skipping", slog.Any("err", err))
		} else {
			log.Error("fetch source", slog.Any("err", err))
		}
		if p.metrics != nil {
			p.metrics.FetchFailures.Inc()
		}
		return false, err
	}

	digest := processing.Fingerprint(raw)
	changed := verification.HasContentChanged(src, digest)

	if err := p.sources.UpdateLastCheck(ctx, src.ID, digest, p.now()); err != nil {
		log.Error("persist source check", slog.Any("err", err))
		if p.metrics != nil {
			p.metrics.StoreFailures.Inc()
		}
		return false, err
	}

	if p.metrics != nil {
		p.metrics.SourcesChecked.Inc()
	}

	if changed {
		log.Info("change detected", slog.String("digest", digest))
		if p.metrics != nil {
			p.metrics.ChangesFound.Inc()
		}
	} else {
		log.Debug("no change")
	}

	return changed, nil
}
