// Package storage opens the configured storage backend and exposes its repositories.
package storage

import (
	"context"
	"log/slog"

	"github.com/govtrack/backend/internal/config"
	"github.com/govtrack/backend/internal/elasticsearch"
	"github.com/govtrack/backend/internal/repository"
)

// Stores bundles the repositories of one backend.
type Stores struct {
	Sources       repository.SourceRepository
	Opportunities repository.OpportunityRepository
	Tracking      repository.TrackingRepository
	// Health reports backend availability.
	Health func(ctx context.Context) error
}

// Open connects to the backend named by cfg.Store.
func Open(ctx context.Context, cfg config.Common, log *slog.Logger) (*Stores, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store, data is lost on restart")
		return Memory(), nil
	}

	es, err := elasticsearch.Connect(ctx, cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, cfg.PageSize, log, elasticsearch.ConnectOptions{})
	if err != nil {
		return nil, err
	}
	log.Info("connected to elasticsearch", slog.String("addr", cfg.ElasticsearchAddr))

	return &Stores{
		Sources:       es.Sources(),
		Opportunities: es.Opportunities(),
		Tracking:      es.Tracking(),
		Health:        es.Health,
	}, nil
}

// Memory returns empty in-memory repositories.
func Memory() *Stores {
	return &Stores{
		Sources:       repository.NewMemorySources(),
		Opportunities: repository.NewMemoryOpportunities(),
		Tracking:      repository.NewMemoryTracking(),
		Health:        func(context.Context) error { return nil },
	}
}
