// Package app builds the runtime components shared by the server and the CLI
// from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"dedup-service/internal/config"
	"dedup-service/internal/dedup/service"
	"dedup-service/internal/embedding"
	"dedup-service/internal/observability"
	"dedup-service/internal/store"
)

// References opens the configured registry. The *store.Postgres is non-nil
// only for the postgres source; the close func is always safe to call.
func References(ctx context.Context, cfg config.Config, log zerolog.Logger) (service.ReferenceSource, *store.Postgres, func(), error) {
	switch cfg.ReferenceSource {
	case config.ReferenceSourcePostgres:
		pool, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, func() {}, err
		}
		pg := store.NewPostgres(pool, log)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, func() {}, err
		}
		return pg, pg, pool.Close, nil
	case config.ReferenceSourceFile:
		return store.FileSource{Path: cfg.ReferenceFile}, nil, func() {}, nil
	}
	return nil, nil, func() {}, fmt.Errorf("unknown reference source %q", cfg.ReferenceSource)
}

// Embedder builds the configured provider wrapped with metrics and an LRU
// cache. It returns nil when embeddings are disabled.
func Embedder(ctx context.Context, cfg config.Config, metrics *observability.Metrics) (embedding.Provider, error) {
	var p embedding.Provider
	switch cfg.EmbeddingProvider {
	case config.EmbeddingNone:
		return nil, nil
	case config.EmbeddingHash:
		p = embedding.NewHash(cfg.EmbeddingDimensions)
	case config.EmbeddingBedrock:
		b, err := embedding.NewBedrockFromEnv(ctx, cfg.AWSRegion, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
		if err != nil {
			return nil, err
		}
		p = b
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
	p = embedding.Instrumented{Provider: p, Name: cfg.EmbeddingProvider, Metrics: metrics}
	if cfg.EmbeddingCacheSize <= 0 {
		return p, nil
	}
	return embedding.NewCached(p, cfg.EmbeddingCacheSize)
}

// RunnerOptions maps configuration onto batch runner options.
func RunnerOptions(cfg config.Config) service.RunnerOptions {
	return service.RunnerOptions{
		Workers:          cfg.Workers,
		RecordTimeout:    cfg.RecordTimeout,
		WithAlternatives: cfg.WithAlternatives,
	}
}
