package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"dedup-service/internal/app"
	"dedup-service/internal/audit"
	"dedup-service/internal/config"
	"dedup-service/internal/dedup/handler"
	"dedup-service/internal/dedup/service"
	"dedup-service/internal/observability"
	serverhttp "dedup-service/server/http"
)

func main() {
	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		runtime.GOMAXPROCS(runtime.NumCPU())
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := config.SetupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(cfg.MetricsNamespace, nil)

	det, err := service.NewDetector(cfg.Matching)
	if err != nil {
		logger.Fatal().Err(err).Msg("detector")
	}
	refs, pg, closeRefs, err := app.References(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("source", cfg.ReferenceSource).Msg("reference source")
	}
	defer closeRefs()
	emb, err := app.Embedder(ctx, cfg, metrics)
	if err != nil {
		logger.Fatal().Err(err).Str("provider", cfg.EmbeddingProvider).Msg("embedding provider")
	}

	var embedder service.Embedder
	if emb != nil {
		embedder = emb
	}
	runner := service.NewRunner(det, refs, embedder, audit.New(logger), metrics, logger, app.RunnerOptions(cfg))

	var (
		analyses handler.AnalysisStore
		history  handler.AnalysisReader
	)
	if pg != nil {
		history = pg
		if cfg.SaveAnalysis {
			analyses = pg
		}
	}
	r := serverhttp.NewRouter(cfg, logger, handler.New(runner, analyses, history, logger), metrics, nil)

	srv := &http.Server{Addr: cfg.Addr(), Handler: r, ReadHeaderTimeout: 10 * time.Second}
	logger.Info().
		Str("addr", cfg.Addr()).
		Str("references", cfg.ReferenceSource).
		Str("embeddings", cfg.EmbeddingProvider).
		Msg("server starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("bye")
}
