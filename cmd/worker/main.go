// Command worker consumes analysis jobs from Kafka, runs them and publishes
// the results to Kafka or PostgreSQL.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/dendroclim/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/dendroclim/internal/adapter/kafka"
	"github.com/couchcryptid/dendroclim/internal/adapter/postgres"
	"github.com/couchcryptid/dendroclim/internal/adapter/resultcache"
	"github.com/couchcryptid/dendroclim/internal/config"
	"github.com/couchcryptid/dendroclim/internal/observability"
	"github.com/couchcryptid/dendroclim/internal/pipeline"
	"github.com/couchcryptid/dendroclim/internal/stats"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

type sink interface {
	pipeline.BatchLoader
	Close() error
}

// readinessChecks is ready when every check passes, in order.
type readinessChecks []sharedobs.ReadinessChecker

func (r readinessChecks) CheckReadiness(ctx context.Context) error {
	for _, check := range r {
		if err := check.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	if _, err := stats.Lookup(cfg.DefaultComparator); err != nil {
		logger.Error("invalid DEFAULT_COMPARATOR", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transformer := pipeline.NewTransformer(stats.Lookup, cfg.DefaultComparator, cfg.JobDefaults(), logger, metrics)
	opts := []httpadapter.Option{httpadapter.WithAnalyzer(transformer)}

	var (
		out    sink
		checks readinessChecks
	)
	switch cfg.Sink {
	case config.SinkPostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare database", "error", err)
			os.Exit(1)
		}
		checks = append(checks, store)
		out = store
		if cfg.ResultCacheSize > 0 {
			cached := resultcache.New(store, cfg.ResultCacheSize, metrics)
			opts = append(opts, httpadapter.WithResults(cached))
			out = cached
		} else {
			opts = append(opts, httpadapter.WithResults(store))
		}
	default:
		out = kafkaadapter.NewWriter(cfg, logger)
	}
	logger.Info("result sink selected", "sink", cfg.Sink, "default_comparator", cfg.DefaultComparator)

	reader := kafkaadapter.NewReader(cfg, logger)
	p := pipeline.New(reader, transformer, out, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, append(readinessChecks{p}, checks...), logger, opts...)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start analysis pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := out.Close(); err != nil {
		logger.Error("result sink close error", "error", err)
	}

	logger.Info("shutdown complete")
}
