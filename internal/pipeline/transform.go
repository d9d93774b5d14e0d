package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/dendroclim/internal/domain"
	"github.com/couchcryptid/dendroclim/internal/observability"
)

// AnalysisTransformer implements Transformer by parsing a job message,
// running the analysis and serializing its result.
type AnalysisTransformer struct {
	resolve           domain.ComparatorResolver
	defaultComparator string
	defaults          domain.JobDefaults
	logger            *slog.Logger
	metrics           *observability.Metrics
}

// NewTransformer creates an AnalysisTransformer. Comparators are looked up
// through resolve; jobs that name none use defaultComparator.
func NewTransformer(resolve domain.ComparatorResolver, defaultComparator string, defaults domain.JobDefaults, logger *slog.Logger, metrics *observability.Metrics) *AnalysisTransformer {
	return &AnalysisTransformer{
		resolve:           resolve,
		defaultComparator: defaultComparator,
		defaults:          defaults,
		logger:            logger,
		metrics:           metrics,
	}
}

// Run parses and executes one job message.
func (t *AnalysisTransformer) Run(raw domain.RawEvent) (domain.AnalysisResult, error) {
	job, err := domain.ParseAnalysisJobWithDefaults(raw, t.defaults)
	if err != nil {
		t.metrics.JobFailures.WithLabelValues(failureReason(err, "parse")).Inc()
		return domain.AnalysisResult{}, err
	}

	start := time.Now()
	result, err := domain.RunAnalysis(job, t.resolve, t.defaultComparator)
	if err != nil {
		t.metrics.JobFailures.WithLabelValues(failureReason(err, "analysis")).Inc()
		return domain.AnalysisResult{}, err
	}
	t.metrics.AnalysisDuration.WithLabelValues(string(job.Kind)).Observe(time.Since(start).Seconds())
	t.metrics.NullCells.WithLabelValues(string(job.Kind)).Add(float64(result.Summary.NullCells))
	t.metrics.AbsentSeasons.Add(float64(result.Summary.AbsentSeasons))

	t.logger.Debug("analysis complete",
		"job_id", job.ID,
		"kind", job.Kind,
		"rows", result.Summary.Rows,
		"null_cells", result.Summary.NullCells,
		"absent_seasons", result.Summary.AbsentSeasons,
	)
	return result, nil
}

// Transform runs the job carried by raw and returns the serialized result.
func (t *AnalysisTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutputEvent{}, err
	}
	result, err := t.Run(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	return domain.SerializeResult(result)
}

// failureReason classifies job errors for the failure counter.
func failureReason(err error, fallback string) string {
	var violation *domain.SchemaViolation
	var cfgErr *domain.ConfigurationError
	switch {
	case errors.As(err, &violation):
		return "schema"
	case errors.As(err, &cfgErr):
		return "config"
	default:
		return fallback
	}
}
