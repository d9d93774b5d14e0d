package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/dendroclim/internal/domain"
	"github.com/couchcryptid/dendroclim/internal/observability"
)

// BatchExtractor reads up to batchSize job messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer runs the job carried by a raw event and returns its serialized result.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error)
}

// BatchLoader writes multiple results to the sink.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

// Pipeline consumes analysis jobs, runs them and publishes their results.
//
// Offsets of a batch, rejected jobs included, are committed only after its
// results are stored.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// Ready reports whether at least one result has been loaded.
func (p *Pipeline) Ready() bool { return p.ready.Load() }

// CheckReadiness returns nil once a result has been loaded, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not produced any results yet")
	}
	return nil
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// retryDelay is the exponential backoff between failed extract or load
// attempts. It doubles after every wait and resets once jobs arrive.
type retryDelay struct {
	next time.Duration
}

func (r *retryDelay) reset() { r.next = initialBackoff }

// wait sleeps for the current delay. It returns false when ctx ends first.
func (r *retryDelay) wait(ctx context.Context) bool {
	if ctx.Err() != nil || !sleepWithContext(ctx, r.next) {
		return false
	}
	r.next = min(r.next*2, maxBackoff)
	return true
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	delay := &retryDelay{next: initialBackoff}
	for ctx.Err() == nil {
		if !p.runBatch(ctx, delay) {
			break
		}
	}
	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

// jobBatch is the outcome of running one extracted batch.
type jobBatch struct {
	results []domain.OutputEvent
	// byKey indexes results by result ID so a job redelivered within the
	// batch yields one result.
	byKey map[string]int
	// settled holds every job whose offset may be committed once results
	// are stored, in extraction order.
	settled  []domain.RawEvent
	rejected int
	failed   int
}

func newJobBatch(size int) *jobBatch {
	return &jobBatch{
		results: make([]domain.OutputEvent, 0, size),
		byKey:   make(map[string]int, size),
		settled: make([]domain.RawEvent, 0, size),
	}
}

func (b *jobBatch) add(raw domain.RawEvent, out domain.OutputEvent) {
	if i, ok := b.byKey[string(out.Key)]; ok {
		b.results[i] = out
	} else {
		b.byKey[string(out.Key)] = len(b.results)
		b.results = append(b.results, out)
	}
	b.settled = append(b.settled, raw)
}

// runBatch extracts, analyzes and publishes one batch of jobs. It returns
// false when the pipeline should stop.
func (p *Pipeline) runBatch(ctx context.Context, delay *retryDelay) bool {
	start := time.Now()

	jobs, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return delay.wait(ctx)
	}
	if len(jobs) == 0 {
		return ctx.Err() == nil
	}
	p.metrics.JobsConsumed.Add(float64(len(jobs)))
	p.metrics.BatchSize.Observe(float64(len(jobs)))
	delay.reset()

	batch, ok := p.analyze(ctx, jobs)
	if !ok {
		// Interrupted mid-batch: nothing is stored or committed, so every
		// job in the batch is redelivered.
		return false
	}
	if len(batch.results) > 0 {
		if err := p.loader.LoadBatch(ctx, batch.results); err != nil {
			p.logger.Error("load results failed", "error", err, "results", len(batch.results))
			return delay.wait(ctx)
		}
		for _, out := range batch.results {
			p.metrics.ResultsProduced.WithLabelValues(out.Headers[domain.HeaderJobKind]).Inc()
		}
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	for _, raw := range batch.settled {
		p.commitOffset(ctx, raw)
	}
	if batch.rejected > 0 || batch.failed > 0 {
		p.logger.Info("batch settled with unprocessed jobs",
			"jobs", len(jobs),
			"results", len(batch.results),
			"rejected", batch.rejected,
			"failed", batch.failed,
		)
	}
	return true
}

// analyze runs every job of the batch. Jobs that can never succeed are
// settled without a result. ok is false when ctx ended before the batch was
// done.
func (p *Pipeline) analyze(ctx context.Context, jobs []domain.RawEvent) (batch *jobBatch, ok bool) {
	batch = newJobBatch(len(jobs))
	for _, raw := range jobs {
		out, err := p.transformer.Transform(ctx, raw)
		switch {
		case err == nil:
			batch.add(raw, out)
		case ctx.Err() != nil:
			return nil, false
		case domain.IsInvalidJob(err):
			p.logger.Warn("job rejected",
				"error", err,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			batch.rejected++
			batch.settled = append(batch.settled, raw)
		default:
			// Settled, not retried: the same job fails the same way.
			p.logger.Error("job analysis failed",
				"error", err,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			batch.failed++
			batch.settled = append(batch.settled, raw)
		}
	}
	return batch, true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
