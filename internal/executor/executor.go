package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sdengine/internal/domain"
	"sdengine/internal/metrics"
	"sdengine/internal/queue"
	"sdengine/internal/storage"
	"sdengine/internal/upstream"
)

// Upstream is the slice of the generator client the executor drives.
type Upstream interface {
	Generate(ctx context.Context, spec *domain.GenerationSpec) (*upstream.Result, error)
	Progress(ctx context.Context) (float64, error)
	Interrupt(ctx context.Context) error
}

// Config tunes the worker pool.
type Config struct {
	// Concurrency is the number of worker loops; it matches the upstream's
	// own concurrency, default 1 because the generator serializes work.
	Concurrency int
	// JobTimeout is the maximum Running duration per job.
	JobTimeout time.Duration
	// ProgressEvery is the progress poll cadence while a job runs.
	ProgressEvery time.Duration
	// DequeueEvery is how long an idle worker sleeps before re-checking the
	// queue.
	DequeueEvery time.Duration
	// Retention bounds how long terminal jobs stay queryable.
	Retention time.Duration
	// EvictEvery is the cadence of the retention sweep.
	EvictEvery time.Duration
	// Artifacts, when set, receives the images of every completed job.
	Artifacts *storage.FileStore
}

// Executor runs a fixed pool of workers that dequeue jobs and drive them
// against the upstream generator.
type Executor struct {
	queue    *queue.Queue
	jobs     *queue.Store
	upstream Upstream
	logger   zerolog.Logger
	cfg      Config
}

// New creates an executor. Zero config fields get conservative defaults.
func New(q *queue.Queue, jobs *queue.Store, up Upstream, logger zerolog.Logger, cfg Config) *Executor {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 1500 * time.Millisecond
	}
	if cfg.DequeueEvery <= 0 {
		cfg.DequeueEvery = 500 * time.Millisecond
	}
	if cfg.EvictEvery <= 0 {
		cfg.EvictEvery = time.Minute
	}
	return &Executor{queue: q, jobs: jobs, upstream: up, logger: logger, cfg: cfg}
}

// Run starts the worker pool and the retention sweeper and blocks until ctx
// is cancelled.
func (e *Executor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			e.workerLoop(ctx, worker)
		}(i)
	}
	if e.cfg.Retention > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.sweepLoop(ctx)
		}()
	}
	wg.Wait()
}

func (e *Executor) workerLoop(ctx context.Context, worker int) {
	log := e.logger.With().Int("worker", worker).Logger()
	log.Info().Msg("executor: worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("executor: worker stopped")
			return
		default:
		}

		job, err := e.queue.Next()
		if err != nil {
			if !errors.Is(err, queue.ErrNoJob) {
				log.Error().Err(err).Msg("executor: dequeue failed")
			}
			select {
			case <-ctx.Done():
			case <-time.After(e.cfg.DequeueEvery):
			}
			continue
		}

		e.runJob(ctx, log, job)
	}
}

// runJob drives one job to a terminal state. Panics and upstream errors are
// recorded on the job; the worker always returns to the dequeue loop.
func (e *Executor) runJob(ctx context.Context, log zerolog.Logger, job *domain.Job) {
	started := time.Now()
	defer func() {
		metrics.JobsRunning.Dec()
		metrics.JobDurationSeconds.Observe(time.Since(started).Seconds())
		if r := recover(); r != nil {
			log.Error().Str("job_id", job.ID).Interface("panic", r).Msg("executor: worker panicked")
			e.fail(job.ID, domain.FailureInternal, fmt.Sprintf("worker panic: %v", r))
		}
	}()

	log.Info().Str("job_id", job.ID).Str("user_id", job.UserID).Msg("executor: job picked up")

	jobCtx, cancel := context.WithTimeout(ctx, e.cfg.JobTimeout)
	defer cancel()

	type outcome struct {
		result *upstream.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := e.upstream.Generate(jobCtx, job.Spec)
		done <- outcome{result: result, err: err}
	}()

	ticker := time.NewTicker(e.cfg.ProgressEvery)
	defer ticker.Stop()

	for {
		select {
		case out := <-done:
			if out.err != nil {
				kind, message := classify(jobCtx, out.err)
				if kind == domain.FailureTimeout {
					e.interrupt(log, job.ID)
				}
				log.Warn().Str("job_id", job.ID).Str("kind", string(kind)).Msg("executor: job failed")
				e.fail(job.ID, kind, message)
				return
			}
			e.complete(job.ID, out.result)
			e.exportArtifacts(ctx, log, job.ID, out.result.Images)
			log.Info().Str("job_id", job.ID).Int("images", len(out.result.Images)).Msg("executor: job completed")
			return
		case <-ticker.C:
			e.pollProgress(jobCtx, job.ID)
		}
	}
}

// pollProgress stores the upstream's current fraction. Progress never
// decreases and never reaches 1.0 before completion sets it.
func (e *Executor) pollProgress(ctx context.Context, jobID string) {
	fraction, err := e.upstream.Progress(ctx)
	if err != nil {
		return
	}
	if fraction > 0.99 {
		fraction = 0.99
	}
	_ = e.jobs.Update(jobID, func(job *domain.Job) error {
		if job.State != domain.JobRunning {
			return domain.ErrInvalidState
		}
		if fraction > job.Progress {
			job.Progress = fraction
		}
		return nil
	})
}

// exportArtifacts writes completed images to disk when an artifact store is
// configured. Failures are logged, never surfaced to the job.
func (e *Executor) exportArtifacts(ctx context.Context, log zerolog.Logger, jobID string, images []string) {
	if e.cfg.Artifacts == nil || len(images) == 0 {
		return
	}
	keys, err := e.cfg.Artifacts.SaveJobImages(ctx, jobID, images)
	if err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("executor: artifact export failed")
		return
	}
	log.Debug().Str("job_id", jobID).Int("files", len(keys)).Msg("executor: artifacts exported")
}

func (e *Executor) interrupt(log zerolog.Logger, jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.upstream.Interrupt(ctx); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("executor: interrupt failed")
	}
}

func (e *Executor) complete(jobID string, result *upstream.Result) {
	err := e.jobs.Update(jobID, func(job *domain.Job) error {
		if job.State != domain.JobRunning {
			return fmt.Errorf("job is %s: %w", job.State, domain.ErrInvalidState)
		}
		job.State = domain.JobCompleted
		job.Progress = 1.0
		job.Result = &domain.JobResult{Images: result.Images, Info: result.Info}
		now := time.Now().UTC()
		job.CompletedAt = &now
		return nil
	})
	if err != nil {
		e.logger.Error().Err(err).Str("job_id", jobID).Msg("executor: completion update failed")
		return
	}
	metrics.JobsCompletedTotal.Inc()
}

func (e *Executor) fail(jobID string, kind domain.FailureKind, message string) {
	err := e.jobs.Update(jobID, func(job *domain.Job) error {
		if job.State.Terminal() {
			return fmt.Errorf("job is %s: %w", job.State, domain.ErrInvalidState)
		}
		job.State = domain.JobFailed
		job.Failure = &domain.JobFailure{Kind: kind, Message: message}
		now := time.Now().UTC()
		job.CompletedAt = &now
		return nil
	})
	if err != nil {
		e.logger.Error().Err(err).Str("job_id", jobID).Msg("executor: failure update failed")
		return
	}
	metrics.JobsFailedTotal.WithLabelValues(string(kind)).Inc()
}

// classify maps an upstream error to the failure taxonomy.
func classify(ctx context.Context, err error) (domain.FailureKind, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return domain.FailureTimeout, "job exceeded its maximum running duration"
	case errors.Is(err, upstream.ErrUnavailable):
		return domain.FailureUpstreamUnavailable, err.Error()
	case errors.Is(err, upstream.ErrRejected):
		return domain.FailureUpstreamError, err.Error()
	default:
		return domain.FailureInternal, err.Error()
	}
}

func (e *Executor) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.EvictEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.jobs.EvictOlderThan(e.cfg.Retention); n > 0 {
				e.logger.Info().Int("evicted", n).Msg("executor: retention sweep")
			}
		}
	}
}
