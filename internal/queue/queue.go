package queue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sdengine/internal/domain"
	"sdengine/internal/metrics"
)

// ErrNoJob is returned by Next when nothing is ready for pickup.
var ErrNoJob = errors.New("no job available")

// Limits are the two admission bounds enforced on submission.
type Limits struct {
	MaxGlobal  int
	MaxPerUser int
}

// Queue admits built specifications and hands them to executor workers in
// FIFO submission order.
type Queue struct {
	store  *Store
	limits Limits
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending []string
}

// New creates a queue writing its records into store.
func New(store *Store, limits Limits, logger zerolog.Logger) *Queue {
	return &Queue{store: store, limits: limits, logger: logger, now: time.Now}
}

// Submit runs admission control and, on acceptance, creates the Queued job
// record and enqueues it. Exceeding either admission bound fails with
// ErrBackpressure and nothing is recorded.
func (q *Queue) Submit(userID string, spec *domain.GenerationSpec) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	global, user := q.store.CountActive(userID)
	if global >= q.limits.MaxGlobal {
		metrics.JobsRejectedTotal.Inc()
		return "", fmt.Errorf("global in-flight limit %d reached: %w", q.limits.MaxGlobal, domain.ErrBackpressure)
	}
	if user >= q.limits.MaxPerUser {
		metrics.JobsRejectedTotal.Inc()
		return "", fmt.Errorf("per-user in-flight limit %d reached: %w", q.limits.MaxPerUser, domain.ErrBackpressure)
	}

	job := &domain.Job{
		ID:          uuid.NewString(),
		UserID:      userID,
		Spec:        spec.Clone(),
		State:       domain.JobQueued,
		SubmittedAt: q.now().UTC(),
	}
	q.store.Put(job)
	q.pending = append(q.pending, job.ID)

	metrics.JobsSubmittedTotal.Inc()
	metrics.QueueDepth.Set(float64(len(q.pending)))
	q.logger.Info().Str("job_id", job.ID).Str("user_id", userID).Msg("queue: job accepted")
	return job.ID, nil
}

// Cancel moves a still-Queued job to Cancelled. It fails with ErrForbidden
// when userID does not own the job and with ErrInvalidState once the job has
// been picked up or finished. Cancelled ids stay in the pending list and are
// skipped at pickup.
func (q *Queue) Cancel(jobID, userID string) error {
	err := q.store.Update(jobID, func(job *domain.Job) error {
		if job.UserID != userID {
			return domain.ErrForbidden
		}
		if job.State != domain.JobQueued {
			return fmt.Errorf("job is %s: %w", job.State, domain.ErrInvalidState)
		}
		job.State = domain.JobCancelled
		now := q.now().UTC()
		job.CompletedAt = &now
		return nil
	})
	if err != nil {
		return err
	}
	metrics.JobsCancelledTotal.Inc()
	q.logger.Info().Str("job_id", jobID).Msg("queue: job cancelled")
	return nil
}

// Next claims the oldest Queued job, transitions it to Running, and returns a
// copy for the worker to drive. It returns ErrNoJob when the queue holds
// nothing claimable; workers poll again after their dequeue interval.
func (q *Queue) Next() (*domain.Job, error) {
	for {
		id, ok := q.pop()
		if !ok {
			return nil, ErrNoJob
		}
		var claimed *domain.Job
		err := q.store.Update(id, func(job *domain.Job) error {
			if job.State != domain.JobQueued {
				// Cancelled before pickup; skip it.
				return domain.ErrInvalidState
			}
			job.State = domain.JobRunning
			now := q.now().UTC()
			job.StartedAt = &now
			claimed = job.Clone()
			return nil
		})
		if err != nil {
			continue
		}
		metrics.JobsRunning.Inc()
		return claimed, nil
	}
}

func (q *Queue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return "", false
	}
	id := q.pending[0]
	q.pending = q.pending[1:]
	metrics.QueueDepth.Set(float64(len(q.pending)))
	return id, true
}

// Depth reports how many ids are waiting for pickup, including ids whose jobs
// were cancelled but not yet skipped.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
