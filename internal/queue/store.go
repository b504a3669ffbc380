package queue

import (
	"sync"
	"time"

	"sdengine/internal/domain"
)

// Store is the in-memory table of job records and the single source of truth
// for status and result queries. All mutation goes through Update, which is
// atomic with respect to readers.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
	now  func() time.Time
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*domain.Job), now: time.Now}
}

// Put inserts a job record.
func (s *Store) Put(job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
}

// Get returns a copy of the job, or ErrNotFound when it is unknown or has
// been evicted.
func (s *Store) Get(jobID string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

// Update applies mutate to the stored record under the write lock. When
// mutate returns an error the record is left untouched and the error is
// returned. No reader ever observes a partially-updated record.
func (s *Store) Update(jobID string, mutate func(*domain.Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	scratch := job.Clone()
	if err := mutate(scratch); err != nil {
		return err
	}
	s.jobs[jobID] = scratch
	return nil
}

// CountActive returns the number of Queued+Running jobs overall and for the
// given user.
func (s *Store) CountActive(userID string) (global, user int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		if job.State != domain.JobQueued && job.State != domain.JobRunning {
			continue
		}
		global++
		if job.UserID == userID {
			user++
		}
	}
	return global, user
}

// EvictOlderThan removes terminal jobs whose completion is past the retention
// window and reports how many were dropped. Queued and Running jobs are never
// evicted.
func (s *Store) EvictOlderThan(retention time.Duration) int {
	cutoff := s.now().Add(-retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, job := range s.jobs {
		if !job.State.Terminal() {
			continue
		}
		completed := job.CompletedAt
		if completed == nil || completed.After(cutoff) {
			continue
		}
		delete(s.jobs, id)
		evicted++
	}
	return evicted
}
