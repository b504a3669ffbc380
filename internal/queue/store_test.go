package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sdengine/internal/domain"
)

func testJob(id, userID string, state domain.JobState) *domain.Job {
	return &domain.Job{
		ID:          id,
		UserID:      userID,
		Spec:        &domain.GenerationSpec{Prompt: "p"},
		State:       state,
		SubmittedAt: time.Now().UTC(),
	}
}

func TestStoreGetUnknown(t *testing.T) {
	s := NewStore()
	_, err := s.Get("nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Put(testJob("j1", "u1", domain.JobQueued))

	a, err := s.Get("j1")
	require.NoError(t, err)
	a.State = domain.JobFailed
	a.Spec.Prompt = "mutated"

	b, err := s.Get("j1")
	require.NoError(t, err)
	require.Equal(t, domain.JobQueued, b.State)
	require.Equal(t, "p", b.Spec.Prompt)
}

func TestStoreUpdateErrorLeavesRecordUntouched(t *testing.T) {
	s := NewStore()
	s.Put(testJob("j1", "u1", domain.JobQueued))

	boom := errors.New("boom")
	err := s.Update("j1", func(job *domain.Job) error {
		job.State = domain.JobRunning
		return boom
	})
	require.ErrorIs(t, err, boom)

	job, err := s.Get("j1")
	require.NoError(t, err)
	require.Equal(t, domain.JobQueued, job.State)
}

func TestStoreCountActive(t *testing.T) {
	s := NewStore()
	s.Put(testJob("j1", "u1", domain.JobQueued))
	s.Put(testJob("j2", "u1", domain.JobRunning))
	s.Put(testJob("j3", "u2", domain.JobQueued))
	s.Put(testJob("j4", "u1", domain.JobCompleted))
	s.Put(testJob("j5", "u1", domain.JobCancelled))

	global, user := s.CountActive("u1")
	require.Equal(t, 3, global)
	require.Equal(t, 2, user)
}

func TestStoreEvictOlderThan(t *testing.T) {
	s := NewStore()
	old := time.Now().Add(-2 * time.Hour).UTC()
	recent := time.Now().UTC()

	done := testJob("old-done", "u1", domain.JobCompleted)
	done.CompletedAt = &old
	s.Put(done)

	fresh := testJob("fresh-done", "u1", domain.JobCompleted)
	fresh.CompletedAt = &recent
	s.Put(fresh)

	running := testJob("running", "u1", domain.JobRunning)
	started := old
	running.StartedAt = &started
	s.Put(running)

	require.Equal(t, 1, s.EvictOlderThan(time.Hour))

	_, err := s.Get("old-done")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.Get("fresh-done")
	require.NoError(t, err)
	_, err = s.Get("running")
	require.NoError(t, err)
}
