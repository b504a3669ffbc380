package queue

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"sdengine/internal/domain"
)

func newTestQueue(limits Limits) (*Queue, *Store) {
	store := NewStore()
	return New(store, limits, zerolog.Nop()), store
}

func submitOK(t *testing.T, q *Queue, userID string) string {
	t.Helper()
	id, err := q.Submit(userID, &domain.GenerationSpec{Prompt: "p"})
	require.NoError(t, err)
	return id
}

func TestSubmitRecordsQueuedJob(t *testing.T) {
	q, store := newTestQueue(Limits{MaxGlobal: 10, MaxPerUser: 5})

	id := submitOK(t, q, "u1")
	job, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, domain.JobQueued, job.State)
	require.Equal(t, "u1", job.UserID)
	require.False(t, job.SubmittedAt.IsZero())
	require.Equal(t, 1, q.Depth())
}

func TestSubmitPerUserBackpressure(t *testing.T) {
	q, _ := newTestQueue(Limits{MaxGlobal: 10, MaxPerUser: 3})

	for i := 0; i < 3; i++ {
		submitOK(t, q, "u1")
	}
	_, err := q.Submit("u1", &domain.GenerationSpec{Prompt: "p"})
	require.ErrorIs(t, err, domain.ErrBackpressure)

	// Other users are unaffected by u1's limit.
	submitOK(t, q, "u2")
}

func TestSubmitGlobalBackpressure(t *testing.T) {
	q, _ := newTestQueue(Limits{MaxGlobal: 2, MaxPerUser: 2})

	submitOK(t, q, "u1")
	submitOK(t, q, "u2")
	_, err := q.Submit("u3", &domain.GenerationSpec{Prompt: "p"})
	require.ErrorIs(t, err, domain.ErrBackpressure)
}

func TestRejectedSubmissionLeavesNoRecord(t *testing.T) {
	q, store := newTestQueue(Limits{MaxGlobal: 1, MaxPerUser: 1})

	submitOK(t, q, "u1")
	_, err := q.Submit("u1", &domain.GenerationSpec{Prompt: "p"})
	require.ErrorIs(t, err, domain.ErrBackpressure)

	global, _ := store.CountActive("u1")
	require.Equal(t, 1, global)
	require.Equal(t, 1, q.Depth())
}

func TestNextClaimsInSubmissionOrder(t *testing.T) {
	q, _ := newTestQueue(Limits{MaxGlobal: 10, MaxPerUser: 10})

	first := submitOK(t, q, "u1")
	second := submitOK(t, q, "u1")

	job, err := q.Next()
	require.NoError(t, err)
	require.Equal(t, first, job.ID)
	require.Equal(t, domain.JobRunning, job.State)
	require.NotNil(t, job.StartedAt)

	job, err = q.Next()
	require.NoError(t, err)
	require.Equal(t, second, job.ID)

	_, err = q.Next()
	require.ErrorIs(t, err, ErrNoJob)
}

func TestCancelQueuedJob(t *testing.T) {
	q, store := newTestQueue(Limits{MaxGlobal: 10, MaxPerUser: 10})

	id := submitOK(t, q, "u1")
	require.NoError(t, q.Cancel(id, "u1"))

	job, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, domain.JobCancelled, job.State)
	require.NotNil(t, job.CompletedAt)
}

func TestCancelTwiceIsInvalidState(t *testing.T) {
	q, _ := newTestQueue(Limits{MaxGlobal: 10, MaxPerUser: 10})

	id := submitOK(t, q, "u1")
	require.NoError(t, q.Cancel(id, "u1"))
	require.ErrorIs(t, q.Cancel(id, "u1"), domain.ErrInvalidState)
}

func TestCancelWrongOwner(t *testing.T) {
	q, store := newTestQueue(Limits{MaxGlobal: 10, MaxPerUser: 10})

	id := submitOK(t, q, "u1")
	require.ErrorIs(t, q.Cancel(id, "u2"), domain.ErrForbidden)

	job, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, domain.JobQueued, job.State)
}

func TestCancelRunningJobIsInvalidState(t *testing.T) {
	q, _ := newTestQueue(Limits{MaxGlobal: 10, MaxPerUser: 10})

	id := submitOK(t, q, "u1")
	_, err := q.Next()
	require.NoError(t, err)
	require.ErrorIs(t, q.Cancel(id, "u1"), domain.ErrInvalidState)
}

func TestCancelUnknownJob(t *testing.T) {
	q, _ := newTestQueue(Limits{MaxGlobal: 10, MaxPerUser: 10})
	require.ErrorIs(t, q.Cancel("ghost", "u1"), domain.ErrNotFound)
}

func TestCancelledJobNeverClaimed(t *testing.T) {
	q, _ := newTestQueue(Limits{MaxGlobal: 10, MaxPerUser: 10})

	cancelled := submitOK(t, q, "u1")
	kept := submitOK(t, q, "u1")
	require.NoError(t, q.Cancel(cancelled, "u1"))

	job, err := q.Next()
	require.NoError(t, err)
	require.Equal(t, kept, job.ID)

	_, err = q.Next()
	require.ErrorIs(t, err, ErrNoJob)
}

func TestCancelFreesAdmissionSlot(t *testing.T) {
	q, _ := newTestQueue(Limits{MaxGlobal: 10, MaxPerUser: 1})

	id := submitOK(t, q, "u1")
	_, err := q.Submit("u1", &domain.GenerationSpec{Prompt: "p"})
	require.ErrorIs(t, err, domain.ErrBackpressure)

	require.NoError(t, q.Cancel(id, "u1"))
	submitOK(t, q, "u1")
}
