package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sdengine/internal/domain"
)

// Store holds per-user session state. Mutations for the same user serialize
// on a per-user lock; different users never block each other. Every mutation
// is written through to the repository before it returns.
type Store struct {
	repo   domain.SessionRepository
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	session *domain.Session
	loaded  bool
}

// NewStore creates a session store on top of a repository.
func NewStore(repo domain.SessionRepository, logger zerolog.Logger) *Store {
	return &Store{
		repo:    repo,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

func (s *Store) entryFor(userID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		e = &entry{}
		s.entries[userID] = e
	}
	return e
}

// load populates the entry from the repository on first access. A missing
// record yields a fresh empty session.
func (s *Store) load(ctx context.Context, userID string, e *entry) error {
	if e.loaded {
		return nil
	}
	stored, err := s.repo.Load(ctx, userID)
	switch {
	case err == nil:
		e.session = stored
	case errors.Is(err, domain.ErrNotFound):
		e.session = domain.NewSession(userID)
	default:
		return err
	}
	e.loaded = true
	return nil
}

// Get returns the user's session, creating an empty one on first access.
func (s *Store) Get(ctx context.Context, userID string) (*domain.Session, error) {
	e := s.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := s.load(ctx, userID, e); err != nil {
		return nil, err
	}
	return e.session.Clone(), nil
}

// mutate applies fn to the session under the user's lock and persists the
// result before returning a clone of the updated session.
func (s *Store) mutate(ctx context.Context, userID string, fn func(*domain.Session) error) (*domain.Session, error) {
	e := s.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := s.load(ctx, userID, e); err != nil {
		return nil, err
	}
	updated := e.session.Clone()
	if err := fn(updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, updated); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("session: persist failed")
		return nil, err
	}
	e.session = updated
	return updated.Clone(), nil
}

// AddAdapter upserts an adapter on the session. The weight is clamped into
// the supported range; this is deliberately the only place in the system that
// clamps instead of rejecting.
func (s *Store) AddAdapter(ctx context.Context, userID, filename string, weight float64) (*domain.Session, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.NewValidationError("filename", "must not be empty")
	}
	if weight < domain.MinAdapterWeight {
		weight = domain.MinAdapterWeight
	}
	if weight > domain.MaxAdapterWeight {
		weight = domain.MaxAdapterWeight
	}
	return s.mutate(ctx, userID, func(sess *domain.Session) error {
		sess.UpsertAdapter(filename, weight)
		return nil
	})
}

// RemoveAdapter deletes the named adapter, returning ErrNotFound when the
// session does not carry it.
func (s *Store) RemoveAdapter(ctx context.Context, userID, filename string) (*domain.Session, error) {
	return s.mutate(ctx, userID, func(sess *domain.Session) error {
		if !sess.RemoveAdapter(filename) {
			return domain.ErrNotFound
		}
		return nil
	})
}

// ClearAdapters removes every adapter from the session.
func (s *Store) ClearAdapters(ctx context.Context, userID string) (*domain.Session, error) {
	return s.mutate(ctx, userID, func(sess *domain.Session) error {
		sess.Adapters = nil
		return nil
	})
}

// SetAuxConfigs replaces the session's auxiliary-conditioning configs
// wholesale.
func (s *Store) SetAuxConfigs(ctx context.Context, userID string, units []domain.AuxUnit) (*domain.Session, error) {
	return s.mutate(ctx, userID, func(sess *domain.Session) error {
		sess.AuxUnits = append([]domain.AuxUnit(nil), units...)
		return nil
	})
}

// ClearAuxConfigs removes every auxiliary-conditioning config.
func (s *Store) ClearAuxConfigs(ctx context.Context, userID string) (*domain.Session, error) {
	return s.mutate(ctx, userID, func(sess *domain.Session) error {
		sess.AuxUnits = nil
		return nil
	})
}

// UpdateDefaults merges the given custom default parameters into the session.
func (s *Store) UpdateDefaults(ctx context.Context, userID string, patch domain.Defaults) (*domain.Session, error) {
	return s.mutate(ctx, userID, func(sess *domain.Session) error {
		sess.Defaults.Merge(patch)
		return nil
	})
}
