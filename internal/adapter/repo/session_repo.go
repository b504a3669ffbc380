package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sdengine/internal/domain"
	"sdengine/internal/sqlinline"
)

// SessionRepositoryPG implements domain.SessionRepository with one JSON
// document per user id.
type SessionRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a session repository backed by PostgreSQL.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepositoryPG {
	return &SessionRepositoryPG{pool: pool}
}

// EnsureSchema creates the sessions table when it does not exist yet.
func (r *SessionRepositoryPG) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, sqlinline.QEnsureSessionSchema)
	return err
}

// Load fetches the session document for a user.
func (r *SessionRepositoryPG) Load(ctx context.Context, userID string) (*domain.Session, error) {
	var payload []byte
	if err := r.pool.QueryRow(ctx, sqlinline.QSelectSession, userID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var session domain.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", userID, err)
	}
	return &session, nil
}

// Save upserts the full session document.
func (r *SessionRepositoryPG) Save(ctx context.Context, session *domain.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.UserID, err)
	}
	_, err = r.pool.Exec(ctx, sqlinline.QUpsertSession, session.UserID, payload, session.UpdatedAt)
	return err
}

var _ domain.SessionRepository = (*SessionRepositoryPG)(nil)
