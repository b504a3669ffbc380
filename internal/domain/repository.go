package domain

import (
	"context"
	"time"
)

// SessionRepository persists per-user session documents.
type SessionRepository interface {
	// Load returns ErrNotFound when the user has no stored session.
	Load(ctx context.Context, userID string) (*Session, error)
	Save(ctx context.Context, session *Session) error
}

// PresetRepository persists presets keyed by (user id, preset id).
type PresetRepository interface {
	Save(ctx context.Context, preset *Preset) error
	List(ctx context.Context, userID string) ([]PresetSummary, error)
	Get(ctx context.Context, userID, presetID string) (*Preset, error)
	// Delete returns ErrNotFound when the preset is absent, including on a
	// repeated delete of an already-deleted id.
	Delete(ctx context.Context, userID, presetID string) error
	Touch(ctx context.Context, userID, presetID string, usedAt time.Time) error
}
