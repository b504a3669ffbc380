package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sdengine/internal/domain"
)

// PresetStore saves and restores named snapshots of a user's full generation
// configuration.
type PresetStore struct {
	repo   domain.PresetRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewPresetStore creates a preset store on top of a repository.
func NewPresetStore(repo domain.PresetRepository, logger zerolog.Logger) *PresetStore {
	return &PresetStore{repo: repo, logger: logger, now: time.Now}
}

// Save stores a snapshot and returns its generated preset id.
func (p *PresetStore) Save(ctx context.Context, userID, name string, spec domain.GenerationSpec) (string, error) {
	preset := &domain.Preset{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Spec:      *spec.Clone(),
		CreatedAt: p.now().UTC(),
	}
	if err := p.repo.Save(ctx, preset); err != nil {
		return "", err
	}
	return preset.ID, nil
}

// List returns the user's preset summaries in creation order.
func (p *PresetStore) List(ctx context.Context, userID string) ([]domain.PresetSummary, error) {
	return p.repo.List(ctx, userID)
}

// Load returns the full specification stored under a preset id and bumps its
// last-used timestamp. The bump is best effort; a failed touch never fails
// the load.
func (p *PresetStore) Load(ctx context.Context, userID, presetID string) (*domain.GenerationSpec, error) {
	preset, err := p.repo.Get(ctx, userID, presetID)
	if err != nil {
		return nil, err
	}
	if err := p.repo.Touch(ctx, userID, presetID, p.now().UTC()); err != nil {
		p.logger.Warn().Err(err).Str("preset_id", presetID).Msg("preset: touch failed")
	}
	return preset.Spec.Clone(), nil
}

// Delete removes a preset, reporting ErrNotFound for unknown or
// already-deleted ids.
func (p *PresetStore) Delete(ctx context.Context, userID, presetID string) error {
	return p.repo.Delete(ctx, userID, presetID)
}
