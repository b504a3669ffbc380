package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sdengine/internal/domain"
	"sdengine/internal/sqlinline"
)

// PresetRepositoryPG implements domain.PresetRepository.
type PresetRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewPresetRepository creates a preset repository backed by PostgreSQL.
func NewPresetRepository(pool *pgxpool.Pool) *PresetRepositoryPG {
	return &PresetRepositoryPG{pool: pool}
}

// EnsureSchema creates the presets table when it does not exist yet.
func (r *PresetRepositoryPG) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, sqlinline.QEnsurePresetSchema)
	return err
}

// Save inserts a preset record.
func (r *PresetRepositoryPG) Save(ctx context.Context, preset *domain.Preset) error {
	spec, err := json.Marshal(preset.Spec)
	if err != nil {
		return fmt.Errorf("encode preset spec: %w", err)
	}
	_, err = r.pool.Exec(ctx, sqlinline.QInsertPreset, preset.UserID, preset.ID, preset.Name, spec, preset.CreatedAt)
	return err
}

// List returns the user's preset summaries, oldest first.
func (r *PresetRepositoryPG) List(ctx context.Context, userID string) ([]domain.PresetSummary, error) {
	rows, err := r.pool.Query(ctx, sqlinline.QListPresets, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.PresetSummary
	for rows.Next() {
		var s domain.PresetSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt, &s.LastUsedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// Get fetches a single preset.
func (r *PresetRepositoryPG) Get(ctx context.Context, userID, presetID string) (*domain.Preset, error) {
	row := r.pool.QueryRow(ctx, sqlinline.QSelectPreset, userID, presetID)
	var (
		preset domain.Preset
		spec   []byte
	)
	if err := row.Scan(&preset.ID, &preset.Name, &spec, &preset.CreatedAt, &preset.LastUsedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(spec, &preset.Spec); err != nil {
		return nil, fmt.Errorf("decode preset spec: %w", err)
	}
	preset.UserID = userID
	return &preset, nil
}

// Delete removes a preset. A repeated delete of an already-deleted id still
// reports ErrNotFound, never success.
func (r *PresetRepositoryPG) Delete(ctx context.Context, userID, presetID string) error {
	tag, err := r.pool.Exec(ctx, sqlinline.QDeletePreset, userID, presetID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Touch records when a preset was last loaded.
func (r *PresetRepositoryPG) Touch(ctx context.Context, userID, presetID string, usedAt time.Time) error {
	_, err := r.pool.Exec(ctx, sqlinline.QTouchPreset, userID, presetID, usedAt)
	return err
}

var _ domain.PresetRepository = (*PresetRepositoryPG)(nil)
