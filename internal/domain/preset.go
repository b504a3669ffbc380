package domain

import "time"

// Preset is a named snapshot of a full generation specification, saved and
// restored on demand. Ids are unique within a user's namespace.
type Preset struct {
	ID         string         `json:"preset_id"`
	UserID     string         `json:"user_id"`
	Name       string         `json:"name,omitempty"`
	Spec       GenerationSpec `json:"spec"`
	CreatedAt  time.Time      `json:"created_at"`
	LastUsedAt *time.Time     `json:"last_used_at,omitempty"`
}

// PresetSummary is the listing view of a preset, without the full spec.
type PresetSummary struct {
	ID         string     `json:"preset_id"`
	Name       string     `json:"name,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}
