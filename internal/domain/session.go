package domain

import "time"

// Defaults holds a user's custom default generation parameters. Nil fields
// are unset; the request builder only consults set fields.
type Defaults struct {
	Checkpoint     *string  `json:"checkpoint,omitempty"`
	Sampler        *string  `json:"sampler,omitempty"`
	NegativePrompt *string  `json:"negative_prompt,omitempty"`
	Steps          *int     `json:"steps,omitempty"`
	GuidanceScale  *float64 `json:"guidance_scale,omitempty"`
	Width          *int     `json:"width,omitempty"`
	Height         *int     `json:"height,omitempty"`
	Seed           *int64   `json:"seed,omitempty"`
	BatchCount     *int     `json:"batch_count,omitempty"`
	BatchSize      *int     `json:"batch_size,omitempty"`
}

// Merge overlays every set field of patch onto d.
func (d *Defaults) Merge(patch Defaults) {
	if patch.Checkpoint != nil {
		d.Checkpoint = patch.Checkpoint
	}
	if patch.Sampler != nil {
		d.Sampler = patch.Sampler
	}
	if patch.NegativePrompt != nil {
		d.NegativePrompt = patch.NegativePrompt
	}
	if patch.Steps != nil {
		d.Steps = patch.Steps
	}
	if patch.GuidanceScale != nil {
		d.GuidanceScale = patch.GuidanceScale
	}
	if patch.Width != nil {
		d.Width = patch.Width
	}
	if patch.Height != nil {
		d.Height = patch.Height
	}
	if patch.Seed != nil {
		d.Seed = patch.Seed
	}
	if patch.BatchCount != nil {
		d.BatchCount = patch.BatchCount
	}
	if patch.BatchSize != nil {
		d.BatchSize = patch.BatchSize
	}
}

// Session is the durable per-user state merged into every generation request.
// Adapters keep insertion order and unique filenames.
type Session struct {
	UserID    string       `json:"user_id"`
	Adapters  []AdapterRef `json:"adapters"`
	AuxUnits  []AuxUnit    `json:"aux_units"`
	Defaults  Defaults     `json:"defaults"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewSession returns the empty session a user starts with.
func NewSession(userID string) *Session {
	return &Session{UserID: userID}
}

// UpsertAdapter overwrites the weight of an existing adapter or appends a new
// one, preserving order.
func (s *Session) UpsertAdapter(filename string, weight float64) {
	for i := range s.Adapters {
		if s.Adapters[i].Filename == filename {
			s.Adapters[i].Weight = weight
			return
		}
	}
	s.Adapters = append(s.Adapters, AdapterRef{Filename: filename, Weight: weight})
}

// RemoveAdapter deletes the named adapter, reporting whether it was present.
func (s *Session) RemoveAdapter(filename string) bool {
	for i := range s.Adapters {
		if s.Adapters[i].Filename == filename {
			s.Adapters = append(s.Adapters[:i], s.Adapters[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe for concurrent readers.
func (s *Session) Clone() *Session {
	out := *s
	if s.Adapters != nil {
		out.Adapters = append([]AdapterRef(nil), s.Adapters...)
	}
	if s.AuxUnits != nil {
		out.AuxUnits = append([]AuxUnit(nil), s.AuxUnits...)
	}
	return &out
}
