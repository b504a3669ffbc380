package domain

// Bounds enforced on a built generation specification. Values outside these
// ranges are rejected with ValidationError, never clamped; the sole clamp in
// the system is the session adapter-weight upsert.
const (
	MinAdapterWeight = 0.0
	MaxAdapterWeight = 1.5
	MaxAdapters      = 8

	MinSteps = 1
	MaxSteps = 150

	MinGuidanceScale = 0.0
	MaxGuidanceScale = 30.0

	MinDimension = 64
	MaxDimension = 2048

	MaxBatchCount = 10
	MaxBatchSize  = 4

	MinHiresScale      = 1.0
	MaxHiresScale      = 4.0
	MaxSecondPassSteps = 150
	MaxAuxWeight       = 2.0
	RandomSeed         = -1
)

// AdapterRef is one style adapter application: a catalog filename and the
// weight it is applied with.
type AdapterRef struct {
	Filename string  `json:"filename"`
	Weight   float64 `json:"weight"`
}

// AuxUnit is one auxiliary-conditioning input (a ControlNet-style unit).
type AuxUnit struct {
	Model         string  `json:"model"`
	Weight        float64 `json:"weight"`
	Preprocessor  string  `json:"preprocessor,omitempty"`
	Enabled       bool    `json:"enabled"`
	GuidanceStart float64 `json:"guidance_start"`
	GuidanceEnd   float64 `json:"guidance_end"`
}

// HiresFix carries the optional high-resolution second pass parameters.
type HiresFix struct {
	Scale             float64 `json:"scale"`
	Upscaler          string  `json:"upscaler,omitempty"`
	SecondPassSteps   int     `json:"second_pass_steps"`
	DenoisingStrength float64 `json:"denoising_strength"`
}

// RegionalLayout selects how region prompts divide the canvas.
type RegionalLayout string

const (
	LayoutVertical     RegionalLayout = "vertical"
	LayoutHorizontal   RegionalLayout = "horizontal"
	LayoutThreeColumns RegionalLayout = "three_columns"
	LayoutFourColumns  RegionalLayout = "four_columns"
	LayoutQuadrants    RegionalLayout = "quadrants"
)

// RegionalConfig describes a regional-prompt request. Region three and four
// are only consulted by layouts that have that many cells.
type RegionalConfig struct {
	Layout        RegionalLayout `json:"layout"`
	CommonPrompt  string         `json:"common_prompt"`
	Region1Prompt string         `json:"region1_prompt"`
	Region2Prompt string         `json:"region2_prompt"`
	Region3Prompt string         `json:"region3_prompt,omitempty"`
	Region4Prompt string         `json:"region4_prompt,omitempty"`
}

// GenerationSpec is the fully merged parameter set sent to the upstream
// generator for one job. It is immutable once built; a new spec is built per
// request.
type GenerationSpec struct {
	Prompt         string          `json:"prompt"`
	NegativePrompt string          `json:"negative_prompt,omitempty"`
	Checkpoint     string          `json:"checkpoint,omitempty"`
	Sampler        string          `json:"sampler"`
	Steps          int             `json:"steps"`
	GuidanceScale  float64         `json:"guidance_scale"`
	Width          int             `json:"width"`
	Height         int             `json:"height"`
	Seed           int64           `json:"seed"`
	BatchCount     int             `json:"batch_count"`
	BatchSize      int             `json:"batch_size"`
	Adapters       []AdapterRef    `json:"adapters,omitempty"`
	AuxUnits       []AuxUnit       `json:"aux_units,omitempty"`
	Hires          *HiresFix       `json:"hires,omitempty"`
	Regional       *RegionalConfig `json:"regional,omitempty"`
}

// Clone returns a deep copy so callers can hold a spec without aliasing the
// slices of the original.
func (s *GenerationSpec) Clone() *GenerationSpec {
	out := *s
	if s.Adapters != nil {
		out.Adapters = append([]AdapterRef(nil), s.Adapters...)
	}
	if s.AuxUnits != nil {
		out.AuxUnits = append([]AuxUnit(nil), s.AuxUnits...)
	}
	if s.Hires != nil {
		h := *s.Hires
		out.Hires = &h
	}
	if s.Regional != nil {
		r := *s.Regional
		out.Regional = &r
	}
	return &out
}
