package builder

import (
	"context"
	"fmt"
	"strings"

	"sdengine/internal/domain"
	"sdengine/internal/session"
)

// Defaults applied when neither the request nor the user's session supplies a
// value.
const (
	DefaultSampler       = "DPM++ 2M Karras"
	DefaultSteps         = 20
	DefaultGuidanceScale = 7.0
	DefaultDimension     = 512
)

// Catalog is the read-only model/sampler lookup consulted during validation.
// Ready reports whether a snapshot is available; when it is not, name checks
// are skipped rather than failing every request.
type Catalog interface {
	Ready() bool
	HasCheckpoint(name string) bool
	HasSampler(name string) bool
}

// Request is a client-supplied partial generation request. Nil fields inherit
// from the user's session defaults; explicitly supplied values always win. A
// non-nil AuxUnits slice (even empty) replaces the session's
// auxiliary-conditioning list wholesale.
type Request struct {
	UserID         string                 `json:"user_id"`
	Prompt         string                 `json:"prompt"`
	NegativePrompt *string                `json:"negative_prompt,omitempty"`
	Checkpoint     *string                `json:"checkpoint,omitempty"`
	Sampler        *string                `json:"sampler,omitempty"`
	Steps          *int                   `json:"steps,omitempty"`
	GuidanceScale  *float64               `json:"guidance_scale,omitempty"`
	Width          *int                   `json:"width,omitempty"`
	Height         *int                   `json:"height,omitempty"`
	Seed           *int64                 `json:"seed,omitempty"`
	BatchCount     *int                   `json:"batch_count,omitempty"`
	BatchSize      *int                   `json:"batch_size,omitempty"`
	Adapters       []domain.AdapterRef    `json:"adapters,omitempty"`
	AuxUnits       []domain.AuxUnit       `json:"aux_units,omitempty"`
	Hires          *domain.HiresFix       `json:"hires,omitempty"`
	Regional       *domain.RegionalConfig `json:"regional,omitempty"`
}

// Builder merges a partial request with the user's session state into one
// complete, validated generation specification.
type Builder struct {
	sessions *session.Store
	catalog  Catalog
}

// New creates a request builder. catalog may be nil when no lookup service is
// configured.
func New(sessions *session.Store, catalog Catalog) *Builder {
	return &Builder{sessions: sessions, catalog: catalog}
}

// Build produces the immutable specification for one request. It is pure with
// respect to its inputs except for the session read.
func (b *Builder) Build(ctx context.Context, req Request) (*domain.GenerationSpec, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, domain.NewValidationError("user_id", "must not be empty")
	}
	sess, err := b.sessions.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	spec := specFromDefaults(sess.Defaults)
	overlayRequest(spec, req)

	if req.Regional != nil {
		prompt, err := flattenRegional(req.Regional)
		if err != nil {
			return nil, err
		}
		spec.Prompt = prompt
		r := *req.Regional
		spec.Regional = &r
	} else if strings.TrimSpace(req.Prompt) == "" {
		return nil, domain.NewValidationError("prompt", "must not be empty")
	}

	adapters, err := mergeAdapters(sess.Adapters, req.Adapters)
	if err != nil {
		return nil, err
	}
	spec.Adapters = adapters

	// A request-supplied aux list replaces the session list wholesale;
	// otherwise the session list is inherited as-is.
	if req.AuxUnits != nil {
		spec.AuxUnits = append([]domain.AuxUnit(nil), req.AuxUnits...)
	} else if len(sess.AuxUnits) > 0 {
		spec.AuxUnits = append([]domain.AuxUnit(nil), sess.AuxUnits...)
	}

	if err := b.validate(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

func specFromDefaults(d domain.Defaults) *domain.GenerationSpec {
	spec := &domain.GenerationSpec{
		Sampler:       DefaultSampler,
		Steps:         DefaultSteps,
		GuidanceScale: DefaultGuidanceScale,
		Width:         DefaultDimension,
		Height:        DefaultDimension,
		Seed:          domain.RandomSeed,
		BatchCount:    1,
		BatchSize:     1,
	}
	if d.Checkpoint != nil {
		spec.Checkpoint = *d.Checkpoint
	}
	if d.Sampler != nil {
		spec.Sampler = *d.Sampler
	}
	if d.NegativePrompt != nil {
		spec.NegativePrompt = *d.NegativePrompt
	}
	if d.Steps != nil {
		spec.Steps = *d.Steps
	}
	if d.GuidanceScale != nil {
		spec.GuidanceScale = *d.GuidanceScale
	}
	if d.Width != nil {
		spec.Width = *d.Width
	}
	if d.Height != nil {
		spec.Height = *d.Height
	}
	if d.Seed != nil {
		spec.Seed = *d.Seed
	}
	if d.BatchCount != nil {
		spec.BatchCount = *d.BatchCount
	}
	if d.BatchSize != nil {
		spec.BatchSize = *d.BatchSize
	}
	return spec
}

func overlayRequest(spec *domain.GenerationSpec, req Request) {
	spec.Prompt = req.Prompt
	if req.NegativePrompt != nil {
		spec.NegativePrompt = *req.NegativePrompt
	}
	if req.Checkpoint != nil {
		spec.Checkpoint = *req.Checkpoint
	}
	if req.Sampler != nil {
		spec.Sampler = *req.Sampler
	}
	if req.Steps != nil {
		spec.Steps = *req.Steps
	}
	if req.GuidanceScale != nil {
		spec.GuidanceScale = *req.GuidanceScale
	}
	if req.Width != nil {
		spec.Width = *req.Width
	}
	if req.Height != nil {
		spec.Height = *req.Height
	}
	if req.Seed != nil {
		spec.Seed = *req.Seed
	}
	if req.BatchCount != nil {
		spec.BatchCount = *req.BatchCount
	}
	if req.BatchSize != nil {
		spec.BatchSize = *req.BatchSize
	}
	if req.Hires != nil {
		h := *req.Hires
		spec.Hires = &h
	}
}

// mergeAdapters appends the session's active adapters under any adapters the
// request supplies explicitly, deduplicated by filename. On a conflict the
// request-supplied weight wins.
func mergeAdapters(base, override []domain.AdapterRef) ([]domain.AdapterRef, error) {
	merged := make([]domain.AdapterRef, 0, len(base)+len(override))
	index := make(map[string]int, len(base)+len(override))
	for _, a := range base {
		index[a.Filename] = len(merged)
		merged = append(merged, a)
	}
	for _, a := range override {
		if strings.TrimSpace(a.Filename) == "" {
			return nil, domain.NewValidationError("adapters", "adapter filename must not be empty")
		}
		if a.Weight < domain.MinAdapterWeight || a.Weight > domain.MaxAdapterWeight {
			return nil, domain.NewValidationError("adapters",
				fmt.Sprintf("weight %.2f for %q outside [%.1f, %.1f]",
					a.Weight, a.Filename, domain.MinAdapterWeight, domain.MaxAdapterWeight))
		}
		if i, ok := index[a.Filename]; ok {
			merged[i].Weight = a.Weight
			continue
		}
		index[a.Filename] = len(merged)
		merged = append(merged, a)
	}
	if len(merged) > domain.MaxAdapters {
		return nil, domain.NewValidationError("adapters",
			fmt.Sprintf("%d adapters exceed the maximum of %d", len(merged), domain.MaxAdapters))
	}
	if len(merged) == 0 {
		return nil, nil
	}
	return merged, nil
}

var regionalSeparators = map[domain.RegionalLayout][]string{
	domain.LayoutVertical:     {"ADDCOL"},
	domain.LayoutHorizontal:   {"ADDROW"},
	domain.LayoutThreeColumns: {"ADDCOL", "ADDCOL"},
	domain.LayoutFourColumns:  {"ADDCOL", "ADDCOL", "ADDCOL"},
	domain.LayoutQuadrants:    {"ADDCOL", "ADDROW", "ADDCOL"},
}

// flattenRegional renders a regional config into the separator-delimited
// prompt string the upstream's regional-prompter script expects. Regions
// three and four fall back to regions one and two when the layout needs them
// but the request left them empty.
func flattenRegional(cfg *domain.RegionalConfig) (string, error) {
	seps, ok := regionalSeparators[cfg.Layout]
	if !ok {
		return "", domain.NewValidationError("regional.layout", fmt.Sprintf("unknown layout %q", cfg.Layout))
	}
	if strings.TrimSpace(cfg.Region1Prompt) == "" || strings.TrimSpace(cfg.Region2Prompt) == "" {
		return "", domain.NewValidationError("regional", "region1_prompt and region2_prompt are required")
	}
	r3 := cfg.Region3Prompt
	if r3 == "" {
		r3 = cfg.Region1Prompt
	}
	r4 := cfg.Region4Prompt
	if r4 == "" {
		r4 = cfg.Region2Prompt
	}
	regions := []string{cfg.Region1Prompt, cfg.Region2Prompt, r3, r4}

	parts := []string{cfg.CommonPrompt, "ADDCOMM", regions[0]}
	for i, sep := range seps {
		parts = append(parts, sep, regions[i+1])
	}
	return strings.Join(parts, " "), nil
}

func (b *Builder) validate(spec *domain.GenerationSpec) error {
	if spec.Steps < domain.MinSteps || spec.Steps > domain.MaxSteps {
		return domain.NewValidationError("steps",
			fmt.Sprintf("%d outside [%d, %d]", spec.Steps, domain.MinSteps, domain.MaxSteps))
	}
	if spec.GuidanceScale < domain.MinGuidanceScale || spec.GuidanceScale > domain.MaxGuidanceScale {
		return domain.NewValidationError("guidance_scale",
			fmt.Sprintf("%.2f outside [%.1f, %.1f]", spec.GuidanceScale, domain.MinGuidanceScale, domain.MaxGuidanceScale))
	}
	if spec.Width < domain.MinDimension || spec.Width > domain.MaxDimension {
		return domain.NewValidationError("width",
			fmt.Sprintf("%d outside [%d, %d]", spec.Width, domain.MinDimension, domain.MaxDimension))
	}
	if spec.Height < domain.MinDimension || spec.Height > domain.MaxDimension {
		return domain.NewValidationError("height",
			fmt.Sprintf("%d outside [%d, %d]", spec.Height, domain.MinDimension, domain.MaxDimension))
	}
	if spec.BatchCount < 1 || spec.BatchCount > domain.MaxBatchCount {
		return domain.NewValidationError("batch_count",
			fmt.Sprintf("%d outside [1, %d]", spec.BatchCount, domain.MaxBatchCount))
	}
	if spec.BatchSize < 1 || spec.BatchSize > domain.MaxBatchSize {
		return domain.NewValidationError("batch_size",
			fmt.Sprintf("%d outside [1, %d]", spec.BatchSize, domain.MaxBatchSize))
	}
	if spec.Seed < domain.RandomSeed {
		return domain.NewValidationError("seed", "must be -1 (random) or a non-negative value")
	}
	if spec.Hires != nil {
		if spec.Hires.Scale < domain.MinHiresScale || spec.Hires.Scale > domain.MaxHiresScale {
			return domain.NewValidationError("hires.scale",
				fmt.Sprintf("%.2f outside [%.1f, %.1f]", spec.Hires.Scale, domain.MinHiresScale, domain.MaxHiresScale))
		}
		if spec.Hires.SecondPassSteps < 0 || spec.Hires.SecondPassSteps > domain.MaxSecondPassSteps {
			return domain.NewValidationError("hires.second_pass_steps",
				fmt.Sprintf("%d outside [0, %d]", spec.Hires.SecondPassSteps, domain.MaxSecondPassSteps))
		}
		if spec.Hires.DenoisingStrength < 0 || spec.Hires.DenoisingStrength > 1 {
			return domain.NewValidationError("hires.denoising_strength", "outside [0.0, 1.0]")
		}
	}
	for i, u := range spec.AuxUnits {
		if strings.TrimSpace(u.Model) == "" {
			return domain.NewValidationError("aux_units", fmt.Sprintf("unit %d: model must not be empty", i))
		}
		if u.Weight < 0 || u.Weight > domain.MaxAuxWeight {
			return domain.NewValidationError("aux_units",
				fmt.Sprintf("unit %d: weight %.2f outside [0.0, %.1f]", i, u.Weight, domain.MaxAuxWeight))
		}
		if u.GuidanceStart < 0 || u.GuidanceStart > 1 || u.GuidanceEnd < 0 || u.GuidanceEnd > 1 {
			return domain.NewValidationError("aux_units", fmt.Sprintf("unit %d: guidance range outside [0.0, 1.0]", i))
		}
	}
	if b.catalog != nil && b.catalog.Ready() {
		if spec.Checkpoint != "" && !b.catalog.HasCheckpoint(spec.Checkpoint) {
			return domain.NewValidationError("checkpoint", fmt.Sprintf("unknown checkpoint %q", spec.Checkpoint))
		}
		if !b.catalog.HasSampler(spec.Sampler) {
			return domain.NewValidationError("sampler", fmt.Sprintf("unknown sampler %q", spec.Sampler))
		}
	}
	return nil
}
