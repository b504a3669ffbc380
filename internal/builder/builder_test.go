package builder

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"sdengine/internal/domain"
	"sdengine/internal/session"
)

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func (r *memSessionRepo) Load(_ context.Context, userID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.Clone(), nil
}

func (r *memSessionRepo) Save(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.UserID] = s.Clone()
	return nil
}

type fakeCatalog struct {
	ready       bool
	checkpoints map[string]bool
	samplers    map[string]bool
}

func (c *fakeCatalog) Ready() bool                 { return c.ready }
func (c *fakeCatalog) HasCheckpoint(n string) bool { return c.checkpoints[n] }
func (c *fakeCatalog) HasSampler(n string) bool    { return c.samplers[n] }

func newTestBuilder(catalog Catalog) (*Builder, *session.Store) {
	repo := &memSessionRepo{sessions: make(map[string]*domain.Session)}
	sessions := session.NewStore(repo, zerolog.Nop())
	return New(sessions, catalog), sessions
}

func intp(v int) *int           { return &v }
func int64p(v int64) *int64     { return &v }
func floatp(v float64) *float64 { return &v }
func strp(v string) *string     { return &v }

func TestBuildAppliesSystemDefaults(t *testing.T) {
	b, _ := newTestBuilder(nil)

	spec, err := b.Build(context.Background(), Request{UserID: "u1", Prompt: "a cat"})
	require.NoError(t, err)

	require.Equal(t, "a cat", spec.Prompt)
	require.Equal(t, DefaultSampler, spec.Sampler)
	require.Equal(t, DefaultSteps, spec.Steps)
	require.Equal(t, DefaultGuidanceScale, spec.GuidanceScale)
	require.Equal(t, DefaultDimension, spec.Width)
	require.Equal(t, DefaultDimension, spec.Height)
	require.Equal(t, int64(domain.RandomSeed), spec.Seed)
	require.Equal(t, 1, spec.BatchCount)
	require.Equal(t, 1, spec.BatchSize)
}

func TestBuildSessionDefaultsBeatSystemDefaults(t *testing.T) {
	b, sessions := newTestBuilder(nil)
	ctx := context.Background()

	_, err := sessions.UpdateDefaults(ctx, "u1", domain.Defaults{
		Steps:   intp(40),
		Sampler: strp("Euler a"),
		Width:   intp(768),
	})
	require.NoError(t, err)

	spec, err := b.Build(ctx, Request{UserID: "u1", Prompt: "a cat"})
	require.NoError(t, err)
	require.Equal(t, 40, spec.Steps)
	require.Equal(t, "Euler a", spec.Sampler)
	require.Equal(t, 768, spec.Width)
	require.Equal(t, DefaultDimension, spec.Height)
}

func TestBuildRequestBeatsSessionDefaults(t *testing.T) {
	b, sessions := newTestBuilder(nil)
	ctx := context.Background()

	_, err := sessions.UpdateDefaults(ctx, "u1", domain.Defaults{Steps: intp(40)})
	require.NoError(t, err)

	spec, err := b.Build(ctx, Request{UserID: "u1", Prompt: "a cat", Steps: intp(12)})
	require.NoError(t, err)
	require.Equal(t, 12, spec.Steps)
}

func TestBuildRejectsEmptyUserAndPrompt(t *testing.T) {
	b, _ := newTestBuilder(nil)
	ctx := context.Background()

	_, err := b.Build(ctx, Request{Prompt: "a cat"})
	ve, ok := domain.AsValidation(err)
	require.True(t, ok)
	require.Equal(t, "user_id", ve.Field)

	_, err = b.Build(ctx, Request{UserID: "u1", Prompt: "   "})
	ve, ok = domain.AsValidation(err)
	require.True(t, ok)
	require.Equal(t, "prompt", ve.Field)
}

func TestBuildBoundsAreRejectedNotClamped(t *testing.T) {
	b, _ := newTestBuilder(nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"steps too high", Request{UserID: "u", Prompt: "p", Steps: intp(151)}, "steps"},
		{"steps too low", Request{UserID: "u", Prompt: "p", Steps: intp(0)}, "steps"},
		{"cfg too high", Request{UserID: "u", Prompt: "p", GuidanceScale: floatp(30.5)}, "guidance_scale"},
		{"width too small", Request{UserID: "u", Prompt: "p", Width: intp(32)}, "width"},
		{"height too large", Request{UserID: "u", Prompt: "p", Height: intp(4096)}, "height"},
		{"batch count", Request{UserID: "u", Prompt: "p", BatchCount: intp(11)}, "batch_count"},
		{"batch size", Request{UserID: "u", Prompt: "p", BatchSize: intp(5)}, "batch_size"},
		{"seed below random", Request{UserID: "u", Prompt: "p", Seed: int64p(-2)}, "seed"},
		{"hires scale", Request{UserID: "u", Prompt: "p", Hires: &domain.HiresFix{Scale: 4.5}}, "hires.scale"},
		{"hires denoise", Request{UserID: "u", Prompt: "p", Hires: &domain.HiresFix{Scale: 2, DenoisingStrength: 1.2}}, "hires.denoising_strength"},
		{"aux weight", Request{UserID: "u", Prompt: "p", AuxUnits: []domain.AuxUnit{{Model: "canny", Weight: 2.5}}}, "aux_units"},
		{"aux empty model", Request{UserID: "u", Prompt: "p", AuxUnits: []domain.AuxUnit{{Weight: 1}}}, "aux_units"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Build(ctx, tc.req)
			ve, ok := domain.AsValidation(err)
			require.True(t, ok, "expected validation error, got %v", err)
			require.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestBuildBoundaryValuesPass(t *testing.T) {
	b, _ := newTestBuilder(nil)
	ctx := context.Background()

	spec, err := b.Build(ctx, Request{
		UserID:        "u1",
		Prompt:        "p",
		Steps:         intp(150),
		GuidanceScale: floatp(30),
		Width:         intp(2048),
		Height:        intp(64),
		BatchCount:    intp(10),
		BatchSize:     intp(4),
		Seed:          int64p(-1),
	})
	require.NoError(t, err)
	require.Equal(t, 150, spec.Steps)
	require.Equal(t, 30.0, spec.GuidanceScale)
}

func TestBuildMergesSessionAdapters(t *testing.T) {
	b, sessions := newTestBuilder(nil)
	ctx := context.Background()

	_, err := sessions.AddAdapter(ctx, "u1", "style.safetensors", 0.8)
	require.NoError(t, err)
	_, err = sessions.AddAdapter(ctx, "u1", "detail.safetensors", 0.5)
	require.NoError(t, err)

	spec, err := b.Build(ctx, Request{
		UserID: "u1",
		Prompt: "p",
		Adapters: []domain.AdapterRef{
			{Filename: "style.safetensors", Weight: 1.2},
			{Filename: "extra.safetensors", Weight: 0.3},
		},
	})
	require.NoError(t, err)

	require.Equal(t, []domain.AdapterRef{
		{Filename: "style.safetensors", Weight: 1.2},
		{Filename: "detail.safetensors", Weight: 0.5},
		{Filename: "extra.safetensors", Weight: 0.3},
	}, spec.Adapters)
}

func TestBuildExplicitAdapterWeightOutOfRange(t *testing.T) {
	b, _ := newTestBuilder(nil)

	_, err := b.Build(context.Background(), Request{
		UserID:   "u1",
		Prompt:   "p",
		Adapters: []domain.AdapterRef{{Filename: "a.safetensors", Weight: 1.6}},
	})
	ve, ok := domain.AsValidation(err)
	require.True(t, ok)
	require.Equal(t, "adapters", ve.Field)
}

func TestBuildTooManyAdapters(t *testing.T) {
	b, sessions := newTestBuilder(nil)
	ctx := context.Background()

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, n := range names {
		_, err := sessions.AddAdapter(ctx, "u1", n+".safetensors", 1.0)
		require.NoError(t, err)
	}

	_, err := b.Build(ctx, Request{
		UserID:   "u1",
		Prompt:   "p",
		Adapters: []domain.AdapterRef{{Filename: "i.safetensors", Weight: 1.0}},
	})
	ve, ok := domain.AsValidation(err)
	require.True(t, ok)
	require.Equal(t, "adapters", ve.Field)
}

func TestBuildAuxReplaceVersusInherit(t *testing.T) {
	b, sessions := newTestBuilder(nil)
	ctx := context.Background()

	_, err := sessions.SetAuxConfigs(ctx, "u1", []domain.AuxUnit{
		{Model: "canny", Weight: 1.0, Enabled: true},
	})
	require.NoError(t, err)

	// Absent list inherits from the session.
	spec, err := b.Build(ctx, Request{UserID: "u1", Prompt: "p"})
	require.NoError(t, err)
	require.Len(t, spec.AuxUnits, 1)
	require.Equal(t, "canny", spec.AuxUnits[0].Model)

	// Supplied list replaces wholesale.
	spec, err = b.Build(ctx, Request{
		UserID:   "u1",
		Prompt:   "p",
		AuxUnits: []domain.AuxUnit{{Model: "depth", Weight: 0.5, Enabled: true}},
	})
	require.NoError(t, err)
	require.Len(t, spec.AuxUnits, 1)
	require.Equal(t, "depth", spec.AuxUnits[0].Model)

	// Supplied empty list suppresses the session's units.
	spec, err = b.Build(ctx, Request{UserID: "u1", Prompt: "p", AuxUnits: []domain.AuxUnit{}})
	require.NoError(t, err)
	require.Empty(t, spec.AuxUnits)
}

func TestBuildRegionalFlattening(t *testing.T) {
	b, _ := newTestBuilder(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  domain.RegionalConfig
		want string
	}{
		{
			name: "vertical",
			cfg: domain.RegionalConfig{
				Layout:        domain.LayoutVertical,
				CommonPrompt:  "masterpiece",
				Region1Prompt: "red knight",
				Region2Prompt: "blue mage",
			},
			want: "masterpiece ADDCOMM red knight ADDCOL blue mage",
		},
		{
			name: "horizontal",
			cfg: domain.RegionalConfig{
				Layout:        domain.LayoutHorizontal,
				CommonPrompt:  "forest",
				Region1Prompt: "sky",
				Region2Prompt: "river",
			},
			want: "forest ADDCOMM sky ADDROW river",
		},
		{
			name: "quadrants with fallback regions",
			cfg: domain.RegionalConfig{
				Layout:        domain.LayoutQuadrants,
				CommonPrompt:  "city",
				Region1Prompt: "dawn",
				Region2Prompt: "dusk",
			},
			want: "city ADDCOMM dawn ADDCOL dusk ADDROW dawn ADDCOL dusk",
		},
		{
			name: "three columns explicit third region",
			cfg: domain.RegionalConfig{
				Layout:        domain.LayoutThreeColumns,
				CommonPrompt:  "trio",
				Region1Prompt: "a",
				Region2Prompt: "b",
				Region3Prompt: "c",
			},
			want: "trio ADDCOMM a ADDCOL b ADDCOL c",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec, err := b.Build(ctx, Request{UserID: "u1", Regional: &tc.cfg})
			require.NoError(t, err)
			require.Equal(t, tc.want, spec.Prompt)
			require.NotNil(t, spec.Regional)
		})
	}
}

func TestBuildRegionalRequiresTwoRegions(t *testing.T) {
	b, _ := newTestBuilder(nil)

	_, err := b.Build(context.Background(), Request{
		UserID: "u1",
		Regional: &domain.RegionalConfig{
			Layout:        domain.LayoutVertical,
			Region1Prompt: "only one",
		},
	})
	ve, ok := domain.AsValidation(err)
	require.True(t, ok)
	require.Equal(t, "regional", ve.Field)
}

func TestBuildCatalogValidation(t *testing.T) {
	catalog := &fakeCatalog{
		ready:       true,
		checkpoints: map[string]bool{"dreamshaper.safetensors": true},
		samplers:    map[string]bool{DefaultSampler: true, "Euler a": true},
	}
	b, _ := newTestBuilder(catalog)
	ctx := context.Background()

	_, err := b.Build(ctx, Request{UserID: "u1", Prompt: "p", Checkpoint: strp("unknown.ckpt")})
	ve, ok := domain.AsValidation(err)
	require.True(t, ok)
	require.Equal(t, "checkpoint", ve.Field)

	_, err = b.Build(ctx, Request{UserID: "u1", Prompt: "p", Sampler: strp("Bogus")})
	ve, ok = domain.AsValidation(err)
	require.True(t, ok)
	require.Equal(t, "sampler", ve.Field)

	spec, err := b.Build(ctx, Request{UserID: "u1", Prompt: "p", Checkpoint: strp("dreamshaper.safetensors")})
	require.NoError(t, err)
	require.Equal(t, "dreamshaper.safetensors", spec.Checkpoint)
}

func TestBuildCatalogNotReadySkipsNameChecks(t *testing.T) {
	b, _ := newTestBuilder(&fakeCatalog{ready: false})

	spec, err := b.Build(context.Background(), Request{
		UserID:     "u1",
		Prompt:     "p",
		Checkpoint: strp("anything.ckpt"),
		Sampler:    strp("Whatever"),
	})
	require.NoError(t, err)
	require.Equal(t, "anything.ckpt", spec.Checkpoint)
}

func TestBuildDoesNotMutateSession(t *testing.T) {
	b, sessions := newTestBuilder(nil)
	ctx := context.Background()

	_, err := sessions.AddAdapter(ctx, "u1", "style.safetensors", 0.8)
	require.NoError(t, err)

	_, err = b.Build(ctx, Request{
		UserID:   "u1",
		Prompt:   "p",
		Adapters: []domain.AdapterRef{{Filename: "style.safetensors", Weight: 1.5}},
	})
	require.NoError(t, err)

	sess, err := sessions.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 0.8, sess.Adapters[0].Weight)
}
