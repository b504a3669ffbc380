package upstream

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AdapterInfo is one entry of the style-adapter catalog.
type AdapterInfo struct {
	Filename string `json:"filename"`
	Name     string `json:"name"`
}

// ModelCatalog is the read-only snapshot of what the generator has installed.
type ModelCatalog struct {
	Checkpoints []string `json:"checkpoints"`
	Samplers    []string `json:"samplers"`
	Upscalers   []string `json:"upscalers"`
}

type sdModel struct {
	ModelName string `json:"model_name"`
}

type namedItem struct {
	Name string `json:"name"`
}

// fetchModels reads the generator's checkpoint/sampler/upscaler lists.
func (c *Client) fetchModels(ctx context.Context) (*ModelCatalog, error) {
	var checkpoints []sdModel
	if err := c.getJSON(ctx, "/sd-models", &checkpoints); err != nil {
		return nil, err
	}
	var samplers, upscalers []namedItem
	if err := c.getJSON(ctx, "/samplers", &samplers); err != nil {
		return nil, err
	}
	if err := c.getJSON(ctx, "/upscalers", &upscalers); err != nil {
		return nil, err
	}
	catalog := &ModelCatalog{}
	for _, m := range checkpoints {
		catalog.Checkpoints = append(catalog.Checkpoints, m.ModelName)
	}
	for _, s := range samplers {
		catalog.Samplers = append(catalog.Samplers, s.Name)
	}
	for _, u := range upscalers {
		catalog.Upscalers = append(catalog.Upscalers, u.Name)
	}
	return catalog, nil
}

// fetchAdapters reads the generator's installed style adapters.
func (c *Client) fetchAdapters(ctx context.Context) ([]AdapterInfo, error) {
	var items []namedItem
	if err := c.getJSON(ctx, "/loras", &items); err != nil {
		return nil, err
	}
	titler := cases.Title(language.Und)
	adapters := make([]AdapterInfo, 0, len(items))
	for _, item := range items {
		if item.Name == "" {
			continue
		}
		adapters = append(adapters, AdapterInfo{
			Filename: item.Name,
			Name:     displayName(titler, item.Name),
		})
	}
	sort.Slice(adapters, func(i, j int) bool { return adapters[i].Name < adapters[j].Name })
	return adapters, nil
}

func displayName(titler cases.Caser, filename string) string {
	name := filename
	for _, ext := range []string{".safetensors", ".ckpt", ".pt"} {
		name = strings.TrimSuffix(name, ext)
	}
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return titler.String(name)
}

// Catalog caches the generator's model and adapter lists for request
// validation and client-facing lookups. Refresh replaces the snapshot; a
// catalog that was never refreshed reports not ready and validation against
// it is skipped.
type Catalog struct {
	client *Client

	mu       sync.RWMutex
	models   *ModelCatalog
	adapters []AdapterInfo
}

// NewCatalog creates a catalog served by the given client.
func NewCatalog(client *Client) *Catalog {
	return &Catalog{client: client}
}

// Refresh pulls fresh model and adapter lists from the generator.
func (c *Catalog) Refresh(ctx context.Context) error {
	models, err := c.client.fetchModels(ctx)
	if err != nil {
		return err
	}
	adapters, err := c.client.fetchAdapters(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.models = models
	c.adapters = adapters
	c.mu.Unlock()
	return nil
}

// coldRetryEvery bounds how long an empty catalog waits between refresh
// attempts, so a generator that boots after this process is picked up
// without waiting out the full interval.
const coldRetryEvery = 30 * time.Second

// KeepFresh re-pulls the snapshot on a fixed interval until ctx is
// cancelled. A failed refresh keeps the previous snapshot; while no
// snapshot has landed yet, attempts run at coldRetryEvery instead.
func (c *Catalog) KeepFresh(ctx context.Context, every time.Duration, logger zerolog.Logger) {
	if every <= 0 {
		every = 10 * time.Minute
	}
	for {
		wait := every
		if !c.Ready() && wait > coldRetryEvery {
			wait = coldRetryEvery
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if err := c.Refresh(ctx); err != nil {
			logger.Warn().Err(err).Msg("catalog refresh failed")
		}
	}
}

// Ready reports whether a snapshot is available.
func (c *Catalog) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.models != nil
}

// Models returns the current snapshot, or nil when none was fetched yet.
func (c *Catalog) Models() *ModelCatalog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.models == nil {
		return nil
	}
	return &ModelCatalog{
		Checkpoints: append([]string(nil), c.models.Checkpoints...),
		Samplers:    append([]string(nil), c.models.Samplers...),
		Upscalers:   append([]string(nil), c.models.Upscalers...),
	}
}

// HasCheckpoint reports whether the named checkpoint is installed.
func (c *Catalog) HasCheckpoint(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.models == nil {
		return false
	}
	for _, m := range c.models.Checkpoints {
		if m == name {
			return true
		}
	}
	return false
}

// HasSampler reports whether the named sampler is available.
func (c *Catalog) HasSampler(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.models == nil {
		return false
	}
	for _, s := range c.models.Samplers {
		if s == name {
			return true
		}
	}
	return false
}

// SearchAdapters returns up to limit adapters whose name or filename contains
// the query, or the first entries when the query is empty.
func (c *Catalog) SearchAdapters(query string, limit int) []AdapterInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	query = strings.ToLower(strings.TrimSpace(query))
	var out []AdapterInfo
	for _, a := range c.adapters {
		if query != "" &&
			!strings.Contains(strings.ToLower(a.Name), query) &&
			!strings.Contains(strings.ToLower(a.Filename), query) {
			continue
		}
		out = append(out, a)
		if len(out) >= limit {
			break
		}
	}
	return out
}
