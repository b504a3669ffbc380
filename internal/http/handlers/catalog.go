package handlers

import (
	"net/http"
	"strconv"
)

// CatalogModels serves the cached upstream model snapshot. 503 until the
// first refresh succeeds; the background refresh loop keeps retrying, so
// the condition clears on its own once the generator is reachable.
func (a *App) CatalogModels(w http.ResponseWriter, r *http.Request) {
	if !a.Catalog.Ready() {
		a.error(w, http.StatusServiceUnavailable, "catalog_unavailable", "model catalog not loaded yet")
		return
	}
	models := a.Catalog.Models()
	a.json(w, http.StatusOK, map[string]any{
		"checkpoints": models.Checkpoints,
		"samplers":    models.Samplers,
		"upscalers":   models.Upscalers,
	})
}

func (a *App) CatalogAdapters(w http.ResponseWriter, r *http.Request) {
	if !a.Catalog.Ready() {
		a.error(w, http.StatusServiceUnavailable, "catalog_unavailable", "adapter catalog not loaded yet")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	items := a.Catalog.SearchAdapters(r.URL.Query().Get("search"), limit)
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
