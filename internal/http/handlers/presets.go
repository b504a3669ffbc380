package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sdengine/internal/builder"
)

type presetSaveRequest struct {
	Name    string          `json:"name"`
	Request builder.Request `json:"request"`
}

// PresetSave validates the supplied request against the user's current
// session and stores the fully-built specification under a name. Loading the
// preset later reproduces the exact spec regardless of how the session has
// changed since.
func (a *App) PresetSave(w http.ResponseWriter, r *http.Request) {
	userID := userFromPath(r)
	var req presetSaveRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		a.error(w, http.StatusBadRequest, "validation_error", "name: must not be empty")
		return
	}
	req.Request.UserID = userID
	spec, err := a.Builder.Build(r.Context(), req.Request)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	id, err := a.Presets.Save(r.Context(), userID, req.Name, *spec)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"preset_id": id, "name": req.Name})
}

func (a *App) PresetList(w http.ResponseWriter, r *http.Request) {
	items, err := a.Presets.List(r.Context(), userFromPath(r))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) PresetGet(w http.ResponseWriter, r *http.Request) {
	spec, err := a.Presets.Load(r.Context(), userFromPath(r), chi.URLParam(r, "preset_id"))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"spec": spec})
}

func (a *App) PresetDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.Presets.Delete(r.Context(), userFromPath(r), chi.URLParam(r, "preset_id")); err != nil {
		a.domainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
