package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sdengine/internal/domain"
)

func userFromPath(r *http.Request) string {
	return chi.URLParam(r, "user_id")
}

func sessionResponse(s *domain.Session) map[string]any {
	return map[string]any{
		"user_id":    s.UserID,
		"adapters":   s.Adapters,
		"aux_units":  s.AuxUnits,
		"defaults":   s.Defaults,
		"updated_at": s.UpdatedAt,
		"stats": map[string]any{
			"adapter_count":   len(s.Adapters),
			"aux_unit_count":  len(s.AuxUnits),
			"custom_defaults": customDefaultCount(s.Defaults),
		},
	}
}

func customDefaultCount(d domain.Defaults) int {
	n := 0
	for _, set := range []bool{
		d.Checkpoint != nil,
		d.Sampler != nil,
		d.NegativePrompt != nil,
		d.Steps != nil,
		d.GuidanceScale != nil,
		d.Width != nil,
		d.Height != nil,
		d.Seed != nil,
		d.BatchCount != nil,
		d.BatchSize != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// SessionGet returns the caller's session, creating an empty one on first
// touch.
func (a *App) SessionGet(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Sessions.Get(r.Context(), userFromPath(r))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sessionResponse(sess))
}

type adapterAddRequest struct {
	Filename string  `json:"filename"`
	Weight   float64 `json:"weight"`
}

func (a *App) SessionAddAdapter(w http.ResponseWriter, r *http.Request) {
	var req adapterAddRequest
	if !a.decode(w, r, &req) {
		return
	}
	sess, err := a.Sessions.AddAdapter(r.Context(), userFromPath(r), req.Filename, req.Weight)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sessionResponse(sess))
}

func (a *App) SessionRemoveAdapter(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	sess, err := a.Sessions.RemoveAdapter(r.Context(), userFromPath(r), filename)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sessionResponse(sess))
}

func (a *App) SessionClearAdapters(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Sessions.ClearAdapters(r.Context(), userFromPath(r))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sessionResponse(sess))
}

type auxSetRequest struct {
	Units []domain.AuxUnit `json:"units"`
}

// SessionSetAux replaces the session's auxiliary-conditioning list wholesale.
// An empty list clears it.
func (a *App) SessionSetAux(w http.ResponseWriter, r *http.Request) {
	var req auxSetRequest
	if !a.decode(w, r, &req) {
		return
	}
	sess, err := a.Sessions.SetAuxConfigs(r.Context(), userFromPath(r), req.Units)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sessionResponse(sess))
}

// SessionPatchDefaults merges the supplied fields into the user's custom
// defaults. Absent fields are left untouched.
func (a *App) SessionPatchDefaults(w http.ResponseWriter, r *http.Request) {
	var patch domain.Defaults
	if !a.decode(w, r, &patch) {
		return
	}
	sess, err := a.Sessions.UpdateDefaults(r.Context(), userFromPath(r), patch)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sessionResponse(sess))
}
