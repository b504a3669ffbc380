package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"sdengine/internal/builder"
	"sdengine/internal/domain"
	"sdengine/internal/queue"
	"sdengine/internal/session"
	"sdengine/internal/upstream"
)

type App struct {
	Logger   zerolog.Logger
	Sessions *session.Store
	Presets  *session.PresetStore
	Builder  *builder.Builder
	Queue    *queue.Queue
	Jobs     *queue.Store
	Catalog  *upstream.Catalog
	Upstream *upstream.Client
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]any{"error": map[string]string{"code": kind, "message": message}})
}

// domainError translates the domain error taxonomy into HTTP responses.
// Anything unrecognized is a 500 with the detail kept out of the body.
func (a *App) domainError(w http.ResponseWriter, r *http.Request, err error) {
	if v, ok := domain.AsValidation(err); ok {
		a.error(w, http.StatusBadRequest, "validation_error", v.Error())
		return
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		a.error(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, domain.ErrBackpressure):
		a.error(w, http.StatusTooManyRequests, "backpressure", err.Error())
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("handler: internal error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}
