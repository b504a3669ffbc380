package handlers

import (
	"context"
	"net/http"
	"time"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	upstreamState := "unconfigured"
	if a.Upstream != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Upstream.Ping(ctx); err != nil {
			upstreamState = "unreachable"
		} else {
			upstreamState = "ok"
		}
	}
	a.json(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"upstream":    upstreamState,
		"queue_depth": a.Queue.Depth(),
	})
}
