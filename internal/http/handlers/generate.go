package handlers

import (
	"net/http"

	"sdengine/internal/builder"
	"sdengine/internal/domain"
)

// Generate builds a full specification from the request plus session state
// and enqueues it. The response is 202 with everything a client needs to
// poll.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req builder.Request
	if !a.decode(w, r, &req) {
		return
	}
	spec, err := a.Builder.Build(r.Context(), req)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	jobID, err := a.Queue.Submit(req.UserID, spec)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{
		"job_id":      jobID,
		"state":       domain.JobQueued,
		"queue_depth": a.Queue.Depth(),
	})
}
