package handlers

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sdengine/internal/domain"
	"sdengine/pkg/zip"
)

func (a *App) jobFromPath(w http.ResponseWriter, r *http.Request) (*domain.Job, bool) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return nil, false
	}
	job, err := a.Jobs.Get(jobID)
	if err != nil {
		a.domainError(w, r, err)
		return nil, false
	}
	return job, true
}

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := a.jobFromPath(w, r)
	if !ok {
		return
	}
	resp := map[string]any{
		"job_id":       job.ID,
		"user_id":      job.UserID,
		"state":        job.State,
		"progress":     job.Progress,
		"submitted_at": job.SubmittedAt,
	}
	if job.StartedAt != nil {
		resp["started_at"] = job.StartedAt
	}
	if job.CompletedAt != nil {
		resp["completed_at"] = job.CompletedAt
	}
	if job.Failure != nil {
		resp["failure"] = map[string]string{"kind": string(job.Failure.Kind), "message": job.Failure.Message}
	}
	a.json(w, http.StatusOK, resp)
}

// JobResult returns the artifacts of a completed job or the failure detail of
// a failed one. Non-terminal jobs are a conflict; clients should keep
// polling the status endpoint.
func (a *App) JobResult(w http.ResponseWriter, r *http.Request) {
	job, ok := a.jobFromPath(w, r)
	if !ok {
		return
	}
	switch job.State {
	case domain.JobCompleted:
		a.json(w, http.StatusOK, map[string]any{
			"job_id": job.ID,
			"state":  job.State,
			"images": job.Result.Images,
			"info":   job.Result.Info,
		})
	case domain.JobFailed:
		a.json(w, http.StatusOK, map[string]any{
			"job_id":  job.ID,
			"state":   job.State,
			"failure": map[string]string{"kind": string(job.Failure.Kind), "message": job.Failure.Message},
		})
	case domain.JobCancelled:
		a.json(w, http.StatusOK, map[string]any{"job_id": job.ID, "state": job.State})
	default:
		a.error(w, http.StatusConflict, "invalid_state", fmt.Sprintf("job is %s", job.State))
	}
}

func (a *App) JobArchive(w http.ResponseWriter, r *http.Request) {
	job, ok := a.jobFromPath(w, r)
	if !ok {
		return
	}
	if job.State != domain.JobCompleted {
		a.error(w, http.StatusConflict, "invalid_state", fmt.Sprintf("job is %s", job.State))
		return
	}
	assets := make([]zip.Asset, 0, len(job.Result.Images))
	for i, encoded := range job.Result.Images {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("%s-%02d.png", job.ID, i+1),
			Data:     data,
		})
	}
	archive := zip.ArchiveAssets(assets)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=job-%s.zip", job.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// JobCancel cancels a queued job. The caller proves ownership with the
// user_id query parameter; running and terminal jobs cannot be cancelled.
func (a *App) JobCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "user_id required")
		return
	}
	if err := a.Queue.Cancel(jobID, userID); err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"job_id": jobID, "state": domain.JobCancelled})
}
