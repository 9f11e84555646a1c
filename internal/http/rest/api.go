// Package rest exposes the agent's control surface over HTTP: enqueue
// downloads and extractions, observe progress, request aborts, and
// read the job history.
package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fetchkit/fetchkit/internal/agent"
	"github.com/fetchkit/fetchkit/internal/logctx"
	"github.com/fetchkit/fetchkit/internal/storage"
)

type API struct {
	agent        *agent.Agent
	repo         storage.JobRepository
	historyLimit int
}

func NewAPI(a *agent.Agent, repo storage.JobRepository, historyLimit int) *API {
	return &API{agent: a, repo: repo, historyLimit: historyLimit}
}

// Handler builds the router. The metrics handler is mounted alongside
// the v1 API.
func (api *API) Handler(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/downloads", api.createDownload)
		r.Post("/downloads/abort", api.abortKind(storage.JobDownload))
		r.Post("/extractions", api.createExtraction)
		r.Post("/extractions/abort", api.abortKind(storage.JobExtract))
		r.Get("/progress", api.progress)
		r.Get("/jobs", api.jobs)
	})

	r.Method(http.MethodGet, "/metrics", metrics)

	return r
}

type downloadRequest struct {
	URL         string `json:"url"`
	Destination string `json:"destination"`
}

type extractionRequest struct {
	Archive     string `json:"archive"`
	Destination string `json:"destination"`
}

type jobResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (api *API) createDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" || req.Destination == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url and destination are required"})

		return
	}

	id, err := api.agent.EnqueueDownload(req.URL, req.Destination)
	if err != nil {
		api.writeEnqueueError(w, r, err)

		return
	}

	writeJSON(w, http.StatusAccepted, jobResponse{ID: id})
}

func (api *API) createExtraction(w http.ResponseWriter, r *http.Request) {
	var req extractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Archive == "" || req.Destination == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "archive and destination are required"})

		return
	}

	id, err := api.agent.EnqueueExtraction(req.Archive, req.Destination)
	if err != nil {
		api.writeEnqueueError(w, r, err)

		return
	}

	writeJSON(w, http.StatusAccepted, jobResponse{ID: id})
}

func (api *API) abortKind(kind storage.JobKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !api.agent.Abort(kind) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "no operation in flight"})

			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}

func (api *API) progress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]agent.Status{
		string(storage.JobDownload): api.agent.StatusOf(storage.JobDownload),
		string(storage.JobExtract):  api.agent.StatusOf(storage.JobExtract),
	})
}

func (api *API) jobs(w http.ResponseWriter, r *http.Request) {
	records, err := api.repo.GetJobs(api.historyLimit)
	if err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to list jobs", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list jobs"})

		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (api *API) writeEnqueueError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, agent.ErrQueueFull) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error()})

		return
	}

	logctx.LoggerFromContext(r.Context()).Error("failed to enqueue job", "err", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to enqueue job"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
