package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ps-vitor/offplan-sys/backend/internal/api/models"
	"github.com/ps-vitor/offplan-sys/backend/internal/domain"
	"github.com/ps-vitor/offplan-sys/backend/internal/repositories"
	"github.com/ps-vitor/offplan-sys/backend/internal/services/project"
)

// ProjectFinder reads merged projects.
type ProjectFinder interface {
	FindAll(ctx context.Context) (project.Listing, error)
	FindByID(ctx context.Context, id int64) (domain.Record, error)
}

type APIHandler struct {
	projects ProjectFinder
	logger   *slog.Logger
}

func NewAPIHandler(projects ProjectFinder, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &APIHandler{projects: projects, logger: logger}
}

func (h *APIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/projects", h.handleProjects).Methods(http.MethodGet)
	r.HandleFunc("/api/projects/{id:[0-9]+}", h.handleProject).Methods(http.MethodGet)
}

func (h *APIHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (h *APIHandler) handleProjects(w http.ResponseWriter, r *http.Request) {
	listing, err := h.projects.FindAll(r.Context())
	if errors.Is(err, repositories.ErrSnapshotUnavailable) {
		h.logger.Warn("no snapshot to serve", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "Cached data unavailable",
			Details: "merged snapshot and its backup could not be read",
		})
		return
	}
	if err != nil {
		h.logger.Error("list projects", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load projects"})
		return
	}

	data := listing.Projects
	if data == nil {
		data = []domain.Record{}
	}
	writeJSON(w, http.StatusOK, models.ProjectList{
		Source:      listing.Source,
		LastUpdated: listing.LastUpdated.UTC(),
		AgeHours:    listing.AgeHours,
		IsStale:     listing.IsStale,
		Count:       len(data),
		Data:        data,
	})
}

func (h *APIHandler) handleProject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
		return
	}

	p, err := h.projects.FindByID(r.Context(), id)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
	case errors.Is(err, repositories.ErrSnapshotUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{Error: "Cached data unavailable"})
	case err != nil:
		h.logger.Error("get project", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load project"})
	default:
		writeJSON(w, http.StatusOK, p)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
