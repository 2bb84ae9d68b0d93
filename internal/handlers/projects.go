package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"portfolio.dev/internal/metrics"
	"portfolio.dev/internal/services"
)

// ProjectHandler handles project-related endpoints
type ProjectHandler struct {
	store   *services.ProjectStore
	metrics *metrics.Registry
	logger  *slog.Logger
}

// NewProjectHandler creates a new ProjectHandler
func NewProjectHandler(store *services.ProjectStore, reg *metrics.Registry, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{store: store, metrics: reg, logger: logger}
}

// ListProjects handles GET /api/projects
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.Load()
	if err != nil {
		h.loadFailed(err)
		respondError(w, h.logger, http.StatusInternalServerError, "Projects unavailable")
		return
	}
	respondJSON(w, h.logger, http.StatusOK, projects)
}

// GetProject handles GET /api/projects/{name}
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	project, err := h.store.GetByName(name)
	switch {
	case errors.Is(err, services.ErrProjectNotFound):
		respondError(w, h.logger, http.StatusNotFound, "Project not found")
		return
	case err != nil:
		h.loadFailed(err)
		respondError(w, h.logger, http.StatusInternalServerError, "Projects unavailable")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, project)
}

func (h *ProjectHandler) loadFailed(err error) {
	h.logger.Error("loading projects", "file", h.store.Path(), "error", err)
	h.metrics.ProjectLoadErrors.Inc()
}
