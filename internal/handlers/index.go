package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"portfolio.dev/internal/metrics"
	"portfolio.dev/internal/services"
	"portfolio.dev/internal/views"
)

const indexTemplate = "index.html"

// IndexHandler renders the homepage from the current project list
type IndexHandler struct {
	store   *services.ProjectStore
	engine  *views.Engine
	pages   *ErrorPages
	metrics *metrics.Registry
	logger  *slog.Logger
}

// NewIndexHandler creates a new IndexHandler
func NewIndexHandler(store *services.ProjectStore, engine *views.Engine, pages *ErrorPages, reg *metrics.Registry, logger *slog.Logger) *IndexHandler {
	return &IndexHandler{
		store:   store,
		engine:  engine,
		pages:   pages,
		metrics: reg,
		logger:  logger,
	}
}

// ServeHTTP handles GET / and GET /index.html
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.Load()
	if err != nil {
		h.logger.Error("loading projects", "file", h.store.Path(), "error", err)
		h.metrics.ProjectLoadErrors.Inc()
		h.pages.Render(w, http.StatusInternalServerError, "Projects unavailable")
		return
	}

	body, err := h.engine.Render(indexTemplate, views.Context{"projects": projects})
	if err != nil {
		h.logger.Error("rendering index", "error", err)
		h.metrics.TemplateErrors.WithLabelValues(indexTemplate).Inc()
		h.pages.Render(w, http.StatusInternalServerError, "Template error")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, body)
}
