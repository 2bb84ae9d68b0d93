package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"portfolio.dev/internal/config"
	"portfolio.dev/internal/metrics"
	"portfolio.dev/internal/middleware"
	"portfolio.dev/internal/services"
	"portfolio.dev/internal/views"
)

// staticDirs maps URL prefixes to directories below the templates directory
var staticDirs = []string{"images", "css", "fonts"}

// SetupRoutes configures all routes served on the TLS listener
func SetupRoutes(cfg *config.Config, engine *views.Engine, reg *metrics.Registry, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Metrics(reg))
	r.Use(middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst, reg.RateLimited))
	r.Use(chimw.GetHead)

	// Initialize services
	projectStore := services.NewProjectStore(cfg.Content.ProjectsFile)

	// Initialize handlers
	errorPages := NewErrorPages(engine, reg, logger)
	indexHandler := NewIndexHandler(projectStore, engine, errorPages, reg, logger)
	projectHandler := NewProjectHandler(projectStore, reg, logger)

	// Pages
	r.Get("/", indexHandler.ServeHTTP)
	r.Get("/index.html", indexHandler.ServeHTTP)

	// Static assets
	for _, dir := range staticDirs {
		assets := NewStaticAssets(filepath.Join(cfg.Content.TemplatesDir, dir), errorPages)
		r.Get("/"+dir+"/*", assets.ServeHTTP)
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/projects", projectHandler.ListProjects)
		r.Get("/projects/{name}", projectHandler.GetProject)

		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	r.NotFound(errorPages.NotFound)
	r.MethodNotAllowed(errorPages.MethodNotAllowed)

	return r
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, logger *slog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("encoding JSON response", "error", err)
	}
}

// respondError writes an error JSON response
func respondError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	respondJSON(w, logger, status, map[string]string{"error": message})
}
