package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"portfolio.dev/internal/metrics"
	"portfolio.dev/internal/views"
)

const errorTemplate = "error.html"

// ErrorPages renders HTML error pages through the error.html template,
// falling back to the bare message as plain text.
type ErrorPages struct {
	engine  *views.Engine
	metrics *metrics.Registry
	logger  *slog.Logger
}

// NewErrorPages creates an ErrorPages. A nil engine always uses the fallback.
func NewErrorPages(engine *views.Engine, reg *metrics.Registry, logger *slog.Logger) *ErrorPages {
	return &ErrorPages{engine: engine, metrics: reg, logger: logger}
}

// Page returns the body and content type for an error response
func (p *ErrorPages) Page(status int, message string) (body, contentType string) {
	if p.engine == nil {
		return message, "text/plain; charset=utf-8"
	}

	html, err := p.engine.Render(errorTemplate, views.Context{
		"error":       message,
		"status_code": strconv.Itoa(status),
	})
	if err != nil {
		p.logger.Warn("error page render failed, using plain text", "status", status, "error", err)
		if p.metrics != nil {
			p.metrics.TemplateErrors.WithLabelValues(errorTemplate).Inc()
		}
		return message, "text/plain; charset=utf-8"
	}

	return html, "text/html; charset=utf-8"
}

// Render writes an error response with the given status
func (p *ErrorPages) Render(w http.ResponseWriter, status int, message string) {
	body, contentType := p.Page(status, message)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

// NotFound handles unmatched routes
func (p *ErrorPages) NotFound(w http.ResponseWriter, r *http.Request) {
	p.Render(w, http.StatusNotFound, "Page not found")
}

// MethodNotAllowed handles known paths requested with an unsupported method
func (p *ErrorPages) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	p.Render(w, http.StatusMethodNotAllowed, "Method not allowed")
}
