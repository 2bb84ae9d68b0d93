// Package metrics exposes Prometheus metrics for the portfolio server.
//
// Collectors are registered on a private registry rather than the global
// default so tests can build as many instances as they like.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portfolio"

// Registry holds all application metrics
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	Redirects          prometheus.Counter
	RateLimited        prometheus.Counter
	ProjectLoadErrors  prometheus.Counter
	TemplateErrors     *prometheus.CounterVec
	CertificateReloads *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time spent serving HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		Redirects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "https_redirects_total",
			Help:      "Plaintext requests redirected to HTTPS.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}),
		ProjectLoadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projects_load_errors_total",
			Help:      "Failed reads or parses of the projects file.",
		}),
		TemplateErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "template_errors_total",
			Help:      "Template render failures, by template name.",
		}, []string{"template"}),
		CertificateReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tls",
			Name:      "certificate_reloads_total",
			Help:      "Certificate reload attempts, by result.",
		}, []string{"result"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.RequestsTotal,
		r.RequestDuration,
		r.Redirects,
		r.RateLimited,
		r.ProjectLoadErrors,
		r.TemplateErrors,
		r.CertificateReloads,
	)

	return r
}

// Handler returns an HTTP handler for the /metrics endpoint
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// CertificateReloaded records the outcome of a certificate reload
func (r *Registry) CertificateReloaded(err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.CertificateReloads.WithLabelValues(result).Inc()
}
