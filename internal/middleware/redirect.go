package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// RedirectHTTPS answers every plaintext request with a permanent redirect to
// the same host, path and query on the TLS listener. Requests that already
// arrived over TLS pass through. redirects may be nil.
func RedirectHTTPS(httpsPort string, redirects prometheus.Counter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS != nil {
				next.ServeHTTP(w, r)
				return
			}

			host := httpsHost(r.Host, httpsPort)
			if host == "" {
				http.Error(w, "missing Host header", http.StatusBadRequest)
				return
			}

			if redirects != nil {
				redirects.Inc()
			}
			http.Redirect(w, r, "https://"+host+r.URL.RequestURI(), http.StatusMovedPermanently)
		})
	}
}

// httpsHost rewrites a Host header for the TLS listener. An explicit port is
// replaced with httpsPort, or dropped when that is the default 443. A Host
// without a port is kept as is.
func httpsHost(host, httpsPort string) string {
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	if httpsPort == "" || httpsPort == "443" {
		if strings.Contains(h, ":") {
			return "[" + h + "]"
		}
		return h
	}
	return net.JoinHostPort(h, httpsPort)
}
