package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"portfolio.dev/internal/config"
	"portfolio.dev/internal/metrics"
	"portfolio.dev/internal/testutil"
	"portfolio.dev/internal/tlscert"
)

type harness struct {
	gateway *Gateway
	pool    *x509.CertPool
	done    chan error
	cancel  context.CancelFunc
}

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()

	dir := t.TempDir()
	certFile, keyFile := testutil.WriteCertPair(t, dir, "localhost")

	cfg, err := config.Load("", map[string]any{
		"tls.cert_file": certFile,
		"tls.key_file":  keyFile,
		"tls.watch":     false,
	})
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Server.HTTPSAddr = "127.0.0.1:0"
	cfg.Metrics.Addr = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg, certFile
}

func startGateway(t *testing.T, cfg *config.Config, certFile string) *harness {
	t.Helper()

	reg := metrics.New()
	keeper, err := tlscert.Load(cfg.TLS.CertFile, cfg.TLS.KeyFile, tlscert.WithLogger(testutil.QuietLogger()))
	if err != nil {
		t.Fatalf("tlscert.Load() error = %v", err)
	}

	router := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "site:"+r.URL.Path)
	})

	g := New(cfg, router, keeper, reg, testutil.QuietLogger())
	if err := g.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		t.Fatal(err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(certPEM) {
		t.Fatal("failed to parse test certificate")
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{gateway: g, pool: pool, done: make(chan error, 1), cancel: cancel}
	go func() { h.done <- g.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			t.Error("gateway did not stop")
		}
	})
	return h
}

func (h *harness) plainClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (h *harness) tlsClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: h.pool, ServerName: "localhost"},
		},
	}
}

func TestGateway_PlaintextRedirects(t *testing.T) {
	cfg, certFile := testConfig(t)
	h := startGateway(t, cfg, certFile)

	httpAddr := h.gateway.HTTPAddr().String()
	_, httpsPort, _ := net.SplitHostPort(h.gateway.HTTPSAddr().String())

	tests := []struct {
		name string
		host string
		want string
	}{
		{"host with port", "", "https://127.0.0.1:" + httpsPort + "/projects?page=2"},
		{"portless host", "example.com", "https://example.com/projects?page=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, "http://"+httpAddr+"/projects?page=2", nil)
			if err != nil {
				t.Fatal(err)
			}
			if tt.host != "" {
				req.Host = tt.host
			}

			resp, err := h.plainClient().Do(req)
			if err != nil {
				t.Fatalf("request error = %v", err)
			}
			resp.Body.Close()

			if resp.StatusCode != http.StatusMovedPermanently {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusMovedPermanently)
			}
			if got := resp.Header.Get("Location"); got != tt.want {
				t.Errorf("Location = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGateway_ServesOverTLS(t *testing.T) {
	cfg, certFile := testConfig(t)
	h := startGateway(t, cfg, certFile)

	resp, err := h.tlsClient().Get("https://" + h.gateway.HTTPSAddr().String() + "/index.html")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if string(body) != "site:/index.html" {
		t.Errorf("body = %q", body)
	}
}

func TestGateway_MetricsListener(t *testing.T) {
	cfg, certFile := testConfig(t)
	h := startGateway(t, cfg, certFile)

	resp, err := h.plainClient().Get("http://" + h.gateway.HTTPAddr().String() + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	resp, err = h.plainClient().Get("http://" + h.gateway.MetricsAddr().String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "portfolio_http_https_redirects_total 1") {
		t.Errorf("metrics output missing redirect count:\n%s", body)
	}
}

func TestGateway_MetricsDisabled(t *testing.T) {
	cfg, certFile := testConfig(t)
	cfg.Metrics.Addr = ""
	h := startGateway(t, cfg, certFile)

	if addr := h.gateway.MetricsAddr(); addr != nil {
		t.Errorf("MetricsAddr() = %v, want nil", addr)
	}
}

func TestGateway_StopsOnCancel(t *testing.T) {
	cfg, certFile := testConfig(t)
	h := startGateway(t, cfg, certFile)

	h.cancel()
	select {
	case err := <-h.done:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil", err)
		}
		h.done <- err
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}

	if _, err := net.DialTimeout("tcp", h.gateway.HTTPSAddr().String(), time.Second); err == nil {
		t.Error("TLS listener still accepting after shutdown")
	}
}

func TestGateway_ListenPortInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	cfg, _ := testConfig(t)
	cfg.Server.HTTPAddr = busy.Addr().String()

	keeper, err := tlscert.Load(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		t.Fatal(err)
	}

	g := New(cfg, http.NotFoundHandler(), keeper, metrics.New(), testutil.QuietLogger())
	err = g.Run(context.Background())
	if !errors.Is(err, ErrListen) {
		t.Fatalf("Run() error = %v, want ErrListen", err)
	}
}

func TestGateway_ServeBeforeListen(t *testing.T) {
	cfg, _ := testConfig(t)
	keeper, err := tlscert.Load(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		t.Fatal(err)
	}

	g := New(cfg, http.NotFoundHandler(), keeper, metrics.New(), testutil.QuietLogger())
	if err := g.Serve(context.Background()); err == nil {
		t.Fatal("Serve() before Listen succeeded")
	}
}
