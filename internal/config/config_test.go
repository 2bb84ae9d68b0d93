package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != ":80" || cfg.Server.HTTPSAddr != ":443" {
		t.Errorf("listeners = %q/%q, want :80/:443", cfg.Server.HTTPAddr, cfg.Server.HTTPSAddr)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout = %v, want 10s", cfg.Server.ReadTimeout)
	}
	if cfg.TLS.CertFile != "./ssl/domain.cert.pem" || cfg.TLS.KeyFile != "./ssl/private.key.pem" {
		t.Errorf("TLS files = %q/%q", cfg.TLS.CertFile, cfg.TLS.KeyFile)
	}
	if !cfg.TLS.Watch {
		t.Error("TLS.Watch = false, want true")
	}
	if cfg.Content.ProjectsFile != "./templates/projects.json" {
		t.Errorf("ProjectsFile = %q", cfg.Content.ProjectsFile)
	}
	if cfg.RateLimit.RPS != 0 || cfg.RateLimit.Burst != 20 {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}

	port, err := cfg.HTTPSPort()
	if err != nil || port != "443" {
		t.Errorf("HTTPSPort() = %q, %v; want 443", port, err)
	}
}

func TestLoad_FileEnvAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.yaml")
	yaml := `
server:
  https_addr: ":9443"
  write_timeout: 45s
log:
  level: debug
  format: json
ratelimit:
  rps: 5
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORTFOLIO_LOG_LEVEL", "warn")
	t.Setenv("PORTFOLIO_CONTENT_TEMPLATES_DIR", "/srv/site")
	t.Setenv("PORTFOLIO_TLS_WATCH", "false")

	cfg, err := Load(path, map[string]any{"server.http_addr": ":9080"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPSAddr != ":9443" {
		t.Errorf("HTTPSAddr = %q, want :9443 from file", cfg.Server.HTTPSAddr)
	}
	if cfg.Server.WriteTimeout != 45*time.Second {
		t.Errorf("WriteTimeout = %v, want 45s from file", cfg.Server.WriteTimeout)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout = %v, want default 10s", cfg.Server.ReadTimeout)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn from env", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json from file", cfg.Log.Format)
	}
	if cfg.Content.TemplatesDir != "/srv/site" {
		t.Errorf("TemplatesDir = %q, want /srv/site from env", cfg.Content.TemplatesDir)
	}
	if cfg.TLS.Watch {
		t.Error("TLS.Watch = true, want false from env")
	}
	if cfg.Server.HTTPAddr != ":9080" {
		t.Errorf("HTTPAddr = %q, want :9080 from override", cfg.Server.HTTPAddr)
	}
	if cfg.RateLimit.RPS != 5 {
		t.Errorf("RateLimit.RPS = %v, want 5", cfg.RateLimit.RPS)
	}
}

func TestLoad_DevOverrides(t *testing.T) {
	cfg, err := Load("", DevOverrides())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != ":8080" || cfg.Server.HTTPSAddr != ":8443" {
		t.Errorf("listeners = %q/%q, want :8080/:8443", cfg.Server.HTTPAddr, cfg.Server.HTTPSAddr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"same listeners", func(c *Config) { c.Server.HTTPSAddr = c.Server.HTTPAddr }, "both"},
		{"both ephemeral", func(c *Config) { c.Server.HTTPAddr = "127.0.0.1:0"; c.Server.HTTPSAddr = "127.0.0.1:0" }, ""},
		{"https without port", func(c *Config) { c.Server.HTTPSAddr = "localhost" }, "https_addr"},
		{"empty cert", func(c *Config) { c.TLS.CertFile = "" }, "tls.cert_file"},
		{"empty projects", func(c *Config) { c.Content.ProjectsFile = "" }, "content.projects_file"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"negative rps", func(c *Config) { c.RateLimit.RPS = -1 }, "ratelimit.rps"},
		{"zero burst", func(c *Config) { c.RateLimit.RPS = 1; c.RateLimit.Burst = 0 }, "ratelimit.burst"},
		{"zero shutdown", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "shutdown_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("", nil)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"PORTFOLIO_SERVER_HTTP_ADDR":      "server.http_addr",
		"PORTFOLIO_LOG_LEVEL":             "log.level",
		"PORTFOLIO_TLS_CERT_FILE":         "tls.cert_file",
		"PORTFOLIO_METRICS_ADDR":          "metrics.addr",
		"PORTFOLIO_RATELIMIT_RPS":         "ratelimit.rps",
		"PORTFOLIO_CONTENT_PROJECTS_FILE": "content.projects_file",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
