// Package config loads the server configuration.
//
// Values are layered, later sources overriding earlier ones: built-in
// defaults, an optional YAML file, PORTFOLIO_* environment variables and
// finally explicit overrides such as command-line flags.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
// PORTFOLIO_SERVER_HTTP_ADDR maps to server.http_addr.
const EnvPrefix = "PORTFOLIO_"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	TLS       TLSConfig       `koanf:"tls"`
	Content   ContentConfig   `koanf:"content"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
}

// ServerConfig holds listener settings
type ServerConfig struct {
	HTTPAddr        string        `koanf:"http_addr"`
	HTTPSAddr       string        `koanf:"https_addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// TLSConfig points at the pre-provisioned certificate chain and key
type TLSConfig struct {
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
	// Watch reloads the pair when either file changes on disk
	Watch bool `koanf:"watch"`
}

// ContentConfig locates templates, assets and the project list
type ContentConfig struct {
	TemplatesDir string `koanf:"templates_dir"`
	ProjectsFile string `koanf:"projects_file"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig holds the Prometheus listener address. Empty disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// RateLimitConfig holds per-client request limits. RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps"`
	Burst int     `koanf:"burst"`
}

// Defaults returns the built-in configuration values
func Defaults() map[string]any {
	return map[string]any{
		"server.http_addr":        ":80",
		"server.https_addr":       ":443",
		"server.read_timeout":     10 * time.Second,
		"server.write_timeout":    30 * time.Second,
		"server.shutdown_timeout": 15 * time.Second,
		"tls.cert_file":           "./ssl/domain.cert.pem",
		"tls.key_file":            "./ssl/private.key.pem",
		"tls.watch":               true,
		"content.templates_dir":   "./templates",
		"content.projects_file":   "./templates/projects.json",
		"log.level":               "info",
		"log.format":              "text",
		"metrics.addr":            "127.0.0.1:9100",
		"ratelimit.rps":           0.0,
		"ratelimit.burst":         20,
	}
}

// DevOverrides moves the listeners to unprivileged ports
func DevOverrides() map[string]any {
	return map[string]any{
		"server.http_addr":  ":8080",
		"server.https_addr": ":8443",
	}
}

// Load reads configuration from all sources. path may be empty, in which
// case only defaults, environment and overrides apply.
func Load(path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(mapProvider(overrides), nil); err != nil {
			return nil, fmt.Errorf("load overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKey maps PORTFOLIO_SECTION_SOME_KEY to section.some_key
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.Server.HTTPAddr == "" {
		errs = append(errs, errors.New("server.http_addr is required"))
	}
	if c.Server.HTTPSAddr == "" {
		errs = append(errs, errors.New("server.https_addr is required"))
	}
	// Port 0 asks the kernel for a free port, so two such listeners never collide
	if c.Server.HTTPAddr != "" && c.Server.HTTPAddr == c.Server.HTTPSAddr && !ephemeral(c.Server.HTTPAddr) {
		errs = append(errs, fmt.Errorf("server.http_addr and server.https_addr are both %s", c.Server.HTTPAddr))
	}
	if _, err := c.HTTPSPort(); c.Server.HTTPSAddr != "" && err != nil {
		errs = append(errs, fmt.Errorf("server.https_addr: %w", err))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if c.TLS.CertFile == "" {
		errs = append(errs, errors.New("tls.cert_file is required"))
	}
	if c.TLS.KeyFile == "" {
		errs = append(errs, errors.New("tls.key_file is required"))
	}
	if c.Content.TemplatesDir == "" {
		errs = append(errs, errors.New("content.templates_dir is required"))
	}
	if c.Content.ProjectsFile == "" {
		errs = append(errs, errors.New("content.projects_file is required"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.RateLimit.RPS < 0 {
		errs = append(errs, errors.New("ratelimit.rps must not be negative"))
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		errs = append(errs, errors.New("ratelimit.burst must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func ephemeral(addr string) bool {
	_, port, err := net.SplitHostPort(addr)
	return err == nil && port == "0"
}

// HTTPSPort returns the port of the TLS listener
func (c *Config) HTTPSPort() (string, error) {
	_, port, err := net.SplitHostPort(c.Server.HTTPSAddr)
	if err != nil {
		return "", err
	}
	return port, nil
}
