package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"portfolio.dev/internal/config"
	"portfolio.dev/internal/handlers"
	"portfolio.dev/internal/logging"
	"portfolio.dev/internal/metrics"
	"portfolio.dev/internal/server"
	"portfolio.dev/internal/services"
	"portfolio.dev/internal/tlscert"
	"portfolio.dev/internal/views"
)

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "portfolio",
		Usage:     "Serve the portfolio site over HTTPS",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     globalFlags(),
		Action:    serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP redirect, HTTPS and metrics listeners",
				Action: serve,
			},
			{
				Name:   "check",
				Usage:  "Validate config, templates, projects and certificate without binding ports",
				Action: check,
			},
		},
		// Exit codes are mapped by run; never let cli call os.Exit.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			EnvVars: []string{"PORTFOLIO_CONFIG"},
		},
		&cli.BoolFlag{
			Name:  "dev",
			Usage: "Listen on 8080/8443 instead of 80/443",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error (overrides PORTFOLIO_LOG_LEVEL)",
		},
	}
}

// site holds everything loaded at startup
type site struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *views.Engine
	metrics *metrics.Registry
	keeper  *tlscert.Keeper
}

// flagOverrides returns the config keys set by command-line flags
func flagOverrides(c *cli.Context) map[string]any {
	overrides := map[string]any{}
	if c.Bool("dev") {
		maps.Copy(overrides, config.DevOverrides())
	}
	if c.IsSet("log-level") {
		overrides["log.level"] = c.String("log-level")
	}
	return overrides
}

func loadSite(c *cli.Context) (*site, error) {
	cfg, err := config.Load(c.String("config"), flagOverrides(c))
	if err != nil {
		return nil, withCode(exitConfig, fmt.Errorf("load config: %w", err))
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, c.App.ErrWriter)

	engine, err := views.Load(cfg.Content.TemplatesDir)
	if err != nil {
		return nil, withCode(exitTemplates, fmt.Errorf("load templates: %w", err))
	}
	logger.Debug("templates loaded", "dir", cfg.Content.TemplatesDir, "templates", engine.Names())

	reg := metrics.New()

	keeper, err := tlscert.Load(cfg.TLS.CertFile, cfg.TLS.KeyFile,
		tlscert.WithLogger(logger),
		tlscert.WithReloadHook(reg.CertificateReloaded),
	)
	if err != nil {
		return nil, withCode(exitTLS, fmt.Errorf("load certificate: %w", err))
	}

	return &site{
		cfg:     cfg,
		logger:  logger,
		engine:  engine,
		metrics: reg,
		keeper:  keeper,
	}, nil
}

func serve(c *cli.Context) error {
	s, err := loadSite(c)
	if err != nil {
		return err
	}

	s.logger.Info("starting portfolio",
		"version", version,
		"commit", commit,
		"http_addr", s.cfg.Server.HTTPAddr,
		"https_addr", s.cfg.Server.HTTPSAddr,
	)

	// A broken projects file is served as a 500 page until fixed
	if _, err := services.NewProjectStore(s.cfg.Content.ProjectsFile).Load(); err != nil {
		s.logger.Warn("projects file is not loadable", "error", err)
	}

	router := handlers.SetupRoutes(s.cfg, s.engine, s.metrics, s.logger)
	gateway := server.New(s.cfg, router, s.keeper, s.metrics, s.logger)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := reloadLogLevel(c.String("config"), flagOverrides(c), s.logger); err != nil {
					s.logger.Error("reload on SIGHUP failed, keeping log level", "error", err)
				}
			}
		}
	}()

	if err := gateway.Run(ctx); err != nil {
		if errors.Is(err, server.ErrListen) {
			return withCode(exitListen, err)
		}
		return withCode(exitConfig, err)
	}

	s.logger.Info("portfolio stopped")
	return nil
}

// reloadLogLevel re-reads the configuration and applies its log level to
// every logger already handed out
func reloadLogLevel(path string, overrides map[string]any, logger *slog.Logger) error {
	cfg, err := config.Load(path, overrides)
	if err != nil {
		return err
	}
	logging.SetLevel(cfg.Log.Level)
	logger.Info("log level reloaded", "level", logging.Level().String())
	return nil
}

func check(c *cli.Context) error {
	s, err := loadSite(c)
	if err != nil {
		return err
	}

	projects, err := services.NewProjectStore(s.cfg.Content.ProjectsFile).Load()
	if err != nil {
		return withCode(exitConfig, fmt.Errorf("load projects: %w", err))
	}

	cert, err := s.keeper.GetCertificate(nil)
	if err != nil {
		return withCode(exitTLS, err)
	}
	subject := "unknown"
	if cert.Leaf != nil {
		subject = cert.Leaf.Subject.CommonName
	}

	w := c.App.Writer
	fmt.Fprintf(w, "config ok\n")
	fmt.Fprintf(w, "templates: %s\n", strings.Join(s.engine.Names(), ", "))
	fmt.Fprintf(w, "projects: %d\n", len(projects))
	fmt.Fprintf(w, "certificate: %s\n", subject)
	return nil
}
