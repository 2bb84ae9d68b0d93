// Package server runs the portfolio's network listeners: a plaintext
// listener that only redirects to HTTPS, the TLS listener serving the site,
// and an optional Prometheus listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"portfolio.dev/internal/config"
	"portfolio.dev/internal/metrics"
	"portfolio.dev/internal/middleware"
	"portfolio.dev/internal/tlscert"
)

// ErrListen wraps failures to bind a listener, such as a port in use
var ErrListen = errors.New("listen failed")

// Gateway owns the HTTP servers and their listeners
type Gateway struct {
	cfg     *config.Config
	keeper  *tlscert.Keeper
	metrics *metrics.Registry
	logger  *slog.Logger

	httpServer    *http.Server
	httpsServer   *http.Server
	metricsServer *http.Server

	httpLn    net.Listener
	httpsLn   net.Listener
	metricsLn net.Listener
}

// New creates a Gateway serving router over TLS with the keeper's certificate
func New(cfg *config.Config, router http.Handler, keeper *tlscert.Keeper, reg *metrics.Registry, logger *slog.Logger) *Gateway {
	g := &Gateway{
		cfg:     cfg,
		keeper:  keeper,
		metrics: reg,
		logger:  logger,
	}

	g.httpServer = g.newServer(cfg.Server.HTTPAddr, nil, "http")
	g.httpsServer = g.newServer(cfg.Server.HTTPSAddr, router, "https")
	g.httpsServer.TLSConfig = keeper.TLSConfig()

	if cfg.Metrics.Addr != "" {
		r := chi.NewRouter()
		r.Handle("/metrics", reg.Handler())
		g.metricsServer = g.newServer(cfg.Metrics.Addr, r, "metrics")
	}

	return g
}

func (g *Gateway) newServer(addr string, handler http.Handler, name string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       g.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: g.cfg.Server.ReadTimeout,
		WriteTimeout:      g.cfg.Server.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(g.logger.With("listener", name).Handler(), slog.LevelWarn),
	}
}

// Listen binds every listener. The plaintext redirect targets the port the
// TLS listener actually bound.
func (g *Gateway) Listen() error {
	var err error

	if g.httpsLn, err = net.Listen("tcp", g.httpsServer.Addr); err != nil {
		return fmt.Errorf("%w: https %s: %w", ErrListen, g.httpsServer.Addr, err)
	}

	if g.httpLn, err = net.Listen("tcp", g.httpServer.Addr); err != nil {
		g.closeListeners()
		return fmt.Errorf("%w: http %s: %w", ErrListen, g.httpServer.Addr, err)
	}

	if g.metricsServer != nil {
		if g.metricsLn, err = net.Listen("tcp", g.metricsServer.Addr); err != nil {
			g.closeListeners()
			return fmt.Errorf("%w: metrics %s: %w", ErrListen, g.metricsServer.Addr, err)
		}
	}

	httpsPort := strconv.Itoa(g.httpsLn.Addr().(*net.TCPAddr).Port)
	g.httpServer.Handler = middleware.Chain(http.NotFoundHandler(),
		middleware.RequestID,
		middleware.Logger(g.logger.With("listener", "http")),
		middleware.RedirectHTTPS(httpsPort, g.metrics.Redirects),
	)

	return nil
}

// HTTPAddr returns the bound plaintext address, or nil before Listen
func (g *Gateway) HTTPAddr() net.Addr { return addrOf(g.httpLn) }

// HTTPSAddr returns the bound TLS address, or nil before Listen
func (g *Gateway) HTTPSAddr() net.Addr { return addrOf(g.httpsLn) }

// MetricsAddr returns the bound metrics address, or nil when disabled
func (g *Gateway) MetricsAddr() net.Addr { return addrOf(g.metricsLn) }

func addrOf(ln net.Listener) net.Addr {
	if ln == nil {
		return nil
	}
	return ln.Addr()
}

// Serve runs all listeners until ctx is cancelled or one of them fails,
// then shuts every server down gracefully. Listen must be called first.
func (g *Gateway) Serve(ctx context.Context) error {
	if g.httpsLn == nil || g.httpLn == nil {
		return errors.New("server: Serve called before Listen")
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		g.logger.Info("HTTPS listener started", "addr", g.httpsLn.Addr().String())
		return serveErr("https", g.httpsServer.ServeTLS(g.httpsLn, "", ""))
	})

	group.Go(func() error {
		g.logger.Info("HTTP redirect listener started", "addr", g.httpLn.Addr().String())
		return serveErr("http", g.httpServer.Serve(g.httpLn))
	})

	if g.metricsLn != nil {
		group.Go(func() error {
			g.logger.Info("metrics listener started", "addr", g.metricsLn.Addr().String())
			return serveErr("metrics", g.metricsServer.Serve(g.metricsLn))
		})
	}

	if g.cfg.TLS.Watch {
		group.Go(func() error {
			if err := g.keeper.Watch(gctx); err != nil {
				g.logger.Warn("certificate watcher unavailable, reloads disabled", "error", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		<-gctx.Done()
		return g.shutdown()
	})

	return group.Wait()
}

// Run binds and serves; see Listen and Serve
func (g *Gateway) Run(ctx context.Context) error {
	if err := g.Listen(); err != nil {
		return err
	}
	return g.Serve(ctx)
}

func (g *Gateway) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.Server.ShutdownTimeout)
	defer cancel()

	g.logger.Info("shutting down listeners", "timeout", g.cfg.Server.ShutdownTimeout)

	servers := []*http.Server{g.httpServer, g.httpsServer}
	if g.metricsServer != nil {
		servers = append(servers, g.metricsServer)
	}

	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
		}
	}
	return errors.Join(errs...)
}

func (g *Gateway) closeListeners() {
	for _, ln := range []net.Listener{g.httpLn, g.httpsLn, g.metricsLn} {
		if ln != nil {
			ln.Close()
		}
	}
}

func serveErr(name string, err error) error {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("%s listener: %w", name, err)
}
