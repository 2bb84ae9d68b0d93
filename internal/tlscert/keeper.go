// Package tlscert loads the server's certificate chain and private key and
// reloads them when the files on disk are replaced.
package tlscert

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNoCertificate is returned by GetCertificate before a pair was loaded
var ErrNoCertificate = errors.New("tlscert: no certificate loaded")

// Keeper holds the current key pair. The pair is swapped atomically, so
// handshakes never block on a reload.
type Keeper struct {
	certFile string
	keyFile  string
	cert     atomic.Pointer[tls.Certificate]
	logger   *slog.Logger
	debounce time.Duration
	onReload func(error)
}

// Option configures a Keeper
type Option func(*Keeper)

// WithLogger sets the logger for reload events
func WithLogger(logger *slog.Logger) Option {
	return func(k *Keeper) {
		k.logger = logger
	}
}

// WithDebounce sets how long the files must stay quiet before a reload.
// Certificate and key are usually replaced one after the other.
func WithDebounce(d time.Duration) Option {
	return func(k *Keeper) {
		k.debounce = d
	}
}

// WithReloadHook registers a callback run after each reload attempt
func WithReloadHook(fn func(error)) Option {
	return func(k *Keeper) {
		k.onReload = fn
	}
}

// Load reads the PEM encoded pair. A missing or malformed file is an error.
func Load(certFile, keyFile string, opts ...Option) (*Keeper, error) {
	k := &Keeper{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   slog.Default(),
		debounce: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(k)
	}

	if err := k.Reload(); err != nil {
		return nil, err
	}

	return k, nil
}

// Reload re-reads the pair from disk. On failure the previous pair stays in use.
func (k *Keeper) Reload() error {
	cert, err := tls.LoadX509KeyPair(k.certFile, k.keyFile)
	if err != nil {
		return fmt.Errorf("tlscert: load key pair %s, %s: %w", k.certFile, k.keyFile, err)
	}
	k.cert.Store(&cert)
	return nil
}

// GetCertificate implements tls.Config.GetCertificate
func (k *Keeper) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cert := k.cert.Load()
	if cert == nil {
		return nil, ErrNoCertificate
	}
	return cert, nil
}

// TLSConfig returns a server configuration backed by the keeper
func (k *Keeper) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: k.GetCertificate,
		NextProtos:     []string{"h2", "http/1.1"},
	}
}

// Watch reloads the pair whenever the certificate or key file is written or
// replaced. It blocks until ctx is done.
func (k *Keeper) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlscert: create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directories, not the files, so atomic renames are seen
	certDir := filepath.Dir(k.certFile)
	keyDir := filepath.Dir(k.keyFile)
	if err := watcher.Add(certDir); err != nil {
		return fmt.Errorf("tlscert: watch %s: %w", certDir, err)
	}
	if keyDir != certDir {
		if err := watcher.Add(keyDir); err != nil {
			return fmt.Errorf("tlscert: watch %s: %w", keyDir, err)
		}
	}

	k.logger.Info("certificate watcher started",
		"cert_file", k.certFile,
		"key_file", k.keyFile,
	)

	certPath := filepath.Clean(k.certFile)
	keyPath := filepath.Clean(k.keyFile)

	timer := time.NewTimer(k.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(event.Name)
			if name != certPath && name != keyPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			k.logger.Debug("certificate file changed", "file", event.Name, "op", event.Op.String())
			timer.Reset(k.debounce)

		case <-timer.C:
			k.reloadChanged()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			k.logger.Error("certificate watcher error", "error", err)

		case <-ctx.Done():
			k.logger.Debug("certificate watcher stopped")
			return nil
		}
	}
}

func (k *Keeper) reloadChanged() {
	err := k.Reload()
	if err != nil {
		k.logger.Error("certificate reload failed, keeping previous certificate", "error", err)
	} else {
		k.logger.Info("certificate reloaded", "cert_file", k.certFile)
	}
	if k.onReload != nil {
		k.onReload(err)
	}
}
