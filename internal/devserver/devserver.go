// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package devserver runs the app for local development: it builds the app in
// watch mode, proxies requests to the builder's static server with a
// single-page app fallback, reloads open tabs after rebuilds and opens the
// browser once the app is ready.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"go.astrophena.name/base/logger"
	"go.astrophena.name/devserve/internal/bundle"
	"go.astrophena.name/devserve/internal/hmr"
	"go.astrophena.name/devserve/internal/proxy"
	"go.astrophena.name/devserve/internal/ready"
)

// Builder builds the app continuously and serves its output.
type Builder interface {
	// Watch starts building in watch mode. hook, if not nil, is notified
	// after each successful rebuild.
	Watch(hook bundle.RebuildHook) error
	// Serve starts the static server and returns its address.
	Serve() (bundle.Addr, error)
	// Stop releases the builder. It must be safe to call more than once.
	Stop()
}

// Config configures the dev server.
type Config struct {
	// Listen is the address of the dev server. Default is localhost:3000.
	Listen string
	// Servedir is the directory served by the builder. It is removed on exit.
	Servedir string
	// Publicdir is copied to Servedir on start, and again on change if
	// WatchPublic is true. If empty, nothing is copied.
	Publicdir string
	// Minify minifies public files when copying them.
	Minify bool
	// HotReload reloads open tabs after each rebuild.
	HotReload bool
	// Open opens the app in the browser once it's ready.
	Open bool
	// WatchPublic watches Publicdir for changes.
	WatchPublic bool
	// ProbePath is the asset polled to learn that the app is ready.
	// Default is /app/bundle.js.
	ProbePath string
	// ProbeInterval is the delay between readiness probes.
	ProbeInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.Listen == "" {
		c.Listen = "localhost:3000"
	}
	if c.ProbePath == "" {
		c.ProbePath = "/app/" + bundle.BundleName
	}
	if c.ProbeInterval == 0 {
		c.ProbeInterval = ready.DefaultInterval
	}
}

var serveReadyHook func() // used in tests, called when the dev server is ready to accept connections

// Serve runs the dev server until ctx is done. open is called to open the
// browser; it may be nil.
//
// The builder is stopped and Servedir is removed exactly once, whichever way
// Serve returns.
func Serve(ctx context.Context, c *Config, b Builder, open func(url string) error) error {
	c.setDefaults()

	var cleanupOnce sync.Once
	cleanup := func() {
		cleanupOnce.Do(func() {
			b.Stop()
			if c.Servedir == "" {
				return
			}
			if err := os.RemoveAll(c.Servedir); err != nil {
				logger.Error(ctx, "failed to remove serve directory", slog.String("dir", c.Servedir), slog.Any("err", err))
				return
			}
			logger.Info(ctx, "removed serve directory", slog.String("dir", c.Servedir))
		})
	}
	defer cleanup()

	// Copying creates Servedir, so it happens after cleanup is deferred.
	if c.Publicdir != "" {
		if err := bundle.CopyPublic(ctx, c.Publicdir, c.Servedir, c.Minify); err != nil {
			return fmt.Errorf("copying public files: %w", err)
		}
	}

	reg := new(hmr.Registry)
	defer reg.Close()

	// Without hot reload the client script is not in the bundle, so nobody
	// listens for updates.
	var hook bundle.RebuildHook
	if c.HotReload {
		hook = hmr.NewBroadcaster(ctx, reg)
	}
	if err := b.Watch(hook); err != nil {
		return fmt.Errorf("starting watch mode: %w", err)
	}
	upstream, err := b.Serve()
	if err != nil {
		return fmt.Errorf("starting static server: %w", err)
	}
	logger.Info(ctx, "serving static content", slog.String("addr", upstream.String()))

	l, err := net.Listen("tcp", c.Listen)
	if err != nil {
		return err
	}
	defer l.Close()
	publicURL, err := publicURL(c.Listen, l.Addr())
	if err != nil {
		return err
	}
	logger.Info(ctx, "listening for HTTP requests", slog.String("addr", publicURL))

	httpSrv := &http.Server{
		Handler: &proxy.Handler{
			Upstream: upstream.URL(),
			HMRPath:  hmr.Path,
			HMR:      reg,
		},
	}
	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(l); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup

	prober := &ready.Prober{
		URL:       upstream.URL().String() + c.ProbePath,
		PublicURL: publicURL,
		Interval:  c.ProbeInterval,
	}
	if c.Open {
		prober.Open = open
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		prober.Run(runCtx)
	}()

	if c.WatchPublic {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bundle.WatchPublic(runCtx, c.Publicdir, c.Servedir, c.Minify, hook); err != nil {
				logger.Error(ctx, "failed to watch public files", slog.Any("err", err))
			}
		}()
	}

	if serveReadyHook != nil {
		serveReadyHook()
	}

	select {
	case <-ctx.Done():
		logger.Info(ctx, "gracefully shutting down")
	case err := <-errCh:
		return err
	}

	// Event streams never end on their own, so release them before Shutdown
	// waits for connections to become idle.
	reg.Close()
	cancel()
	wg.Wait()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	return httpSrv.Shutdown(shutdownCtx)
}

// publicURL returns the URL to open in the browser. It keeps the host from
// listen (so "localhost" stays "localhost") and takes the port from the bound
// address.
func publicURL(listen string, bound net.Addr) (string, error) {
	host, _, err := net.SplitHostPort(listen)
	if err != nil {
		return "", err
	}
	_, port, err := net.SplitHostPort(bound.String())
	if err != nil {
		return "", err
	}
	if host == "" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port), nil
}
