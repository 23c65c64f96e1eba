// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package bundle builds the app with esbuild.

# Directory Structure

A project has the following directories:

	src        Sources of the app. The entry point is src/index.tsx by
	           default.
	public     Files in this directory (index.html, manifest.json, icons)
	           are copied verbatim to the output directory.
	dist       This is where the production build is placed by default. The
	           bundle itself goes to dist/app/bundle.js.

In development mode the output goes to a transient directory
(dev-server-meta by default) that is removed when the dev server exits.
*/
package bundle

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.astrophena.name/devserve/internal/hmr"

	"github.com/evanw/esbuild/pkg/api"
)

// BundleName is the file name of the bundle inside the output directory.
const BundleName = "bundle.js"

// ErrNotWatching is returned by [Bundler.Serve] when [Bundler.Watch] wasn't
// called.
var ErrNotWatching = errors.New("bundler is not watching")

// RebuildHook is notified after each successful rebuild.
type RebuildHook interface {
	Rebuilt()
}

// Options configure a [Bundler].
type Options struct {
	// Entry is the entry point of the app. If empty, src/index.tsx is used.
	Entry string
	// Outdir is the directory where the bundle is written.
	Outdir string
	// Servedir is the directory served by the static server in watch mode.
	Servedir string
	// HotReload prepends the hot reload client script to the bundle.
	HotReload bool
	// ProcessEnv is a serialized JSON object that replaces the global
	// "process" object in the app.
	ProcessEnv string
	// Sourcemap emits a linked source map next to the bundle.
	Sourcemap bool
}

func (o *Options) setDefaults() {
	if o.Entry == "" {
		o.Entry = filepath.Join("src", "index.tsx")
	}
	if o.Outdir == "" {
		o.Outdir = filepath.Join("dist", "app")
	}
	if o.ProcessEnv == "" {
		o.ProcessEnv = `{"env":{}}`
	}
}

// Addr is the address of the static server.
type Addr struct {
	Host string
	Port int
}

func (a Addr) String() string { return net.JoinHostPort(a.Host, strconv.Itoa(a.Port)) }

// URL returns the base URL of the static server.
func (a Addr) URL() *url.URL { return &url.URL{Scheme: "http", Host: a.String()} }

// Bundler builds the app once or continuously.
type Bundler struct {
	opts Options

	mu      sync.Mutex
	ctx     api.BuildContext
	stopped bool
	builds  atomic.Int64
}

// New returns a new Bundler.
func New(opts Options) *Bundler {
	opts.setDefaults()
	return &Bundler{opts: opts}
}

// Options returns the options of b with defaults applied.
func (b *Bundler) Options() Options { return b.opts }

func (b *Bundler) buildOptions() api.BuildOptions {
	o := api.BuildOptions{
		EntryPoints:       []string{b.opts.Entry},
		Outfile:           filepath.Join(b.opts.Outdir, BundleName),
		Bundle:            true,
		Write:             true,
		Target:            api.ES2015,
		Format:            api.FormatCommonJS,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		Define:            map[string]string{"process": b.opts.ProcessEnv},
		LogLevel:          api.LogLevelWarning,
	}
	if b.opts.Sourcemap {
		o.Sourcemap = api.SourceMapLinked
	}
	return o
}

// Build performs a one-shot production build.
func (b *Bundler) Build() error {
	res := api.Build(b.buildOptions())
	return messagesError(res.Errors)
}

// Watch starts building the app in watch mode. hook is notified after every
// successful rebuild; the initial build doesn't count. hook may be nil.
func (b *Bundler) Watch(hook RebuildHook) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx != nil {
		return errors.New("bundler is already watching")
	}

	o := b.buildOptions()
	if b.opts.HotReload {
		o.Banner = map[string]string{"js": hmr.Script}
	}
	o.Plugins = []api.Plugin{{
		Name: "rebuild-hook",
		Setup: func(pb api.PluginBuild) {
			pb.OnEnd(func(res *api.BuildResult) (api.OnEndResult, error) {
				n := b.builds.Add(1)
				if n > 1 && len(res.Errors) == 0 && hook != nil {
					hook.Rebuilt()
				}
				return api.OnEndResult{}, nil
			})
		},
	}}

	ctx, ctxErr := api.Context(o)
	if ctxErr != nil {
		return messagesError(ctxErr.Errors)
	}
	if err := ctx.Watch(api.WatchOptions{}); err != nil {
		ctx.Dispose()
		return err
	}
	b.ctx = ctx
	return nil
}

// Serve starts the static server over Servedir on the loopback interface and
// returns its address.
func (b *Bundler) Serve() (Addr, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil || b.stopped {
		return Addr{}, ErrNotWatching
	}
	res, err := b.ctx.Serve(api.ServeOptions{
		Host:     "127.0.0.1",
		Servedir: b.opts.Servedir,
	})
	if err != nil {
		return Addr{}, err
	}
	return Addr{Host: res.Host, Port: int(res.Port)}, nil
}

// Stop stops watching and serving. It is safe to call Stop more than once.
func (b *Bundler) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil || b.stopped {
		return
	}
	b.stopped = true
	b.ctx.Dispose()
}

func messagesError(msgs []api.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	formatted := api.FormatMessages(msgs, api.FormatMessagesOptions{Kind: api.ErrorMessage})
	return fmt.Errorf("build failed with %d error(s):\n%s", len(msgs), strings.Join(formatted, ""))
}
