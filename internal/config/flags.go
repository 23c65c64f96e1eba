// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package config

import (
	"flag"

	"go.astrophena.name/devserve/internal/env"
)

// Flags are command-line flags that override the config file.
type Flags struct {
	fs   *flag.FlagSet
	mode env.Mode
	path string
	v    Config
}

// RegisterFlags registers flags for mode in fs. Call [Flags.Load] after fs is
// parsed.
func RegisterFlags(fs *flag.FlagSet, mode env.Mode) *Flags {
	f := &Flags{fs: fs, mode: mode}
	d := Default(mode)

	fs.StringVar(&f.path, "config", DefaultFile, "Read settings from `file`. It's fine if the default one doesn't exist.")
	fs.StringVar(&f.v.Entry, "entry", d.Entry, "Entry point of the app.")
	fs.StringVar(&f.v.Distpath, "distpath", d.Distpath, "Output `directory`.")
	fs.StringVar(&f.v.Publicpath, "publicpath", d.Publicpath, "Copy files from `directory` to the output directory.")
	fs.StringVar(&f.v.EnvPrefix, "env-prefix", d.EnvPrefix, "Expose environment variables starting with `prefix` to the app.")
	fs.BoolVar(&f.v.Minify, "minify", d.Minify, "Minify public files.")
	fs.BoolVar(&f.v.Sourcemap, "sourcemap", d.Sourcemap, "Emit a source map.")
	if mode == env.Serve {
		fs.StringVar(&f.v.Listen, "listen", d.Listen, "Listen on `host:port`.")
		fs.BoolVar(&f.v.HotReload, "hot-reload", d.HotReload, "Reload open tabs after each rebuild.")
		fs.BoolVar(&f.v.Open, "open", d.Open, "Open the app in the browser once it's ready.")
		fs.BoolVar(&f.v.WatchPublic, "watch-public", d.WatchPublic, "Copy public files again when they change.")
		fs.DurationVar(&f.v.ProbeInterval, "probe-interval", d.ProbeInterval, "Wait `duration` between readiness probes.")
	}
	return f
}

// Load loads the config file and applies the flags that were set explicitly.
func (f *Flags) Load() (*Config, error) {
	set := make(map[string]bool)
	f.fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	c, err := Load(f.path, f.mode, !set["config"])
	if err != nil {
		return nil, err
	}

	for name := range set {
		switch name {
		case "entry":
			c.Entry = f.v.Entry
		case "distpath":
			c.Distpath = f.v.Distpath
		case "publicpath":
			c.Publicpath = f.v.Publicpath
		case "env-prefix":
			c.EnvPrefix = f.v.EnvPrefix
		case "minify":
			c.Minify = f.v.Minify
		case "sourcemap":
			c.Sourcemap = f.v.Sourcemap
		case "listen":
			c.Listen = f.v.Listen
		case "hot-reload":
			c.HotReload = f.v.HotReload
		case "open":
			c.Open = f.v.Open
		case "watch-public":
			c.WatchPublic = f.v.WatchPublic
		case "probe-interval":
			c.ProbeInterval = f.v.ProbeInterval
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
