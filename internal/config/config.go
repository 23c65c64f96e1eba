// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package config loads project settings shared by the build and serve
// programs.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.astrophena.name/devserve/internal/env"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the name of the optional config file in the project root.
// Files with the .toml extension are read as TOML, everything else as YAML.
const DefaultFile = "devserve.yaml"

// Config holds project settings.
type Config struct {
	// Entry is the entry point of the app.
	Entry string `yaml:"entry" toml:"entry"`
	// Distpath is where public files are copied and the app is built to.
	// The bundle goes to the app subdirectory.
	Distpath string `yaml:"distpath" toml:"distpath"`
	// Publicpath contains files copied to Distpath verbatim.
	Publicpath string `yaml:"publicpath" toml:"publicpath"`
	// EnvPrefix selects environment variables exposed to the app.
	EnvPrefix string `yaml:"env_prefix" toml:"env_prefix"`
	// Listen is the address of the dev server.
	Listen string `yaml:"listen" toml:"listen"`
	// HotReload reloads open tabs after each rebuild. Only used when serving.
	HotReload bool `yaml:"hot_reload" toml:"hot_reload"`
	// Open opens the app in the browser once it's ready.
	Open bool `yaml:"open" toml:"open"`
	// WatchPublic copies public files again when they change.
	WatchPublic bool `yaml:"watch_public" toml:"watch_public"`
	// Minify minifies public files when copying them.
	Minify bool `yaml:"minify" toml:"minify"`
	// Sourcemap emits a source map next to the bundle.
	Sourcemap bool `yaml:"sourcemap" toml:"sourcemap"`
	// ProbeInterval is the delay between readiness probes.
	ProbeInterval time.Duration `yaml:"probe_interval" toml:"probe_interval"`
}

// Default returns the default settings for mode.
func Default(mode env.Mode) *Config {
	c := &Config{
		Entry:         filepath.Join("src", "index.tsx"),
		Distpath:      "dist",
		Publicpath:    "public",
		EnvPrefix:     env.DefaultPrefix,
		Listen:        "localhost:3000",
		ProbeInterval: 10 * time.Millisecond,
	}
	if mode == env.Serve {
		c.Distpath = "dev-server-meta"
		c.HotReload = true
		c.Open = true
		c.Sourcemap = true
	}
	return c
}

// Load returns the default settings for mode overridden by the file at path.
// If optional is true, a missing file is not an error.
func Load(path string, mode env.Mode, optional bool) (*Config, error) {
	c := Default(mode)

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && optional {
		return c, nil
	}
	if err != nil {
		return nil, err
	}

	if err := decode(path, b, c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if mode == env.Build {
		c.HotReload = false
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func decode(path string, b []byte, c *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.NewDecoder(bytes.NewReader(b)).Decode(c)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("unknown field %s", undecoded[0])
		}
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks that c is usable.
func (c *Config) Validate() error {
	if c.Entry == "" {
		return errors.New("entry is empty")
	}
	if c.Distpath == "" {
		return errors.New("distpath is empty")
	}
	if c.Publicpath == "" {
		return errors.New("publicpath is empty")
	}
	if c.EnvPrefix == "" {
		return errors.New("env_prefix is empty")
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if c.ProbeInterval < 0 {
		return fmt.Errorf("negative probe_interval %v", c.ProbeInterval)
	}
	return nil
}

// EnsureRoot checks that the current working directory looks like a project
// root: the entry point and the public directory must exist.
func (c *Config) EnsureRoot() error {
	for _, path := range []string{c.Entry, c.Publicpath} {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s doesn't exist; are you at project root?", path)
		} else if err != nil {
			return err
		}
	}
	return nil
}

// Outdir returns the directory the bundle is written to.
func (c *Config) Outdir() string {
	return filepath.Join(c.Distpath, "app")
}
