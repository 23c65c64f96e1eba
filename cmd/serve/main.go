// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.astrophena.name/base/cli"
	"go.astrophena.name/base/logger"
	"go.astrophena.name/devserve/internal/browser"
	"go.astrophena.name/devserve/internal/bundle"
	"go.astrophena.name/devserve/internal/config"
	"go.astrophena.name/devserve/internal/devserver"
	"go.astrophena.name/devserve/internal/env"
)

func main() { cli.Main(new(app)) }

type app struct {
	flags *config.Flags
}

func (a *app) Flags(fs *flag.FlagSet) {
	a.flags = config.RegisterFlags(fs, env.Serve)
}

func (a *app) Run(ctx context.Context) error {
	e := cli.GetEnv(ctx)
	if len(e.Args) > 0 {
		return fmt.Errorf("%w: no arguments expected", cli.ErrInvalidArgs)
	}

	c, err := a.flags.Load()
	if err != nil {
		return err
	}
	if err := c.EnsureRoot(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	nodeEnv, stage := env.Resolve(env.Serve, e.Getenv)
	logger.Info(ctx, "resolved environment",
		slog.String("node_env", string(nodeEnv)),
		slog.String("deploy_stage", string(stage)),
	)
	processEnv, err := env.Process(c.EnvPrefix, nodeEnv, os.Environ())
	if err != nil {
		return err
	}

	b := bundle.New(bundle.Options{
		Entry:      c.Entry,
		Outdir:     c.Outdir(),
		Servedir:   c.Distpath,
		HotReload:  c.HotReload,
		ProcessEnv: processEnv,
		Sourcemap:  c.Sourcemap,
	})
	return devserver.Serve(ctx, &devserver.Config{
		Listen:        c.Listen,
		Servedir:      c.Distpath,
		Publicdir:     c.Publicpath,
		Minify:        c.Minify,
		HotReload:     c.HotReload,
		Open:          c.Open,
		WatchPublic:   c.WatchPublic,
		ProbeInterval: c.ProbeInterval,
	}, b, browser.Open)
}
