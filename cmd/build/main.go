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

	"go.astrophena.name/base/cli"
	"go.astrophena.name/base/logger"
	"go.astrophena.name/devserve/internal/bundle"
	"go.astrophena.name/devserve/internal/config"
	"go.astrophena.name/devserve/internal/env"
)

func main() { cli.Main(new(app)) }

type app struct {
	flags *config.Flags
}

func (a *app) Flags(fs *flag.FlagSet) {
	a.flags = config.RegisterFlags(fs, env.Build)
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

	nodeEnv, stage := env.Resolve(env.Build, e.Getenv)
	logger.Info(ctx, "resolved environment",
		slog.String("node_env", string(nodeEnv)),
		slog.String("deploy_stage", string(stage)),
	)
	processEnv, err := env.Process(c.EnvPrefix, nodeEnv, os.Environ())
	if err != nil {
		return err
	}

	if err := bundle.CopyPublic(ctx, c.Publicpath, c.Distpath, c.Minify); err != nil {
		return err
	}

	b := bundle.New(bundle.Options{
		Entry:      c.Entry,
		Outdir:     c.Outdir(),
		ProcessEnv: processEnv,
		Sourcemap:  c.Sourcemap,
	})
	if err := b.Build(); err != nil {
		return err
	}
	logger.Info(ctx, "built the app", slog.String("dir", c.Outdir()))

	return bundle.ReportSizes(os.Stdout, c.Outdir())
}
