// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Build builds the app for production.

# Usage

	$ go tool build [flags]

Build copies files from the public directory to the output directory
(default "dist"), bundles src/index.tsx into dist/app/bundle.js and prints
the sizes of the produced files.

Environment variables starting with REACT_APP (see -env-prefix) are exposed
to the app as process.env, together with NODE_ENV, which defaults to
"production".

Settings are read from devserve.yaml in the current directory, if it exists.
Flags set on the command line take precedence.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/base/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
