// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Serve runs the app for local development.

# Usage

	$ go tool serve [flags]

Serve copies files from the public directory to the serve directory
(default "dev-server-meta"), builds src/index.tsx in watch mode into its app
subdirectory and serves the result on http://localhost:3000.

Requests for paths that don't exist are answered with the root document, so
client-side routing works for deep links. When hot reload is enabled, open
tabs reload after each successful rebuild. The app is opened in the browser
once the bundle is ready.

Environment variables starting with REACT_APP (see -env-prefix) are exposed
to the app as process.env, together with NODE_ENV, which defaults to
"development".

Settings are read from devserve.yaml in the current directory, if it exists.
Flags set on the command line take precedence.

The serve directory is removed on exit.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/base/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
