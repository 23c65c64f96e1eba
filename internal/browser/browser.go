// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package browser opens the app in the default browser.
package browser

import (
	"fmt"
	"net/url"

	"github.com/pkg/browser"
)

var openURL = browser.OpenURL // replaced in tests

// Open opens rawURL, which must be an absolute http or https URL, in the
// default browser.
func Open(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("refusing to open %q: not an http(s) URL", rawURL)
	}
	if err := openURL(u.String()); err != nil {
		return fmt.Errorf("opening %s in the browser: %w", u, err)
	}
	return nil
}
