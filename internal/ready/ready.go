// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package ready waits for the bundler to serve its output and then opens the
// browser.
package ready

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.astrophena.name/base/logger"
)

// DefaultInterval is the delay between probes.
const DefaultInterval = 10 * time.Millisecond

// Prober polls a built asset until it is served successfully.
type Prober struct {
	// URL is the asset that must be served before the app is considered ready.
	URL string
	// PublicURL is opened in the browser once the app is ready.
	PublicURL string
	// Open opens the browser. If nil, nothing is opened.
	Open func(url string) error
	// Interval is the delay between probes. If zero, DefaultInterval is used.
	Interval time.Duration
	// Client performs probes. If nil, http.DefaultClient is used.
	Client *http.Client

	mu     sync.Mutex
	opened bool
}

// Run polls URL until it responds with a 2xx status, then opens PublicURL in
// the browser, unless it was already opened by a previous call. Failed probes
// are retried after Interval with no limit. Run returns nil when the app is
// ready and the context error when ctx is done first.
func (p *Prober) Run(ctx context.Context) error {
	interval := p.Interval
	if interval == 0 {
		interval = DefaultInterval
	}

	start := time.Now()
	t := time.NewTimer(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}

		if p.probe(ctx) {
			logger.Info(ctx, "build server ready", slog.Duration("elapsed", time.Since(start)))
			p.openOnce(ctx)
			return nil
		}
		t.Reset(interval)
	}
}

func (p *Prober) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return false
	}
	c := p.Client
	if c == nil {
		c = http.DefaultClient
	}
	res, err := c.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)
	return res.StatusCode >= 200 && res.StatusCode < 300
}

func (p *Prober) openOnce(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opened || p.Open == nil {
		return
	}
	p.opened = true
	if err := p.Open(p.PublicURL); err != nil {
		logger.Error(ctx, "failed to open browser", slog.String("url", p.PublicURL), slog.Any("err", err))
		return
	}
	logger.Info(ctx, "opened browser", slog.String("url", p.PublicURL))
}

// Opened reports whether the browser was opened.
func (p *Prober) Opened() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}
