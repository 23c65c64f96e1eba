// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package hmr implements the hot reload push channel.

Browser tabs subscribe by opening an event stream on [Path]. The [Script]
injected into the bundle does exactly that and reloads the page on any
message. When the bundler finishes a rebuild, the [Broadcaster] sends a
single "update" event to every subscribed tab and forgets about them: each
tab subscribes again after reloading.
*/
package hmr

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"go.astrophena.name/base/logger"

	"github.com/google/uuid"
)

// Path is the reserved path of the event stream.
const Path = "/hmr"

// Script is prepended to the bundle when hot reload is enabled.
const Script = `(() => new EventSource("/hmr").onmessage = () => location.reload())();`

// ErrNotStreamable is returned by [Registry.Register] when the response
// writer can't be flushed.
var ErrNotStreamable = errors.New("response writer does not support flushing")

var updateEvent = []byte("data: update\n\n")

// Listener is a subscribed event stream.
type Listener struct {
	// ID identifies the listener in logs.
	ID string

	w      http.ResponseWriter
	rc     *http.ResponseController
	notify chan struct{}
}

// Notified returns a channel that is closed when the listener is picked by
// a broadcast.
func (l *Listener) Notified() <-chan struct{} { return l.notify }

// send writes the update event. Errors are swallowed: a dead tab reconnects
// after it reloads.
func (l *Listener) send() error {
	if _, err := l.w.Write(updateEvent); err != nil {
		return err
	}
	return l.rc.Flush()
}

// Registry tracks the currently subscribed listeners.
//
// The zero value is ready to use. A Registry must not be copied after first
// use.
type Registry struct {
	mu        sync.Mutex
	listeners []*Listener
	closeOnce sync.Once
	closed    chan struct{}
}

func (r *Registry) done() chan struct{} {
	r.closeOnce.Do(func() {
		if r.closed == nil {
			r.closed = make(chan struct{})
		}
	})
	return r.closed
}

// Register writes the event stream handshake to w and appends a new listener.
// No payload is sent at registration time.
func (r *Registry) Register(w http.ResponseWriter) (*Listener, error) {
	l := &Listener{
		ID:     uuid.NewString(),
		w:      w,
		rc:     http.NewResponseController(w),
		notify: make(chan struct{}),
	}

	// Register before the handshake reaches the client, so a client that saw
	// the headers is guaranteed to get the next broadcast.
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := l.rc.Flush(); err != nil {
		r.Remove(l)
		return nil, ErrNotStreamable
	}
	return l, nil
}

// BroadcastAndClear notifies every registered listener, in registration
// order, and empties the registry. It returns the number of notified
// listeners. With an empty registry it does nothing.
func (r *Registry) BroadcastAndClear() int {
	r.mu.Lock()
	picked := r.listeners
	r.listeners = nil
	r.mu.Unlock()

	for _, l := range picked {
		close(l.notify)
	}
	return len(picked)
}

// Remove drops l from the registry if it is still there. It reports whether
// l was found.
func (r *Registry) Remove(l *Listener) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, ll := range r.listeners {
		if ll == l {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// Close releases all open event streams, including the ones that were
// already notified. Close is used on shutdown so that the HTTP server
// doesn't wait for them.
func (r *Registry) Close() {
	d := r.done()
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-d:
	default:
		close(d)
	}
	r.listeners = nil
}

// ServeHTTP registers the request as a listener and keeps the stream open
// until the client goes away or the registry is closed. The first broadcast
// after registration is written to the stream as a single update event.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	l, err := r.Register(w)
	if err != nil {
		logger.Error(ctx, "failed to register hot reload listener", slog.Any("err", err))
		return
	}

	select {
	case <-l.Notified():
		if err := l.send(); err != nil {
			logger.Info(ctx, "dropped hot reload listener", slog.String("id", l.ID), slog.Any("err", err))
		}
	case <-ctx.Done():
		r.Remove(l)
		return
	case <-r.done():
		return
	}

	// Keep the stream open; the tab reconnects when it reloads.
	select {
	case <-ctx.Done():
	case <-r.done():
	}
}

// Broadcaster pushes an update to every registered listener when the bundler
// finishes a rebuild.
type Broadcaster struct {
	ctx context.Context
	reg *Registry
}

// NewBroadcaster returns a Broadcaster for reg. ctx is used for logging.
func NewBroadcaster(ctx context.Context, reg *Registry) *Broadcaster {
	return &Broadcaster{ctx: ctx, reg: reg}
}

// Rebuilt notifies and clears all listeners.
func (b *Broadcaster) Rebuilt() {
	n := b.reg.BroadcastAndClear()
	logger.Info(b.ctx, "sent reload signal", slog.Int("listeners", n))
}
