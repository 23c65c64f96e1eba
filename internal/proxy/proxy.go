// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package proxy implements the development reverse proxy that sits in front
// of the bundler's static server.
//
// Every request except the hot reload stream is forwarded to the upstream.
// When the upstream answers 404, the request is retried once at "/" so that
// client-side routed apps get their entry document for any deep link.
package proxy

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.astrophena.name/base/logger"
)

// Handler forwards requests to Upstream, sending requests for HMRPath to HMR
// instead.
type Handler struct {
	// Upstream is the base URL of the static server, e.g. http://127.0.0.1:8000.
	Upstream *url.URL
	// HMRPath is the reserved path handled by HMR.
	HMRPath string
	// HMR handles the hot reload stream. If nil, HMRPath is forwarded as well.
	HMR http.Handler
	// Transport performs upstream requests. If nil, http.DefaultTransport is
	// used. Redirects are never followed.
	Transport http.RoundTripper
}

// attempt is a state of the forwarding state machine.
type attempt int

const (
	direct         attempt = iota // original path
	fallbackToRoot                // retry at "/" after a 404
	resolved                      // response written
)

func (a attempt) String() string {
	switch a {
	case direct:
		return "direct"
	case fallbackToRoot:
		return "fallback"
	case resolved:
		return "resolved"
	}
	return "unknown"
}

// fallbackPath is where requests for missing paths are retried.
const fallbackPath = "/"

var errNoPath = errors.New("request has no path")

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target, err := targetPath(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if h.HMR != nil && h.HMRPath != "" && r.URL.Path == h.HMRPath {
		h.HMR.ServeHTTP(w, r)
		return
	}

	// The body is buffered so that the fallback attempt can replay it.
	body, err := readBody(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	state := direct
	for state != resolved {
		res, err := h.roundTrip(r, target, body)
		if err != nil {
			// No status from the upstream. This shouldn't happen while the
			// bundler is running.
			logger.Error(r.Context(), "upstream request failed",
				slog.String("path", target.RequestURI()),
				slog.String("attempt", state.String()),
				slog.Any("err", err),
			)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if res.StatusCode == http.StatusNotFound {
			io.Copy(io.Discard, res.Body)
			res.Body.Close()
			if state == direct && target.RequestURI() != fallbackPath {
				state, target = fallbackToRoot, &url.URL{Path: fallbackPath}
				continue
			}
			w.WriteHeader(http.StatusNotFound)
			return
		}

		copyResponse(w, res)
		res.Body.Close()
		state = resolved
	}
}

// targetPath returns the path and query the request should be forwarded to.
func targetPath(r *http.Request) (*url.URL, error) {
	if r.URL == nil || !strings.HasPrefix(r.URL.Path, "/") {
		return nil, errNoPath
	}
	return &url.URL{
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: r.URL.RawQuery,
	}, nil
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

func (h *Handler) roundTrip(r *http.Request, target *url.URL, body []byte) (*http.Response, error) {
	u := *target
	u.Scheme = h.Upstream.Scheme
	u.Host = h.Upstream.Host

	var rb io.Reader = http.NoBody
	if body != nil {
		rb = bytes.NewReader(body)
	}
	out, err := http.NewRequestWithContext(r.Context(), r.Method, u.String(), rb)
	if err != nil {
		return nil, err
	}
	out.Header = r.Header.Clone()
	out.Host = r.Host

	t := h.Transport
	if t == nil {
		t = http.DefaultTransport
	}
	return t.RoundTrip(out)
}

// copyResponse streams res to w, keeping status and headers. The stream is
// flushed after each write so that event streams of the upstream work
// through the proxy.
func copyResponse(w http.ResponseWriter, res *http.Response) {
	for k, vv := range res.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(res.StatusCode)

	rc := http.NewResponseController(w)
	buf := make([]byte, 32*1024)
	for {
		n, err := res.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			rc.Flush()
		}
		if err != nil {
			return
		}
	}
}
