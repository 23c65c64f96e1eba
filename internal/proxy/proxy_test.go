// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package proxy

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"go.astrophena.name/base/testutil"
)

// upstream is a fake static server that records every request it gets.
type upstream struct {
	mu       sync.Mutex
	paths    []string
	bodies   []string
	rootCode int // status for "/", 200 if zero
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	u.mu.Lock()
	u.paths = append(u.paths, r.URL.RequestURI())
	u.bodies = append(u.bodies, string(b))
	rootCode := u.rootCode
	u.mu.Unlock()

	switch r.URL.Path {
	case "/":
		if rootCode == http.StatusNotFound {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, "<!doctype html><div id=root></div>")
	case "/app/bundle.js":
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Header().Set("X-Upstream", "yes")
		w.Header().Add("X-Multi", "a")
		w.Header().Add("X-Multi", "b")
		io.WriteString(w, "console.log(1)")
	case "/teapot":
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, "short and stout")
	case "/echo":
		w.WriteHeader(http.StatusCreated)
		w.Write(b)
	case "/redirect":
		w.Header().Set("Location", "/elsewhere")
		w.WriteHeader(http.StatusFound)
		io.WriteString(w, "moved")
	default:
		http.NotFound(w, r)
	}
}

func (u *upstream) requests() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.paths...)
}

func newProxy(t *testing.T, up *upstream, hmr http.Handler) *httptest.Server {
	t.Helper()
	upSrv := httptest.NewServer(up)
	t.Cleanup(upSrv.Close)
	u, err := url.Parse(upSrv.URL)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(&Handler{
		Upstream: u,
		HMRPath:  "/hmr",
		HMR:      hmr,
	})
	t.Cleanup(srv.Close)
	return srv
}

// noRedirects returns a client that doesn't follow redirects, so that the
// status of the proxy itself is observed.
func noRedirects(srv *httptest.Server) *http.Client {
	c := *srv.Client()
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return &c
}

func TestForward(t *testing.T) {
	cases := map[string]struct {
		method       string
		path         string
		body         string
		rootCode     int
		wantStatus   int
		wantBody     string
		wantUpstream []string
	}{
		"existing asset": {
			path:         "/app/bundle.js",
			wantStatus:   http.StatusOK,
			wantBody:     "console.log(1)",
			wantUpstream: []string{"/app/bundle.js"},
		},
		"query is kept": {
			path:         "/app/bundle.js?v=2",
			wantStatus:   http.StatusOK,
			wantBody:     "console.log(1)",
			wantUpstream: []string{"/app/bundle.js?v=2"},
		},
		"deep link falls back to root": {
			path:         "/missing-page",
			wantStatus:   http.StatusOK,
			wantBody:     "<!doctype html><div id=root></div>",
			wantUpstream: []string{"/missing-page", "/"},
		},
		"root not found": {
			path:         "/",
			rootCode:     http.StatusNotFound,
			wantStatus:   http.StatusNotFound,
			wantUpstream: []string{"/"},
		},
		"fallback not found": {
			path:         "/missing-page",
			rootCode:     http.StatusNotFound,
			wantStatus:   http.StatusNotFound,
			wantUpstream: []string{"/missing-page", "/"},
		},
		"other status passes through": {
			path:         "/teapot",
			wantStatus:   http.StatusTeapot,
			wantBody:     "short and stout",
			wantUpstream: []string{"/teapot"},
		},
		"redirect is not followed": {
			path:         "/redirect",
			wantStatus:   http.StatusFound,
			wantBody:     "moved",
			wantUpstream: []string{"/redirect"},
		},
		"body is forwarded": {
			method:       http.MethodPost,
			path:         "/echo",
			body:         "hello",
			wantStatus:   http.StatusCreated,
			wantBody:     "hello",
			wantUpstream: []string{"/echo"},
		},
		"body is replayed on fallback": {
			method:       http.MethodPost,
			path:         "/missing-form",
			body:         "name=value",
			wantStatus:   http.StatusOK,
			wantBody:     "<!doctype html><div id=root></div>",
			wantUpstream: []string{"/missing-form", "/"},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			up := &upstream{rootCode: tc.rootCode}
			srv := newProxy(t, up, nil)

			method := tc.method
			if method == "" {
				method = http.MethodGet
			}
			req, err := http.NewRequest(method, srv.URL+tc.path, strings.NewReader(tc.body))
			if err != nil {
				t.Fatal(err)
			}
			res, err := noRedirects(srv).Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer res.Body.Close()
			b, err := io.ReadAll(res.Body)
			if err != nil {
				t.Fatal(err)
			}

			testutil.AssertEqual(t, res.StatusCode, tc.wantStatus)
			testutil.AssertEqual(t, string(b), tc.wantBody)
			testutil.AssertEqual(t, up.requests(), tc.wantUpstream)

			if tc.body != "" {
				for i, got := range up.bodies {
					if got != tc.body {
						t.Fatalf("upstream request %d: want body %q, got %q", i, tc.body, got)
					}
				}
			}
		})
	}
}

func TestForwardHeaders(t *testing.T) {
	up := &upstream{}
	srv := newProxy(t, up, nil)

	res, err := srv.Client().Get(srv.URL + "/app/bundle.js")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	testutil.AssertEqual(t, res.Header.Get("Content-Type"), "text/javascript; charset=utf-8")
	testutil.AssertEqual(t, res.Header.Get("X-Upstream"), "yes")
	testutil.AssertEqual(t, res.Header.Values("X-Multi"), []string{"a", "b"})
}

func TestHMRDispatch(t *testing.T) {
	up := &upstream{}
	var hits atomic.Int32
	hmr := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	srv := newProxy(t, up, hmr)

	res, err := srv.Client().Get(srv.URL + "/hmr")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()

	testutil.AssertEqual(t, hits.Load(), int32(1))
	testutil.AssertEqual(t, len(up.requests()), 0)

	// Only the exact path is reserved.
	res, err = srv.Client().Get(srv.URL + "/hmr/other")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	testutil.AssertEqual(t, hits.Load(), int32(1))
	testutil.AssertEqual(t, up.requests(), []string{"/hmr/other", "/"})
}

func TestBadRequest(t *testing.T) {
	h := &Handler{Upstream: &url.URL{Scheme: "http", Host: "localhost:1"}}

	cases := map[string]*http.Request{
		"asterisk": httptest.NewRequest(http.MethodOptions, "*", nil),
		"no URL": func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.URL = nil
			return r
		}(),
	}

	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			testutil.AssertEqual(t, w.Code, http.StatusBadRequest)
			testutil.AssertEqual(t, w.Body.Len(), 0)
		})
	}
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestUpstreamUnreachable(t *testing.T) {
	h := &Handler{
		Upstream:  &url.URL{Scheme: "http", Host: "localhost:1"},
		Transport: failingTransport{},
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/anything", nil))
	testutil.AssertEqual(t, w.Code, http.StatusInternalServerError)
	testutil.AssertEqual(t, w.Body.Len(), 0)
}

func TestAttemptString(t *testing.T) {
	testutil.AssertEqual(t, direct.String(), "direct")
	testutil.AssertEqual(t, fallbackToRoot.String(), "fallback")
	testutil.AssertEqual(t, resolved.String(), "resolved")
}
