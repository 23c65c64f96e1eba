// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bundle

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.astrophena.name/base/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	mjson "github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
	"golang.org/x/sync/errgroup"
)

type min struct {
	m *minify.M
}

func newMin() *min {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags:    true,
		KeepDefaultAttrVals: true,
		KeepEndTags:         true,
	})
	m.AddFunc("application/javascript", js.Minify)
	m.AddFunc("application/json", mjson.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)

	return &min{m: m}
}

var mediaTypes = map[string]string{
	".css":         "text/css",
	".html":        "text/html",
	".js":          "application/javascript",
	".json":        "application/json",
	".webmanifest": "application/json",
	".svg":         "image/svg+xml",
}

func (m *min) Bytes(path string, b []byte) ([]byte, error) {
	mediaType, ok := mediaTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return b, nil
	}
	return m.m.Bytes(mediaType, b)
}

// CopyPublic copies all files from src to dst, creating dst if it doesn't
// exist. Files are copied concurrently. If compact is true, HTML, CSS,
// JavaScript, JSON and SVG files are minified on the way.
func CopyPublic(ctx context.Context, src, dst string, compact bool) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	var m *min
	if compact {
		m = newMin()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || isIgnorable(path) {
			return nil
		}
		if err := gctx.Err(); err != nil {
			return err
		}
		g.Go(func() error { return copyFile(m, src, dst, path) })
		return nil
	})
	if werr := g.Wait(); err == nil {
		err = werr
	}
	if err != nil {
		return err
	}

	logger.Info(ctx, "copied public files", slog.String("from", src), slog.String("to", dst))
	return nil
}

func copyFile(m *min, src, dst, path string) error {
	rel, err := filepath.Rel(src, path)
	if err != nil {
		return err
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if m != nil {
		buf, err = m.Bytes(path, buf)
		if err != nil {
			return err
		}
	}

	to := filepath.Join(dst, rel)
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	return os.WriteFile(to, buf, 0o644)
}

func isIgnorable(path string) bool {
	// Ignore files that look like Vim backups.
	if strings.HasSuffix(path, "~") {
		return true
	}

	// Ignore .gitignore and .gitkeep files.
	if strings.HasPrefix(filepath.Base(path), ".git") {
		return true
	}

	return false
}

var watchReadyHook func() // used in tests, called when WatchPublic started watching

// debouncer delays execution of a function until a specified duration has
// passed without any new events.
type debouncer struct {
	d  time.Duration
	mu sync.Mutex
	f  func()
	t  *time.Timer
}

// newDebouncer creates a new debouncer.
func newDebouncer(d time.Duration, f func()) *debouncer {
	return &debouncer{
		d: d,
		f: f,
	}
}

// Do schedules a function to be executed.
func (d *debouncer) Do() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.t != nil {
		d.t.Stop()
	}

	d.t = time.AfterFunc(d.d, d.f)
}

// Stop cancels a scheduled execution, if any.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.t != nil {
		d.t.Stop()
	}
}

// WatchPublic watches src for changes, copies it to dst again after each
// change and notifies hook. It blocks until ctx is done.
func WatchPublic(ctx context.Context, src, dst string, compact bool, hook RebuildHook) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watchRecursive(watcher, src); err != nil {
		return err
	}

	recopy := func() {
		if err := CopyPublic(ctx, src, dst, compact); err != nil {
			logger.Error(ctx, "failed to copy public files", slog.Any("err", err))
			return
		}
		if hook != nil {
			hook.Rebuilt()
		}
	}
	// It's better to have a bit of delay, so that we don't copy on each
	// keystroke.
	debouncer := newDebouncer(250*time.Millisecond, recopy)
	defer debouncer.Stop()

	logger.Info(ctx, "started watching public files", slog.String("dir", src))
	if watchReadyHook != nil {
		watchReadyHook()
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !shouldRecopy(event.Name, event.Op) {
				continue
			}
			// New directories must be watched too.
			if event.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := watchRecursive(watcher, event.Name); err != nil {
						logger.Error(ctx, "failed to watch directory", slog.String("dir", event.Name), slog.Any("err", err))
					}
				}
			}
			logger.Info(ctx, "detected change, scheduling copy",
				slog.String("name", event.Name),
				slog.Any("op", event.Op),
			)
			debouncer.Do()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error(ctx, "watcher error", slog.Any("err", err))
		case <-ctx.Done():
			return nil
		}
	}
}

func watchRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.Add(path)
	})
}

// Copied from
// https://github.com/brandur/modulir/blob/1ff912fdc45a79cb4d8d9f199d213ae9c3598cbd/watch.go#L201.
func shouldRecopy(path string, op fsnotify.Op) bool {
	base := filepath.Base(path)

	// Mac OS' worst mistake.
	if base == ".DS_Store" {
		return false
	}

	// Vim creates this temporary file to see whether it can write into a target
	// directory. It screws up our watching algorithm, so ignore it.
	if base == "4913" {
		return false
	}

	// A special case, but ignore creates on files that look like Vim backups.
	if strings.HasSuffix(base, "~") {
		return false
	}

	// Chmod doesn't change the contents, and rename is followed by a create.
	return op&(fsnotify.Create|fsnotify.Remove|fsnotify.Write) != 0
}
