// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bundle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileSize is the size of a file in the output directory.
type FileSize struct {
	Path string
	Size int64
}

// Sizes lists files directly inside dir with their sizes, in directory order.
func Sizes(dir string) ([]FileSize, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var sizes []FileSize
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, FileSize{Path: filepath.Join(dir, e.Name()), Size: fi.Size()})
	}
	return sizes, nil
}

// formatSize formats n as "<kilobytes>.<remaining bytes> KB". The remainder
// is not zero-padded, so 1005 bytes is "1.5 KB".
func formatSize(n int64) string {
	return fmt.Sprintf("%d.%d KB", n/1000, n%1000)
}

// ReportSizes writes a table of file sizes in dir to w, one file name per
// line.
func ReportSizes(w io.Writer, dir string) error {
	sizes, err := Sizes(dir)
	if err != nil {
		return err
	}

	// The size column is at least 12 characters wide, or as wide as the
	// longest byte count plus room for the separator, " KB" and 4 spaces.
	width := 12
	for _, s := range sizes {
		if l := len(strconv.FormatInt(s.Size, 10)) + 8; l > width {
			width = l
		}
	}

	var sb strings.Builder
	sb.WriteString("\nFile sizes after bundle finished:\n\n")
	for _, s := range sizes {
		fmt.Fprintf(&sb, "%-*s%s\n", width, formatSize(s.Size), filepath.Base(s.Path))
	}
	sb.WriteString("\n")

	_, err = io.WriteString(w, sb.String())
	return err
}
