package testing

import (
	"archive/zip"
	"bytes"
	"context"
	"sort"
	"strings"
	"testing"
	"time"
)

// TestContext creates a standard test context that is cancelled when the test ends
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// BuildZipball creates an archive laid out like a GitHub zipball: every entry lives
// under a single top directory, with explicit directory entries.
func BuildZipball(t *testing.T, top string, files map[string]string, dirs ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	dirSet := map[string]struct{}{}
	for p := range files {
		for dir := parentDir(p); dir != ""; dir = parentDir(dir) {
			dirSet[dir] = struct{}{}
		}
	}
	for _, d := range dirs {
		dirSet[strings.Trim(d, "/")] = struct{}{}
	}

	names := []string{top + "/"}
	for d := range dirSet {
		names = append(names, top+"/"+d+"/")
	}
	for p := range files {
		names = append(names, top+"/"+p)
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.HasSuffix(name, "/") {
			if _, err := zw.Create(name); err != nil {
				t.Fatalf("zip dir %s: %v", name, err)
			}
			continue
		}
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip file %s: %v", name, err)
		}
		if _, err := w.Write([]byte(files[strings.TrimPrefix(name, top+"/")])); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func parentDir(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return ""
	}
	return p[:idx]
}
