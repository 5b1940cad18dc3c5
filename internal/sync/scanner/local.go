package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/dl-alexandre/ghmirror/internal/sync/exclude"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

type LocalReadError struct {
	Path string
	Err  error
}

func (e *LocalReadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to read local tree: %v", e.Err)
	}
	return fmt.Sprintf("failed to read local path %q: %v", e.Path, e.Err)
}

func (e *LocalReadError) Unwrap() error {
	return e.Err
}

// ScanLocal reads every regular file under the filesystem root into memory.
// Symlinks are skipped. Any failure aborts the scan.
func ScanLocal(ctx context.Context, fs billy.Filesystem, matcher *exclude.Matcher) (*LocalIndex, error) {
	idx := NewLocalIndex()

	err := util.Walk(fs, "", func(current string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return &LocalReadError{Path: current, Err: walkErr}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if current == "" {
			return nil
		}

		rel := path.Clean(filepath.ToSlash(current))

		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}

		if matcher.IsExcluded(rel, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			idx.Dirs.Add(rel)
			return nil
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		data, err := util.ReadFile(fs, current)
		if err != nil {
			return &LocalReadError{Path: rel, Err: err}
		}
		idx.Files[rel] = LocalEntry{
			Path:    rel,
			Content: data,
			Size:    int64(len(data)),
		}
		return nil
	})
	if err != nil {
		var readErr *LocalReadError
		if errors.As(err, &readErr) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &LocalReadError{Err: err}
	}

	return idx, nil
}
