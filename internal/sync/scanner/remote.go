package scanner

import (
	"fmt"
	"strings"

	"github.com/dl-alexandre/ghmirror/internal/sync/exclude"
)

func IndexRemote(entries []RemoteEntry, matcher *exclude.Matcher) (*RemoteIndex, error) {
	idx := &RemoteIndex{
		Files: make(PathIndex[RemoteEntry], len(entries)),
		Dirs:  NewDirectorySet(),
	}

	for _, entry := range entries {
		isDir := entry.IsDir || strings.HasSuffix(entry.Path, "/")
		rel, err := NormalizePath(entry.Path)
		if err != nil {
			return nil, err
		}
		if rel == "" {
			continue
		}
		if matcher.IsExcluded(rel, isDir) {
			continue
		}
		if isDir {
			idx.Dirs.Add(rel)
			idx.Dirs.AddParents(rel)
			continue
		}
		entry.Path = rel
		entry.IsDir = false
		idx.Files[rel] = entry
		idx.Dirs.AddParents(rel)
	}

	for rel := range idx.Files {
		if idx.Dirs.Contains(rel) {
			return nil, fmt.Errorf("%w: %q is both a file and a directory", ErrInvalidPath, rel)
		}
	}

	return idx, nil
}
