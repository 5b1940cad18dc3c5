package scanner

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

var ErrInvalidPath = errors.New("invalid snapshot path")

type RemoteEntry struct {
	Path    string
	Content []byte
	IsDir   bool
}

type LocalEntry struct {
	Path    string
	Content []byte
	Size    int64
}

// PathIndex is keyed by cleaned, slash-separated paths relative to the tree root.
type PathIndex[T any] map[string]T

func (idx PathIndex[T]) Paths() []string {
	paths := make([]string, 0, len(idx))
	for p := range idx {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

type RemoteIndex struct {
	Files PathIndex[RemoteEntry]
	Dirs  *DirectorySet
}

type LocalIndex struct {
	Files PathIndex[LocalEntry]
	Dirs  *DirectorySet
}

func NewLocalIndex() *LocalIndex {
	return &LocalIndex{Files: PathIndex[LocalEntry]{}, Dirs: NewDirectorySet()}
}

// DirectorySet holds directory paths relative to the tree root. The root itself is never a member.
type DirectorySet struct {
	set mapset.Set[string]
}

func NewDirectorySet(dirs ...string) *DirectorySet {
	d := &DirectorySet{set: mapset.NewThreadUnsafeSet[string]()}
	for _, dir := range dirs {
		d.Add(dir)
	}
	return d
}

func (d *DirectorySet) Add(dir string) {
	if dir == "" || dir == "." {
		return
	}
	d.set.Add(dir)
}

// AddParents records every ancestor directory of p.
func (d *DirectorySet) AddParents(p string) {
	for dir := path.Dir(p); dir != "." && dir != "/" && dir != ""; dir = path.Dir(dir) {
		d.set.Add(dir)
	}
}

func (d *DirectorySet) Contains(dir string) bool {
	if d == nil {
		return false
	}
	return d.set.Contains(dir)
}

func (d *DirectorySet) Len() int {
	if d == nil {
		return 0
	}
	return d.set.Cardinality()
}

func (d *DirectorySet) Paths() []string {
	if d == nil {
		return nil
	}
	paths := d.set.ToSlice()
	sort.Strings(paths)
	return paths
}

// DeepestFirst orders directories so that every child precedes its parent.
func (d *DirectorySet) DeepestFirst() []string {
	paths := d.Paths()
	sort.SliceStable(paths, func(i, j int) bool {
		di, dj := Depth(paths[i]), Depth(paths[j])
		if di != dj {
			return di > dj
		}
		return paths[i] > paths[j]
	})
	return paths
}

func Depth(p string) int {
	if p == "" {
		return 0
	}
	return strings.Count(p, "/") + 1
}

// NormalizePath cleans a snapshot path into index form. An empty result denotes the root.
func NormalizePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidPath, p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q escapes the tree root", ErrInvalidPath, p)
	}
	return cleaned, nil
}
