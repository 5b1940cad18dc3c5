package exclude

import (
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Matcher hides paths from both sides of the mirror using gitignore syntax.
type Matcher struct {
	patterns []string
	ignore   *gitignore.GitIgnore
}

func New(patterns []string) *Matcher {
	var lines []string
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		lines = append(lines, p)
	}
	if len(lines) == 0 {
		return &Matcher{}
	}
	return &Matcher{
		patterns: lines,
		ignore:   gitignore.CompileIgnoreLines(lines...),
	}
}

func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}

func (m *Matcher) IsExcluded(relPath string, isDir bool) bool {
	if m == nil || m.ignore == nil {
		return false
	}
	relPath = strings.TrimPrefix(relPath, "./")
	if relPath == "" {
		return false
	}
	if isDir && !strings.HasSuffix(relPath, "/") {
		if m.ignore.MatchesPath(relPath + "/") {
			return true
		}
	}
	return m.ignore.MatchesPath(relPath)
}
