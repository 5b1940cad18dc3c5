package mocks

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	testhelpers "github.com/dl-alexandre/ghmirror/internal/testing"
	"github.com/goccy/go-json"
)

// Branch is the state of one branch served by GitHubServer
type Branch struct {
	SHA       string
	Files     map[string]string
	Dirs      []string
	Protected bool
}

// GitHubServer is an in-process fake of the GitHub endpoints ghmirror uses
type GitHubServer struct {
	*httptest.Server
	t *testing.T

	mu       sync.Mutex
	token    string
	private  map[string]bool
	repos    map[string]map[string]*Branch
	failures []int
	requests []string
	pageSize int
}

// NewGitHubServer starts a fake API server that is closed with the test
func NewGitHubServer(t *testing.T) *GitHubServer {
	s := &GitHubServer{
		t:       t,
		private: map[string]bool{},
		repos:   map[string]map[string]*Branch{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{owner}/{repo}/branches", s.handleListBranches)
	mux.HandleFunc("GET /repos/{owner}/{repo}/branches/{branch...}", s.handleGetBranch)
	mux.HandleFunc("GET /repos/{owner}/{repo}/zipball/{ref...}", s.handleZipball)
	mux.HandleFunc("GET /user", s.handleUser)

	s.Server = httptest.NewServer(s.middleware(mux))
	t.Cleanup(s.Close)
	return s
}

// RequireToken makes every request without this bearer token fail with 401
func (s *GitHubServer) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// SetPrivate hides a repository from anonymous requests, as GitHub does with a 404
func (s *GitHubServer) SetPrivate(repo string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.private[repo] = true
}

// SetPageSize caps branch pages regardless of per_page
func (s *GitHubServer) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// SetBranch creates or replaces a branch
func (s *GitHubServer) SetBranch(repo, name string, b *Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repos[repo] == nil {
		s.repos[repo] = map[string]*Branch{}
	}
	s.repos[repo][name] = b
}

// FailNext queues status codes returned, in order, before normal handling resumes
func (s *GitHubServer) FailNext(status ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, status...)
}

// Requests returns the paths served so far
func (s *GitHubServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *GitHubServer) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.URL.Path)
		var status int
		if len(s.failures) > 0 {
			status = s.failures[0]
			s.failures = s.failures[1:]
		}
		token := s.token
		s.mu.Unlock()

		if status != 0 {
			if status == http.StatusTooManyRequests {
				w.Header().Set("Retry-After", "0")
			}
			writeError(w, status, http.StatusText(status))
			return
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, "Bad credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *GitHubServer) lookupRepo(w http.ResponseWriter, r *http.Request) (string, map[string]*Branch, bool) {
	repo := r.PathValue("owner") + "/" + r.PathValue("repo")
	s.mu.Lock()
	branches, ok := s.repos[repo]
	private := s.private[repo]
	s.mu.Unlock()

	if !ok || (private && r.Header.Get("Authorization") == "") {
		writeError(w, http.StatusNotFound, "Not Found")
		return "", nil, false
	}
	return repo, branches, true
}

func (s *GitHubServer) handleListBranches(w http.ResponseWriter, r *http.Request) {
	_, branches, ok := s.lookupRepo(w, r)
	if !ok {
		return
	}

	names := make([]string, 0, len(branches))
	for name := range branches {
		names = append(names, name)
	}
	sort.Strings(names)

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	s.mu.Lock()
	if s.pageSize > 0 {
		perPage = s.pageSize
	}
	s.mu.Unlock()
	if perPage <= 0 {
		perPage = 30
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}

	start := (page - 1) * perPage
	end := min(start+perPage, len(names))
	if start > len(names) {
		start = len(names)
	}

	out := make([]map[string]any, 0, end-start)
	for _, name := range names[start:end] {
		out = append(out, branchJSON(name, branches[name]))
	}

	if end < len(names) {
		next := fmt.Sprintf("%s%s?per_page=%d&page=%d", s.URL, r.URL.Path, perPage, page+1)
		w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next", <%s>; rel="last"`, next, next))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *GitHubServer) handleGetBranch(w http.ResponseWriter, r *http.Request) {
	_, branches, ok := s.lookupRepo(w, r)
	if !ok {
		return
	}
	name := r.PathValue("branch")
	b, ok := branches[name]
	if !ok {
		writeError(w, http.StatusNotFound, "Branch not found")
		return
	}
	writeJSON(w, http.StatusOK, branchJSON(name, b))
}

func (s *GitHubServer) handleZipball(w http.ResponseWriter, r *http.Request) {
	repo, branches, ok := s.lookupRepo(w, r)
	if !ok {
		return
	}
	ref := r.PathValue("ref")

	var found *Branch
	for name, b := range branches {
		if name == ref || b.SHA == ref {
			found = b
			break
		}
	}
	if found == nil {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	short := found.SHA
	if len(short) > 7 {
		short = short[:7]
	}
	top := strings.ReplaceAll(repo, "/", "-") + "-" + short
	data := testhelpers.BuildZipball(s.t, top, found.Files, found.Dirs...)

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *GitHubServer) handleUser(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		writeError(w, http.StatusUnauthorized, "Requires authentication")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"login": "octocat", "name": "The Octocat"})
}

func branchJSON(name string, b *Branch) map[string]any {
	return map[string]any{
		"name":      name,
		"protected": b.Protected,
		"commit":    map[string]any{"sha": b.SHA},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"message":           message,
		"documentation_url": "https://docs.github.com/rest",
	})
}
