package github

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	mirror "github.com/dl-alexandre/ghmirror/internal/sync"
	"github.com/dl-alexandre/ghmirror/internal/sync/scanner"
	testhelpers "github.com/dl-alexandre/ghmirror/internal/testing"
	"github.com/dl-alexandre/ghmirror/internal/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headSHA = "0123456789abcdef0123456789abcdef01234567"

func newTestClient(srv *mocks.GitHubServer, retries int) *Client {
	return newTokenClient(srv, retries, "")
}

func newTokenClient(srv *mocks.GitHubServer, retries int, token string) *Client {
	return NewClient(ClientOptions{
		BaseURL:    srv.URL,
		Token:      token,
		MaxRetries: retries,
		RetryDelay: time.Millisecond,
		Timeout:    5 * time.Second,
	})
}

func seedRepo(srv *mocks.GitHubServer) {
	srv.SetBranch("octo/site", "main", &mocks.Branch{
		SHA: headSHA,
		Files: map[string]string{
			"README.md":       "# site\r\n",
			"docs/guide.md":   "guide",
			"docs/api/v1.md":  "v1",
			"assets/logo.bin": "\x00\x01\r\n",
		},
		Dirs: []string{"empty"},
	})
}

func entryMap(entries []scanner.RemoteEntry) (map[string]string, []string) {
	files := map[string]string{}
	var dirs []string
	for _, e := range entries {
		if e.IsDir {
			dirs = append(dirs, e.Path)
			continue
		}
		files[e.Path] = string(e.Content)
	}
	return files, dirs
}

func fetchReason(t *testing.T, err error) mirror.FetchReason {
	t.Helper()
	var fe *mirror.FetchError
	require.True(t, errors.As(err, &fe), "expected FetchError, got %v", err)
	return fe.Reason
}

func TestArchiveProvider_Fetch(t *testing.T) {
	srv := mocks.NewGitHubServer(t)
	seedRepo(srv)
	provider := NewArchiveProvider(newTestClient(srv, 0))

	snap, err := provider.Fetch(testhelpers.TestContext(t), mirror.SnapshotRequest{
		Repository: "octo/site",
		Branch:     "main",
	})
	require.NoError(t, err)

	assert.Equal(t, headSHA, snap.CommitSHA)
	assert.Equal(t, "octo/site", snap.Repository)
	assert.Positive(t, snap.Bytes)

	files, dirs := entryMap(snap.Entries)
	assert.Equal(t, map[string]string{
		"README.md":       "# site\r\n",
		"docs/guide.md":   "guide",
		"docs/api/v1.md":  "v1",
		"assets/logo.bin": "\x00\x01\r\n",
	}, files)
	assert.Contains(t, dirs, "empty")
	assert.Contains(t, dirs, "docs/api")

	// the archive is requested at the resolved head, not the moving branch name
	assert.Contains(t, srv.Requests(), "/repos/octo/site/zipball/"+headSHA)
}

func TestArchiveProvider_FetchSubDir(t *testing.T) {
	srv := mocks.NewGitHubServer(t)
	seedRepo(srv)
	provider := NewArchiveProvider(newTestClient(srv, 0))

	snap, err := provider.Fetch(testhelpers.TestContext(t), mirror.SnapshotRequest{
		Repository: "octo/site",
		Branch:     "main",
		SubDir:     "docs",
	})
	require.NoError(t, err)

	files, dirs := entryMap(snap.Entries)
	assert.Equal(t, map[string]string{"guide.md": "guide", "api/v1.md": "v1"}, files)
	assert.Equal(t, []string{"api"}, dirs)

	_, err = provider.Fetch(testhelpers.TestContext(t), mirror.SnapshotRequest{
		Repository: "octo/site",
		Branch:     "main",
		SubDir:     "missing",
	})
	require.Error(t, err)
	assert.Equal(t, mirror.FetchNotFound, fetchReason(t, err))

	// a file is not a sub-directory; an empty snapshot here would wipe the local tree
	snap, err = provider.Fetch(testhelpers.TestContext(t), mirror.SnapshotRequest{
		Repository: "octo/site",
		Branch:     "main",
		SubDir:     "README.md",
	})
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.Equal(t, mirror.FetchNotFound, fetchReason(t, err))
}

func TestArchiveProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*mocks.GitHubServer)
		token  string
		req    mirror.SnapshotRequest
		reason mirror.FetchReason
	}{
		{
			name:   "bad credentials",
			setup:  func(s *mocks.GitHubServer) { s.RequireToken("good") },
			token:  "bad",
			req:    mirror.SnapshotRequest{Repository: "octo/site", Branch: "main"},
			reason: mirror.FetchAuth,
		},
		{
			name:   "forbidden",
			setup:  func(s *mocks.GitHubServer) { s.FailNext(http.StatusForbidden) },
			req:    mirror.SnapshotRequest{Repository: "octo/site", Branch: "main"},
			reason: mirror.FetchForbidden,
		},
		{
			name:   "unknown repository",
			req:    mirror.SnapshotRequest{Repository: "octo/nope", Branch: "main"},
			reason: mirror.FetchNotFound,
		},
		{
			name:   "unknown branch",
			req:    mirror.SnapshotRequest{Repository: "octo/site", Branch: "gone"},
			reason: mirror.FetchNotFound,
		},
		{
			name:   "private without token",
			setup:  func(s *mocks.GitHubServer) { s.SetPrivate("octo/site") },
			req:    mirror.SnapshotRequest{Repository: "octo/site", Branch: "main"},
			reason: mirror.FetchNotFound,
		},
		{
			name:   "server error",
			setup:  func(s *mocks.GitHubServer) { s.FailNext(http.StatusBadGateway) },
			req:    mirror.SnapshotRequest{Repository: "octo/site", Branch: "main"},
			reason: mirror.FetchNetwork,
		},
		{
			name:   "malformed repository",
			req:    mirror.SnapshotRequest{Repository: "octo", Branch: "main"},
			reason: mirror.FetchInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := mocks.NewGitHubServer(t)
			seedRepo(srv)
			if tt.setup != nil {
				tt.setup(srv)
			}
			provider := NewArchiveProvider(newTokenClient(srv, 0, tt.token))

			_, err := provider.Fetch(testhelpers.TestContext(t), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.reason, fetchReason(t, err))
		})
	}
}

func TestArchiveProvider_TokenSent(t *testing.T) {
	srv := mocks.NewGitHubServer(t)
	seedRepo(srv)
	srv.SetPrivate("octo/site")
	srv.RequireToken("s3cret")

	provider := NewArchiveProvider(newTokenClient(srv, 0, "s3cret"))
	_, err := provider.Fetch(testhelpers.TestContext(t), mirror.SnapshotRequest{Repository: "octo/site", Branch: "main"})
	require.NoError(t, err)

	// only the client's token authenticates API requests
	provider = NewArchiveProvider(newTestClient(srv, 0))
	_, err = provider.Fetch(testhelpers.TestContext(t), mirror.SnapshotRequest{Repository: "octo/site", Branch: "main", Token: "s3cret"})
	require.Error(t, err)
	assert.Equal(t, mirror.FetchAuth, fetchReason(t, err))

	provider = NewArchiveProvider(newTokenClient(srv, 0, "s3cret"))
	_, err = provider.Fetch(testhelpers.TestContext(t), mirror.SnapshotRequest{Repository: "octo/site", Branch: "main", Token: "other"})
	require.NoError(t, err)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	srv := mocks.NewGitHubServer(t)
	seedRepo(srv)
	srv.FailNext(http.StatusServiceUnavailable, http.StatusTooManyRequests)

	client := newTestClient(srv, 3)
	branch, err := client.GetBranch(testhelpers.TestContext(t), "octo/site", "main")
	require.NoError(t, err)
	assert.Equal(t, headSHA, branch.Commit.SHA)
	assert.Len(t, srv.Requests(), 3)
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	srv := mocks.NewGitHubServer(t)
	seedRepo(srv)
	srv.FailNext(http.StatusUnprocessableEntity)

	client := newTestClient(srv, 3)
	_, err := client.GetBranch(testhelpers.TestContext(t), "octo/site", "main")
	require.Error(t, err)
	assert.Equal(t, mirror.FetchInvalid, fetchReason(t, err))
	assert.Len(t, srv.Requests(), 1)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.NotEmpty(t, apiErr.Message)
}

func TestClient_ListBranchesPaginates(t *testing.T) {
	srv := mocks.NewGitHubServer(t)
	for _, name := range []string{"main", "dev", "feature/a", "feature/b", "release"} {
		srv.SetBranch("octo/site", name, &mocks.Branch{SHA: strings.Repeat("a", 40)})
	}
	srv.SetPageSize(2)

	branches, err := newTestClient(srv, 0).ListBranches(testhelpers.TestContext(t), "octo/site")
	require.NoError(t, err)

	names := make([]string, 0, len(branches))
	for _, b := range branches {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"dev", "feature/a", "feature/b", "main", "release"}, names)
	assert.Len(t, srv.Requests(), 3)
}

func TestClient_GetBranchWithSlash(t *testing.T) {
	srv := mocks.NewGitHubServer(t)
	srv.SetBranch("octo/site", "feature/x", &mocks.Branch{SHA: headSHA})

	branch, err := newTestClient(srv, 0).GetBranch(testhelpers.TestContext(t), "octo/site", "feature/x")
	require.NoError(t, err)
	assert.Equal(t, "feature/x", branch.Name)
}

func TestClient_Cancelled(t *testing.T) {
	srv := mocks.NewGitHubServer(t)
	seedRepo(srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv, 3).GetBranch(ctx, "octo/site", "main")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, srv.Requests())
}

func TestValidateRepository(t *testing.T) {
	tests := []struct {
		repo  string
		valid bool
	}{
		{"octo/site", true},
		{"my-org/repo.name_2", true},
		{"octo", false},
		{"octo/site/extra", false},
		{"../etc", false},
		{"octo/..", false},
		{"", false},
		{"octo/si te", false},
	}
	for _, tt := range tests {
		err := ValidateRepository(tt.repo)
		if tt.valid {
			assert.NoError(t, err, tt.repo)
		} else {
			assert.Error(t, err, tt.repo)
		}
	}
}

func TestEscapeRef(t *testing.T) {
	assert.Equal(t, "main", escapeRef("main"))
	assert.Equal(t, "feature/x", escapeRef("feature/x"))
	assert.Equal(t, "fix%23123", escapeRef("fix#123"))
	assert.Equal(t, "a%20b/c", escapeRef("a b/c"))
}

func TestNextLink(t *testing.T) {
	header := `<https://api.github.com/repos/o/r/branches?page=2>; rel="next", <https://api.github.com/repos/o/r/branches?page=5>; rel="last"`
	assert.Equal(t, "https://api.github.com/repos/o/r/branches?page=2", nextLink(header))
	assert.Empty(t, nextLink(`<https://api.github.com/repos/o/r/branches?page=1>; rel="prev"`))
	assert.Empty(t, nextLink(""))
}

func TestCalculateBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	for attempt := 0; attempt < 4; attempt++ {
		want := base << attempt
		got := calculateBackoff(base, attempt, nil)
		assert.GreaterOrEqual(t, got, want-want/4, "attempt %d", attempt)
		assert.LessOrEqual(t, got, want+want/4, "attempt %d", attempt)
	}

	capped := calculateBackoff(base, 30, nil)
	maxDelay := 32 * time.Second
	assert.LessOrEqual(t, capped, maxDelay+maxDelay/4)
}

func TestUnpackArchive(t *testing.T) {
	data := testhelpers.BuildZipball(t, "octo-site-abc1234", map[string]string{
		"a.txt":         "a",
		"sub/b.txt":     "b",
		"sub/deep/c.md": "c",
	}, "sub/empty")

	entries, err := unpackArchive(data, "")
	require.NoError(t, err)
	files, dirs := entryMap(entries)
	assert.Equal(t, map[string]string{"a.txt": "a", "sub/b.txt": "b", "sub/deep/c.md": "c"}, files)
	assert.ElementsMatch(t, []string{"sub", "sub/deep", "sub/empty"}, dirs)

	entries, err = unpackArchive(data, "/sub/")
	require.NoError(t, err)
	files, dirs = entryMap(entries)
	assert.Equal(t, map[string]string{"b.txt": "b", "deep/c.md": "c"}, files)
	assert.ElementsMatch(t, []string{"deep", "empty"}, dirs)

	entries, err = unpackArchive(data, "a.txt")
	require.Error(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, mirror.FetchNotFound, fetchReason(t, err))

	_, err = unpackArchive(data, "sub/b.txt/")
	require.Error(t, err)
	assert.Equal(t, mirror.FetchNotFound, fetchReason(t, err))

	_, err = unpackArchive(data, "../escape")
	require.Error(t, err)
	assert.Equal(t, mirror.FetchInvalid, fetchReason(t, err))

	_, err = unpackArchive([]byte("not a zip"), "")
	require.Error(t, err)
	assert.Equal(t, mirror.FetchInvalid, fetchReason(t, err))
}

func TestClient_CurrentUser(t *testing.T) {
	srv := mocks.NewGitHubServer(t)
	srv.RequireToken("s3cret")

	user, err := newTokenClient(srv, 0, "s3cret").CurrentUser(testhelpers.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, "octocat", user.Login)

	_, err = newTokenClient(srv, 0, "wrong").CurrentUser(testhelpers.TestContext(t))
	require.Error(t, err)
	assert.Equal(t, mirror.FetchAuth, fetchReason(t, err))

	// no token means nothing to verify, and nothing is sent
	before := len(srv.Requests())
	_, err = newTestClient(srv, 0).CurrentUser(testhelpers.TestContext(t))
	require.Error(t, err)
	assert.Equal(t, mirror.FetchAuth, fetchReason(t, err))
	assert.Len(t, srv.Requests(), before)
}
