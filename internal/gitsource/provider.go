package gitsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dl-alexandre/ghmirror/internal/logging"
	mirror "github.com/dl-alexandre/ghmirror/internal/sync"
	"github.com/dl-alexandre/ghmirror/internal/sync/scanner"
	"github.com/dl-alexandre/ghmirror/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Opener produces a repository holding at least the requested branch
type Opener func(ctx context.Context, opts *git.CloneOptions) (*git.Repository, error)

// Provider fetches branch snapshots with a shallow clone kept entirely in memory
type Provider struct {
	baseURL string
	open    Opener
	logger  logging.Logger
}

// NewProvider creates a git snapshot provider. An empty baseURL means github.com.
func NewProvider(baseURL string, logger logging.Logger) *Provider {
	if baseURL == "" {
		baseURL = utils.GitHubCloneBase
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		open:    cloneInMemory,
		logger:  logger,
	}
}

// WithOpener replaces how repositories are obtained
func (p *Provider) WithOpener(open Opener) *Provider {
	p.open = open
	return p
}

func cloneInMemory(ctx context.Context, opts *git.CloneOptions) (*git.Repository, error) {
	// no worktree: the tree is read straight from the object store
	return git.CloneContext(ctx, memory.NewStorage(), nil, opts)
}

// Fetch clones the branch at depth one and reads every blob of its head tree
func (p *Provider) Fetch(ctx context.Context, request mirror.SnapshotRequest) (*mirror.Snapshot, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	opts := p.cloneOptions(request)
	logger := p.logger.WithContext(ctx)
	logger.Debug("Cloning branch",
		logging.F("url", opts.URL),
		logging.F("branch", request.Branch))

	repo, err := p.open(ctx, opts)
	if err != nil {
		return nil, classifyCloneError(err, request)
	}

	snap, err := snapshotFromRepository(repo, request)
	if err != nil {
		return nil, err
	}

	logger.Debug("Branch read",
		logging.F("commit", snap.CommitSHA),
		logging.F("files", len(snap.Entries)),
		logging.F("size", humanize.IBytes(uint64(snap.Bytes))))
	return snap, nil
}

func (p *Provider) cloneOptions(request mirror.SnapshotRequest) *git.CloneOptions {
	opts := &git.CloneOptions{
		URL:           fmt.Sprintf("%s/%s.git", p.baseURL, request.Repository),
		ReferenceName: plumbing.NewBranchReferenceName(request.Branch),
		SingleBranch:  true,
		Depth:         1,
		Tags:          git.NoTags,
	}
	if request.Token != "" {
		opts.Auth = &http.BasicAuth{Username: utils.GitHubTokenUser, Password: request.Token}
	}
	return opts
}

func snapshotFromRepository(repo *git.Repository, request mirror.SnapshotRequest) (*mirror.Snapshot, error) {
	ref, err := resolveBranch(repo, request.Branch)
	if err != nil {
		return nil, err
	}

	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, mirror.NewFetchError(mirror.FetchInvalid, "failed to read commit %s: %w", ref.Hash(), err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, mirror.NewFetchError(mirror.FetchInvalid, "failed to read tree of %s: %w", ref.Hash(), err)
	}

	subDir, err := scanner.NormalizePath(strings.Trim(request.SubDir, "/"))
	if err != nil {
		return nil, &mirror.FetchError{Reason: mirror.FetchInvalid, Err: err}
	}
	if subDir != "" {
		tree, err = tree.Tree(subDir)
		if err != nil {
			if errors.Is(err, object.ErrDirectoryNotFound) {
				return nil, mirror.NewFetchError(mirror.FetchNotFound, "sub-directory %q does not exist in the repository", request.SubDir)
			}
			return nil, mirror.NewFetchError(mirror.FetchInvalid, "failed to read sub-directory %q: %w", request.SubDir, err)
		}
	}

	snap := &mirror.Snapshot{
		Repository: request.Repository,
		Branch:     request.Branch,
		CommitSHA:  commit.Hash.String(),
	}

	err = tree.Files().ForEach(func(f *object.File) error {
		if f.Mode == filemode.Symlink || f.Mode == filemode.Submodule {
			return nil
		}
		body, err := readBlob(f)
		if err != nil {
			return fmt.Errorf("failed to read %q: %w", f.Name, err)
		}
		snap.Entries = append(snap.Entries, scanner.RemoteEntry{Path: f.Name, Content: body})
		snap.Bytes += int64(len(body))
		return nil
	})
	if err != nil {
		return nil, &mirror.FetchError{Reason: mirror.FetchInvalid, Err: err}
	}
	return snap, nil
}

func resolveBranch(repo *git.Repository, branch string) (*plumbing.Reference, error) {
	candidates := []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(branch),
		plumbing.NewRemoteReferenceName(git.DefaultRemoteName, branch),
	}
	for _, name := range candidates {
		ref, err := repo.Reference(name, true)
		if err == nil {
			return ref, nil
		}
		if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, mirror.NewFetchError(mirror.FetchInvalid, "failed to resolve branch %q: %w", branch, err)
		}
	}
	return nil, mirror.NewFetchError(mirror.FetchNotFound, "branch %q not found", branch)
}

func readBlob(f *object.File) ([]byte, error) {
	rc, err := f.Reader()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func classifyCloneError(err error, request mirror.SnapshotRequest) error {
	var noRef git.NoMatchingRefSpecError
	what := fmt.Sprintf("clone %s@%s", request.Repository, request.Branch)

	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired):
		return &mirror.FetchError{Reason: mirror.FetchAuth, Err: fmt.Errorf("%s: %w", what, err)}
	case errors.Is(err, transport.ErrAuthorizationFailed):
		return &mirror.FetchError{Reason: mirror.FetchForbidden, Err: fmt.Errorf("%s: %w", what, err)}
	case errors.Is(err, transport.ErrRepositoryNotFound),
		errors.Is(err, transport.ErrEmptyRemoteRepository),
		errors.Is(err, plumbing.ErrReferenceNotFound),
		errors.As(err, &noRef):
		return &mirror.FetchError{Reason: mirror.FetchNotFound, Err: fmt.Errorf("%s: not found (private repositories need a token): %w", what, err)}
	}
	return mirror.AsFetchError(fmt.Errorf("%s: %w", what, err))
}
