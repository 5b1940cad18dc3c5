package github

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dl-alexandre/ghmirror/internal/logging"
	mirror "github.com/dl-alexandre/ghmirror/internal/sync"
	"github.com/dl-alexandre/ghmirror/internal/sync/scanner"
	"github.com/dustin/go-humanize"
	"github.com/imroc/req/v3"
)

const progressInterval = time.Second

// ArchiveProvider fetches branch snapshots as zipball archives
type ArchiveProvider struct {
	client *Client
}

// NewArchiveProvider creates a snapshot provider backed by the zipball endpoint
func NewArchiveProvider(client *Client) *ArchiveProvider {
	return &ArchiveProvider{client: client}
}

// Fetch resolves the branch head, downloads the archive at that commit and unpacks it in memory.
// Requests authenticate with the client's token; request.Token is not consulted.
func (p *ArchiveProvider) Fetch(ctx context.Context, request mirror.SnapshotRequest) (*mirror.Snapshot, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateRepository(request.Repository); err != nil {
		return nil, &mirror.FetchError{Reason: mirror.FetchInvalid, Err: err}
	}

	head, err := p.client.GetBranch(ctx, request.Repository, request.Branch)
	if err != nil {
		return nil, err
	}
	ref := head.Commit.SHA
	if ref == "" {
		ref = request.Branch
	}

	data, err := p.download(ctx, request, ref)
	if err != nil {
		return nil, err
	}

	entries, err := unpackArchive(data, request.SubDir)
	if err != nil {
		return nil, err
	}

	return &mirror.Snapshot{
		Repository: request.Repository,
		Branch:     request.Branch,
		CommitSHA:  head.Commit.SHA,
		Entries:    entries,
		Bytes:      int64(len(data)),
	}, nil
}

func (p *ArchiveProvider) download(ctx context.Context, request mirror.SnapshotRequest, ref string) ([]byte, error) {
	logger := p.client.logger.WithContext(ctx)
	what := fmt.Sprintf("download %s@%s", request.Repository, request.Branch)

	resp, err := p.client.newRequest(ctx).
		SetDownloadCallbackWithInterval(func(info req.DownloadInfo) {
			logger.Debug("Downloading snapshot",
				logging.F("downloaded", humanize.IBytes(uint64(info.DownloadedSize))))
		}, progressInterval).
		Get(fmt.Sprintf("/repos/%s/zipball/%s", request.Repository, escapeRef(ref)))
	if classified := classifyResponse(resp, err, what); classified != nil {
		return nil, classified
	}

	data := resp.Bytes()
	logger.Debug("Snapshot downloaded", logging.F("size", humanize.IBytes(uint64(len(data)))))
	return data, nil
}

// unpackArchive strips the single top-level directory GitHub adds and optionally narrows
// the entries to subDir, rebasing their paths onto it.
func unpackArchive(data []byte, subDir string) ([]scanner.RemoteEntry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, mirror.NewFetchError(mirror.FetchInvalid, "snapshot is not a valid zip archive: %w", err)
	}

	prefix, err := scanner.NormalizePath(strings.Trim(subDir, "/"))
	if err != nil {
		return nil, &mirror.FetchError{Reason: mirror.FetchInvalid, Err: err}
	}
	if prefix != "" {
		prefix += "/"
	}

	var entries []scanner.RemoteEntry
	found := prefix == ""
	isFile := false

	for _, f := range zr.File {
		rel, ok := stripTopDir(f.Name)
		if !ok {
			continue
		}
		isDir := f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/")

		if prefix != "" {
			if rel == prefix {
				found = true
				continue
			}
			if rel+"/" == prefix {
				isFile = !isDir
				continue
			}
			if !strings.HasPrefix(rel, prefix) {
				continue
			}
			found = true
			rel = strings.TrimPrefix(rel, prefix)
		}
		if rel == "" {
			continue
		}

		if isDir {
			entries = append(entries, scanner.RemoteEntry{Path: strings.TrimSuffix(rel, "/"), IsDir: true})
			continue
		}
		if f.Mode()&os.ModeSymlink != 0 {
			continue
		}

		body, err := readZipFile(f)
		if err != nil {
			return nil, mirror.NewFetchError(mirror.FetchInvalid, "failed to read %q from archive: %w", f.Name, err)
		}
		entries = append(entries, scanner.RemoteEntry{Path: rel, Content: body})
	}

	if !found && isFile {
		return nil, mirror.NewFetchError(mirror.FetchNotFound, "sub-directory %q is a file, not a directory", subDir)
	}
	if !found {
		return nil, mirror.NewFetchError(mirror.FetchNotFound, "sub-directory %q does not exist in the repository", subDir)
	}
	return entries, nil
}

func stripTopDir(name string) (string, bool) {
	name = strings.TrimPrefix(name, "./")
	idx := strings.Index(name, "/")
	if idx < 0 {
		return "", false
	}
	return name[idx+1:], true
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
