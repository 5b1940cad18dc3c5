package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/dl-alexandre/ghmirror/internal/sync/scanner"
)

type FetchReason string

const (
	FetchNetwork   FetchReason = "network"
	FetchAuth      FetchReason = "auth"
	FetchForbidden FetchReason = "forbidden"
	FetchNotFound  FetchReason = "not-found"
	FetchInvalid   FetchReason = "invalid"
)

// FetchError aborts a run before the local tree is touched.
type FetchError struct {
	Reason FetchReason
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch snapshot (%s): %v", e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewFetchError(reason FetchReason, format string, args ...any) *FetchError {
	return &FetchError{Reason: reason, Err: fmt.Errorf(format, args...)}
}

// AsFetchError wraps err as a network FetchError unless it already is one.
func AsFetchError(err error) *FetchError {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Reason: FetchNetwork, Err: err}
}

// SnapshotRequest names the branch to fetch. Token is read by providers that authenticate
// per request, such as the git clone provider; API-backed providers use their client's token.
type SnapshotRequest struct {
	Repository string
	Branch     string
	Token      string
	SubDir     string
}

func (r SnapshotRequest) Validate() error {
	if r.Repository == "" {
		return NewFetchError(FetchInvalid, "repository is required")
	}
	if r.Branch == "" {
		return NewFetchError(FetchInvalid, "branch is required")
	}
	return nil
}

// Snapshot is the full content of a branch at one commit.
type Snapshot struct {
	Repository string
	Branch     string
	CommitSHA  string
	Entries    []scanner.RemoteEntry
	Bytes      int64
}

type SnapshotProvider interface {
	Fetch(ctx context.Context, req SnapshotRequest) (*Snapshot, error)
}
