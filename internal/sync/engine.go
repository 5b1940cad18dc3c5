package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dl-alexandre/ghmirror/internal/logging"
	"github.com/dl-alexandre/ghmirror/internal/sync/diff"
	"github.com/dl-alexandre/ghmirror/internal/sync/exclude"
	"github.com/dl-alexandre/ghmirror/internal/sync/executor"
	"github.com/dl-alexandre/ghmirror/internal/sync/scanner"
	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5/osfs"
)

var ErrIncomplete = errors.New("one or more actions failed")

type Engine struct {
	provider SnapshotProvider
	logger   logging.Logger
}

type Options struct {
	Concurrency int
	DryRun      bool
	Excludes    []string
	Reporter    executor.Reporter
	// LockDir holds per-directory run locks. Empty disables locking.
	LockDir string
}

type Plan struct {
	Request  SnapshotRequest
	LocalDir string
	Snapshot *Snapshot
	Diff     diff.Plan
}

type Result struct {
	Plan     *Plan
	Summary  executor.Summary
	Duration time.Duration
}

func NewEngine(provider SnapshotProvider, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Engine{
		provider: provider,
		logger:   logger,
	}
}

// Plan fetches the snapshot, indexes both trees and computes the actions. Nothing is written.
func (e *Engine) Plan(ctx context.Context, req SnapshotRequest, localDir string, opts Options) (*Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	logger := e.logger.WithContext(ctx)

	logger.Info("Fetching snapshot",
		logging.F("repository", req.Repository),
		logging.F("branch", req.Branch),
		logging.F("subDir", req.SubDir))

	snap, err := e.provider.Fetch(ctx, req)
	if err != nil {
		return nil, AsFetchError(err)
	}
	logger.Info("Snapshot fetched",
		logging.F("entries", len(snap.Entries)),
		logging.F("size", humanize.IBytes(uint64(max(snap.Bytes, 0)))),
		logging.F("commit", snap.CommitSHA))

	matcher := exclude.New(opts.Excludes)

	remoteIdx, err := scanner.IndexRemote(snap.Entries, matcher)
	if err != nil {
		return nil, &FetchError{Reason: FetchInvalid, Err: err}
	}

	localIdx, err := scanLocalDir(ctx, localDir, matcher)
	if err != nil {
		return nil, err
	}

	plan := diff.Compute(remoteIdx, localIdx)
	logger.Info("Plan computed",
		logging.F("skip", plan.Counts.Skipped),
		logging.F("update", plan.Counts.Updated),
		logging.F("create", plan.Counts.Created),
		logging.F("delete", plan.Counts.Deleted))

	return &Plan{
		Request:  req,
		LocalDir: localDir,
		Snapshot: snap,
		Diff:     plan,
	}, nil
}

// Apply executes a computed plan against its local directory.
func (e *Engine) Apply(ctx context.Context, plan *Plan, opts Options) (*Result, error) {
	start := time.Now()
	logger := e.logger.WithContext(ctx)

	if !opts.DryRun {
		if err := os.MkdirAll(plan.LocalDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create local directory: %w", err)
		}
	}

	exec := executor.New(osfs.New(plan.LocalDir), opts.Reporter, logger)
	summary := exec.Apply(ctx, plan.Diff, executor.Options{
		Concurrency: opts.Concurrency,
		DryRun:      opts.DryRun,
	})

	result := &Result{
		Plan:     plan,
		Summary:  summary,
		Duration: time.Since(start),
	}

	logger.Info("Mirror finished",
		logging.F("updated", summary.Updated),
		logging.F("created", summary.Created),
		logging.F("deleted", summary.Deleted),
		logging.F("failed", summary.Failed),
		logging.F("dirsRemoved", summary.DirsRemoved),
		logging.F("dryRun", summary.DryRun),
		logging.F("duration", result.Duration.String()))

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("mirror interrupted: %w", err)
	}
	if !summary.OK() {
		return result, fmt.Errorf("%w: %d of %d actions failed", ErrIncomplete, summary.Failed, plan.Diff.Counts.Pending())
	}
	return result, nil
}

// Sync mirrors the requested branch onto localDir. Fetch and local read failures abort
// before anything is written; per-action failures are reported through ErrIncomplete.
func (e *Engine) Sync(ctx context.Context, req SnapshotRequest, localDir string, opts Options) (*Result, error) {
	if opts.LockDir != "" && !opts.DryRun {
		lock, err := AcquireLock(opts.LockDir, localDir)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				e.logger.Debug("Failed to release lock", logging.F("error", err))
			}
		}()
	}

	plan, err := e.Plan(ctx, req, localDir, opts)
	if err != nil {
		return nil, err
	}
	return e.Apply(ctx, plan, opts)
}

func scanLocalDir(ctx context.Context, localDir string, matcher *exclude.Matcher) (*scanner.LocalIndex, error) {
	info, err := os.Stat(localDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return scanner.NewLocalIndex(), nil
		}
		return nil, &scanner.LocalReadError{Path: localDir, Err: err}
	}
	if !info.IsDir() {
		return nil, &scanner.LocalReadError{Path: localDir, Err: errors.New("not a directory")}
	}
	return scanner.ScanLocal(ctx, osfs.New(localDir), matcher)
}
