package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/dl-alexandre/ghmirror/internal/logging"
	"github.com/dl-alexandre/ghmirror/internal/sync/content"
	"github.com/dl-alexandre/ghmirror/internal/sync/diff"
	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	OpWrite  = "write"
	OpDelete = "delete"

	writeChunkSize = 32 * 1024

	// temp names must not grow with the destination name
	tempPrefix = ".ghmirror-"
	tempSuffix = ".tmp"
)

// Reporter receives one call per action, Skip included. Calls are serialized.
type Reporter interface {
	Report(kind diff.ActionKind, path string, err error)
}

type ReporterFunc func(kind diff.ActionKind, path string, err error)

func (f ReporterFunc) Report(kind diff.ActionKind, path string, err error) {
	f(kind, path, err)
}

type Options struct {
	Concurrency int
	DryRun      bool
}

type ActionError struct {
	Op   string
	Path string
	Err  error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

type ActionResult struct {
	Action diff.Action
	Err    error
}

type Summary struct {
	Skipped     int
	Updated     int
	Created     int
	Deleted     int
	Failed      int
	DirsRemoved int
	DryRun      bool
	Duration    time.Duration
	Failures    []*ActionError
}

func (s Summary) OK() bool {
	return s.Failed == 0
}

// Err joins every per-action failure, or returns nil when all actions succeeded.
func (s Summary) Err() error {
	if len(s.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(s.Failures))
	for i, f := range s.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

type Executor struct {
	fs       billy.Filesystem
	reporter Reporter
	logger   logging.Logger

	mu      sync.Mutex
	summary Summary
}

func New(fs billy.Filesystem, reporter Reporter, logger logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Executor{
		fs:       fs,
		reporter: reporter,
		logger:   logger,
	}
}

// Apply runs every write, waits for all of them, then runs every delete, then removes
// local directories left empty. Per-action failures are recorded in the summary and do
// not stop the run.
func (e *Executor) Apply(ctx context.Context, plan diff.Plan, opts Options) Summary {
	start := time.Now()
	e.mu.Lock()
	e.summary = Summary{DryRun: opts.DryRun}
	e.mu.Unlock()

	var writes, deletes []diff.Action
	for _, action := range plan.Actions {
		switch action.Kind {
		case diff.ActionSkip:
			e.record(ActionResult{Action: action})
		case diff.ActionCreate, diff.ActionUpdate:
			writes = append(writes, action)
		case diff.ActionDelete:
			deletes = append(deletes, action)
		}
	}

	if opts.DryRun {
		for _, action := range append(writes, deletes...) {
			e.record(ActionResult{Action: action})
		}
		return e.finish(start)
	}

	runConcurrent(ctx, writes, opts.Concurrency, func(action diff.Action) error {
		return e.write(ctx, action)
	}, e.record)

	runConcurrent(ctx, deletes, opts.Concurrency, func(action diff.Action) error {
		return e.remove(action)
	}, e.record)

	if ctx.Err() == nil {
		removed := e.sweep(plan)
		e.mu.Lock()
		e.summary.DirsRemoved = removed
		e.mu.Unlock()
	}

	return e.finish(start)
}

func (e *Executor) finish(start time.Time) Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.summary.Duration = time.Since(start)
	return e.summary
}

func (e *Executor) record(result ActionResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	action := result.Action
	if result.Err != nil {
		op := OpWrite
		if action.Kind == diff.ActionDelete {
			op = OpDelete
		}
		actionErr := &ActionError{Op: op, Path: action.Path, Err: result.Err}
		e.summary.Failed++
		e.summary.Failures = append(e.summary.Failures, actionErr)
		e.logger.Warn("Action failed",
			logging.F("action", string(action.Kind)),
			logging.F("path", action.Path),
			logging.F("error", result.Err))
	} else {
		switch action.Kind {
		case diff.ActionSkip:
			e.summary.Skipped++
		case diff.ActionUpdate:
			e.summary.Updated++
		case diff.ActionCreate:
			e.summary.Created++
		case diff.ActionDelete:
			e.summary.Deleted++
		}
	}

	if e.reporter != nil {
		e.reporter.Report(action.Kind, action.Path, result.Err)
	}
}

// runConcurrent drains actions on a bounded pool. Once ctx is done, remaining actions
// are recorded as failed with the context error instead of being started.
func runConcurrent(ctx context.Context, actions []diff.Action, concurrency int, handler func(diff.Action) error, record func(ActionResult)) {
	if len(actions) == 0 {
		return
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(concurrency)

	for _, action := range actions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				record(ActionResult{Action: action, Err: err})
				return nil
			}
			record(ActionResult{Action: action, Err: handler(action)})
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Executor) write(ctx context.Context, action diff.Action) error {
	dir := path.Dir(action.Path)
	if dir != "." {
		if err := e.fs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmp := path.Join(dir, tempPrefix+uuid.NewString()+tempSuffix)
	f, err := e.fs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	werr := writeChunks(ctx, f, content.Normalize(action.Content))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = e.fs.Remove(tmp)
		return werr
	}

	if err := e.fs.Rename(tmp, action.Path); err != nil {
		_ = e.fs.Remove(tmp)
		return err
	}
	return nil
}

func writeChunks(ctx context.Context, w io.Writer, data []byte) error {
	for len(data) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(len(data), writeChunkSize)
		if _, err := w.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return ctx.Err()
}

func (e *Executor) remove(action diff.Action) error {
	err := e.fs.Remove(action.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// sweep removes directories that were present before the run and are now empty,
// deepest first. The root and directories the remote lists are kept. Failures are ignored.
func (e *Executor) sweep(plan diff.Plan) int {
	if plan.LocalDirs == nil {
		return 0
	}
	removed := 0
	for _, dir := range plan.LocalDirs.DeepestFirst() {
		if plan.RemoteDirs.Contains(dir) {
			continue
		}
		entries, err := e.fs.ReadDir(dir)
		if err != nil {
			e.logger.Debug("Skipping directory cleanup", logging.F("path", dir), logging.F("error", err))
			continue
		}
		if len(entries) > 0 {
			continue
		}
		if err := e.fs.Remove(dir); err != nil {
			e.logger.Debug("Failed to remove empty directory", logging.F("path", dir), logging.F("error", err))
			continue
		}
		removed++
	}
	return removed
}
