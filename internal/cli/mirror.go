package cli

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/dl-alexandre/ghmirror/internal/auth"
	"github.com/dl-alexandre/ghmirror/internal/github"
	"github.com/dl-alexandre/ghmirror/internal/gitsource"
	"github.com/dl-alexandre/ghmirror/internal/logging"
	mirror "github.com/dl-alexandre/ghmirror/internal/sync"
	"github.com/dl-alexandre/ghmirror/internal/sync/diff"
	"github.com/dl-alexandre/ghmirror/internal/types"
	"github.com/dl-alexandre/ghmirror/internal/utils"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror a branch into a local directory",
	Long: `Make the local directory an exact copy of the branch.

Every file of the branch is written when missing or different, every local
file the branch does not have is deleted and directories left empty are
removed. Nothing is touched when the branch cannot be fetched or the local
directory cannot be read.`,
	Example: `  ghmirror sync --repo octo/site --branch main --local-dir ./site
  ghmirror sync --repo octo/site --branch main --local-dir ./docs --sub-dir docs --exclude '*.log'`,
	RunE: runSync,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what a sync would change",
	Long:  "Fetch the branch and compare it with the local directory without writing anything",
	RunE:  runPlan,
}

// mirrorOptions are the flags shared by sync and plan
type mirrorOptions struct {
	repository  string
	branch      string
	localDir    string
	token       string
	subDir      string
	source      string
	excludes    []string
	concurrency int
	dryRun      bool
}

var mirrorFlags mirrorOptions

func init() {
	for _, cmd := range []*cobra.Command{syncCmd, planCmd} {
		addMirrorFlags(cmd, &mirrorFlags)
	}
	syncCmd.Flags().BoolVar(&mirrorFlags.dryRun, "dry-run", false, "Report the actions without changing the local directory")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(planCmd)
}

func addMirrorFlags(cmd *cobra.Command, opts *mirrorOptions) {
	cmd.Flags().StringVar(&opts.repository, "repo", "", "Repository as owner/name (required)")
	cmd.Flags().StringVar(&opts.branch, "branch", "", "Branch to mirror (required)")
	cmd.Flags().StringVar(&opts.localDir, "local-dir", "", "Local directory to mirror into (required)")
	addSourceFlags(cmd, opts)
	_ = cmd.MarkFlagRequired("repo")
	_ = cmd.MarkFlagRequired("branch")
	_ = cmd.MarkFlagRequired("local-dir")
}

func addSourceFlags(cmd *cobra.Command, opts *mirrorOptions) {
	cmd.Flags().StringVar(&opts.token, "token", "", "GitHub token (defaults to GITHUB_TOKEN or the stored profile token)")
	cmd.Flags().StringVar(&opts.subDir, "sub-dir", "", "Mirror only this directory of the branch")
	cmd.Flags().StringVar(&opts.source, "source", "", "Snapshot source: zipball or git (defaults to config)")
	cmd.Flags().StringArrayVar(&opts.excludes, "exclude", nil, "Gitignore-style pattern to leave alone on both sides (repeatable)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Concurrent file operations (defaults to config)")
}

func (o mirrorOptions) validate() error {
	if err := github.ValidateRepository(o.repository); err != nil {
		return utils.NewAppError(invalidArgument("%v", err))
	}
	if strings.TrimSpace(o.branch) == "" {
		return utils.NewAppError(invalidArgument("branch is required"))
	}
	if strings.TrimSpace(o.localDir) == "" {
		return utils.NewAppError(invalidArgument("local directory is required"))
	}
	switch o.source {
	case "", utils.SourceZipball, utils.SourceGit:
	default:
		return utils.NewAppError(invalidArgument("invalid source %q (must be %s or %s)", o.source, utils.SourceZipball, utils.SourceGit))
	}
	if o.concurrency < 0 || o.concurrency > 64 {
		return utils.NewAppError(invalidArgument("concurrency must be between 1 and 64"))
	}
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	if err := mirrorFlags.validate(); err != nil {
		return out.WriteError("sync", toCLIError(err))
	}

	result, err := executeSync(cmd.Context(), mirrorFlags)
	if result == nil {
		return out.WriteError("sync", toCLIError(err))
	}
	view := buildSyncResult(result)
	if err != nil {
		return out.WriteResult("sync", view, toCLIError(err))
	}
	return out.WriteSuccess("sync", view)
}

func runPlan(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	if err := mirrorFlags.validate(); err != nil {
		return out.WriteError("plan", toCLIError(err))
	}

	plan, err := executePlan(cmd.Context(), mirrorFlags)
	if err != nil {
		return out.WriteError("plan", toCLIError(err))
	}
	return out.WriteSuccess("plan", buildPlanResult(plan, flags.Verbose))
}

func executeSync(ctx context.Context, opts mirrorOptions) (*mirror.Result, error) {
	engine, req, err := prepareMirror(opts)
	if err != nil {
		return nil, err
	}
	localDir, err := filepath.Abs(opts.localDir)
	if err != nil {
		return nil, err
	}
	return engine.Sync(ctx, req, localDir, engineOptions(opts, true))
}

func executePlan(ctx context.Context, opts mirrorOptions) (*mirror.Plan, error) {
	engine, req, err := prepareMirror(opts)
	if err != nil {
		return nil, err
	}
	localDir, err := filepath.Abs(opts.localDir)
	if err != nil {
		return nil, err
	}
	return engine.Plan(ctx, req, localDir, engineOptions(opts, false))
}

func prepareMirror(opts mirrorOptions) (*mirror.Engine, mirror.SnapshotRequest, error) {
	token, source, err := resolveToken(opts.token)
	if err != nil {
		return nil, mirror.SnapshotRequest{}, err
	}
	logger.Debug("Resolved token", logging.F("source", string(source)))

	req := mirror.SnapshotRequest{
		Repository: opts.repository,
		Branch:     opts.branch,
		Token:      token,
		SubDir:     opts.subDir,
	}
	return mirror.NewEngine(newSnapshotProvider(opts.source, token), logger), req, nil
}

func engineOptions(opts mirrorOptions, report bool) mirror.Options {
	concurrency := opts.concurrency
	if concurrency <= 0 {
		concurrency = appConfig.Concurrency
	}
	engineOpts := mirror.Options{
		Concurrency: concurrency,
		DryRun:      opts.dryRun,
		Excludes:    opts.excludes,
		LockDir:     filepath.Join(getConfigDir(), "locks"),
	}
	if report && !globalFlags.Quiet {
		engineOpts.Reporter = newProgressReporter(stderr, globalFlags.Verbose, appConfig.ColorOutput && !globalFlags.NoColor)
	}
	return engineOpts
}

func resolveToken(flagToken string) (string, auth.TokenSource, error) {
	mgr := auth.NewManager(getConfigDir())
	return mgr.ResolveToken(flagToken, globalFlags.Profile)
}

func newGitHubClient(token string) *github.Client {
	return github.NewClient(github.ClientOptions{
		BaseURL:    appConfig.APIBaseURL,
		Token:      token,
		MaxRetries: appConfig.MaxRetries,
		RetryDelay: appConfig.GetRetryBaseDelay(),
		Timeout:    appConfig.GetRequestTimeout(),
		Logger:     logger,
	})
}

func newSnapshotProvider(source, token string) mirror.SnapshotProvider {
	if source == "" {
		source = appConfig.DefaultSource
	}
	if source == utils.SourceGit {
		return gitsource.NewProvider("", logger)
	}
	return github.NewArchiveProvider(newGitHubClient(token))
}

func buildSyncResult(result *mirror.Result) *types.SyncResult {
	plan := result.Plan
	summary := result.Summary
	view := &types.SyncResult{
		Repository: plan.Request.Repository,
		Branch:     plan.Request.Branch,
		LocalDir:   plan.LocalDir,
		DryRun:     summary.DryRun,
		Counts: types.ActionCounts{
			Skipped: summary.Skipped,
			Updated: summary.Updated,
			Created: summary.Created,
			Deleted: summary.Deleted,
		},
		Failed:      summary.Failed,
		DirsRemoved: summary.DirsRemoved,
		Duration:    result.Duration.Round(time.Millisecond).String(),
	}
	if plan.Snapshot != nil {
		view.CommitSHA = plan.Snapshot.CommitSHA
	}
	for _, f := range summary.Failures {
		view.Failures = append(view.Failures, types.ActionFailure{Kind: f.Op, Path: f.Path, Error: f.Err.Error()})
	}
	return view
}

func buildPlanResult(plan *mirror.Plan, includeSkipped bool) *types.PlanResult {
	counts := plan.Diff.Counts
	view := &types.PlanResult{
		Repository: plan.Request.Repository,
		Branch:     plan.Request.Branch,
		LocalDir:   plan.LocalDir,
		Counts: types.ActionCounts{
			Skipped: counts.Skipped,
			Updated: counts.Updated,
			Created: counts.Created,
			Deleted: counts.Deleted,
		},
		Actions: []types.PlannedAction{},
	}
	for _, a := range plan.Diff.Actions {
		if a.Kind == diff.ActionSkip && !includeSkipped {
			continue
		}
		view.Actions = append(view.Actions, types.PlannedAction{
			Kind: strings.ToUpper(string(a.Kind)),
			Path: a.Path,
			Size: int64(len(a.Content)),
		})
	}
	return view
}
