package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dl-alexandre/ghmirror/internal/logging"
	mirror "github.com/dl-alexandre/ghmirror/internal/sync"
	"github.com/dl-alexandre/ghmirror/internal/sync/index"
	"github.com/dl-alexandre/ghmirror/internal/types"
	"github.com/dl-alexandre/ghmirror/internal/utils"
	"github.com/spf13/cobra"
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Manage saved mirror targets",
	Long:  "Save repository, branch and directory bindings so they can be mirrored again by name",
}

var targetAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Save a mirror target",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetAdd,
}

var targetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved targets",
	RunE:  runTargetList,
}

var targetRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a saved target and its run history",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetRemove,
}

var targetRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Mirror a saved target",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetRun,
}

var targetCheckCmd = &cobra.Command{
	Use:   "check <name>",
	Short: "Check whether the branch moved since the last mirror",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetCheck,
}

var (
	targetFlags   mirrorOptions
	targetReplace bool
)

func init() {
	addMirrorFlags(targetAddCmd, &targetFlags)
	targetAddCmd.Flags().BoolVar(&targetReplace, "replace", false, "Overwrite an existing target with the same name")

	targetRunCmd.Flags().StringVar(&targetFlags.token, "token", "", "GitHub token (defaults to GITHUB_TOKEN or the stored profile token)")
	targetRunCmd.Flags().IntVar(&targetFlags.concurrency, "concurrency", 0, "Concurrent file operations (defaults to config)")
	targetRunCmd.Flags().BoolVar(&targetFlags.dryRun, "dry-run", false, "Report the actions without changing the local directory")

	targetCheckCmd.Flags().StringVar(&targetFlags.token, "token", "", "GitHub token (defaults to GITHUB_TOKEN or the stored profile token)")

	targetCmd.AddCommand(targetAddCmd)
	targetCmd.AddCommand(targetListCmd)
	targetCmd.AddCommand(targetRemoveCmd)
	targetCmd.AddCommand(targetRunCmd)
	targetCmd.AddCommand(targetCheckCmd)
	rootCmd.AddCommand(targetCmd)
}

func openTargetDB() (*index.DB, error) {
	return index.Open(filepath.Join(getConfigDir(), index.FileName))
}

func runTargetAdd(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)
	ctx := cmd.Context()

	if err := targetFlags.validate(); err != nil {
		return out.WriteError("target.add", toCLIError(err))
	}
	localDir, err := filepath.Abs(targetFlags.localDir)
	if err != nil {
		return out.WriteError("target.add", utils.NewCLIError(utils.ErrCodeInvalidPath, err.Error()).Build())
	}
	source := targetFlags.source
	if source == "" {
		source = appConfig.DefaultSource
	}

	db, err := openTargetDB()
	if err != nil {
		return out.WriteError("target.add", toCLIError(err))
	}
	defer db.Close()

	exists, err := db.TargetExists(ctx, args[0])
	if err != nil {
		return out.WriteError("target.add", toCLIError(err))
	}
	if exists && !targetReplace {
		return out.WriteError("target.add", invalidArgument("target %q already exists (use --replace to overwrite)", args[0]))
	}

	target := index.Target{
		Name:            args[0],
		Repository:      targetFlags.repository,
		Branch:          targetFlags.branch,
		LocalDir:        localDir,
		SubDir:          targetFlags.subDir,
		Source:          source,
		ExcludePatterns: targetFlags.excludes,
	}
	if err := db.UpsertTarget(ctx, target); err != nil {
		return out.WriteError("target.add", toCLIError(err))
	}

	out.Log("Saved target %s", target.Name)
	return out.WriteSuccess("target.add", toTargetView(target))
}

func runTargetList(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	db, err := openTargetDB()
	if err != nil {
		return out.WriteError("target.list", toCLIError(err))
	}
	defer db.Close()

	targets, err := db.ListTargets(cmd.Context())
	if err != nil {
		return out.WriteError("target.list", toCLIError(err))
	}

	list := &types.TargetList{Targets: make([]types.Target, 0, len(targets))}
	for _, t := range targets {
		list.Targets = append(list.Targets, toTargetView(t))
	}
	return out.WriteSuccess("target.list", list)
}

func runTargetRemove(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	db, err := openTargetDB()
	if err != nil {
		return out.WriteError("target.remove", toCLIError(err))
	}
	defer db.Close()

	if err := db.DeleteTarget(cmd.Context(), args[0]); err != nil {
		return out.WriteError("target.remove", toCLIError(err))
	}

	out.Log("Removed target %s", args[0])
	return out.WriteSuccess("target.remove", map[string]interface{}{
		"name": args[0],
	})
}

func runTargetRun(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)
	ctx := cmd.Context()

	db, err := openTargetDB()
	if err != nil {
		return out.WriteError("target.run", toCLIError(err))
	}
	defer db.Close()

	target, err := db.GetTarget(ctx, args[0])
	if err != nil {
		return out.WriteError("target.run", toCLIError(err))
	}

	result, runErr := runSavedTarget(ctx, db, *target, targetFlags)
	if result == nil {
		return out.WriteError("target.run", toCLIError(runErr))
	}
	view := buildSyncResult(result)
	if runErr != nil {
		return out.WriteResult("target.run", view, toCLIError(runErr))
	}
	return out.WriteSuccess("target.run", view)
}

// runSavedTarget mirrors a target and records the run. The target is marked synced only
// when every action succeeded.
func runSavedTarget(ctx context.Context, db *index.DB, target index.Target, overrides mirrorOptions) (*mirror.Result, error) {
	opts := mirrorOptions{
		repository:  target.Repository,
		branch:      target.Branch,
		localDir:    target.LocalDir,
		subDir:      target.SubDir,
		source:      target.Source,
		excludes:    target.ExcludePatterns,
		token:       overrides.token,
		concurrency: overrides.concurrency,
		dryRun:      overrides.dryRun,
	}

	started := time.Now()
	result, runErr := executeSync(ctx, opts)

	run := index.Run{
		TargetName: target.Name,
		StartedAt:  started.Unix(),
		FinishedAt: time.Now().Unix(),
		DryRun:     opts.dryRun,
	}
	if result != nil {
		summary := result.Summary
		run.Skipped = summary.Skipped
		run.Updated = summary.Updated
		run.Created = summary.Created
		run.Deleted = summary.Deleted
		run.Failed = summary.Failed
		run.DirsRemoved = summary.DirsRemoved
		if result.Plan != nil && result.Plan.Snapshot != nil {
			run.CommitSHA = result.Plan.Snapshot.CommitSHA
		}
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	// history must survive a cancelled run
	recordCtx := context.WithoutCancel(ctx)
	if _, err := db.RecordRun(recordCtx, run); err != nil {
		logger.Warn("Failed to record run", logging.F("target", target.Name), logging.F("error", err))
	}
	if runErr == nil && !opts.dryRun {
		if err := db.MarkSynced(recordCtx, target.Name, run.CommitSHA, time.Now()); err != nil {
			return result, fmt.Errorf("mirror succeeded but target state was not saved: %w", err)
		}
	}
	return result, runErr
}

func runTargetCheck(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)
	ctx := cmd.Context()

	db, err := openTargetDB()
	if err != nil {
		return out.WriteError("target.check", toCLIError(err))
	}
	defer db.Close()

	target, err := db.GetTarget(ctx, args[0])
	if err != nil {
		return out.WriteError("target.check", toCLIError(err))
	}

	token, _, err := resolveToken(targetFlags.token)
	if err != nil {
		return out.WriteError("target.check", toCLIError(err))
	}
	head, err := newGitHubClient(token).GetBranch(ctx, target.Repository, target.Branch)
	if err != nil {
		return out.WriteError("target.check", toCLIError(err))
	}

	return out.WriteSuccess("target.check", &types.UpdateCheck{
		Target:        target.Name,
		Branch:        target.Branch,
		LatestSHA:     head.Commit.SHA,
		LastSyncedSHA: target.LastCommitSHA,
		UpToDate:      target.LastCommitSHA != "" && target.LastCommitSHA == head.Commit.SHA,
	})
}

func toTargetView(t index.Target) types.Target {
	return types.Target{
		Name:          t.Name,
		Repository:    t.Repository,
		Branch:        t.Branch,
		LocalDir:      t.LocalDir,
		SubDir:        t.SubDir,
		Source:        t.Source,
		Excludes:      t.ExcludePatterns,
		LastCommitSHA: t.LastCommitSHA,
		LastSyncTime:  t.LastSyncTime,
	}
}
