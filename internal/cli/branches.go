package cli

import (
	"github.com/dl-alexandre/ghmirror/internal/github"
	"github.com/dl-alexandre/ghmirror/internal/types"
	"github.com/spf13/cobra"
)

var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "List the branches of a repository",
	RunE:  runBranches,
}

var (
	branchesRepo  string
	branchesToken string
)

func init() {
	branchesCmd.Flags().StringVar(&branchesRepo, "repo", "", "Repository as owner/name (required)")
	branchesCmd.Flags().StringVar(&branchesToken, "token", "", "GitHub token (defaults to GITHUB_TOKEN or the stored profile token)")
	_ = branchesCmd.MarkFlagRequired("repo")

	rootCmd.AddCommand(branchesCmd)
}

func runBranches(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	if err := github.ValidateRepository(branchesRepo); err != nil {
		return out.WriteError("branches", invalidArgument("%v", err))
	}
	token, _, err := resolveToken(branchesToken)
	if err != nil {
		return out.WriteError("branches", toCLIError(err))
	}

	branches, err := newGitHubClient(token).ListBranches(cmd.Context(), branchesRepo)
	if err != nil {
		return out.WriteError("branches", toCLIError(err))
	}

	list := &types.BranchList{Repository: branchesRepo, Branches: make([]types.Branch, 0, len(branches))}
	for _, b := range branches {
		list.Branches = append(list.Branches, types.Branch{Name: b.Name, CommitSHA: b.Commit.SHA, Protected: b.Protected})
	}
	return out.WriteSuccess("branches", list)
}
