package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dl-alexandre/ghmirror/internal/auth"
	"github.com/dl-alexandre/ghmirror/internal/utils"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  "Manage the GitHub token used for private repositories and higher rate limits",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a GitHub token",
	Long: `Store a GitHub personal access token for the current profile.

The token is read from --token or, with --with-token, from standard input.
It is kept in the system keyring, or in an encrypted file when no keyring
is available.`,
	Example: `  echo "$TOKEN" | ghmirror auth login --with-token
  ghmirror auth login --token ghp_xxx --profile work`,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored token",
	Long:  "Delete the stored token for the current or specified profile",
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long:  "Display which token would be used and, with --verify, the account it belongs to",
	RunE:  runAuthStatus,
}

var (
	authToken        string
	authWithToken    bool
	authLoginVerify  bool
	authStatusVerify bool
)

func init() {
	authLoginCmd.Flags().StringVar(&authToken, "token", "", "Token to store")
	authLoginCmd.Flags().BoolVar(&authWithToken, "with-token", false, "Read the token from standard input")
	authLoginCmd.Flags().BoolVar(&authLoginVerify, "verify", true, "Check the token against the GitHub API before storing it")
	authStatusCmd.Flags().BoolVar(&authStatusVerify, "verify", false, "Check the token against the GitHub API")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	token := authToken
	if authWithToken {
		read, err := readToken(cmd.InOrStdin())
		if err != nil {
			return out.WriteError("auth.login", invalidArgument("failed to read token from stdin: %v", err))
		}
		token = read
	}
	if strings.TrimSpace(token) == "" {
		return out.WriteError("auth.login", invalidArgument("a token is required: pass --token or --with-token"))
	}

	mgr := auth.NewManager(getConfigDir())
	if warning := mgr.GetStorageWarning(); warning != "" {
		out.Log("%s", warning)
	}

	result := map[string]interface{}{
		"profile":        flags.Profile,
		"storageBackend": mgr.GetStorageBackend(),
	}
	if authLoginVerify {
		user, err := newGitHubClient(strings.TrimSpace(token)).CurrentUser(cmd.Context())
		if err != nil {
			return out.WriteError("auth.login", toCLIError(err))
		}
		result["login"] = user.Login
	}

	if err := mgr.SaveToken(flags.Profile, token); err != nil {
		return out.WriteError("auth.login", utils.NewCLIError(utils.ErrCodeInternalError,
			fmt.Sprintf("Failed to store token: %v", err)).Build())
	}

	out.Log("Token stored for profile: %s", flags.Profile)
	return out.WriteSuccess("auth.login", result)
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	mgr := auth.NewManager(getConfigDir())
	if err := mgr.DeleteToken(flags.Profile); err != nil {
		if errors.Is(err, auth.ErrNoToken) {
			return out.WriteError("auth.logout", utils.NewCLIError(utils.ErrCodeAuthRequired,
				fmt.Sprintf("No token found for profile '%s'", flags.Profile)).Build())
		}
		return out.WriteError("auth.logout", toCLIError(err))
	}

	out.Log("Token removed for profile: %s", flags.Profile)
	return out.WriteSuccess("auth.logout", map[string]interface{}{
		"profile": flags.Profile,
		"status":  "logged_out",
	})
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	mgr := auth.NewManager(getConfigDir())
	if warning := mgr.GetStorageWarning(); warning != "" && flags.Verbose {
		out.Log("%s", warning)
	}

	token, source, err := mgr.ResolveToken("", flags.Profile)
	if err != nil {
		return out.WriteError("auth.status", toCLIError(err))
	}
	profiles, err := mgr.ListProfiles()
	if err != nil {
		return out.WriteError("auth.status", toCLIError(err))
	}

	status := map[string]interface{}{
		"profile":        flags.Profile,
		"authenticated":  token != "",
		"tokenSource":    string(source),
		"token":          auth.MaskToken(token),
		"storageBackend": mgr.GetStorageBackend(),
		"profiles":       profiles,
	}
	if authStatusVerify && token != "" {
		user, err := newGitHubClient(token).CurrentUser(cmd.Context())
		if err != nil {
			return out.WriteError("auth.status", toCLIError(err))
		}
		status["login"] = user.Login
	}
	return out.WriteSuccess("auth.status", status)
}

func readToken(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(scanner.Text()), nil
}
