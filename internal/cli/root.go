package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dl-alexandre/ghmirror/internal/config"
	"github.com/dl-alexandre/ghmirror/internal/logging"
	"github.com/dl-alexandre/ghmirror/internal/types"
	"github.com/dl-alexandre/ghmirror/internal/utils"
	"github.com/dl-alexandre/ghmirror/pkg/version"
	"github.com/spf13/cobra"
)

var (
	globalFlags types.GlobalFlags
	logger      logging.Logger = logging.NewNoOpLogger()
	appConfig                  = config.DefaultConfig()

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:   "ghmirror",
	Short: "Mirror a GitHub branch into a local directory",
	Long: `ghmirror makes a local directory an exact copy of a GitHub branch.

Files missing locally are created, changed files are updated and files that
no longer exist on the branch are deleted, along with directories left empty.
Line endings are normalized before comparing, so CRLF and LF copies of the
same text count as unchanged.

All commands support JSON output for automation and scripting.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		appConfig = cfg

		if !cmd.Flags().Changed("output") && !globalFlags.JSON {
			globalFlags.OutputFormat = cfg.DefaultOutputFormat
		}
		if !cmd.Flags().Changed("profile") {
			globalFlags.Profile = cfg.DefaultProfile
		}
		if err := validateGlobalFlags(); err != nil {
			return err
		}

		logger, err = logging.NewLogger(buildLogConfig(cfg))
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Close()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "Print the version, commit and build information of ghmirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)
		info := version.Get()
		if globalFlags.OutputFormat == types.OutputFormatJSON {
			return out.WriteSuccess("version", info)
		}
		fmt.Fprintln(stdout, info.String())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.Profile, "profile", "default", "Token profile to use")
	rootCmd.PersistentFlags().StringVar((*string)(&globalFlags.OutputFormat), "output", "table", "Output format (json, table)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Report unchanged files and enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Debug, "debug", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format (alias for --output json)")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.NoColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	if globalFlags.Config != "" {
		return config.LoadFrom(globalFlags.Config)
	}
	return config.Load()
}

func buildLogConfig(cfg *config.Config) logging.LogConfig {
	logConfig := logging.LogConfig{
		Level:           logging.WARN,
		OutputFile:      globalFlags.LogFile,
		EnableConsole:   !globalFlags.Quiet,
		EnableDebug:     globalFlags.Debug,
		RedactSensitive: true,
		EnableColor:     cfg.ColorOutput && !globalFlags.NoColor,
		EnableTimestamp: true,
	}

	switch cfg.LogLevel {
	case "quiet":
		logConfig.EnableConsole = false
	case "verbose":
		logConfig.Level = logging.INFO
	case "debug":
		logConfig.Level = logging.DEBUG
	}
	if globalFlags.Verbose {
		logConfig.Level = logging.INFO
	}
	if globalFlags.OutputFormat == types.OutputFormatJSON && !globalFlags.Verbose && !globalFlags.Debug {
		logConfig.EnableConsole = false
	}
	return logConfig
}

func validateGlobalFlags() error {
	if globalFlags.JSON {
		globalFlags.OutputFormat = types.OutputFormatJSON
	}
	if globalFlags.OutputFormat != types.OutputFormatJSON && globalFlags.OutputFormat != types.OutputFormatTable {
		return fmt.Errorf("invalid output format: %s", globalFlags.OutputFormat)
	}
	return nil
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return utils.ExitSuccess
	}

	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode()
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return utils.ExitInvalidArgument
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() types.GlobalFlags {
	return globalFlags
}

// GetLogger returns the global logger
func GetLogger() logging.Logger {
	return logger
}

func getConfigDir() string {
	dir, err := config.GetConfigDir()
	if err != nil {
		return ".ghmirror"
	}
	return dir
}
