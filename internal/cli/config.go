package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dl-alexandre/ghmirror/internal/config"
	"github.com/dl-alexandre/ghmirror/internal/types"
	"github.com/dl-alexandre/ghmirror/internal/utils"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  "Commands for managing ghmirror configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current configuration settings",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Use 'config show' to see available keys",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset configuration to defaults",
	Long:  "Reset all configuration settings to their default values",
	RunE:  runConfigReset,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)
	return out.WriteSuccess("config.show", configView(appConfig))
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	key, value := args[0], args[1]
	cfg := *appConfig
	if err := applyConfigValue(&cfg, key, value); err != nil {
		return out.WriteError("config.set", invalidArgument("%v", err))
	}
	if err := cfg.Validate(); err != nil {
		return out.WriteError("config.set", invalidArgument("%v", err))
	}

	if err := saveConfig(&cfg); err != nil {
		return out.WriteError("config.set", utils.NewCLIError(utils.ErrCodeInternalError,
			fmt.Sprintf("Failed to save configuration: %v", err)).Build())
	}
	appConfig = &cfg

	out.Log("Configuration updated: %s = %s", key, value)
	return out.WriteSuccess("config.set", map[string]interface{}{
		"key":   key,
		"value": value,
	})
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	cfg := config.DefaultConfig()
	if err := saveConfig(cfg); err != nil {
		return out.WriteError("config.reset", utils.NewCLIError(utils.ErrCodeInternalError,
			fmt.Sprintf("Failed to reset configuration: %v", err)).Build())
	}
	appConfig = cfg

	out.Log("Configuration reset to defaults")
	return out.WriteSuccess("config.reset", configView(cfg))
}

func saveConfig(cfg *config.Config) error {
	if globalFlags.Config != "" {
		return cfg.SaveTo(globalFlags.Config)
	}
	return cfg.Save()
}

// applyConfigValue sets one key; range checks are left to Config.Validate
func applyConfigValue(cfg *config.Config, key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		return n, nil
	}

	var err error
	switch strings.ToLower(key) {
	case "defaultprofile":
		cfg.DefaultProfile = value
	case "defaultoutputformat":
		cfg.DefaultOutputFormat = types.OutputFormat(value)
	case "defaultsource":
		cfg.DefaultSource = value
	case "concurrency":
		cfg.Concurrency, err = atoi()
	case "maxretries":
		cfg.MaxRetries, err = atoi()
	case "retrybasedelay":
		cfg.RetryBaseDelay, err = atoi()
	case "requesttimeout":
		cfg.RequestTimeout, err = atoi()
	case "loglevel":
		cfg.LogLevel = value
	case "coloroutput":
		cfg.ColorOutput = config.ParseBool(value)
	case "apibaseurl":
		cfg.APIBaseURL = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return err
}

// configTable renders a config as key/value rows
type configTable struct {
	*config.Config
}

func configView(cfg *config.Config) *configTable {
	return &configTable{Config: cfg}
}

func (c *configTable) Headers() []string {
	return []string{"Key", "Value"}
}

func (c *configTable) Rows() [][]string {
	return [][]string{
		{"defaultProfile", c.DefaultProfile},
		{"defaultOutputFormat", string(c.DefaultOutputFormat)},
		{"defaultSource", c.DefaultSource},
		{"concurrency", strconv.Itoa(c.Concurrency)},
		{"maxRetries", strconv.Itoa(c.MaxRetries)},
		{"retryBaseDelay", strconv.Itoa(c.RetryBaseDelay)},
		{"requestTimeout", strconv.Itoa(c.RequestTimeout)},
		{"logLevel", c.LogLevel},
		{"colorOutput", strconv.FormatBool(c.ColorOutput)},
		{"apiBaseURL", c.APIBaseURL},
	}
}

func (c *configTable) EmptyMessage() string {
	return ""
}
