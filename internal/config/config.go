package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dl-alexandre/ghmirror/internal/types"
	"github.com/dl-alexandre/ghmirror/internal/utils"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the name of the config file
	ConfigFileName = "config.json"
	// ConfigDirName is the directory under the XDG config home
	ConfigDirName = "ghmirror"
	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "GHMIRROR_"
	// DotEnvFileName is read from the working directory and the config directory
	DotEnvFileName = ".env"
)

// Config holds application configuration
type Config struct {
	// DefaultProfile is the keyring profile tokens are read from
	DefaultProfile string `json:"defaultProfile" mapstructure:"defaultProfile"`

	// DefaultOutputFormat is the default output format (json, table)
	DefaultOutputFormat types.OutputFormat `json:"defaultOutputFormat" mapstructure:"defaultOutputFormat"`

	// DefaultSource picks how snapshots are fetched (zipball, git)
	DefaultSource string `json:"defaultSource" mapstructure:"defaultSource"`

	// Concurrency bounds parallel writes and deletes
	Concurrency int `json:"concurrency" mapstructure:"concurrency"`

	// MaxRetries is the maximum number of retries for API calls
	MaxRetries int `json:"maxRetries" mapstructure:"maxRetries"`

	// RetryBaseDelay is the base delay for exponential backoff in milliseconds
	RetryBaseDelay int `json:"retryBaseDelay" mapstructure:"retryBaseDelay"`

	// RequestTimeout is the per-request timeout in seconds
	RequestTimeout int `json:"requestTimeout" mapstructure:"requestTimeout"`

	// LogLevel sets the logging verbosity (quiet, normal, verbose, debug)
	LogLevel string `json:"logLevel" mapstructure:"logLevel"`

	// ColorOutput enables colored progress lines
	ColorOutput bool `json:"colorOutput" mapstructure:"colorOutput"`

	// APIBaseURL points at the GitHub REST API (GitHub Enterprise uses its own host)
	APIBaseURL string `json:"apiBaseURL" mapstructure:"apiBaseURL"`
}

// envBindings maps config keys to their environment variable suffixes
var envBindings = map[string]string{
	"defaultProfile":      "DEFAULT_PROFILE",
	"defaultOutputFormat": "OUTPUT_FORMAT",
	"defaultSource":       "SOURCE",
	"concurrency":         "CONCURRENCY",
	"maxRetries":          "MAX_RETRIES",
	"retryBaseDelay":      "RETRY_BASE_DELAY",
	"requestTimeout":      "REQUEST_TIMEOUT",
	"logLevel":            "LOG_LEVEL",
	"colorOutput":         "COLOR_OUTPUT",
	"apiBaseURL":          "API_BASE_URL",
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultProfile:      "default",
		DefaultOutputFormat: types.OutputFormatTable,
		DefaultSource:       utils.SourceZipball,
		Concurrency:         utils.DefaultConcurrency,
		MaxRetries:          utils.DefaultMaxRetries,
		RetryBaseDelay:      utils.DefaultRetryDelayMs,
		RequestTimeout:      int(utils.DefaultRequestTimeout / time.Second),
		LogLevel:            "normal",
		ColorOutput:         true,
		APIBaseURL:          utils.GitHubAPIBase,
	}
}

// Load loads configuration with precedence: env vars > config file > defaults
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from an explicit file path
func LoadFrom(path string) (*Config, error) {
	loadDotEnv()

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	defaults := DefaultConfig()
	v.SetDefault("defaultProfile", defaults.DefaultProfile)
	v.SetDefault("defaultOutputFormat", string(defaults.DefaultOutputFormat))
	v.SetDefault("defaultSource", defaults.DefaultSource)
	v.SetDefault("concurrency", defaults.Concurrency)
	v.SetDefault("maxRetries", defaults.MaxRetries)
	v.SetDefault("retryBaseDelay", defaults.RetryBaseDelay)
	v.SetDefault("requestTimeout", defaults.RequestTimeout)
	v.SetDefault("logLevel", defaults.LogLevel)
	v.SetDefault("colorOutput", defaults.ColorOutput)
	v.SetDefault("apiBaseURL", defaults.APIBaseURL)

	for key, suffix := range envBindings {
		_ = v.BindEnv(key, EnvPrefix+suffix)
	}
	return v
}

// loadDotEnv loads .env files without overriding variables already set
func loadDotEnv() {
	candidates := []string{DotEnvFileName}
	if dir, err := GetConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, DotEnvFileName))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// Save saves the configuration to the config file
func (c *Config) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to an explicit file path
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DefaultOutputFormat != types.OutputFormatJSON &&
		c.DefaultOutputFormat != types.OutputFormatTable {
		return fmt.Errorf("invalid output format: %s (must be 'json' or 'table')", c.DefaultOutputFormat)
	}

	if c.DefaultSource != utils.SourceZipball && c.DefaultSource != utils.SourceGit {
		return fmt.Errorf("invalid source: %s (must be '%s' or '%s')", c.DefaultSource, utils.SourceZipball, utils.SourceGit)
	}

	if c.Concurrency < 1 || c.Concurrency > 64 {
		return fmt.Errorf("concurrency must be between 1 and 64, got: %d", c.Concurrency)
	}

	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("max retries must be between 0 and 10, got: %d", c.MaxRetries)
	}

	if c.RetryBaseDelay < 100 || c.RetryBaseDelay > 60000 {
		return fmt.Errorf("retry base delay must be between 100ms and 60000ms, got: %d", c.RetryBaseDelay)
	}

	if c.RequestTimeout < 1 || c.RequestTimeout > 3600 {
		return fmt.Errorf("request timeout must be between 1 and 3600 seconds, got: %d", c.RequestTimeout)
	}

	validLogLevels := []string{"quiet", "normal", "verbose", "debug"}
	isValid := false
	for _, level := range validLogLevels {
		if c.LogLevel == level {
			isValid = true
			break
		}
	}
	if !isValid {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API base URL: %q", c.APIBaseURL)
	}

	return nil
}

// GetRetryBaseDelay returns the retry base delay as a duration
func (c *Config) GetRetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelay) * time.Millisecond
}

// GetRequestTimeout returns the request timeout as a duration
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigFileName), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	if xdg.ConfigHome == "" {
		return "", errors.New("failed to resolve user config directory")
	}
	return filepath.Join(xdg.ConfigHome, ConfigDirName), nil
}

// ParseBool parses a boolean value from a string
func ParseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
