// Package config manages cvmbatch configuration: a JSON file under ~/.cvmbatch,
// an optional .env file, and CVMBATCH_* environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/xiansir-zhe/cloud-tool/internal/core"
)

const (
	ConfigDirName    = ".cvmbatch"
	ConfigFileName   = "config.json"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
	DefaultRegion    = "ap-hongkong"

	// DefaultGateUsername and DefaultGateSecret seed the access gate when no secret is configured.
	DefaultGateUsername = "admin"
	DefaultGateSecret   = "Welcome2tencent"

	DefaultComputeBaseURL      = "https://workbench.cloud.tencent.com"
	DefaultBlockStorageBaseURL = "https://capi.cloud.tencent.com"
)

// Environment variable names recognised by ApplyEnv.
const (
	EnvHome       = "CVMBATCH_HOME"
	EnvAccountID  = "CVMBATCH_ACCOUNT_ID"
	EnvRegion     = "CVMBATCH_REGION"
	EnvLogLevel   = "CVMBATCH_LOG_LEVEL"
	EnvLogFormat  = "CVMBATCH_LOG_FORMAT"
	EnvWorkers    = "CVMBATCH_WORKERS"
	EnvStateDir   = "CVMBATCH_STATE_DIR"
	EnvReportsDir = "CVMBATCH_REPORTS_DIR"
	EnvGateSecret = "CVMBATCH_GATE_SECRET"
)

// GateConfig configures the access gate seed principal.
type GateConfig struct {
	Username   string `json:"username"`
	SeedSecret string `json:"seed_secret,omitempty"`
}

// ServeConfig configures the console listeners.
type ServeConfig struct {
	HTTPAddr string `json:"http_addr"`
	RPCAddr  string `json:"rpc_addr"`
}

// Config holds user-level configuration for cvmbatch.
type Config struct {
	AccountID             string      `json:"account_id"`
	Region                string      `json:"region"`
	LogLevel              string      `json:"log_level"`
	LogFormat             string      `json:"log_format"`
	StateDir              string      `json:"state_dir"`
	ReportsDir            string      `json:"reports_dir"`
	Workers               int         `json:"workers"`
	RequestTimeoutSeconds int         `json:"request_timeout_seconds"`
	RetryMax              int         `json:"retry_max"`
	MinIntervalMillis     int         `json:"min_interval_millis"`
	BlockStorageRegionID  int         `json:"block_storage_region_id"`
	Spreadsheet           bool        `json:"spreadsheet"`
	ComputeBaseURL        string      `json:"compute_base_url"`
	BlockStorageBaseURL   string      `json:"block_storage_base_url"`
	Gate                  GateConfig  `json:"gate"`
	Scope                 core.Scope  `json:"scope"`
	Serve                 ServeConfig `json:"serve"`
}

// Default returns sensible defaults rooted at the config directory.
func Default() Config {
	dir := Dir()
	return Config{
		Region:                DefaultRegion,
		LogLevel:              DefaultLogLevel,
		LogFormat:             DefaultLogFormat,
		StateDir:              dir,
		ReportsDir:            filepath.Join(dir, "reports"),
		Workers:               1,
		RequestTimeoutSeconds: 60,
		RetryMax:              0,
		BlockStorageRegionID:  4,
		Spreadsheet:           true,
		ComputeBaseURL:        DefaultComputeBaseURL,
		BlockStorageBaseURL:   DefaultBlockStorageBaseURL,
		Gate:                  GateConfig{Username: DefaultGateUsername},
		Serve: ServeConfig{
			HTTPAddr: ":8501",
			RPCAddr:  "127.0.0.1:8502",
		},
	}
}

// Dir returns the config directory path, honouring CVMBATCH_HOME.
func Dir() string {
	if d := os.Getenv(EnvHome); d != "" {
		return d
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ConfigDirName)
}

// Path returns the config file path.
func Path() string {
	return filepath.Join(Dir(), ConfigFileName)
}

// Load reads the config file at path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Save persists cfg to path with owner-only permissions.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// LoadEffective loads .env from the working directory (if any), then the config file,
// then applies environment overrides.
func LoadEffective() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	cfg, err := Load(Path())
	if err != nil {
		return Config{}, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment via getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvAccountID); v != "" {
		c.AccountID = v
	}
	if v := getenv(EnvRegion); v != "" {
		c.Region = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvLogFormat); v != "" {
		c.LogFormat = v
	}
	if v := getenv(EnvStateDir); v != "" {
		c.StateDir = v
	}
	if v := getenv(EnvReportsDir); v != "" {
		c.ReportsDir = v
	}
	if v := getenv(EnvGateSecret); v != "" {
		c.Gate.SeedSecret = v
	}
	if v := getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 1 {
			return fmt.Errorf("%s must be a positive integer, got %q", EnvWorkers, v)
		}
		c.Workers = n
	}
	return nil
}

// GateSeedSecret is the secret the gate is seeded with on first start.
func (c Config) GateSeedSecret() string {
	if c.Gate.SeedSecret != "" {
		return c.Gate.SeedSecret
	}
	return DefaultGateSecret
}

// GateUsername is the principal the gate authorizes against.
func (c Config) GateUsername() string {
	if c.Gate.Username != "" {
		return c.Gate.Username
	}
	return DefaultGateUsername
}

// RequestTimeout converts the configured timeout. Zero disables it.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// MinInterval is the minimum spacing between vendor calls.
func (c Config) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMillis) * time.Millisecond
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	out := c
	if out.Gate.SeedSecret != "" {
		out.Gate.SeedSecret = "[set]"
	}
	return out
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("retry_max must not be negative, got %d", c.RetryMax)
	}
	if c.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("request_timeout_seconds must not be negative, got %d", c.RequestTimeoutSeconds)
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir must be set")
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	return nil
}
