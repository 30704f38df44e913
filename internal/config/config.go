package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file locations.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	SnapshotDir string `toml:"snapshot_dir"`
	LinksFile   string `toml:"links_file"`
}

// Organize contains the batch pipeline knobs captured into each job.
type Organize struct {
	BatchSize              int     `toml:"batch_size"`
	BatchRetryBudget       int     `toml:"batch_retry_budget"`
	RootFolderID           string  `toml:"root_folder_id"`
	Delimiter              string  `toml:"delimiter"`
	Sentinel               string  `toml:"sentinel"`
	LearnedConfidenceFloor float64 `toml:"learned_confidence_floor"`
	ObserveThreshold       float64 `toml:"observe_threshold"`
	ContinueOnExhaustion   bool    `toml:"continue_on_exhaustion"`
	RequireSnapshot        bool    `toml:"require_snapshot"`
	InitGraceSeconds       int     `toml:"init_grace_seconds"`
	RetryBackoffSeconds    int     `toml:"retry_backoff_seconds"`
}

// Taxonomy bounds the category vocabulary generated once per job.
type Taxonomy struct {
	MinCategories  int      `toml:"min_categories"`
	MaxCategories  int      `toml:"max_categories"`
	MaxDepth       int      `toml:"max_depth"`
	SampleSize     int      `toml:"sample_size"`
	SeedCategories []string `toml:"seed_categories"`
}

// Model describes one model of a provider and its rate-limit hints.
type Model struct {
	ID              string `toml:"id"`
	MaxItemsPerCall int    `toml:"max_items_per_call"`
	CallsPerMinute  int    `toml:"calls_per_minute"`
}

// Provider describes one classification backend. Order in the config file is
// preference order.
type Provider struct {
	Name           string  `toml:"name"`
	Kind           string  `toml:"kind"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Region         string  `toml:"region"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Models         []Model `toml:"models"`
}

// JobStore selects the durable backend for job state and alarms.
type JobStore struct {
	Backend       string `toml:"backend"`
	RedisURL      string `toml:"redis_url"`
	RedisPassword string `toml:"redis_password"`
	KeyPrefix     string `toml:"key_prefix"`
}

// Scheduler contains wake-up loop timing.
type Scheduler struct {
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	BatchDelay         int `toml:"batch_delay"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Started        bool   `toml:"started"`
	Progress       bool   `toml:"progress"`
	Completed      bool   `toml:"completed"`
	Failed         bool   `toml:"failed"`
}

// Metrics contains the daemon HTTP endpoint (/metrics, /api/status). An
// empty bind disables it; a non-empty token guards the /api routes.
type Metrics struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	FileFormat    string `toml:"file_format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for linksort.
//
// Configuration sections by subsystem:
//   - Paths: data, log, snapshot directories and the link store file
//   - Organize: batch size, retry budget, folder root and delimiter
//   - Taxonomy: category vocabulary bounds and seeds
//   - Providers: ordered classification providers and their models
//   - JobStore: sqlite or redis durable state backend
//   - Scheduler: wake-up polling and batch pacing
//   - Notifications: ntfy push notification settings
//   - Metrics: Prometheus endpoint
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Organize      Organize      `toml:"organize"`
	Taxonomy      Taxonomy      `toml:"taxonomy"`
	Providers     []Provider    `toml:"providers"`
	JobStore      JobStore      `toml:"job_store"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Notifications Notifications `toml:"notifications"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotenv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("linksort.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// loadDotenv reads linksort.env next to the config file. Existing environment
// variables always win.
func loadDotenv(dir string) error {
	if dir == "" {
		return nil
	}
	envPath := filepath.Join(dir, dotenvFileName)
	info, err := os.Stat(envPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if info.IsDir() {
		return nil
	}
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("load env file %s: %w", envPath, err)
	}
	return nil
}

// EnsureDirectories creates required directories for daemon and CLI operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.SnapshotDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Paths.LinksFile); strings.TrimSpace(c.Paths.LinksFile) != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file backing job state, alarms, and patterns.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "linksort.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "linksortd.lock")
}

// PIDPath returns the file holding the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "linksortd.pid")
}

// UsesRedis reports whether the job store backend is redis.
func (c *Config) UsesRedis() bool {
	return c.JobStore.Backend == JobStoreRedis
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
