package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"linksort/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndAddsDefaultProvider(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OPENROUTER_API_KEY", "env-key")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "linksort")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "linksort.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if len(cfg.Providers) != 1 {
		t.Fatalf("expected one default provider, got %d", len(cfg.Providers))
	}
	provider := cfg.Providers[0]
	if provider.Kind != config.ProviderOpenRouter {
		t.Fatalf("unexpected default provider kind %q", provider.Kind)
	}
	if provider.APIKey != "env-key" {
		t.Fatalf("expected API key from env, got %q", provider.APIKey)
	}
	if cfg.Organize.Delimiter != " > " {
		t.Fatalf("unexpected delimiter %q", cfg.Organize.Delimiter)
	}
	if cfg.JobStore.Backend != config.JobStoreSQLite {
		t.Fatalf("unexpected backend %q", cfg.JobStore.Backend)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.SnapshotDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPathKeepsProviderOrder(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "linksort.toml")

	type model struct {
		ID              string `toml:"id"`
		MaxItemsPerCall int    `toml:"max_items_per_call"`
		CallsPerMinute  int    `toml:"calls_per_minute"`
	}
	type provider struct {
		Name   string  `toml:"name"`
		Kind   string  `toml:"kind"`
		APIKey string  `toml:"api_key"`
		Models []model `toml:"models"`
	}
	type payload struct {
		Organize struct {
			BatchSize int `toml:"batch_size"`
		} `toml:"organize"`
		Providers []provider `toml:"providers"`
	}
	custom := payload{}
	custom.Organize.BatchSize = 25
	custom.Providers = []provider{
		{Name: "A", Kind: "openrouter", APIKey: "a", Models: []model{{ID: "a1", MaxItemsPerCall: 10}, {ID: "a2"}}},
		{Name: "B", Kind: "ollama", Models: []model{{ID: "b1", CallsPerMinute: 6}}},
	}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config file at %s, got %s (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Organize.BatchSize != 25 {
		t.Fatalf("unexpected batch size %d", cfg.Organize.BatchSize)
	}
	if len(cfg.Providers) != 2 || cfg.Providers[0].Name != "A" || cfg.Providers[1].Name != "B" {
		t.Fatalf("unexpected providers %+v", cfg.Providers)
	}
	if got := cfg.Providers[0].Models[1].ID; got != "a2" {
		t.Fatalf("unexpected model order, got %q", got)
	}
	if got := cfg.Providers[1].Models[0].CallsPerMinute; got != 6 {
		t.Fatalf("unexpected calls per minute %d", got)
	}
}

func TestLoadReadsDotenvWithoutOverridingEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[organize]\nbatch_size = 10\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	env := "OPENROUTER_API_KEY=from-dotenv\nLINKSORT_REDIS_URL=redis://dotenv:6379/0\n"
	if err := os.WriteFile(filepath.Join(dir, "linksort.env"), []byte(env), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("LINKSORT_REDIS_URL", "redis://process:6379/0")
	t.Setenv("OPENROUTER_API_KEY", "")
	os.Unsetenv("OPENROUTER_API_KEY")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Providers[0].APIKey != "from-dotenv" {
		t.Fatalf("expected api key from dotenv, got %q", cfg.Providers[0].APIKey)
	}
	if cfg.JobStore.RedisURL != "redis://process:6379/0" {
		t.Fatalf("expected process env to win, got %q", cfg.JobStore.RedisURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"batch size", func(c *config.Config) { c.Organize.BatchSize = 0 }, "organize.batch_size"},
		{"floor", func(c *config.Config) { c.Organize.LearnedConfidenceFloor = 1.5 }, "learned_confidence_floor"},
		{"taxonomy bounds", func(c *config.Config) { c.Taxonomy.MinCategories = 50 }, "taxonomy.min_categories"},
		{"unknown kind", func(c *config.Config) { c.Providers[0].Kind = "carrier-pigeon" }, "unsupported value"},
		{"no models", func(c *config.Config) { c.Providers[0].Models = nil }, "at least one model"},
		{"redis without url", func(c *config.Config) { c.JobStore.Backend = config.JobStoreRedis }, "job_store.redis_url"},
		{"poll interval", func(c *config.Config) { c.Scheduler.PollInterval = 0 }, "scheduler.poll_interval"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Providers = []config.Provider{{Name: "p", Kind: "openrouter", Models: []config.Model{{ID: "m"}}}}
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if len(cfg.Providers) != 1 || len(cfg.Providers[0].Models) != 2 {
		t.Fatalf("unexpected sample providers %+v", cfg.Providers)
	}
	if len(cfg.Taxonomy.SeedCategories) != 3 {
		t.Fatalf("unexpected seeds %v", cfg.Taxonomy.SeedCategories)
	}
}
