package testsupport

import (
	"path/filepath"
	"testing"

	"linksort/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The inter-batch delay is zeroed so tests never wait on pacing.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SnapshotDir = filepath.Join(base, "snapshots")
	cfgVal.Paths.LinksFile = filepath.Join(base, "data", "links.json")
	cfgVal.Providers = []config.Provider{{
		Name:   "test",
		Kind:   config.ProviderOpenRouter,
		APIKey: "test",
		Models: []config.Model{{ID: "test-model", MaxItemsPerCall: 50}},
	}}
	cfgVal.Scheduler.BatchDelay = 0

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithBatchSize overrides organize.batch_size.
func WithBatchSize(n int) ConfigOption {
	return func(b *configBuilder) { b.cfg.Organize.BatchSize = n }
}

// WithProviders replaces the provider chain.
func WithProviders(providers ...config.Provider) ConfigOption {
	return func(b *configBuilder) { b.cfg.Providers = providers }
}

// WithSeeds sets taxonomy seed categories.
func WithSeeds(seeds ...string) ConfigOption {
	return func(b *configBuilder) { b.cfg.Taxonomy.SeedCategories = seeds }
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
