package preflight

import (
	"context"
	"path/filepath"

	"linksort/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Pinger is a store that can verify its connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunAll executes every preflight check for cfg. The job store check is
// skipped when jobs is nil; provider checks are skipped when skipProviders is
// set, since they cost one completion each.
func RunAll(ctx context.Context, cfg *config.Config, jobs Pinger, skipProviders bool) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDirectoryAccess("Snapshot directory", cfg.Paths.SnapshotDir))
	if dir := filepath.Dir(cfg.Paths.LinksFile); dir != filepath.Clean(cfg.Paths.DataDir) {
		results = append(results, CheckDirectoryAccess("Link store directory", dir))
	}
	results = append(results, CheckLinkStore(ctx, cfg.Paths.LinksFile))

	if jobs != nil {
		results = append(results, CheckJobStore(ctx, cfg.JobStore.Backend, jobs))
	}

	if !skipProviders {
		for _, p := range cfg.Providers {
			results = append(results, CheckProvider(ctx, p))
		}
	}
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
