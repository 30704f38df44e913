package organize

import (
	"linksort/internal/classify"
	"linksort/internal/config"
	"linksort/internal/jobstate"
	"linksort/internal/taxonomy"
)

// SettingsFrom captures the job-relevant configuration. Credentials are left
// out; only provider names, kinds, and model hints are recorded.
func SettingsFrom(cfg *config.Config) jobstate.Settings {
	providers := make([]jobstate.ProviderDescriptor, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		models := make([]jobstate.ModelDescriptor, 0, len(p.Models))
		for _, m := range p.Models {
			models = append(models, jobstate.ModelDescriptor{ID: m.ID, MaxItemsPerCall: m.MaxItemsPerCall, CallsPerMinute: m.CallsPerMinute})
		}
		providers = append(providers, jobstate.ProviderDescriptor{Name: p.Name, Kind: p.Kind, Models: models})
	}
	return jobstate.Settings{
		BatchSize:              cfg.Organize.BatchSize,
		RetryBudget:            cfg.Organize.BatchRetryBudget,
		RetryBackoffSeconds:    cfg.Organize.RetryBackoffSeconds,
		BatchDelaySeconds:      cfg.Scheduler.BatchDelay,
		RootFolderID:           cfg.Organize.RootFolderID,
		Delimiter:              cfg.Organize.Delimiter,
		Sentinel:               cfg.Organize.Sentinel,
		LearnedConfidenceFloor: cfg.Organize.LearnedConfidenceFloor,
		ObserveThreshold:       cfg.Organize.ObserveThreshold,
		ContinueOnExhaustion:   cfg.Organize.ContinueOnExhaustion,
		RequireSnapshot:        cfg.Organize.RequireSnapshot,
		MinCategories:          cfg.Taxonomy.MinCategories,
		MaxCategories:          cfg.Taxonomy.MaxCategories,
		MaxDepth:               cfg.Taxonomy.MaxDepth,
		SampleSize:             cfg.Taxonomy.SampleSize,
		SeedCategories:         append([]string(nil), cfg.Taxonomy.SeedCategories...),
		Providers:              providers,
	}
}

// ChainFrom converts recorded provider descriptors into a classify chain.
func ChainFrom(providers []jobstate.ProviderDescriptor) []classify.ChainEntry {
	chain := make([]classify.ChainEntry, 0, len(providers))
	for _, p := range providers {
		models := make([]classify.Model, 0, len(p.Models))
		for _, m := range p.Models {
			models = append(models, classify.Model{ID: m.ID, MaxItemsPerCall: m.MaxItemsPerCall, CallsPerMinute: m.CallsPerMinute})
		}
		chain = append(chain, classify.ChainEntry{Provider: p.Name, Models: models})
	}
	return chain
}

// BoundsFrom returns taxonomy bounds for a job.
func BoundsFrom(s jobstate.Settings) taxonomy.Bounds {
	return taxonomy.Bounds{
		MinCategories: s.MinCategories,
		MaxCategories: s.MaxCategories,
		MaxDepth:      s.MaxDepth,
		SampleSize:    s.SampleSize,
		Seeds:         s.SeedCategories,
		Delimiter:     s.Delimiter,
		Sentinel:      s.Sentinel,
	}
}
