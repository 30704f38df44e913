package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOrganize()
	c.normalizeTaxonomy()
	c.normalizeProviders()
	c.normalizeJobStore()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SnapshotDir) == "" {
		c.Paths.SnapshotDir = defaultSnapshotDir
	}
	if c.Paths.SnapshotDir, err = expandPath(c.Paths.SnapshotDir); err != nil {
		return fmt.Errorf("paths.snapshot_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LinksFile) == "" {
		c.Paths.LinksFile = defaultLinksFile
	}
	if c.Paths.LinksFile, err = expandPath(c.Paths.LinksFile); err != nil {
		return fmt.Errorf("paths.links_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeOrganize() {
	c.Organize.RootFolderID = strings.TrimSpace(c.Organize.RootFolderID)
	if c.Organize.RootFolderID == "" {
		c.Organize.RootFolderID = defaultRootFolderID
	}
	// The delimiter keeps its surrounding spaces; only an all-blank value resets.
	if strings.TrimSpace(c.Organize.Delimiter) == "" {
		c.Organize.Delimiter = defaultDelimiter
	}
	c.Organize.Sentinel = strings.TrimSpace(c.Organize.Sentinel)
	if c.Organize.Sentinel == "" {
		c.Organize.Sentinel = defaultSentinel
	}
	if c.Organize.InitGraceSeconds <= 0 {
		c.Organize.InitGraceSeconds = defaultInitGraceSeconds
	}
	if c.Organize.RetryBackoffSeconds <= 0 {
		c.Organize.RetryBackoffSeconds = defaultRetryBackoff
	}
}

func (c *Config) normalizeTaxonomy() {
	seeds := make([]string, 0, len(c.Taxonomy.SeedCategories))
	seen := make(map[string]struct{}, len(c.Taxonomy.SeedCategories))
	for _, seed := range c.Taxonomy.SeedCategories {
		trimmed := strings.TrimSpace(seed)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		seeds = append(seeds, trimmed)
	}
	c.Taxonomy.SeedCategories = seeds
	if c.Taxonomy.SampleSize <= 0 {
		c.Taxonomy.SampleSize = defaultSampleSize
	}
}

func (c *Config) normalizeProviders() {
	if len(c.Providers) == 0 {
		c.Providers = defaultProviders()
	}
	for i := range c.Providers {
		p := &c.Providers[i]
		p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			p.Name = p.Kind
		}
		p.BaseURL = strings.TrimSpace(p.BaseURL)
		p.Region = strings.TrimSpace(p.Region)
		p.Referer = strings.TrimSpace(p.Referer)
		p.Title = strings.TrimSpace(p.Title)
		if p.Kind == ProviderOpenRouter {
			if p.Referer == "" {
				p.Referer = defaultOpenRouterReferer
			}
			if p.Title == "" {
				p.Title = defaultOpenRouterTitle
			}
		}
		if p.TimeoutSeconds <= 0 {
			p.TimeoutSeconds = defaultProviderTimeout
		}
		p.APIKey = strings.TrimSpace(p.APIKey)
		if p.APIKey == "" {
			p.APIKey = apiKeyFromEnv(p.Kind)
		}
		for j := range p.Models {
			m := &p.Models[j]
			m.ID = strings.TrimSpace(m.ID)
			if m.MaxItemsPerCall < 0 {
				m.MaxItemsPerCall = 0
			}
			if m.CallsPerMinute < 0 {
				m.CallsPerMinute = 0
			}
		}
	}
}

func apiKeyFromEnv(kind string) string {
	var names []string
	switch kind {
	case ProviderOpenRouter:
		names = []string{"OPENROUTER_API_KEY"}
	case ProviderGemini:
		names = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case ProviderOpenAI:
		names = []string{"OPENAI_API_KEY"}
	case ProviderAnthropic:
		names = []string{"ANTHROPIC_API_KEY"}
	}
	for _, name := range names {
		if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func (c *Config) normalizeJobStore() {
	c.JobStore.Backend = strings.ToLower(strings.TrimSpace(c.JobStore.Backend))
	if c.JobStore.Backend == "" {
		c.JobStore.Backend = JobStoreSQLite
	}
	c.JobStore.RedisURL = strings.TrimSpace(c.JobStore.RedisURL)
	if c.JobStore.RedisURL == "" {
		if value, ok := os.LookupEnv("LINKSORT_REDIS_URL"); ok {
			c.JobStore.RedisURL = strings.TrimSpace(value)
		}
	}
	c.JobStore.KeyPrefix = strings.TrimSpace(c.JobStore.KeyPrefix)
	if c.JobStore.KeyPrefix == "" {
		c.JobStore.KeyPrefix = defaultKeyPrefix
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.FileFormat = strings.ToLower(strings.TrimSpace(c.Logging.FileFormat))
	switch c.Logging.FileFormat {
	case "console", "json":
	default:
		c.Logging.FileFormat = c.Logging.Format
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	c.Metrics.Token = strings.TrimSpace(c.Metrics.Token)
	if c.Metrics.Token == "" {
		if value, ok := os.LookupEnv("LINKSORT_API_TOKEN"); ok {
			c.Metrics.Token = strings.TrimSpace(value)
		}
	}
}
