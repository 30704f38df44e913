package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOrganize(); err != nil {
		return err
	}
	if err := c.validateTaxonomy(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateJobStore(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateOrganize() error {
	if c.Organize.BatchSize <= 0 {
		return errors.New("organize.batch_size must be positive")
	}
	if c.Organize.BatchRetryBudget < 0 {
		return errors.New("organize.batch_retry_budget must be >= 0")
	}
	if c.Organize.LearnedConfidenceFloor < 0 || c.Organize.LearnedConfidenceFloor > 1 {
		return errors.New("organize.learned_confidence_floor must be between 0 and 1")
	}
	if c.Organize.ObserveThreshold < 0 || c.Organize.ObserveThreshold > 1 {
		return errors.New("organize.observe_threshold must be between 0 and 1")
	}
	if strings.Contains(c.Organize.Sentinel, strings.TrimSpace(c.Organize.Delimiter)) {
		return fmt.Errorf("organize.sentinel %q must not contain the delimiter", c.Organize.Sentinel)
	}
	return nil
}

func (c *Config) validateTaxonomy() error {
	if c.Taxonomy.MinCategories < 0 {
		return errors.New("taxonomy.min_categories must be >= 0")
	}
	if c.Taxonomy.MaxCategories <= 0 {
		return errors.New("taxonomy.max_categories must be positive")
	}
	if c.Taxonomy.MinCategories > c.Taxonomy.MaxCategories {
		return errors.New("taxonomy.min_categories must not exceed taxonomy.max_categories")
	}
	if c.Taxonomy.MaxDepth <= 0 {
		return errors.New("taxonomy.max_depth must be positive")
	}
	return nil
}

func (c *Config) validateProviders() error {
	names := make(map[string]struct{}, len(c.Providers))
	for i, p := range c.Providers {
		label := fmt.Sprintf("providers[%d]", i)
		switch p.Kind {
		case ProviderOpenRouter, ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderBedrock:
		case "":
			return fmt.Errorf("%s.kind must be set", label)
		default:
			return fmt.Errorf("%s.kind: unsupported value %q", label, p.Kind)
		}
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("%s.name %q is not unique", label, p.Name)
		}
		names[p.Name] = struct{}{}
		if len(p.Models) == 0 {
			return fmt.Errorf("%s (%s) must list at least one model", label, p.Name)
		}
		for j, m := range p.Models {
			if m.ID == "" {
				return fmt.Errorf("%s.models[%d].id must be set", label, j)
			}
		}
	}
	return nil
}

func (c *Config) validateJobStore() error {
	switch c.JobStore.Backend {
	case JobStoreSQLite:
		return nil
	case JobStoreRedis:
		if c.JobStore.RedisURL == "" {
			return errors.New("job_store.redis_url must be set when job_store.backend is redis (or set LINKSORT_REDIS_URL)")
		}
		return nil
	default:
		return fmt.Errorf("job_store.backend: unsupported value %q", c.JobStore.Backend)
	}
}

func (c *Config) validateScheduler() error {
	if err := ensurePositiveMap(map[string]int{
		"scheduler.poll_interval":        c.Scheduler.PollInterval,
		"scheduler.error_retry_interval": c.Scheduler.ErrorRetryInterval,
		"notifications.request_timeout":  c.Notifications.RequestTimeout,
		"organize.init_grace_seconds":    c.Organize.InitGraceSeconds,
		"organize.retry_backoff_seconds": c.Organize.RetryBackoffSeconds,
	}); err != nil {
		return err
	}
	if c.Scheduler.BatchDelay < 0 {
		return errors.New("scheduler.batch_delay must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
