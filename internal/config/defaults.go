package config

const (
	defaultConfigPath        = "~/.config/linksort/config.toml"
	dotenvFileName           = "linksort.env"
	defaultDataDir           = "~/.local/share/linksort"
	defaultLogDir            = "~/.local/share/linksort/logs"
	defaultSnapshotDir       = "~/.local/share/linksort/snapshots"
	defaultLinksFile         = "~/.local/share/linksort/links.json"
	defaultBatchSize         = 50
	defaultBatchRetryBudget  = 3
	defaultRootFolderID      = "root"
	defaultDelimiter         = " > "
	defaultSentinel          = "Unclassified"
	defaultConfidenceFloor   = 0.7
	defaultObserveThreshold  = 0.9
	defaultInitGraceSeconds  = 60
	defaultRetryBackoff      = 30
	defaultMinCategories     = 5
	defaultMaxCategories     = 40
	defaultMaxDepth          = 3
	defaultSampleSize        = 200
	defaultProviderTimeout   = 60
	defaultOpenRouterModel   = "google/gemini-3-flash-preview"
	defaultOpenRouterReferer = "https://github.com/linksort/linksort"
	defaultOpenRouterTitle   = "linksort"
	defaultMaxItemsPerCall   = 50
	defaultCallsPerMinute    = 20
	defaultKeyPrefix         = "linksort"
	defaultPollInterval      = 2
	defaultErrorRetry        = 10
	defaultBatchDelay        = 2
	defaultNotifyTimeout     = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
)

// Provider kinds understood by the classification client.
const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOllama     = "ollama"
	ProviderBedrock    = "bedrock"
)

// Job store backends.
const (
	JobStoreSQLite = "sqlite"
	JobStoreRedis  = "redis"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			SnapshotDir: defaultSnapshotDir,
			LinksFile:   defaultLinksFile,
		},
		Organize: Organize{
			BatchSize:              defaultBatchSize,
			BatchRetryBudget:       defaultBatchRetryBudget,
			RootFolderID:           defaultRootFolderID,
			Delimiter:              defaultDelimiter,
			Sentinel:               defaultSentinel,
			LearnedConfidenceFloor: defaultConfidenceFloor,
			ObserveThreshold:       defaultObserveThreshold,
			InitGraceSeconds:       defaultInitGraceSeconds,
			RetryBackoffSeconds:    defaultRetryBackoff,
		},
		Taxonomy: Taxonomy{
			MinCategories: defaultMinCategories,
			MaxCategories: defaultMaxCategories,
			MaxDepth:      defaultMaxDepth,
			SampleSize:    defaultSampleSize,
		},
		JobStore: JobStore{
			Backend:   JobStoreSQLite,
			KeyPrefix: defaultKeyPrefix,
		},
		Scheduler: Scheduler{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetry,
			BatchDelay:         defaultBatchDelay,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completed:      true,
			Failed:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

func defaultProviders() []Provider {
	return []Provider{{
		Name:           ProviderOpenRouter,
		Kind:           ProviderOpenRouter,
		Referer:        defaultOpenRouterReferer,
		Title:          defaultOpenRouterTitle,
		TimeoutSeconds: defaultProviderTimeout,
		Models: []Model{{
			ID:              defaultOpenRouterModel,
			MaxItemsPerCall: defaultMaxItemsPerCall,
			CallsPerMinute:  defaultCallsPerMinute,
		}},
	}}
}
