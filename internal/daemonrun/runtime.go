package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"linksort/internal/classify"
	"linksort/internal/config"
	"linksort/internal/events"
	"linksort/internal/jobstate"
	"linksort/internal/learning"
	"linksort/internal/linkstore"
	"linksort/internal/metrics"
	"linksort/internal/notifications"
	"linksort/internal/organize"
	"linksort/internal/redisstore"
	"linksort/internal/scheduler"
	"linksort/internal/snapshot"
	"linksort/internal/store"
	"linksort/internal/taxonomy"
)

// Runtime is the wired object graph shared by the daemon and foreground
// commands.
type Runtime struct {
	Config     *config.Config
	DB         *store.Store
	Redis      *redisstore.Store
	Links      *linkstore.File
	Patterns   learning.Repository
	Snapshots  *snapshot.Service
	Notifier   *notifications.Service
	Scheduler  *scheduler.Scheduler
	Organizer  *organize.Orchestrator
	Classifier *classify.Client

	jobPinger interface{ Ping(context.Context) error }
}

// OpenOptions adjusts runtime wiring.
type OpenOptions struct {
	// SkipProviders wires an organizer whose classifier has no providers.
	// Commands that only inspect or discard jobs use it to avoid credential
	// lookups.
	SkipProviders bool
	// Events receives job events in addition to the log, metrics, and
	// notification sinks.
	Events events.Publisher
}

// Open builds the runtime for cfg. Close releases every opened store.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts OpenOptions) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	db, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	rt := &Runtime{Config: cfg, DB: db, Patterns: db, jobPinger: db}

	var (
		kv     jobstate.KV          = db
		alarms scheduler.AlarmStore = db
	)
	if cfg.UsesRedis() {
		rs, err := redisstore.Open(ctx, redisstore.Config{
			URL:       cfg.JobStore.RedisURL,
			Password:  cfg.JobStore.RedisPassword,
			KeyPrefix: cfg.JobStore.KeyPrefix,
		})
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("open redis job store: %w", err)
		}
		rt.Redis = rs
		rt.jobPinger = rs
		kv, alarms = rs, rs
	}

	links, err := linkstore.OpenFile(cfg.Paths.LinksFile)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("open link store: %w", err)
	}
	rt.Links = links
	rt.Snapshots = snapshot.NewService(cfg.Paths.SnapshotDir, links, logger)

	var providers []classify.Provider
	if !opts.SkipProviders {
		providers, err = classify.NewProviders(ctx, cfg.Providers)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
	}
	rt.Classifier = classify.NewClient(providers,
		classify.WithLogger(logger),
		classify.WithObserver(metrics.Sink{}),
	)

	publishers := events.Fanout{events.NewLogSink(logger), metrics.Sink{}}
	if notifier := notifications.NewService(cfg, logger); notifier != nil {
		rt.Notifier = notifier
		publishers = append(publishers, notifier)
	}
	if opts.Events != nil {
		publishers = append(publishers, opts.Events)
	}

	rt.Scheduler = scheduler.New(alarms, logger,
		scheduler.WithPollInterval(time.Duration(cfg.Scheduler.PollInterval)*time.Second),
		scheduler.WithErrorRetry(time.Duration(cfg.Scheduler.ErrorRetryInterval)*time.Second),
	)

	orch, err := organize.New(cfg, organize.Dependencies{
		States:     jobstate.NewStore(kv, jobstate.DefaultKey),
		Alarms:     rt.Scheduler,
		Links:      links,
		Classifier: rt.Classifier,
		Taxonomy:   taxonomy.NewGenerator(rt.Classifier, logger),
		Snapshots:  rt.Snapshots,
		Patterns:   db,
		Events:     publishers,
		Logger:     logger,
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	orch.Register(rt.Scheduler)
	rt.Organizer = orch
	return rt, nil
}

// JobStore returns the backend holding job state, for connectivity checks.
func (r *Runtime) JobStore() interface{ Ping(context.Context) error } {
	return r.jobPinger
}

// Close releases the stores.
func (r *Runtime) Close() error {
	var errs []error
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	return errors.Join(errs...)
}
