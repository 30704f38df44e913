package organize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"linksort/internal/classify"
	"linksort/internal/config"
	"linksort/internal/events"
	"linksort/internal/jobstate"
	"linksort/internal/learning"
	"linksort/internal/linkstore"
	"linksort/internal/logging"
	"linksort/internal/scheduler"
	"linksort/internal/services"
	"linksort/internal/taxonomy"
)

// CallbackID is the scheduler callback that advances the organize job.
const CallbackID = "organize.wake"

const (
	hintLimit       = 50
	maxRetryBackoff = 30 * time.Minute
	// wakeFailureBudget bounds consecutive wake-ups that end in an error
	// outside the classification chain, such as an unreachable link store.
	wakeFailureBudget = 10
)

// Classifier classifies one batch.
type Classifier interface {
	Classify(ctx context.Context, req classify.Request) (classify.Outcome, error)
}

// TaxonomyGenerator builds the job vocabulary.
type TaxonomyGenerator interface {
	Generate(ctx context.Context, items []classify.Item, b taxonomy.Bounds, chain []classify.ChainEntry) taxonomy.Result
}

// Snapshotter saves a copy of the link tree before a job.
type Snapshotter interface {
	CreateSnapshot(ctx context.Context, label string, metadata map[string]string) (string, error)
}

// Alarms is the durable wake-up facility.
type Alarms interface {
	ArmAt(ctx context.Context, id string, at time.Time) error
	Cancel(ctx context.Context, id string) error
	Next(ctx context.Context, id string) (time.Time, bool, error)
}

// TitleSource supplies fresher titles, such as those of open browser tabs.
type TitleSource interface {
	Title(ctx context.Context, item linkstore.Item) (string, bool)
}

// Dependencies are the collaborators an Orchestrator drives.
type Dependencies struct {
	States     *jobstate.Store
	Alarms     Alarms
	Links      linkstore.Store
	Classifier Classifier
	Taxonomy   TaxonomyGenerator
	Snapshots  Snapshotter
	Patterns   learning.Repository
	Titles     TitleSource
	Events     events.Publisher
	Logger     *slog.Logger
	Now        func() time.Time
}

// StartRequest selects the items of a new job. Empty IDs means the whole
// collection.
type StartRequest struct {
	IDs   []string
	Force bool
}

// Orchestrator runs the organize job one batch per wake-up. It keeps nothing
// in memory between wake-ups; every call reloads the job record.
type Orchestrator struct {
	cfg        *config.Config
	states     *jobstate.Store
	guard      Guard
	alarms     Alarms
	links      linkstore.Store
	classifier Classifier
	taxonomy   TaxonomyGenerator
	snapshots  Snapshotter
	patterns   learning.Repository
	titles     TitleSource
	events     events.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// New validates deps and returns an Orchestrator.
func New(cfg *config.Config, deps Dependencies) (*Orchestrator, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("organize: config required")
	case deps.States == nil:
		return nil, errors.New("organize: job state store required")
	case deps.Alarms == nil:
		return nil, errors.New("organize: alarms required")
	case deps.Links == nil:
		return nil, errors.New("organize: link store required")
	case deps.Classifier == nil:
		return nil, errors.New("organize: classifier required")
	}
	o := &Orchestrator{
		cfg:        cfg,
		states:     deps.States,
		guard:      NewGuard(deps.States),
		alarms:     deps.Alarms,
		links:      deps.Links,
		classifier: deps.Classifier,
		taxonomy:   deps.Taxonomy,
		snapshots:  deps.Snapshots,
		patterns:   deps.Patterns,
		titles:     deps.Titles,
		events:     deps.Events,
		logger:     logging.NewComponentLogger(deps.Logger, "organizer"),
		now:        deps.Now,
	}
	if o.events == nil {
		o.events = events.Nop{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// Register installs the wake-up handler on s.
func (o *Orchestrator) Register(s *scheduler.Scheduler) {
	s.Register(CallbackID, o.Wake)
}

// Start acquires the guard, arms a watchdog, and initializes the job. When
// initialization hits a retryable error the job stays in initializing and the
// watchdog resumes it.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (*jobstate.State, error) {
	now := o.now()
	st := &jobstate.State{
		JobID:        uuid.NewString(),
		Phase:        jobstate.PhaseInitializing,
		Mode:         jobstate.ModeFull,
		Force:        req.Force,
		RequestedIDs: dedupe(req.IDs),
		Settings:     SettingsFrom(o.cfg),
		StartedAt:    now.UTC(),
	}
	if len(st.RequestedIDs) > 0 {
		st.Mode = jobstate.ModeSelection
	}
	if err := o.guard.TryStart(ctx, st); err != nil {
		return nil, err
	}
	ctx = services.WithJobID(ctx, st.JobID)
	grace := time.Duration(o.cfg.Organize.InitGraceSeconds) * time.Second
	if err := o.alarms.ArmAt(ctx, CallbackID, now.Add(grace)); err != nil {
		_ = o.guard.Release(ctx, st.JobID)
		return nil, fmt.Errorf("arm init watchdog: %w", err)
	}
	if err := o.initialize(ctx, st); errors.Is(err, jobstate.ErrGone) {
		return nil, fmt.Errorf("organize job was discarded while starting: %w", err)
	} else if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "job initialization deferred", "job_init_deferred",
			logging.Error(err),
			logging.Duration("retry_in", grace),
			logging.String(logging.FieldErrorHint, "check link store and job store availability"),
			logging.String(logging.FieldImpact, "job starts when initialization succeeds"))
	}
	if st.Phase == jobstate.PhaseFailed {
		return st, fmt.Errorf("organize job failed: %s", st.LastError)
	}
	return st, nil
}

// Wake is the scheduler handler. It advances whatever phase the stored job is
// in; with no stored job it does nothing. A job deleted or replaced while the
// wake-up runs is left alone.
func (o *Orchestrator) Wake(ctx context.Context, _ scheduler.Alarm) error {
	st, err := o.states.Get(ctx)
	if err != nil {
		if errors.Is(err, jobstate.ErrSchemaMismatch) || errors.Is(err, jobstate.ErrCorrupt) {
			return o.abandon(ctx, err)
		}
		return err
	}
	if st == nil {
		o.logger.Debug("wake-up found no job")
		return nil
	}
	ctx = services.WithJobID(ctx, st.JobID)

	switch st.Phase {
	case jobstate.PhaseInitializing:
		err = o.initialize(ctx, st)
	case jobstate.PhaseBatchArmed, jobstate.PhaseBatchRunning:
		err = o.runBatch(ctx, st)
	case jobstate.PhaseFinalizing:
		err = o.finalize(ctx, st)
	case jobstate.PhaseFailed:
		err = o.finishFailed(ctx, st)
	default:
		err = services.Wrap(services.ErrValidation, "organize", "wake", "unknown phase "+string(st.Phase), nil)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jobstate.ErrGone):
		o.logger.Info("job removed during wake-up; stopping",
			logging.String(logging.FieldEventType, "job_gone"),
			logging.String(logging.FieldJobID, st.JobID))
		return nil
	case ctx.Err() != nil || st.Phase == jobstate.PhaseFailed:
		return err
	case !services.Retryable(err):
		if err := o.fail(ctx, st, err); err != nil && !errors.Is(err, jobstate.ErrGone) {
			return err
		}
		return nil
	}
	return o.wakeFailed(ctx, st.JobID, err)
}

// wakeFailed counts a retryable wake-up error against the job. The scheduler
// retries the wake-up until the budget is spent; then the job fails.
func (o *Orchestrator) wakeFailed(ctx context.Context, jobID string, cause error) error {
	st, err := o.states.Get(ctx)
	if err != nil || st == nil || st.JobID != jobID {
		return cause
	}
	st.WakeFailures++
	st.LastError = errText(cause)
	if st.WakeFailures >= wakeFailureBudget {
		if err := o.fail(ctx, st, fmt.Errorf("giving up after %d failed wake-ups: %w", st.WakeFailures, cause)); err != nil && !errors.Is(err, jobstate.ErrGone) {
			return err
		}
		return nil
	}
	if err := o.states.Put(ctx, st); err != nil && !errors.Is(err, jobstate.ErrGone) {
		return errors.Join(cause, err)
	}
	return cause
}

// abandon clears a record this build cannot read so the guard is free again.
func (o *Orchestrator) abandon(ctx context.Context, cause error) error {
	logging.ErrorWithContext(o.logger, "stored job is unreadable; abandoning it", "job_state_unreadable",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "start a new organize job"))
	if _, err := o.states.Delete(ctx); err != nil {
		return fmt.Errorf("delete unreadable job state: %w", err)
	}
	o.events.Publish(ctx, events.Event{Type: events.TypeFailed, At: o.now(), Error: errText(cause)})
	return nil
}

// initialize snapshots the tree, resolves the item list, and arms the first
// batch. It may run more than once for the same job.
func (o *Orchestrator) initialize(ctx context.Context, st *jobstate.State) error {
	logger := logging.WithContext(ctx, o.logger)

	if st.SnapshotID == "" {
		if err := o.snapshot(ctx, st); err != nil {
			if st.Settings.RequireSnapshot {
				return o.fail(ctx, st, fmt.Errorf("snapshot required before organizing: %w", err))
			}
			logging.WarnWithContext(logger, "snapshot failed; continuing without backup", "snapshot_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "set organize.require_snapshot to abort instead"),
				logging.String(logging.FieldImpact, "no rollback point exists for this job"))
		}
	}

	all, err := o.links.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list links: %w", err)
	}
	items, results := selectItems(st, all)
	st.Items = items
	st.Results = results
	st.Cursor = 0
	st.WakeFailures = 0
	st.Taxonomy = nil
	st.TaxonomyDone = false

	if len(st.Items) == 0 {
		logger.Info("no items to organize", logging.String(logging.FieldEventType, "job_empty"))
		return o.finalize(ctx, st)
	}
	st.Phase = jobstate.PhaseBatchArmed
	if err := o.states.Put(ctx, st); err != nil {
		return fmt.Errorf("persist initialized job: %w", err)
	}
	o.events.Publish(ctx, events.Event{Type: events.TypeStarted, JobID: st.JobID, At: o.now(), Total: st.Total()})
	if err := o.alarms.ArmAt(ctx, CallbackID, o.now()); err != nil {
		return fmt.Errorf("arm first batch: %w", err)
	}
	return nil
}

func (o *Orchestrator) snapshot(ctx context.Context, st *jobstate.State) error {
	if o.snapshots == nil {
		return errors.New("no snapshot service configured")
	}
	id, err := o.snapshots.CreateSnapshot(ctx, "before organize", map[string]string{
		"job_id": st.JobID,
		"mode":   string(st.Mode),
		"force":  fmt.Sprintf("%t", st.Force),
	})
	if err != nil {
		return err
	}
	st.SnapshotID = id
	return nil
}

// selectItems resolves the job's item ids. Full mode takes unfiled links
// under the root, or every link when forced. Selection mode keeps requested
// order; unknown ids become error results.
func selectItems(st *jobstate.State, all []linkstore.Item) ([]string, []jobstate.Result) {
	if st.Mode != jobstate.ModeSelection {
		ids := make([]string, 0, len(all))
		for _, it := range all {
			if st.Force || it.ParentID == st.Settings.RootFolderID {
				ids = append(ids, it.ID)
			}
		}
		return ids, nil
	}
	known := make(map[string]struct{}, len(all))
	for _, it := range all {
		known[it.ID] = struct{}{}
	}
	var ids []string
	var missing []jobstate.Result
	for _, id := range st.RequestedIDs {
		if _, ok := known[id]; ok {
			ids = append(ids, id)
			continue
		}
		missing = append(missing, jobstate.Result{ItemID: id, Source: jobstate.SourceError, Error: "item not found"})
	}
	return ids, missing
}

// runBatch processes the slice at the cursor. A retry of a batch that was
// interrupted re-runs the same slice.
func (o *Orchestrator) runBatch(ctx context.Context, st *jobstate.State) error {
	if st.Done() {
		return o.finalize(ctx, st)
	}
	start, end := st.NextSlice()
	batch := start / max(st.Settings.BatchSize, 1)
	ctx = services.WithBatch(ctx, start)
	logger := logging.WithContext(ctx, o.logger)

	st.Phase = jobstate.PhaseBatchRunning
	if err := o.states.Put(ctx, st); err != nil {
		return fmt.Errorf("persist running batch: %w", err)
	}

	all, err := o.links.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list links: %w", err)
	}
	byID := make(map[string]linkstore.Item, len(all))
	for _, it := range all {
		byID[it.ID] = it
	}

	chain := ChainFrom(st.Settings.Providers)
	if !st.TaxonomyDone {
		if err := o.pinTaxonomy(ctx, st, byID, chain); err != nil {
			return err
		}
	}

	ids := st.Items[start:end]
	slots := make([]jobstate.Result, len(ids))
	var request []classify.Item
	var positions []int
	for i, id := range ids {
		it, ok := byID[id]
		if !ok {
			slots[i] = jobstate.Result{ItemID: id, Source: jobstate.SourceError, Error: "item no longer exists"}
			continue
		}
		request = append(request, classify.Item{ID: it.ID, Title: o.title(ctx, it), URL: it.URL})
		positions = append(positions, i)
	}

	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_started"),
		logging.Int("start", start),
		logging.Int("end", end),
		logging.Int("total", st.Total()),
		logging.Int("attempt", st.Attempts+1))

	began := o.now()
	var out classify.Outcome
	if len(request) > 0 {
		index := o.learnedIndex(ctx)
		urls := make([]string, len(request))
		for i, it := range request {
			urls[i] = it.URL
		}
		out, err = o.classifier.Classify(ctx, classify.Request{
			Items:     request,
			Taxonomy:  st.Taxonomy,
			Hints:     toHints(index.Hints(urls, hintLimit)),
			Delimiter: st.Settings.Delimiter,
			Sentinel:  st.Settings.Sentinel,
			Chain:     chain,
			Learned:   learnedMatcher{index: index, floor: st.Settings.LearnedConfidenceFloor},
		})
		if err != nil {
			return err
		}
	}

	if out.Exhausted {
		st.Attempts++
		st.LastError = errText(out.LastErr)
		if st.Attempts <= st.Settings.RetryBudget {
			return o.retry(ctx, st)
		}
		if !st.Settings.ContinueOnExhaustion {
			stats := o.apply(ctx, st, out, request, slots, positions)
			st.Results = append(st.Results, slots...)
			st.Cursor = end
			logger.Info("applied degraded results before failing",
				logging.String(logging.FieldEventType, "batch_degraded_applied"),
				logging.Int("moved", stats.Moved))
			return o.fail(ctx, st, fmt.Errorf("%w after %d attempts: %s", classify.ErrExhausted, st.Attempts, st.LastError))
		}
		logging.WarnWithContext(logger, "retry budget spent; continuing with degraded results", "batch_degraded",
			logging.Int("attempts", st.Attempts),
			logging.String("error", st.LastError),
			logging.String(logging.FieldErrorHint, "check provider status"),
			logging.String(logging.FieldImpact, "batch items filed by learned patterns only"))
	}

	stats := o.apply(ctx, st, out, request, slots, positions)
	stats.Index = batch
	stats.Duration = o.now().Sub(began)
	st.Results = append(st.Results, slots...)
	st.Cursor = end
	st.Attempts = 0
	st.LastError = ""
	st.WakeFailures = 0
	st.Phase = jobstate.PhaseBatchArmed
	if st.Done() {
		st.Phase = jobstate.PhaseFinalizing
	}
	if err := o.states.Put(ctx, st); err != nil {
		return fmt.Errorf("persist batch progress: %w", err)
	}
	o.events.Publish(ctx, events.Event{
		Type:   events.TypeProgress,
		JobID:  st.JobID,
		At:     o.now(),
		Cursor: st.Cursor,
		Total:  st.Total(),
		Batch:  stats,
	})

	if st.Done() {
		return o.finalize(ctx, st)
	}
	delay := max(time.Duration(st.Settings.BatchDelaySeconds)*time.Second, out.Pacing)
	if err := o.alarms.ArmAt(ctx, CallbackID, o.now().Add(delay)); err != nil {
		return fmt.Errorf("arm next batch: %w", err)
	}
	return nil
}

func (o *Orchestrator) retry(ctx context.Context, st *jobstate.State) error {
	delay := retryDelay(st.Settings.RetryBackoffSeconds, st.Attempts)
	st.Phase = jobstate.PhaseBatchArmed
	if err := o.states.Put(ctx, st); err != nil {
		return fmt.Errorf("persist batch retry: %w", err)
	}
	if err := o.alarms.ArmAt(ctx, CallbackID, o.now().Add(delay)); err != nil {
		return fmt.Errorf("arm batch retry: %w", err)
	}
	o.events.Publish(ctx, events.Event{
		Type:    events.TypeRetry,
		JobID:   st.JobID,
		At:      o.now(),
		Cursor:  st.Cursor,
		Total:   st.Total(),
		Error:   st.LastError,
		RetryIn: delay,
		Attempt: st.Attempts,
	})
	return nil
}

func retryDelay(baseSeconds, attempt int) time.Duration {
	delay := time.Duration(max(baseSeconds, 1)) * time.Second
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return min(delay, maxRetryBackoff)
}

// apply fills slots from the outcome and files every non-sentinel result.
// Items are handled sequentially; mutation failures are recorded per item.
func (o *Orchestrator) apply(ctx context.Context, st *jobstate.State, out classify.Outcome, request []classify.Item, slots []jobstate.Result, positions []int) events.BatchStats {
	logger := logging.WithContext(ctx, o.logger)
	mutator := NewMutator(o.links, st.Settings.RootFolderID, st.Settings.Delimiter)
	known := make(map[string]struct{}, len(st.Taxonomy))
	for _, c := range st.Taxonomy {
		known[c] = struct{}{}
	}

	stats := events.BatchStats{Items: len(slots), Degraded: out.Degraded}
	var drift []string
	for i, res := range out.Results {
		if i >= len(positions) || i >= len(request) {
			break
		}
		slot := &slots[positions[i]]
		*slot = jobstate.Result{
			ItemID:       res.ItemID,
			URL:          request[i].URL,
			CategoryPath: res.CategoryPath,
			Confidence:   res.Confidence,
			Provider:     res.Provider,
			Model:        res.Model,
			Source:       res.Source,
		}
		if res.Source == classify.SourceAI {
			stats.Provider, stats.Model = res.Provider, res.Model
		}
		if res.Source == classify.SourceSentinel || res.CategoryPath == st.Settings.Sentinel {
			continue
		}
		if _, ok := known[res.CategoryPath]; !ok && res.Source == classify.SourceAI {
			drift = append(drift, res.CategoryPath)
		}
		folderID, created, err := mutator.ApplyResult(ctx, res.ItemID, res.CategoryPath)
		stats.FoldersCreated += created
		if err != nil {
			slot.Error = err.Error()
			logging.WarnWithContext(logger, "failed to file item", "item_move_failed",
				logging.String("item_id", res.ItemID),
				logging.String("category_path", res.CategoryPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the link store"),
				logging.String(logging.FieldImpact, "item stays in its current folder"))
			continue
		}
		slot.FolderID = folderID
		slot.Moved = true
		stats.Moved++
	}
	for _, slot := range slots {
		if slot.Error != "" {
			stats.Errors++
		}
	}
	if len(drift) > 0 {
		logger.Info("results outside the pinned taxonomy",
			logging.String(logging.FieldEventType, "taxonomy_drift"),
			logging.Alert("taxonomy_drift"),
			logging.Int("count", len(drift)),
			logging.String("example", drift[0]))
	}
	return stats
}

func (o *Orchestrator) pinTaxonomy(ctx context.Context, st *jobstate.State, byID map[string]linkstore.Item, chain []classify.ChainEntry) error {
	bounds := BoundsFrom(st.Settings)
	var res taxonomy.Result
	if o.taxonomy == nil {
		res = taxonomy.Result{Categories: taxonomy.Normalize(nil, bounds), Fallback: true}
	} else {
		sample := make([]classify.Item, 0, len(st.Items))
		for _, id := range st.Items {
			if it, ok := byID[id]; ok {
				sample = append(sample, classify.Item{ID: it.ID, Title: it.Title, URL: it.URL})
			}
		}
		res = o.taxonomy.Generate(ctx, sample, bounds, chain)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	st.Taxonomy = res.Categories
	st.TaxonomyDone = true
	if err := o.states.Put(ctx, st); err != nil {
		return fmt.Errorf("persist taxonomy: %w", err)
	}
	return nil
}

func (o *Orchestrator) title(ctx context.Context, it linkstore.Item) string {
	if o.titles != nil {
		if t, ok := o.titles.Title(ctx, it); ok && strings.TrimSpace(t) != "" {
			return strings.TrimSpace(t)
		}
	}
	return it.Title
}

func (o *Orchestrator) learnedIndex(ctx context.Context) learning.Index {
	if o.patterns == nil {
		return learning.NewIndex(nil)
	}
	patterns, err := o.patterns.ListPatterns(ctx)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "failed to load learned patterns", "patterns_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the pattern store"),
			logging.String(logging.FieldImpact, "batch runs without learned hints"))
		return learning.NewIndex(nil)
	}
	return learning.NewIndex(patterns)
}

// finalize emits the summary, hands confident results to the learning store,
// and releases the guard.
func (o *Orchestrator) finalize(ctx context.Context, st *jobstate.State) error {
	st.Phase = jobstate.PhaseFinalizing
	if err := o.states.Put(ctx, st); err != nil {
		return fmt.Errorf("persist finalizing job: %w", err)
	}
	o.feedback(ctx, st)
	o.events.Publish(ctx, events.Event{
		Type:    events.TypeCompleted,
		JobID:   st.JobID,
		At:      o.now(),
		Cursor:  st.Cursor,
		Total:   st.Total(),
		Summary: st.Summarize(),
	})
	return o.guard.Release(ctx, st.JobID)
}

func (o *Orchestrator) feedback(ctx context.Context, st *jobstate.State) {
	if o.patterns == nil {
		return
	}
	urls := make(map[string]string)
	if all, err := o.links.ListAll(ctx); err == nil {
		for _, it := range all {
			urls[it.ID] = it.URL
		}
	}
	var observations []learning.Observation
	for _, r := range st.Results {
		if r.Source != jobstate.SourceAI || !r.Moved {
			continue
		}
		u := r.URL
		if u == "" {
			u = urls[r.ItemID]
		}
		observations = append(observations, learning.Observation{URL: u, CategoryPath: r.CategoryPath, Confidence: r.Confidence})
	}
	written, err := learning.Observe(ctx, o.patterns, observations, st.Settings.ObserveThreshold, o.now())
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "failed to record learned patterns", "learning_feedback_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the pattern store"),
			logging.String(logging.FieldImpact, "future jobs get fewer hints"))
	}
	if written > 0 {
		o.logger.Debug("recorded learned patterns", logging.Int("patterns", written))
	}
}

// fail records cause, emits the failure event, and releases the guard.
// Items already moved stay moved.
func (o *Orchestrator) fail(ctx context.Context, st *jobstate.State, cause error) error {
	st.Phase = jobstate.PhaseFailed
	st.LastError = errText(cause)
	if err := o.states.Put(ctx, st); err != nil {
		return fmt.Errorf("persist failed job: %w", err)
	}
	return o.finishFailed(ctx, st)
}

func (o *Orchestrator) finishFailed(ctx context.Context, st *jobstate.State) error {
	o.events.Publish(ctx, events.Event{
		Type:    events.TypeFailed,
		JobID:   st.JobID,
		At:      o.now(),
		Cursor:  st.Cursor,
		Total:   st.Total(),
		Summary: st.Summarize(),
		Error:   st.LastError,
	})
	return o.guard.Release(ctx, st.JobID)
}

// Status describes the stored job and its pending wake-up.
type Status struct {
	State    *jobstate.State
	NextWake time.Time
	Armed    bool
}

// Status reads the stored job without changing it.
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	st, err := o.states.Get(ctx)
	if err != nil {
		return Status{}, err
	}
	next, armed, err := o.alarms.Next(ctx, CallbackID)
	if err != nil {
		return Status{}, fmt.Errorf("read pending alarm: %w", err)
	}
	return Status{State: st, NextWake: next, Armed: armed}, nil
}

// Discard deletes the stored job and its alarm. A wake-up already in flight
// cannot write the job back: its next write returns jobstate.ErrGone and the
// wake-up stops.
func (o *Orchestrator) Discard(ctx context.Context) (bool, error) {
	existed, err := o.states.Delete(ctx)
	if err != nil {
		return false, fmt.Errorf("delete job state: %w", err)
	}
	if err := o.alarms.Cancel(ctx, CallbackID); err != nil {
		return existed, fmt.Errorf("cancel alarm: %w", err)
	}
	if existed {
		o.logger.Info("organize job discarded", logging.String(logging.FieldEventType, "job_discarded"))
	}
	return existed, nil
}

// Recover arms an immediate wake-up when a job exists without a pending
// alarm, for example after a crash between releasing a lease and re-arming.
func (o *Orchestrator) Recover(ctx context.Context) (bool, error) {
	status, err := o.Status(ctx)
	if err != nil {
		return false, err
	}
	if status.State == nil || status.Armed {
		return false, nil
	}
	if err := o.alarms.ArmAt(ctx, CallbackID, o.now()); err != nil {
		return false, fmt.Errorf("arm recovery wake-up: %w", err)
	}
	o.logger.Info("re-armed orphaned job",
		logging.String(logging.FieldEventType, "job_recovered"),
		logging.String(logging.FieldJobID, status.State.JobID),
		logging.String("phase", string(status.State.Phase)))
	return true, nil
}

type learnedMatcher struct {
	index learning.Index
	floor float64
}

func (m learnedMatcher) Match(url string) (string, float64, bool) {
	p, ok := m.index.Match(url, m.floor)
	if !ok {
		return "", 0, false
	}
	return p.CategoryPath, p.Confidence, true
}

func toHints(patterns []learning.Pattern) []classify.Hint {
	out := make([]classify.Hint, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, classify.Hint{MatchKey: p.MatchKey, CategoryPath: p.CategoryPath, Confidence: p.Confidence})
	}
	return out
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
