package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"linksort/internal/logging"
	"linksort/internal/services"
)

// Observer receives one callback per provider call.
type Observer interface {
	ObserveCall(provider, model string, err error, d time.Duration)
}

// Client walks an ordered provider chain until a model answers.
type Client struct {
	providers []Provider
	logger    *slog.Logger
	observer  Observer
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers a per-call observer, typically metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithSleeper overrides how rate-limit spacing waits.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient returns a client over providers in preference order.
func NewClient(providers []Provider, opts ...Option) *Client {
	c := &Client{
		providers: providers,
		logger:    logging.NewNop(),
		sleep:     sleepContext,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "classify")
	return c
}

// Providers returns the configured chain.
func (c *Client) Providers() []Provider { return c.providers }

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// chain resolves the walk order for a request. Entries naming providers the
// client does not have are skipped.
func (c *Client) chain(entries []ChainEntry) []Provider {
	if len(entries) == 0 {
		return c.providers
	}
	byName := make(map[string]Provider, len(c.providers))
	for _, p := range c.providers {
		byName[p.Name] = p
	}
	out := make([]Provider, 0, len(entries))
	for _, entry := range entries {
		p, ok := byName[entry.Provider]
		if !ok {
			logging.WarnWithContext(c.logger, "provider from job settings is not configured", "provider_missing",
				logging.String(logging.FieldProvider, entry.Provider),
				logging.String(logging.FieldErrorHint, "restore the provider in config or discard the job"),
				logging.String(logging.FieldImpact, "provider skipped in fallback chain"))
			continue
		}
		if len(entry.Models) > 0 {
			p.Models = entry.Models
		}
		out = append(out, p)
	}
	return out
}

// pacer spaces calls to the same model within one walk.
type pacer struct {
	last  map[string]time.Time
	calls map[string]int
}

func modelKey(p Provider, m Model) string { return p.Name + "/" + m.ID }

func (c *Client) wait(ctx context.Context, pc *pacer, key string, m Model) error {
	last, ok := pc.last[key]
	if !ok {
		return nil
	}
	gap := m.Spacing() - c.now().Sub(last)
	if gap <= 0 {
		return nil
	}
	return c.sleep(ctx, gap)
}

// Classify walks providers then models in order. Items a model fails or
// omits carry to the next model. Items nobody answered get a learned pattern
// or the sentinel, so Results always covers the whole request. The returned
// error is non-nil only when ctx ends.
func (c *Client) Classify(ctx context.Context, req Request) (Outcome, error) {
	var out Outcome
	if len(req.Items) == 0 {
		return out, nil
	}
	delimiter := req.Delimiter
	if strings.TrimSpace(delimiter) == "" {
		delimiter = " > "
	}
	req.Delimiter = delimiter

	results := make(map[string]Result, len(req.Items))
	pending := req.Items
	pc := &pacer{last: make(map[string]time.Time), calls: make(map[string]int)}
	succeeded := false
	var lastModel Model
	var lastKey string

	for _, provider := range c.chain(req.Chain) {
		for _, model := range provider.Models {
			if len(pending) == 0 {
				break
			}
			key := modelKey(provider, model)
			var carry []Item
			chunks := chunkItems(pending, model.MaxItemsPerCall)
			for i, chunk := range chunks {
				if err := c.wait(ctx, pc, key, model); err != nil {
					return out, err
				}
				answered, err := c.call(ctx, &out, provider, model, chunk, req)
				pc.last[key] = c.now()
				pc.calls[key]++
				if ctxErr := ctx.Err(); ctxErr != nil {
					return out, ctxErr
				}
				if err != nil {
					out.LastErr = err
					for _, rest := range chunks[i:] {
						carry = append(carry, rest...)
					}
					break
				}
				succeeded = true
				lastModel, lastKey = model, key
				for _, item := range chunk {
					if r, ok := answered[item.ID]; ok {
						results[item.ID] = r
						continue
					}
					carry = append(carry, item)
				}
			}
			pending = carry
		}
	}

	for _, item := range req.Items {
		if r, ok := results[item.ID]; ok {
			out.Results = append(out.Results, r)
			continue
		}
		out.Results = append(out.Results, fallbackResult(item, req))
		out.Degraded++
	}
	out.Exhausted = !succeeded
	if out.Exhausted && out.LastErr == nil {
		out.LastErr = services.Wrap(services.ErrConfiguration, "classify", "walk", "no provider models configured", nil)
	}
	if lastKey != "" {
		out.Pacing = time.Duration(pc.calls[lastKey]) * lastModel.Spacing()
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, out *Outcome, provider Provider, model Model, chunk []Item, req Request) (map[string]Result, error) {
	system, user, err := BuildPrompt(chunk, req)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}
	logger := c.logger.With(
		logging.String(logging.FieldProvider, provider.Name),
		logging.String(logging.FieldModel, model.ID))

	start := c.now()
	raw, err := provider.Completer.CompleteJSON(ctx, model.ID, system, user)
	var answered map[string]Result
	if err == nil {
		var resp Response
		resp, err = ParseResponse(raw, req.Delimiter)
		if err == nil {
			answered = matchResults(chunk, resp, provider, model)
			out.Categories = appendUnique(out.Categories, resp.Categories...)
			if len(resp.Adjusted) > 0 {
				logging.WarnWithContext(logger, "provider confidence outside 0..1", "confidence_adjusted",
					logging.Int("count", len(resp.Adjusted)),
					logging.String("example", resp.Adjusted[0]),
					logging.String(logging.FieldErrorHint, "values up to 100 are read as percentages"),
					logging.String(logging.FieldImpact, "confidence rescaled or clamped for these results"))
			}
			if len(answered) == 0 {
				err = fmt.Errorf("%w: no usable results", ErrMalformedResponse)
			}
		}
	}
	elapsed := c.now().Sub(start)
	out.Attempts = append(out.Attempts, Attempt{Provider: provider.Name, Model: model.ID, Items: len(chunk), Err: err, Duration: elapsed})
	if c.observer != nil {
		c.observer.ObserveCall(provider.Name, model.ID, err, elapsed)
	}
	if err != nil {
		if ctx.Err() == nil {
			logging.WarnWithContext(logger, "classification call failed; advancing fallback chain", "classify_call_failed",
				logging.Int("items", len(chunk)),
				logging.Bool("transient", IsTransient(err)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check provider status and credentials"),
				logging.String(logging.FieldImpact, "items carried to the next model"))
		}
		return nil, err
	}
	if omitted := len(chunk) - len(answered); omitted > 0 {
		logger.Info("model omitted items",
			logging.String(logging.FieldEventType, "classify_partial"),
			logging.Int("omitted", omitted),
			logging.Int("items", len(chunk)))
	}
	logger.Debug("classification call succeeded",
		logging.Int("items", len(chunk)),
		logging.Duration("duration", elapsed))
	return answered, nil
}

// matchResults maps parsed entries back to chunk items by id, then by index.
// The first answer for an item wins.
func matchResults(chunk []Item, resp Response, provider Provider, model Model) map[string]Result {
	ids := make(map[string]struct{}, len(chunk))
	for _, item := range chunk {
		ids[item.ID] = struct{}{}
	}
	out := make(map[string]Result, len(chunk))
	for _, pr := range resp.Results {
		id := pr.ItemID
		if _, ok := ids[id]; !ok {
			if pr.Index < 0 || pr.Index >= len(chunk) {
				continue
			}
			id = chunk[pr.Index].ID
		}
		if _, dup := out[id]; dup {
			continue
		}
		out[id] = Result{
			ItemID:       id,
			CategoryPath: pr.CategoryPath,
			Confidence:   pr.Confidence,
			Provider:     provider.Name,
			Model:        model.ID,
			Source:       SourceAI,
		}
	}
	return out
}

func fallbackResult(item Item, req Request) Result {
	if req.Learned != nil {
		if path, conf, ok := req.Learned.Match(item.URL); ok {
			return Result{ItemID: item.ID, CategoryPath: path, Confidence: conf, Provider: "learned", Source: SourceLearned}
		}
	}
	return Result{ItemID: item.ID, CategoryPath: req.Sentinel, Confidence: 0, Source: SourceSentinel}
}

func chunkItems(items []Item, size int) [][]Item {
	if size <= 0 || size >= len(items) {
		return [][]Item{items}
	}
	var out [][]Item
	for start := 0; start < len(items); start += size {
		out = append(out, items[start:min(start+size, len(items))])
	}
	return out
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, existing := range dst {
			if existing == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}

// Complete walks the chain for a free-form JSON request such as taxonomy
// generation. accept validates the payload; a rejection advances the chain
// like a failed call.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, chain []ChainEntry, accept func(raw string) error) (Attempt, error) {
	var lastErr error
	for _, provider := range c.chain(chain) {
		for _, model := range provider.Models {
			start := c.now()
			raw, err := provider.Completer.CompleteJSON(ctx, model.ID, systemPrompt, userPrompt)
			if err == nil && accept != nil {
				err = accept(raw)
			}
			elapsed := c.now().Sub(start)
			if c.observer != nil {
				c.observer.ObserveCall(provider.Name, model.ID, err, elapsed)
			}
			attempt := Attempt{Provider: provider.Name, Model: model.ID, Err: err, Duration: elapsed}
			if err == nil {
				return attempt, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return attempt, ctxErr
			}
			lastErr = err
			c.logger.Debug("completion attempt failed",
				logging.String(logging.FieldProvider, provider.Name),
				logging.String(logging.FieldModel, model.ID),
				logging.Error(err))
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no provider models configured")
	}
	return Attempt{}, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}
