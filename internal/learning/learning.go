package learning

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// Source values recorded on a pattern.
const (
	SourceUser     = "user"
	SourceObserved = "observed"
)

// Pattern maps a match key (a lowercase host) to a category path.
type Pattern struct {
	MatchKey     string    `json:"match_key"`
	CategoryPath string    `json:"category_path"`
	Confidence   float64   `json:"confidence"`
	Source       string    `json:"source"`
	Hits         int       `json:"hits"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Repository persists learned patterns.
type Repository interface {
	ListPatterns(ctx context.Context) ([]Pattern, error)
	GetPattern(ctx context.Context, matchKey string) (*Pattern, error)
	UpsertPattern(ctx context.Context, p Pattern) error
	DeletePattern(ctx context.Context, matchKey string) (bool, error)
}

// MatchKey derives the lookup key for a link URL. Hosts are lowercased and a
// leading "www." is dropped. Unparseable URLs yield "".
func MatchKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// Index is a read-only view over patterns used during one batch.
type Index struct {
	byKey map[string]Pattern
}

// NewIndex builds an index from patterns; later entries win on key collisions.
func NewIndex(patterns []Pattern) Index {
	idx := Index{byKey: make(map[string]Pattern, len(patterns))}
	for _, p := range patterns {
		key := strings.ToLower(strings.TrimSpace(p.MatchKey))
		if key == "" || strings.TrimSpace(p.CategoryPath) == "" {
			continue
		}
		p.MatchKey = key
		idx.byKey[key] = p
	}
	return idx
}

// Match returns the pattern for rawURL when its confidence reaches floor.
func (i Index) Match(rawURL string, floor float64) (Pattern, bool) {
	key := MatchKey(rawURL)
	if key == "" {
		return Pattern{}, false
	}
	p, ok := i.byKey[key]
	if !ok || p.Confidence < floor {
		return Pattern{}, false
	}
	return p, true
}

// Hints returns up to limit patterns relevant to the supplied URLs, sorted by key.
func (i Index) Hints(urls []string, limit int) []Pattern {
	seen := make(map[string]struct{})
	var out []Pattern
	for _, raw := range urls {
		key := MatchKey(raw)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		if p, ok := i.byKey[key]; ok {
			seen[key] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].MatchKey < out[b].MatchKey })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Len reports the number of indexed patterns.
func (i Index) Len() int { return len(i.byKey) }

// Observation is a confident classification offered back after a job.
type Observation struct {
	URL          string
	CategoryPath string
	Confidence   float64
}

// Observe records observations at or above threshold. User patterns are never
// overridden; an observed pattern is replaced only by an equally or more
// confident observation for a different path. It returns how many patterns
// were written.
func Observe(ctx context.Context, repo Repository, observations []Observation, threshold float64, now time.Time) (int, error) {
	written := 0
	for _, obs := range observations {
		if obs.Confidence < threshold || strings.TrimSpace(obs.CategoryPath) == "" {
			continue
		}
		key := MatchKey(obs.URL)
		if key == "" {
			continue
		}
		existing, err := repo.GetPattern(ctx, key)
		if err != nil {
			return written, fmt.Errorf("load pattern %s: %w", key, err)
		}
		next := Pattern{
			MatchKey:     key,
			CategoryPath: obs.CategoryPath,
			Confidence:   obs.Confidence,
			Source:       SourceObserved,
			Hits:         1,
			UpdatedAt:    now.UTC(),
		}
		if existing != nil {
			switch {
			case existing.Source == SourceUser:
				continue
			case existing.CategoryPath == obs.CategoryPath:
				next.Hits = existing.Hits + 1
				next.Confidence = max(existing.Confidence, obs.Confidence)
			case obs.Confidence < existing.Confidence:
				continue
			}
		}
		if err := repo.UpsertPattern(ctx, next); err != nil {
			return written, fmt.Errorf("save pattern %s: %w", key, err)
		}
		written++
	}
	return written, nil
}

// Memory is an in-process Repository.
type Memory struct {
	mu       sync.Mutex
	patterns map[string]Pattern
}

// NewMemory returns a Memory seeded with patterns.
func NewMemory(patterns ...Pattern) *Memory {
	m := &Memory{patterns: make(map[string]Pattern)}
	for _, p := range patterns {
		m.patterns[p.MatchKey] = p
	}
	return m
}

func (m *Memory) ListPatterns(context.Context) ([]Pattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Pattern, 0, len(m.patterns))
	for _, p := range m.patterns {
		out = append(out, p)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].MatchKey < out[b].MatchKey })
	return out, nil
}

func (m *Memory) GetPattern(_ context.Context, key string) (*Pattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patterns[key]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) UpsertPattern(_ context.Context, p Pattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns[p.MatchKey] = p
	return nil
}

func (m *Memory) DeletePattern(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.patterns[key]
	delete(m.patterns, key)
	return ok, nil
}
