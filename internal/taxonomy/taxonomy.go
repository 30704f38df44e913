package taxonomy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"linksort/internal/classify"
	"linksort/internal/logging"
	"linksort/internal/services/llm"
	"linksort/internal/textutil"
)

// duplicateThreshold is the cosine similarity above which two generated paths
// are treated as the same category.
const duplicateThreshold = 0.85

// Bounds constrains one generated vocabulary.
type Bounds struct {
	MinCategories int
	MaxCategories int
	MaxDepth      int
	SampleSize    int
	Seeds         []string
	Delimiter     string
	Sentinel      string
}

// Completer is the slice of classify.Client the generator needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, chain []classify.ChainEntry, accept func(raw string) error) (classify.Attempt, error)
}

// Result is a generated vocabulary. Categories always ends with the sentinel.
type Result struct {
	Categories []string
	Provider   string
	Model      string
	// Fallback is set when generation failed and only seeds were used.
	Fallback bool
	Err      error
}

// Generator derives the category vocabulary for a job.
type Generator struct {
	completer Completer
	logger    *slog.Logger
}

// NewGenerator returns a generator over completer.
func NewGenerator(completer Completer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{completer: completer, logger: logging.NewComponentLogger(logger, "taxonomy")}
}

const systemPrompt = `You design folder hierarchies for saved web links.
Respond with JSON only: {"categories": ["Parent > Child", "..."]}.
Use short, human-readable folder names. Do not invent near-duplicate folders.`

type promptPayload struct {
	MinCategories int             `json:"minCategories"`
	MaxCategories int             `json:"maxCategories"`
	MaxDepth      int             `json:"maxDepth"`
	Delimiter     string          `json:"delimiter"`
	Seeds         []string        `json:"seedCategories,omitempty"`
	Sample        []classify.Item `json:"sample"`
}

// Generate asks the provider chain for a vocabulary covering a sample of
// items. It never fails: on error the result holds only seeds and the
// sentinel, with Fallback and Err set. ctx cancellation is returned as Err
// with Fallback set as well.
func (g *Generator) Generate(ctx context.Context, items []classify.Item, b Bounds, chain []classify.ChainEntry) Result {
	b = b.withDefaults()
	sample := Sample(items, b.SampleSize)
	payload, err := json.MarshalIndent(promptPayload{
		MinCategories: b.MinCategories,
		MaxCategories: b.MaxCategories,
		MaxDepth:      b.MaxDepth,
		Delimiter:     b.Delimiter,
		Seeds:         b.Seeds,
		Sample:        sample,
	}, "", "  ")
	if err != nil {
		return g.fallback(b, fmt.Errorf("encode taxonomy prompt: %w", err))
	}

	var categories []string
	attempt, err := g.completer.Complete(ctx, systemPrompt, "Propose categories for these links:\n"+string(payload), chain, func(raw string) error {
		parsed, perr := parseCategories(raw)
		if perr != nil {
			return perr
		}
		categories = Normalize(parsed, b)
		if len(categories) <= 1 {
			return errors.New("taxonomy response had no usable categories")
		}
		return nil
	})
	if err != nil {
		return g.fallback(b, err)
	}
	if generated := len(categories) - 1; generated < b.MinCategories {
		g.logger.Info("taxonomy below minimum size",
			logging.String(logging.FieldEventType, "taxonomy_small"),
			logging.Int("categories", generated),
			logging.Int("min_categories", b.MinCategories))
	}
	g.logger.Info("taxonomy generated",
		logging.String(logging.FieldEventType, "taxonomy_generated"),
		logging.String(logging.FieldProvider, attempt.Provider),
		logging.String(logging.FieldModel, attempt.Model),
		logging.Int("categories", len(categories)),
		logging.Int("sample", len(sample)))
	return Result{Categories: categories, Provider: attempt.Provider, Model: attempt.Model}
}

func (g *Generator) fallback(b Bounds, err error) Result {
	logging.WarnWithContext(g.logger, "taxonomy generation failed; using seed categories", "taxonomy_fallback",
		logging.Error(err),
		logging.Int("seeds", len(b.Seeds)),
		logging.String(logging.FieldErrorHint, "check provider availability"),
		logging.String(logging.FieldImpact, "items are classified against seed categories only"))
	return Result{Categories: Normalize(nil, b), Fallback: true, Err: err}
}

func parseCategories(raw string) ([]string, error) {
	var decoded struct {
		Categories []json.RawMessage `json:"categories"`
	}
	var list []json.RawMessage
	extracted := llm.ExtractJSON(raw)
	if strings.HasPrefix(extracted, "[") {
		if err := json.Unmarshal([]byte(extracted), &list); err != nil {
			return nil, fmt.Errorf("%w: %v", classify.ErrMalformedResponse, err)
		}
	} else {
		if err := json.Unmarshal([]byte(extracted), &decoded); err != nil {
			return nil, fmt.Errorf("%w: %v", classify.ErrMalformedResponse, err)
		}
		list = decoded.Categories
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no categories", classify.ErrMalformedResponse)
	}
	out := make([]string, 0, len(list))
	for _, entry := range list {
		var s string
		if err := json.Unmarshal(entry, &s); err == nil {
			out = append(out, s)
			continue
		}
		var segments []string
		if err := json.Unmarshal(entry, &segments); err == nil {
			out = append(out, strings.Join(segments, ">"))
		}
	}
	return out, nil
}

func (b Bounds) withDefaults() Bounds {
	if strings.TrimSpace(b.Delimiter) == "" {
		b.Delimiter = " > "
	}
	if strings.TrimSpace(b.Sentinel) == "" {
		b.Sentinel = "Unclassified"
	}
	if b.MaxDepth <= 0 {
		b.MaxDepth = 3
	}
	if b.MaxCategories <= 0 {
		b.MaxCategories = 40
	}
	if b.SampleSize <= 0 {
		b.SampleSize = 200
	}
	return b
}

// Sample returns up to size items spread evenly over the whole list.
func Sample(items []classify.Item, size int) []classify.Item {
	if size <= 0 || len(items) <= size {
		return append([]classify.Item(nil), items...)
	}
	out := make([]classify.Item, 0, size)
	for i := range size {
		out = append(out, items[i*len(items)/size])
	}
	return out
}

// Normalize cleans a proposed vocabulary: seeds first, paths truncated to
// MaxDepth, lower-case segments title-cased, exact and near duplicates
// removed, capped to MaxCategories, and the sentinel appended last.
func Normalize(proposed []string, b Bounds) []string {
	b = b.withDefaults()
	var out []string
	seen := make(map[string]struct{})
	add := func(raw string, fromModel bool) {
		segments := textutil.SplitPath(raw, b.Delimiter)
		if len(segments) == 0 {
			return
		}
		if len(segments) > b.MaxDepth {
			segments = segments[:b.MaxDepth]
		}
		if fromModel {
			for i, seg := range segments {
				segments[i] = textutil.TitleIfLower(seg)
			}
		}
		path := textutil.JoinPath(segments, b.Delimiter)
		if path == b.Sentinel {
			return
		}
		key := strings.ToLower(path)
		if _, dup := seen[key]; dup {
			return
		}
		if fromModel {
			for _, existing := range out {
				if textutil.NearDuplicate(existing, path, duplicateThreshold) {
					return
				}
			}
		}
		seen[key] = struct{}{}
		out = append(out, path)
	}
	for _, seed := range b.Seeds {
		add(seed, false)
	}
	for _, p := range proposed {
		if len(out) >= b.MaxCategories {
			break
		}
		add(p, true)
	}
	return append(out, b.Sentinel)
}
