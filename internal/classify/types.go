package classify

import (
	"context"
	"time"
)

// Result sources, matching the values recorded in job state.
const (
	SourceAI       = "ai"
	SourceLearned  = "learned"
	SourceSentinel = "sentinel"
)

// Item is one link offered for classification.
type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Hint is a learned pattern passed to the model as a suggestion.
type Hint struct {
	MatchKey     string  `json:"matchKey"`
	CategoryPath string  `json:"categoryPath"`
	Confidence   float64 `json:"confidence"`
}

// Model is one entry of a provider's model chain.
type Model struct {
	ID              string
	MaxItemsPerCall int
	CallsPerMinute  int
}

// Spacing returns the minimum gap between two calls to the model.
func (m Model) Spacing() time.Duration {
	if m.CallsPerMinute <= 0 {
		return 0
	}
	return time.Minute / time.Duration(m.CallsPerMinute)
}

// Completer issues one JSON completion against a named model.
type Completer interface {
	CompleteJSON(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// Provider is one configured backend and its ordered models.
type Provider struct {
	Name      string
	Kind      string
	Models    []Model
	Completer Completer
}

// ChainEntry overrides provider order and model hints for one request.
type ChainEntry struct {
	Provider string
	Models   []Model
}

// Learned resolves fallback categories when every model failed.
type Learned interface {
	Match(url string) (categoryPath string, confidence float64, ok bool)
}

// Request is one batch to classify.
type Request struct {
	Items     []Item
	Taxonomy  []string
	Hints     []Hint
	Delimiter string
	Sentinel  string
	// Chain, when set, replaces the client's provider order.
	Chain []ChainEntry
	// Learned supplies pattern fallbacks for exhausted items.
	Learned Learned
}

// Result is the normalized classification of one item.
type Result struct {
	ItemID       string
	CategoryPath string
	Confidence   float64
	Provider     string
	Model        string
	Source       string
}

// Attempt records one provider call.
type Attempt struct {
	Provider string
	Model    string
	Items    int
	Err      error
	Duration time.Duration
}

// Outcome is the full answer for a batch. Results always holds one entry per
// requested item, in request order.
type Outcome struct {
	Results    []Result
	Categories []string
	Attempts   []Attempt
	// Exhausted is set when no provider call succeeded.
	Exhausted bool
	// Degraded counts items resolved by learned patterns or the sentinel.
	Degraded int
	// Pacing is the delay the last used model wants before its next call.
	Pacing  time.Duration
	LastErr error
}
