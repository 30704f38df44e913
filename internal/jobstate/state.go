package jobstate

import (
	"time"
)

// Phase is the persisted orchestrator state. NotStarted is represented by the
// absence of a record.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseBatchArmed   Phase = "batch_armed"
	PhaseBatchRunning Phase = "batch_running"
	PhaseFinalizing   Phase = "finalizing"
	PhaseFailed       Phase = "failed"
)

// Mode selects which items a job covers.
type Mode string

const (
	ModeFull      Mode = "full"
	ModeSelection Mode = "selection"
)

// Result sources.
const (
	SourceAI       = "ai"
	SourceLearned  = "learned"
	SourceSentinel = "sentinel"
	SourceError    = "error"
)

// ModelDescriptor mirrors one configured model and its rate-limit hints.
type ModelDescriptor struct {
	ID              string `json:"id"`
	MaxItemsPerCall int    `json:"max_items_per_call"`
	CallsPerMinute  int    `json:"calls_per_minute"`
}

// ProviderDescriptor mirrors one configured provider without its credentials.
type ProviderDescriptor struct {
	Name   string            `json:"name"`
	Kind   string            `json:"kind"`
	Models []ModelDescriptor `json:"models"`
}

// Settings is the snapshot of configuration in effect when the job started.
type Settings struct {
	BatchSize              int                  `json:"batch_size"`
	RetryBudget            int                  `json:"retry_budget"`
	RetryBackoffSeconds    int                  `json:"retry_backoff_seconds"`
	BatchDelaySeconds      int                  `json:"batch_delay_seconds"`
	RootFolderID           string               `json:"root_folder_id"`
	Delimiter              string               `json:"delimiter"`
	Sentinel               string               `json:"sentinel"`
	LearnedConfidenceFloor float64              `json:"learned_confidence_floor"`
	ObserveThreshold       float64              `json:"observe_threshold"`
	ContinueOnExhaustion   bool                 `json:"continue_on_exhaustion"`
	RequireSnapshot        bool                 `json:"require_snapshot"`
	MinCategories          int                  `json:"min_categories"`
	MaxCategories          int                  `json:"max_categories"`
	MaxDepth               int                  `json:"max_depth"`
	SampleSize             int                  `json:"sample_size"`
	SeedCategories         []string             `json:"seed_categories,omitempty"`
	Providers              []ProviderDescriptor `json:"providers"`
}

// Result is the outcome recorded for one processed item.
type Result struct {
	ItemID       string  `json:"item_id"`
	URL          string  `json:"url,omitempty"`
	CategoryPath string  `json:"category_path"`
	Confidence   float64 `json:"confidence"`
	Provider     string  `json:"provider,omitempty"`
	Model        string  `json:"model,omitempty"`
	Source       string  `json:"source"`
	FolderID     string  `json:"folder_id,omitempty"`
	Moved        bool    `json:"moved"`
	Error        string  `json:"error,omitempty"`
}

// State is the entire resumable record of one job.
type State struct {
	Version      int       `json:"version"`
	JobID        string    `json:"job_id"`
	Phase        Phase     `json:"phase"`
	Mode         Mode      `json:"mode"`
	Force        bool      `json:"force"`
	RequestedIDs []string  `json:"requested_ids,omitempty"`
	Items        []string  `json:"items"`
	Cursor       int       `json:"cursor"`
	Taxonomy     []string  `json:"taxonomy"`
	TaxonomyDone bool      `json:"taxonomy_done"`
	Results      []Result  `json:"results"`
	Attempts     int       `json:"attempts"`
	LastError    string    `json:"last_error,omitempty"`
	WakeFailures int       `json:"wake_failures,omitempty"`
	SnapshotID   string    `json:"snapshot_id,omitempty"`
	Settings     Settings  `json:"settings"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Total returns the number of items captured for the job.
func (s *State) Total() int { return len(s.Items) }

// Done reports whether every item has been processed.
func (s *State) Done() bool { return s.Cursor >= len(s.Items) }

// NextSlice returns the bounds of the batch starting at the cursor.
func (s *State) NextSlice() (int, int) {
	start := min(max(s.Cursor, 0), len(s.Items))
	size := s.Settings.BatchSize
	if size <= 0 {
		size = len(s.Items)
	}
	return start, min(start+size, len(s.Items))
}

// Summary counts the accumulated results.
type Summary struct {
	Processed   int `json:"processed"`
	Categorized int `json:"categorized"`
	Errors      int `json:"errors"`
	Categories  int `json:"categories"`
}

// Summarize derives the completion summary. Categorized counts items moved
// into a folder; Categories counts distinct paths those items landed in.
func (s *State) Summarize() Summary {
	sum := Summary{Processed: len(s.Results)}
	paths := make(map[string]struct{})
	for _, r := range s.Results {
		if r.Error != "" {
			sum.Errors++
		}
		if r.Moved {
			sum.Categorized++
			paths[r.CategoryPath] = struct{}{}
		}
	}
	sum.Categories = len(paths)
	return sum
}
