package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"linksort/internal/linkstore"
	"linksort/internal/logging"
	"linksort/internal/services"
	"linksort/internal/textutil"
)

// Snapshot is one saved copy of the link tree.
type Snapshot struct {
	ID        string            `json:"id"`
	Label     string            `json:"label"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Tree      linkstore.Tree    `json:"tree"`
}

// Info describes a snapshot without its tree.
type Info struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	Path      string    `json:"path"`
	Folders   int       `json:"folders"`
	Items     int       `json:"items"`
}

// Service writes JSON snapshots of the link tree into a directory.
type Service struct {
	dir    string
	source linkstore.Exporter
	logger *slog.Logger
	now    func() time.Time
}

// NewService returns a snapshot service writing into dir.
func NewService(dir string, source linkstore.Exporter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		dir:    dir,
		source: source,
		logger: logging.NewComponentLogger(logger, "snapshot"),
		now:    time.Now,
	}
}

// CreateSnapshot exports the current tree and writes it to disk. The returned
// id can be passed to Load.
func (s *Service) CreateSnapshot(ctx context.Context, label string, metadata map[string]string) (string, error) {
	if s == nil || s.source == nil {
		return "", services.Wrap(services.ErrConfiguration, "snapshot", "create", "no link tree source configured", nil)
	}
	if strings.TrimSpace(s.dir) == "" {
		return "", services.Wrap(services.ErrConfiguration, "snapshot", "create", "snapshot directory not configured", nil)
	}
	tree, err := s.source.Export(ctx)
	if err != nil {
		return "", services.Wrap(services.ErrExternalService, "snapshot", "export tree", "link store export failed", err)
	}
	snap := Snapshot{
		ID:        uuid.NewString(),
		Label:     strings.TrimSpace(label),
		CreatedAt: s.now().UTC(),
		Metadata:  metadata,
		Tree:      tree,
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure snapshot directory: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	path := filepath.Join(s.dir, fileName(snap))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	s.logger.Info("link tree snapshot written",
		logging.String(logging.FieldEventType, "snapshot_created"),
		logging.String("snapshot_id", snap.ID),
		logging.String("path", path),
		logging.Int("folders", len(tree.Folders)),
		logging.Int("items", len(tree.Items)))
	return snap.ID, nil
}

func fileName(snap Snapshot) string {
	return fmt.Sprintf("%s-%s-%s.json",
		snap.CreatedAt.Format("20060102T150405Z"),
		textutil.SanitizeToken(snap.Label),
		snap.ID)
}

// List returns snapshot summaries, newest first.
func (s *Service) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot directory: %w", err)
	}
	var out []Info
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		snap, err := readSnapshot(path)
		if err != nil {
			s.logger.Warn("skipping unreadable snapshot",
				logging.String(logging.FieldEventType, "snapshot_unreadable"),
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove or repair the file"),
				logging.String(logging.FieldImpact, "snapshot is not listed"))
			continue
		}
		out = append(out, Info{
			ID:        snap.ID,
			Label:     snap.Label,
			CreatedAt: snap.CreatedAt,
			Path:      path,
			Folders:   len(snap.Tree.Folders),
			Items:     len(snap.Tree.Items),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Load reads the snapshot with the given id.
func (s *Service) Load(id string) (*Snapshot, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, "snapshot", "load", "snapshot id required", nil)
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, "*-"+id+".json"))
	if err != nil {
		return nil, fmt.Errorf("glob snapshots: %w", err)
	}
	if len(matches) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "snapshot", "load", "snapshot "+id+" not found", nil)
	}
	return readSnapshot(matches[0])
}

func readSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", filepath.Base(path), err)
	}
	return &snap, nil
}
