package jobstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// CurrentVersion is the State layout version written by this build.
const CurrentVersion = 1

// DefaultKey is the record key used for the single organize job.
const DefaultKey = "organize"

var (
	// ErrSchemaMismatch is returned when a stored record has an unknown version.
	ErrSchemaMismatch = errors.New("job state version mismatch")
	// ErrCorrupt is returned when a stored record cannot be decoded.
	ErrCorrupt = errors.New("job state unreadable")
	// ErrGone is returned when the record being written was deleted or now
	// belongs to another job.
	ErrGone = errors.New("job state gone")
)

// KV is the durable blob store holding job records. The owner arguments are
// compared with the job_id field of the stored JSON.
type KV interface {
	GetBlob(ctx context.Context, key string) ([]byte, bool, error)
	CreateBlob(ctx context.Context, key string, blob []byte) (bool, error)
	UpdateBlob(ctx context.Context, key, owner string, blob []byte) (bool, error)
	DeleteBlob(ctx context.Context, key string) (bool, error)
	DeleteOwnedBlob(ctx context.Context, key, owner string) (bool, error)
}

// Store reads and writes one job's State as a JSON blob.
type Store struct {
	kv  KV
	key string
	now func() time.Time
}

// NewStore returns a Store for key over kv.
func NewStore(kv KV, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{kv: kv, key: key, now: time.Now}
}

// Key returns the record key.
func (s *Store) Key() string { return s.key }

// Get loads the State, returning nil when no job exists.
func (s *Store) Get(ctx context.Context) (*State, error) {
	blob, ok, err := s.kv.GetBlob(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var st State
	if err := json.Unmarshal(blob, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if st.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: record has version %d, expected %d", ErrSchemaMismatch, st.Version, CurrentVersion)
	}
	return &st, nil
}

// Put replaces the stored State while the record still belongs to st.JobID.
// It returns ErrGone once the record was deleted or replaced.
func (s *Store) Put(ctx context.Context, st *State) error {
	blob, err := s.encode(st)
	if err != nil {
		return err
	}
	updated, err := s.kv.UpdateBlob(ctx, s.key, st.JobID, blob)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("%w: job %s", ErrGone, st.JobID)
	}
	return nil
}

// Create stores st only if no record exists and reports whether it did.
func (s *Store) Create(ctx context.Context, st *State) (bool, error) {
	blob, err := s.encode(st)
	if err != nil {
		return false, err
	}
	return s.kv.CreateBlob(ctx, s.key, blob)
}

// Delete removes the record whatever job it holds and reports whether one
// existed.
func (s *Store) Delete(ctx context.Context) (bool, error) {
	return s.kv.DeleteBlob(ctx, s.key)
}

// Release removes the record only while it belongs to jobID.
func (s *Store) Release(ctx context.Context, jobID string) (bool, error) {
	return s.kv.DeleteOwnedBlob(ctx, s.key, jobID)
}

func (s *Store) encode(st *State) ([]byte, error) {
	if st == nil {
		return nil, errors.New("encode job state: nil state")
	}
	st.Version = CurrentVersion
	st.UpdatedAt = s.now().UTC()
	blob, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode job state: %w", err)
	}
	return blob, nil
}

// MemoryKV is an in-process KV for tests.
type MemoryKV struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{blobs: make(map[string][]byte)}
}

func (m *MemoryKV) GetBlob(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), blob...), true, nil
}

func (m *MemoryKV) UpdateBlob(_ context.Context, key, owner string, blob []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !ownedBy(m.blobs[key], owner) {
		return false, nil
	}
	m.blobs[key] = append([]byte(nil), blob...)
	return true, nil
}

func (m *MemoryKV) CreateBlob(_ context.Context, key string, blob []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; ok {
		return false, nil
	}
	m.blobs[key] = append([]byte(nil), blob...)
	return true, nil
}

func (m *MemoryKV) DeleteBlob(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	delete(m.blobs, key)
	return ok, nil
}

func (m *MemoryKV) DeleteOwnedBlob(_ context.Context, key, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !ownedBy(m.blobs[key], owner) {
		return false, nil
	}
	delete(m.blobs, key)
	return true, nil
}

func ownedBy(blob []byte, owner string) bool {
	if blob == nil {
		return false
	}
	var head struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(blob, &head); err != nil {
		return false
	}
	return head.JobID == owner
}
