package testsupport

import (
	"testing"

	"linksort/internal/config"
	"linksort/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// ReopenStore closes s and opens the same database again, simulating a
// process restart.
func ReopenStore(t testing.TB, cfg *config.Config, s *store.Store) *store.Store {
	t.Helper()

	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	return MustOpenStore(t, cfg)
}
