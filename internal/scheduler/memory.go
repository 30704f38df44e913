package scheduler

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a non-durable AlarmStore for tests and one-shot commands.
type MemoryStore struct {
	mu     sync.Mutex
	alarms map[string]time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{alarms: make(map[string]time.Time)}
}

func (m *MemoryStore) ArmAlarm(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alarms[id] = at.UTC().Truncate(time.Millisecond)
	return nil
}

func (m *MemoryStore) GetAlarm(_ context.Context, id string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.alarms[id]
	return at, ok, nil
}

func (m *MemoryStore) DueAlarms(_ context.Context, now time.Time) ([]Alarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Alarm
	for id, at := range m.alarms {
		if !at.After(now) {
			out = append(out, Alarm{ID: id, FireAt: at})
		}
	}
	return out, nil
}

func (m *MemoryStore) ClearAlarmIfAt(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.alarms[id]
	if !ok || !current.Equal(at.UTC().Truncate(time.Millisecond)) {
		return false, nil
	}
	delete(m.alarms, id)
	return true, nil
}

func (m *MemoryStore) ClearAlarm(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.alarms, id)
	return nil
}
