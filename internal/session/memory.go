package session

import (
	"context"
	"sync"
	"time"

	"github.com/TimurManjosov/triagem/internal/telemetry"
)

type entry struct {
	data    []byte
	expires time.Time
}

// MemoryStore keeps sessions in process memory. Expired entries are
// invisible to Get and are removed by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	clock   Clock
}

// NewMemoryStore creates a store whose entries expire ttl after their last Put.
func NewMemoryStore(ttl time.Duration, clock Clock) *MemoryStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MemoryStore{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   clock,
	}
}

func (m *MemoryStore) Get(ctx context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok || !m.clock.Now().Before(e.expires) {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.data...), nil
}

func (m *MemoryStore) Put(ctx context.Context, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[id] = entry{
		data:    append([]byte(nil), data...),
		expires: m.clock.Now().Add(m.ttl),
	}
	telemetry.IntakeSessions.Set(float64(len(m.entries)))
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, fn UpdateFunc) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	now := m.clock.Now()
	if !ok || !now.Before(e.expires) {
		return nil, ErrNotFound
	}
	next, err := fn(append([]byte(nil), e.data...))
	if err != nil {
		return nil, err
	}
	m.entries[id] = entry{
		data:    append([]byte(nil), next...),
		expires: now.Add(m.ttl),
	}
	return append([]byte(nil), next...), nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, id)
	telemetry.IntakeSessions.Set(float64(len(m.entries)))
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	removed := 0
	for id, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, id)
			removed++
		}
	}
	telemetry.IntakeSessions.Set(float64(len(m.entries)))
	return removed
}

// Run sweeps every interval until ctx is cancelled.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Close is a no-op for MemoryStore as there are no resources to release.
func (m *MemoryStore) Close() error { return nil }
