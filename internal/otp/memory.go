package otp

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore keeps codes in process memory. Expired codes stay until Sweep removes them.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

func (m *MemoryStore) Save(_ context.Context, record Record, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.Email] = record
	return nil
}

func (m *MemoryStore) Get(_ context.Context, email string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[email]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (m *MemoryStore) Delete(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, email)
	return nil
}

// Sweep removes expired codes and returns how many were removed
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for email, record := range m.records {
		if now.After(record.ExpiresAt) {
			delete(m.records, email)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps every interval until ctx is done
func (m *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.Sweep(); removed > 0 {
				logger.Debug("Removed expired verification codes", "count", removed)
			}
		}
	}
}
