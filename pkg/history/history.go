package history

import (
	"context"
	"sync"

	"github.com/cuemby/self-healing-controller/pkg/types"
)

// Recorder stores remediation outcomes for later inspection
type Recorder interface {
	Record(ctx context.Context, outcome types.Outcome) error

	// Recent returns up to limit outcomes, newest first
	Recent(ctx context.Context, limit int) ([]types.Outcome, error)

	Close() error
}

// DefaultCapacity is the number of outcomes a MemoryRecorder retains
const DefaultCapacity = 256

// MemoryRecorder keeps the most recent outcomes in a fixed-size ring
type MemoryRecorder struct {
	mu   sync.Mutex
	ring []types.Outcome
	next int
	full bool
}

// NewMemoryRecorder creates a ring holding at most capacity outcomes
func NewMemoryRecorder(capacity int) *MemoryRecorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryRecorder{ring: make([]types.Outcome, capacity)}
}

func (m *MemoryRecorder) Record(_ context.Context, outcome types.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ring[m.next] = outcome
	m.next = (m.next + 1) % len(m.ring)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

func (m *MemoryRecorder) Recent(_ context.Context, limit int) ([]types.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := m.next
	if m.full {
		size = len(m.ring)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]types.Outcome, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.ring)) % len(m.ring)
		out = append(out, m.ring[idx])
	}
	return out, nil
}

func (m *MemoryRecorder) Close() error {
	return nil
}
