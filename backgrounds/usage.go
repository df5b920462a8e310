package backgrounds

import (
	"context"
	"sync"
)

// UsageStore remembers which references of a category were already used in
// the current rotation cycle.
type UsageStore interface {
	Used(ctx context.Context, cat Category) ([]string, error)
	MarkUsed(ctx context.Context, cat Category, ref string) error
	Clear(ctx context.Context, cat Category) error
}

// MemoryUsage is a process-scoped UsageStore.
type MemoryUsage struct {
	mu   sync.Mutex
	used map[Category]map[string]struct{}
}

// NewMemoryUsage returns an empty in-memory store.
func NewMemoryUsage() *MemoryUsage {
	return &MemoryUsage{used: make(map[Category]map[string]struct{})}
}

func (m *MemoryUsage) Used(_ context.Context, cat Category) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.used[cat]))
	for ref := range m.used[cat] {
		out = append(out, ref)
	}
	return out, nil
}

func (m *MemoryUsage) MarkUsed(_ context.Context, cat Category, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.used[cat]
	if !ok {
		set = make(map[string]struct{})
		m.used[cat] = set
	}
	set[ref] = struct{}{}
	return nil
}

func (m *MemoryUsage) Clear(_ context.Context, cat Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.used, cat)
	return nil
}
