package backgrounds

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
)

// ErrNoAssetsAvailable is returned when a category has no catalog entries.
var ErrNoAssetsAvailable = errors.New("no background assets available")

// Asset is a chosen background clip.
type Asset struct {
	Category Category `json:"category"`
	Ref      string   `json:"ref"`
}

// Selector hands out catalog references, never repeating one until the
// whole category has been used, then starting a fresh cycle.
type Selector struct {
	mu      sync.Mutex
	catalog Catalog
	usage   UsageStore
	intn    func(n int) int
}

// NewSelector builds a selector over catalog. A nil usage store defaults to
// an in-memory one.
func NewSelector(catalog Catalog, usage UsageStore) *Selector {
	if usage == nil {
		usage = NewMemoryUsage()
	}
	return &Selector{catalog: catalog, usage: usage, intn: rand.IntN}
}

// WithRand replaces the random source; intended for tests.
func (s *Selector) WithRand(intn func(n int) int) *Selector {
	s.intn = intn
	return s
}

// Select picks an unused reference for cat uniformly at random and records it.
func (s *Selector) Select(ctx context.Context, cat Category) (Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := s.catalog[cat]
	if len(refs) == 0 {
		return Asset{}, fmt.Errorf("%w for category %q", ErrNoAssetsAvailable, cat)
	}

	used, err := s.usage.Used(ctx, cat)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to load rotation state: %w", err)
	}

	usedSet := make(map[string]struct{}, len(used))
	for _, ref := range used {
		usedSet[ref] = struct{}{}
	}

	unused := unusedRefs(refs, usedSet)
	if len(used) >= len(refs) || len(unused) == 0 {
		if err := s.usage.Clear(ctx, cat); err != nil {
			return Asset{}, fmt.Errorf("failed to reset rotation state: %w", err)
		}
		unused = refs
	}

	pick := unused[s.intn(len(unused))]
	if err := s.usage.MarkUsed(ctx, cat, pick); err != nil {
		return Asset{}, fmt.Errorf("failed to record rotation state: %w", err)
	}
	return Asset{Category: cat, Ref: pick}, nil
}

// Reset forgets every reference used in the current cycle for cat.
func (s *Selector) Reset(ctx context.Context, cat Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage.Clear(ctx, cat)
}

// Sizes reports the catalog size of every known category.
func (s *Selector) Sizes() map[Category]int {
	out := make(map[Category]int, len(displayNames))
	for _, cat := range Categories() {
		out[cat] = s.catalog.Size(cat)
	}
	return out
}

// unusedRefs keeps catalog order so a fixed random source picks deterministically.
func unusedRefs(refs []string, used map[string]struct{}) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if _, ok := used[ref]; !ok {
			out = append(out, ref)
		}
	}
	return out
}
