// Package pool defines the item-bank capability surface (spec.md §9 design
// notes): a narrow ItemProvider interface the selector and session engine
// depend on, so an in-memory bank (tests, simulation) and a persistent,
// cached bank (internal/store) can be swapped without touching either
// caller. Grounded on the teacher's IRTManager pattern of wrapping a
// cache-then-db lookup behind a small method set (services/scheduler-service
// /internal/state/irt_manager.go).
package pool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"catcore/internal/domain"
)

// ItemProvider is the read-only view of the item bank the selector and
// session engine need: list_eligible_for_user and get_by_id. Implementations
// may be backed by memory, a database, or a cache in front of one; callers
// never assume which.
type ItemProvider interface {
	// EligibleForUser returns every item eligible for CAT selection for the
	// given user: active, quality-flag normal, IRT parameters present and
	// well-formed, and not previously seen by this user in any prior
	// session. Order is unspecified; callers that need determinism sort it
	// themselves. It is a pure read; it does not mutate.
	EligibleForUser(ctx context.Context, userID string) ([]domain.Item, error)

	// ItemByID looks up a single item regardless of its active/quality
	// flags, for replay and audit paths that must resolve items the
	// selector would never recommend today.
	ItemByID(ctx context.Context, id string) (domain.Item, error)
}

// ErrItemNotFound is returned by ItemByID when no item with the given ID
// exists in the provider's bank.
var ErrItemNotFound = fmt.Errorf("pool: item not found")

// InMemoryProvider is an ItemProvider backed by a fixed, in-process slice of
// items — used by tests and the simulation harness (spec.md §4.7), which
// generate synthetic item banks rather than reading Postgres. It tracks
// per-user seen items so EligibleForUser can honour the cross-session "not
// previously seen" filter even without a persistence collaborator.
type InMemoryProvider struct {
	mu    sync.RWMutex
	items map[string]domain.Item
	seen  map[string]map[string]bool // userID -> itemID -> true
}

// NewInMemoryProvider builds a provider from a slice of items, indexed by
// ID. Later items with a duplicate ID overwrite earlier ones.
func NewInMemoryProvider(items []domain.Item) *InMemoryProvider {
	m := make(map[string]domain.Item, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return &InMemoryProvider{items: m, seen: make(map[string]map[string]bool)}
}

// MarkSeen records that userID has already been administered itemID in a
// prior session, so future EligibleForUser calls exclude it.
func (p *InMemoryProvider) MarkSeen(userID, itemID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen[userID] == nil {
		p.seen[userID] = make(map[string]bool)
	}
	p.seen[userID][itemID] = true
}

// EligibleForUser implements ItemProvider.
func (p *InMemoryProvider) EligibleForUser(_ context.Context, userID string) ([]domain.Item, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	seen := p.seen[userID]
	out := make([]domain.Item, 0, len(p.items))
	for _, it := range p.items {
		if !it.Active || it.LowQuality || !it.WellFormed() {
			continue
		}
		if seen != nil && seen[it.ID] {
			continue
		}
		out = append(out, it)
	}
	// Deterministic ordering makes InMemoryProvider-backed tests and
	// simulation runs reproducible across processes.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ItemByID implements ItemProvider.
func (p *InMemoryProvider) ItemByID(_ context.Context, id string) (domain.Item, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	it, ok := p.items[id]
	if !ok {
		return domain.Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return it, nil
}

// Put inserts or replaces an item, for simulation harnesses that build a
// bank incrementally.
func (p *InMemoryProvider) Put(it domain.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[it.ID] = it
}
