package selector

import (
	"context"
	"math/rand"
	"testing"

	"catcore/internal/config"
	"catcore/internal/domain"
	"catcore/internal/pool"
)

func itemsAcrossDomains() []domain.Item {
	return []domain.Item{
		{ID: "p1", Domain: domain.DomainPattern, Discrimination: 1.5, Difficulty: 0.0, Active: true},
		{ID: "p2", Domain: domain.DomainPattern, Discrimination: 0.8, Difficulty: 1.0, Active: true},
		{ID: "l1", Domain: domain.DomainLogic, Discrimination: 1.2, Difficulty: 0.2, Active: true},
		{ID: "v1", Domain: domain.DomainVerbal, Discrimination: 1.1, Difficulty: -0.2, Active: true},
		{ID: "s1", Domain: domain.DomainSpatial, Discrimination: 1.0, Difficulty: 0.0, Active: true},
		{ID: "m1", Domain: domain.DomainMath, Discrimination: 0.9, Difficulty: 0.0, Active: true},
		{ID: "mem1", Domain: domain.DomainMemory, Discrimination: 1.3, Difficulty: 0.0, Active: true},
	}
}

func defaultWeights() map[domain.Domain]float64 {
	return map[domain.Domain]float64{
		domain.DomainPattern: 0.22,
		domain.DomainLogic:   0.20,
		domain.DomainVerbal:  0.19,
		domain.DomainSpatial: 0.16,
		domain.DomainMath:    0.13,
		domain.DomainMemory:  0.10,
	}
}

func defaultCfg() config.CATConfig {
	return config.CATConfig{MinItemsPerDomain: 1, RandomesqueK: 5}
}

func TestSelectIsDeterministicWithKEqualsOne(t *testing.T) {
	provider := pool.NewInMemoryProvider(itemsAcrossDomains())
	cfg := defaultCfg()
	cfg.RandomesqueK = 1
	sel := New(cfg, provider, rand.New(rand.NewSource(1)))

	in := Input{
		UserID:         "u1",
		Theta:          0.0,
		Administered:   map[string]bool{},
		DomainCoverage: map[domain.Domain]int{},
		DomainWeights:  defaultWeights(),
	}

	first, ok, err := sel.Select(context.Background(), in)
	if err != nil || !ok {
		t.Fatalf("expected a selection, got ok=%v err=%v", ok, err)
	}
	for i := 0; i < 5; i++ {
		got, ok, err := sel.Select(context.Background(), in)
		if err != nil || !ok {
			t.Fatalf("expected a selection, got ok=%v err=%v", ok, err)
		}
		if got.ID != first.ID {
			t.Errorf("expected deterministic selection with K=1, got %s then %s", first.ID, got.ID)
		}
	}
}

func TestSelectPrefersDeficientDomain(t *testing.T) {
	provider := pool.NewInMemoryProvider(itemsAcrossDomains())
	cfg := defaultCfg()
	cfg.RandomesqueK = 1
	sel := New(cfg, provider, rand.New(rand.NewSource(1)))

	// Every domain but memory already has coverage; memory is deficient.
	coverage := map[domain.Domain]int{
		domain.DomainPattern: 1,
		domain.DomainLogic:   1,
		domain.DomainVerbal:  1,
		domain.DomainSpatial: 1,
		domain.DomainMath:    1,
		domain.DomainMemory:  0,
	}
	in := Input{
		UserID:         "u1",
		Theta:          0.0,
		Administered:   map[string]bool{},
		DomainCoverage: coverage,
		DomainWeights:  defaultWeights(),
	}

	got, ok, err := sel.Select(context.Background(), in)
	if err != nil || !ok {
		t.Fatalf("expected a selection, got ok=%v err=%v", ok, err)
	}
	if got.Domain != domain.DomainMemory {
		t.Errorf("expected the deficient domain (memory) to be chosen, got %s (%s)", got.ID, got.Domain)
	}
}

func TestSelectExcludesAdministeredItems(t *testing.T) {
	provider := pool.NewInMemoryProvider(itemsAcrossDomains())
	sel := New(defaultCfg(), provider, rand.New(rand.NewSource(1)))

	administered := map[string]bool{}
	seen := map[string]bool{}
	weights := defaultWeights()
	coverage := map[domain.Domain]int{}

	for i := 0; i < 7; i++ {
		in := Input{UserID: "u1", Theta: 0.0, Administered: administered, DomainCoverage: coverage, DomainWeights: weights, SeenQuestionIDs: seen}
		got, ok, err := sel.Select(context.Background(), in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			break
		}
		if administered[got.ID] {
			t.Fatalf("selector repeated item %s after it was already administered", got.ID)
		}
		administered[got.ID] = true
		coverage[got.Domain]++
	}
}

func TestSelectReturnsNotOkWhenPoolExhausted(t *testing.T) {
	single := []domain.Item{{ID: "only", Domain: domain.DomainMath, Discrimination: 1.0, Difficulty: 0.0, Active: true}}
	provider := pool.NewInMemoryProvider(single)
	sel := New(defaultCfg(), provider, rand.New(rand.NewSource(1)))

	in := Input{
		UserID:         "u1",
		Theta:          0.0,
		Administered:   map[string]bool{"only": true},
		DomainCoverage: map[domain.Domain]int{},
		DomainWeights:  defaultWeights(),
	}
	_, ok, err := sel.Select(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected ok=false when every item has been administered")
	}
}

func TestContentBalanceFallsBackWhenRestrictionWouldBeEmpty(t *testing.T) {
	// Only pattern-domain items exist, but memory is deficient: the hard
	// constraint would empty the set, so it must fall back to the full pool.
	items := []domain.Item{
		{ID: "p1", Domain: domain.DomainPattern, Discrimination: 1.2, Difficulty: 0.0, Active: true},
	}
	provider := pool.NewInMemoryProvider(items)
	cfg := defaultCfg()
	cfg.RandomesqueK = 1
	sel := New(cfg, provider, rand.New(rand.NewSource(1)))

	coverage := map[domain.Domain]int{domain.DomainPattern: 5}
	in := Input{
		UserID:         "u1",
		Theta:          0.0,
		Administered:   map[string]bool{},
		DomainCoverage: coverage,
		DomainWeights:  defaultWeights(),
	}
	got, ok, err := sel.Select(context.Background(), in)
	if err != nil || !ok {
		t.Fatalf("expected fallback selection, got ok=%v err=%v", ok, err)
	}
	if got.ID != "p1" {
		t.Errorf("expected fallback to the only available item, got %s", got.ID)
	}
}
