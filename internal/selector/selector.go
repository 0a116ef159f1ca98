// Package selector implements the item selector of spec.md §4.3: filter,
// content-balance hard constraint, Fisher-information scoring, and top-K
// randomesque sampling. Grounded on the teacher's PlacementTestAlgorithm
// .SelectNextItem / calculateItemScore and calculateContentBalance
// (services/scheduler-service/internal/algorithms/placement.go), with the
// weighted multi-factor score collapsed to pure Fisher information per the
// spec's simpler algorithm.
package selector

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"catcore/internal/config"
	"catcore/internal/domain"
	"catcore/internal/irt"
	"catcore/internal/pool"
)

// Input bundles everything the selector needs for one selection decision.
type Input struct {
	UserID           string
	Theta            float64
	Administered     map[string]bool
	DomainCoverage   map[domain.Domain]int
	DomainWeights    map[domain.Domain]float64
	SeenQuestionIDs  map[string]bool // optional external override, merged with Administered
}

// Selector chooses the next item to administer. It performs no I/O of its
// own beyond the injected ItemProvider; the estimator and scoring stages are
// CPU-only per spec.md §5.
type Selector struct {
	cfg      config.CATConfig
	provider pool.ItemProvider
	rng      *rand.Rand
}

// New constructs a Selector. rng may be nil, in which case a private
// source with the fixed seed 1 is used, so every such Selector draws the
// same sequence; pass a seeded *rand.Rand to control the draws.
func New(cfg config.CATConfig, provider pool.ItemProvider, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Selector{cfg: cfg, provider: provider, rng: rng}
}

// Select runs the four-stage algorithm and returns the chosen item, or
// pool.ErrItemNotFound-free (ok=false) if no candidate survives filtering —
// spec.md §4.3's "none" outcome, which the caller (the session engine) turns
// into the item_pool_exhausted stopping reason.
func (s *Selector) Select(ctx context.Context, in Input) (domain.Item, bool, error) {
	eligible, err := s.provider.EligibleForUser(ctx, in.UserID)
	if err != nil {
		return domain.Item{}, false, err
	}

	candidates := filter(eligible, in.Administered, in.SeenQuestionIDs)
	if len(candidates) == 0 {
		return domain.Item{}, false, nil
	}

	candidates = applyContentBalance(candidates, in.DomainCoverage, in.DomainWeights, s.cfg.MinItemsPerDomain)
	if len(candidates) == 0 {
		return domain.Item{}, false, nil
	}

	scored := score(candidates, in.Theta)

	k := s.cfg.RandomesqueK
	if k <= 0 {
		k = 1
	}
	if k > len(scored) {
		k = len(scored)
	}
	top := scored[:k]

	idx := 0
	if k > 1 {
		idx = s.rng.Intn(k)
	}
	return top[idx].item, true, nil
}

type scoredItem struct {
	item domain.Item
	info float64
}

// filter removes already-administered and externally-seen items, and drops
// items with missing or non-positive a or a missing b — stage 1.
func filter(items []domain.Item, administered, externallySeen map[string]bool) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for _, it := range items {
		if administered != nil && administered[it.ID] {
			continue
		}
		if externallySeen != nil && externallySeen[it.ID] {
			continue
		}
		if math.IsNaN(it.Discrimination) || it.Discrimination <= 0 || math.IsNaN(it.Difficulty) {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// applyContentBalance restricts candidates to deficient domains when any
// target domain is below its floor, falling back to the full set when that
// restriction would be empty — stage 2.
func applyContentBalance(items []domain.Item, coverage map[domain.Domain]int, weights map[domain.Domain]float64, minPerDomain int) []domain.Item {
	deficient := make(map[domain.Domain]bool)
	for d, w := range weights {
		if w <= 0 {
			continue
		}
		if coverage[d] < minPerDomain {
			deficient[d] = true
		}
	}
	if len(deficient) == 0 {
		return items
	}

	restricted := make([]domain.Item, 0, len(items))
	for _, it := range items {
		if deficient[it.Domain] {
			restricted = append(restricted, it)
		}
	}
	if len(restricted) == 0 {
		return items
	}
	return restricted
}

// score computes Fisher information at theta for every candidate and sorts
// descending by information, ties broken by item id ascending — stage 3 and
// the sort half of stage 4.
func score(items []domain.Item, theta float64) []scoredItem {
	scored := make([]scoredItem, 0, len(items))
	for _, it := range items {
		info, err := irt.FisherInformation(theta, it.Discrimination, it.Difficulty)
		if err != nil {
			continue
		}
		scored = append(scored, scoredItem{item: it, info: info})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].info != scored[j].info {
			return scored[i].info > scored[j].info
		}
		return scored[i].item.ID < scored[j].item.ID
	})
	return scored
}
