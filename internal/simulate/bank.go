// Package simulate drives the session engine with synthetic examinees to
// validate exit criteria empirically (spec.md §4.7). Grounded on the
// teacher's placement-test self-checks in internal/algorithms/irt_test.go
// and placement.go's item-generation conventions, reworked into a
// standalone Monte Carlo harness rather than inline unit-test fixtures.
package simulate

import (
	"fmt"
	"math"
	"math/rand"

	"catcore/internal/domain"

	"gonum.org/v1/gonum/stat/distuv"
)

// GenerateItemBank produces n items per domain with a ~ LogNormal(0, 0.3)
// clipped to [0.5, 2.5] and b ~ Normal(0, 1) clipped to [-3, +3], using a
// seeded RNG for reproducibility (spec.md §4.7).
func GenerateItemBank(seed int64, itemsPerDomain int) []domain.Item {
	src := rand.NewSource(seed)

	logNormalA := distuv.LogNormal{Mu: 0, Sigma: 0.3, Src: src}
	normalB := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	items := make([]domain.Item, 0, len(domain.AllDomains)*itemsPerDomain)
	for _, d := range domain.AllDomains {
		for i := 0; i < itemsPerDomain; i++ {
			a := clip(logNormalA.Rand(), 0.5, 2.5)
			b := clip(normalB.Rand(), -3.0, 3.0)
			items = append(items, domain.Item{
				ID:             fmt.Sprintf("%s-%03d", d, i),
				Domain:         d,
				Discrimination: a,
				Difficulty:     b,
				Active:         true,
			})
		}
	}
	return items
}

func clip(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
