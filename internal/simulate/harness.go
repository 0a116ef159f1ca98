package simulate

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"catcore/internal/config"
	"catcore/internal/domain"
	"catcore/internal/events"
	"catcore/internal/irt"
	"catcore/internal/pool"
	"catcore/internal/selector"
	"catcore/internal/session"
	"catcore/internal/stopping"

	"gonum.org/v1/gonum/stat/distuv"
)

// ExamineeResult is the per-examinee metric record (spec.md §4.7).
type ExamineeResult struct {
	TrueTheta         float64
	FinalTheta        float64
	Bias              float64
	FinalSE           float64
	ItemsAdministered int
	StopReason        stopping.Reason
	Converged         bool
	DomainCoverage    map[domain.Domain]int
}

// Band is one of the five quintile-stratified true-ability bands.
type Band string

const (
	BandVeryLow Band = "very_low"
	BandLow     Band = "low"
	BandAverage Band = "average"
	BandHigh    Band = "high"
	BandVeryHigh Band = "very_high"
)

// bandFor assigns a quintile band from a true theta and the full set's
// quintile boundaries.
func bandFor(theta float64, q1, q2, q3, q4 float64) Band {
	switch {
	case theta < q1:
		return BandVeryLow
	case theta < q2:
		return BandLow
	case theta < q3:
		return BandAverage
	case theta < q4:
		return BandHigh
	default:
		return BandVeryHigh
	}
}

// BandMetrics aggregates ExamineeResult across one quintile band.
type BandMetrics struct {
	Band            Band
	N               int
	MeanItems       float64
	MeanSE          float64
	MeanBias        float64
	RMSE            float64
	ConvergenceRate float64
}

// Report is the full simulation output: per-examinee records plus
// aggregate and quintile-stratified metrics.
type Report struct {
	Examinees          []ExamineeResult
	MeanItems          float64
	MedianItems        float64
	MeanSE             float64
	MeanBias           float64
	RMSE               float64
	ConvergenceRate    float64
	StopReasonCounts   map[stopping.Reason]int
	Bands              []BandMetrics
}

// Params configures one simulation run.
type Params struct {
	Seed           int64
	NumExaminees   int
	ItemsPerDomain int
	ThetaMean      float64
	ThetaSD        float64
	SEConvergedThreshold float64
	CAT            config.CATConfig
	DomainWeights  map[domain.Domain]float64
}

// Run drives NumExaminees synthetic examinees through the full selector /
// session engine / stopping pipeline and returns the aggregate report
// (spec.md §4.7). It uses seed for the item bank and seed+1 for examinee
// theta draws and response simulation, so the same seed always reproduces
// the same run.
func Run(p Params) Report {
	items := GenerateItemBank(p.Seed, p.ItemsPerDomain)
	provider := pool.NewInMemoryProvider(items)

	examineeRNG := rand.New(rand.NewSource(p.Seed + 1))
	selectorRNG := rand.New(rand.NewSource(p.Seed + 2))
	thetaDist := distuv.Normal{Mu: p.ThetaMean, Sigma: p.ThetaSD, Src: rand.NewSource(p.Seed + 1)}

	sel := selector.New(p.CAT, provider, selectorRNG)
	stopEval := stopping.New(p.CAT)

	results := make([]ExamineeResult, 0, p.NumExaminees)
	for i := 0; i < p.NumExaminees; i++ {
		trueTheta := thetaDist.Rand()
		result := runOneExaminee(sel, stopEval, p, trueTheta, examineeRNG, i)
		results = append(results, result)
	}

	return buildReport(results, p.SEConvergedThreshold)
}

func runOneExaminee(sel *selector.Selector, stopEval *stopping.Evaluator, p Params, trueTheta float64, rng *rand.Rand, examineeIndex int) ExamineeResult {
	engine := session.New(stopEval, p.DomainWeights, nil, nil, &events.NoopPublisher{})
	userID := fmt.Sprintf("sim-%d", examineeIndex)
	s := engine.Initialize(userID, fmt.Sprintf("sim-session-%d", examineeIndex), 0.0)

	administered := map[string]bool{}
	reason := stopping.ReasonNone
	maxItems := p.CAT.MaxItems

	for len(s.Administered) < maxItems {
		it, ok, err := sel.Select(context.Background(), selector.Input{
			UserID:         userID,
			Theta:          s.Theta,
			Administered:   administered,
			DomainCoverage: s.DomainCoverage,
			DomainWeights:  p.DomainWeights,
		})
		if err != nil || !ok {
			reason = stopping.ReasonItemPoolExhausted
			break
		}

		prob := irt.Probability2PL(trueTheta, it.Discrimination, it.Difficulty)
		correct := rng.Float64() < prob

		a, b := it.Discrimination, it.Difficulty
		step, err := engine.ProcessResponse(&s, it.ID, correct, it.Domain, &a, &b)
		if err != nil {
			reason = stopping.ReasonItemPoolExhausted
			break
		}
		administered[it.ID] = true

		if step.ShouldStop {
			reason = step.Reason
			break
		}
	}
	if reason == stopping.ReasonNone && len(s.Administered) >= maxItems {
		reason = stopping.ReasonMaxItems
	}

	final, err := engine.Finalize(&s, reason)
	if err != nil {
		// Finalize only fails on double-finalization, which cannot happen
		// here; surface zero-value metrics rather than panicking a batch run.
		final = session.FinalResult{Theta: s.Theta, ThetaSE: s.ThetaSE, ItemsAdministered: len(s.Administered), StopReason: reason}
	}

	return ExamineeResult{
		TrueTheta:         trueTheta,
		FinalTheta:        final.Theta,
		Bias:              final.Theta - trueTheta,
		FinalSE:           final.ThetaSE,
		ItemsAdministered: final.ItemsAdministered,
		StopReason:        final.StopReason,
		Converged:         final.ThetaSE < p.SEConvergedThreshold,
		DomainCoverage:    cloneCoverage(s.DomainCoverage),
	}
}

func cloneCoverage(m map[domain.Domain]int) map[domain.Domain]int {
	out := make(map[domain.Domain]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func buildReport(results []ExamineeResult, seConverged float64) Report {
	n := len(results)
	report := Report{Examinees: results, StopReasonCounts: make(map[stopping.Reason]int)}
	if n == 0 {
		return report
	}

	var sumItems, sumSE, sumBias, sumSqErr float64
	converged := 0
	itemCounts := make([]int, n)
	for i, r := range results {
		sumItems += float64(r.ItemsAdministered)
		sumSE += r.FinalSE
		sumBias += r.Bias
		sumSqErr += r.Bias * r.Bias
		itemCounts[i] = r.ItemsAdministered
		if r.Converged {
			converged++
		}
		report.StopReasonCounts[r.StopReason]++
	}
	sort.Ints(itemCounts)

	report.MeanItems = sumItems / float64(n)
	report.MedianItems = median(itemCounts)
	report.MeanSE = sumSE / float64(n)
	report.MeanBias = sumBias / float64(n)
	report.RMSE = math.Sqrt(sumSqErr / float64(n))
	report.ConvergenceRate = float64(converged) / float64(n)

	report.Bands = buildBands(results)
	return report
}

func median(sorted []int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

// buildBands partitions examinees by true theta into five quintile bands
// using the sample's own quintile boundaries, then reports every metric per
// band to verify the engine is unbiased across ability levels.
func buildBands(results []ExamineeResult) []BandMetrics {
	thetas := make([]float64, len(results))
	for i, r := range results {
		thetas[i] = r.TrueTheta
	}
	sorted := append([]float64(nil), thetas...)
	sort.Float64s(sorted)

	q1 := quantile(sorted, 0.2)
	q2 := quantile(sorted, 0.4)
	q3 := quantile(sorted, 0.6)
	q4 := quantile(sorted, 0.8)

	grouped := map[Band][]ExamineeResult{}
	for _, r := range results {
		b := bandFor(r.TrueTheta, q1, q2, q3, q4)
		grouped[b] = append(grouped[b], r)
	}

	bands := []Band{BandVeryLow, BandLow, BandAverage, BandHigh, BandVeryHigh}
	out := make([]BandMetrics, 0, len(bands))
	for _, b := range bands {
		group := grouped[b]
		out = append(out, aggregateBand(b, group))
	}
	return out
}

func aggregateBand(b Band, group []ExamineeResult) BandMetrics {
	n := len(group)
	if n == 0 {
		return BandMetrics{Band: b}
	}
	var sumItems, sumSE, sumBias, sumSqErr float64
	converged := 0
	for _, r := range group {
		sumItems += float64(r.ItemsAdministered)
		sumSE += r.FinalSE
		sumBias += r.Bias
		sumSqErr += r.Bias * r.Bias
		if r.Converged {
			converged++
		}
	}
	return BandMetrics{
		Band:            b,
		N:               n,
		MeanItems:       sumItems / float64(n),
		MeanSE:          sumSE / float64(n),
		MeanBias:        sumBias / float64(n),
		RMSE:            math.Sqrt(sumSqErr / float64(n)),
		ConvergenceRate: float64(converged) / float64(n),
	}
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
