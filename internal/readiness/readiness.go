// Package readiness implements the readiness evaluator of spec.md §4.8:
// determines whether the calibrated item pool can support CAT, per domain
// and globally. Grounded on the teacher's IRTAlgorithm.GetAnalytics /
// CalibrateItemParameters quality-gate pattern (services/scheduler-service
// /internal/algorithms/irt.go), generalised from a single-state summary to a
// whole-pool diagnostic.
package readiness

import (
	"fmt"

	"catcore/internal/config"
	"catcore/internal/domain"
)

// Band is one of the three difficulty bands used to bucket well-calibrated
// items.
type Band string

const (
	BandEasy   Band = "easy"   // b < -1
	BandMedium Band = "medium" // -1 <= b <= 1
	BandHard   Band = "hard"   // b > 1
)

// DomainReport is the per-domain readiness detail.
type DomainReport struct {
	Domain             domain.Domain
	WellCalibrated     int
	BandCounts         map[Band]int
	Ready              bool
	Reasons            []string
}

// Report is the global readiness diagnostic returned by evaluate_readiness.
type Report struct {
	Ready   bool
	Domains map[domain.Domain]DomainReport
}

// CalibratedItem is the subset of item fields the readiness evaluator
// needs: b, se_a, se_b. Items missing se_a/se_b or b are not well
// calibrated and are excluded before bucketing.
type CalibratedItem struct {
	Domain          domain.Domain
	Difficulty      *float64
	SEDiscrimination *float64
	SEDifficulty     *float64
}

// Evaluator computes the readiness report from the full set of calibrated
// items and the configured quality gates.
type Evaluator struct {
	cfg config.ReadinessConfig
}

// New constructs a readiness Evaluator.
func New(cfg config.ReadinessConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate buckets every item into its domain and difficulty band, then
// checks each domain against the configured thresholds (spec.md §4.8).
func (e *Evaluator) Evaluate(items []CalibratedItem) Report {
	byDomain := make(map[domain.Domain][]CalibratedItem, len(domain.AllDomains))
	for _, d := range domain.AllDomains {
		byDomain[d] = nil
	}
	for _, it := range items {
		byDomain[it.Domain] = append(byDomain[it.Domain], it)
	}

	report := Report{Ready: true, Domains: make(map[domain.Domain]DomainReport, len(domain.AllDomains))}

	for _, d := range domain.AllDomains {
		dr := e.evaluateDomain(d, byDomain[d])
		report.Domains[d] = dr
		if !dr.Ready {
			report.Ready = false
		}
	}

	return report
}

func (e *Evaluator) evaluateDomain(d domain.Domain, items []CalibratedItem) DomainReport {
	bandCounts := map[Band]int{BandEasy: 0, BandMedium: 0, BandHard: 0}
	wellCalibrated := 0

	for _, it := range items {
		if it.SEDiscrimination == nil || it.SEDifficulty == nil || it.Difficulty == nil {
			continue
		}
		if *it.SEDiscrimination > e.cfg.MaxSEDiscrimination || *it.SEDifficulty > e.cfg.MaxSEDifficulty {
			continue
		}
		wellCalibrated++
		bandCounts[bandFor(*it.Difficulty)]++
	}

	var reasons []string
	ready := true

	if wellCalibrated < e.cfg.MinCalibratedItemsPerDomain {
		ready = false
		reasons = append(reasons, fmt.Sprintf("%s: only %d well-calibrated items, need >= %d", d, wellCalibrated, e.cfg.MinCalibratedItemsPerDomain))
	}
	for _, b := range []Band{BandEasy, BandMedium, BandHard} {
		if bandCounts[b] < e.cfg.MinItemsPerBand {
			ready = false
			reasons = append(reasons, fmt.Sprintf("%s: band %s has %d items, need >= %d", d, b, bandCounts[b], e.cfg.MinItemsPerBand))
		}
	}

	return DomainReport{
		Domain:         d,
		WellCalibrated: wellCalibrated,
		BandCounts:     bandCounts,
		Ready:          ready,
		Reasons:        reasons,
	}
}

func bandFor(b float64) Band {
	switch {
	case b < -1:
		return BandEasy
	case b > 1:
		return BandHard
	default:
		return BandMedium
	}
}
