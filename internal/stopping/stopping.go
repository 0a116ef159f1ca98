// Package stopping implements the five-rule stopping evaluator of
// spec.md §4.4, grounded on the teacher's priority-ordered
// PlacementTestAlgorithm.CheckStoppingCriteria (services/scheduler-service
// /internal/algorithms/placement.go): a pure function of counters and
// history, no I/O, no state of its own.
package stopping

import (
	"fmt"

	"catcore/internal/config"
	"catcore/internal/domain"
)

// Reason is one of the stop reasons enumerated in the glossary.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonMaxItems           Reason = "max_items"
	ReasonSEThreshold        Reason = "se_threshold"
	ReasonThetaStable        Reason = "theta_stable"
	ReasonItemPoolExhausted  Reason = "item_pool_exhausted"
)

// Details carries each rule's intermediate boolean/numeric state so
// callers can log and tests can assert individual predicates (spec.md
// §4.4).
type Details struct {
	NumItems              int
	BelowMinItems         bool
	AtOrAboveMaxItems     bool
	ContentBalanced       bool
	BalanceWaived         bool
	DomainsWithItems      int
	SEThresholdMet        bool
	ThetaSE               float64
	DeltaTheta            float64
	DeltaThetaBelowThreshold bool
	ThetaStableConditionMet  bool
}

// Result is the evaluator's decision plus its diagnostic trail.
type Result struct {
	ShouldStop bool
	Reason     Reason
	Details    Details
}

// Evaluator is a pure function of (theta_se, num_items, domain_coverage,
// theta_history), configured once with the tunables of spec.md §6.
type Evaluator struct {
	cfg config.CATConfig
}

// New constructs a stopping Evaluator from CAT configuration.
func New(cfg config.CATConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate runs the five rules in strict priority order; the first
// matching rule fires. domainWeights is the target composition (spec.md
// §4.3) — only domains present in it are subject to the content-balance
// floor.
func (e *Evaluator) Evaluate(thetaSE float64, numItems int, domainCoverage map[domain.Domain]int, thetaHistory []float64, domainWeights map[domain.Domain]float64) (Result, error) {
	if thetaSE < 0 {
		return Result{}, fmt.Errorf("stopping: theta_se must be non-negative, got %v", thetaSE)
	}
	if numItems < 0 {
		return Result{}, fmt.Errorf("stopping: num_items must be non-negative, got %v", numItems)
	}
	for d, c := range domainCoverage {
		if c < 0 {
			return Result{}, fmt.Errorf("stopping: domain_coverage[%s] must be non-negative, got %v", d, c)
		}
	}

	details := Details{
		NumItems: numItems,
		ThetaSE:  thetaSE,
	}

	// Rule 1: minimum items overrides every other rule.
	if numItems < e.cfg.MinItems {
		details.BelowMinItems = true
		return Result{ShouldStop: false, Reason: ReasonNone, Details: details}, nil
	}

	// Rule 2: maximum items overrides rules 3-5.
	if numItems >= e.cfg.MaxItems {
		details.AtOrAboveMaxItems = true
		return Result{ShouldStop: true, Reason: ReasonMaxItems, Details: details}, nil
	}

	// Rule 3: content-balance hard constraint, with a waiver.
	contentBalanced := true
	for d, weight := range domainWeights {
		if weight <= 0 {
			continue
		}
		if domainCoverage[d] < e.cfg.MinItemsPerDomain {
			contentBalanced = false
			break
		}
	}
	details.ContentBalanced = contentBalanced

	domainsWithItems := 0
	for _, c := range domainCoverage {
		if c > 0 {
			domainsWithItems++
		}
	}
	details.DomainsWithItems = domainsWithItems

	waived := numItems >= e.cfg.ContentBalanceWaiverThreshold && domainsWithItems >= e.cfg.MinDomainsForWaiver
	details.BalanceWaived = waived

	if !contentBalanced && !waived {
		return Result{ShouldStop: false, Reason: ReasonNone, Details: details}, nil
	}

	// Rule 4: SE threshold, strict inequality.
	details.SEThresholdMet = thetaSE < e.cfg.SEThreshold
	if details.SEThresholdMet {
		return Result{ShouldStop: true, Reason: ReasonSEThreshold, Details: details}, nil
	}

	// Rule 5: theta stabilisation.
	if len(thetaHistory) >= 2 {
		delta := thetaHistory[len(thetaHistory)-1] - thetaHistory[len(thetaHistory)-2]
		if delta < 0 {
			delta = -delta
		}
		details.DeltaTheta = delta
		details.DeltaThetaBelowThreshold = delta < e.cfg.DeltaThetaThreshold
		stableSE := thetaSE < e.cfg.SEStabilizationThreshold
		details.ThetaStableConditionMet = details.DeltaThetaBelowThreshold && stableSE

		if details.ThetaStableConditionMet {
			return Result{ShouldStop: true, Reason: ReasonThetaStable, Details: details}, nil
		}
	}

	return Result{ShouldStop: false, Reason: ReasonNone, Details: details}, nil
}
