// Package scoring implements the scoring adapter of spec.md §4.6: theta to
// IQ, IQ to percentile, and a confidence interval, grounded on the teacher's
// GetConfidenceInterval / calculateAbilityPercentile (services/scheduler-
// service/internal/algorithms/irt.go), whose math.Erf-based normal CDF is
// replaced here by gonum's distuv.Normal to match the EAP estimator's
// existing dependency.
package scoring

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	iqMean = 100.0
	iqSD   = 15.0
	iqMin  = 40.0
	iqMax  = 200.0

	// reliabilityFloor bounds the theta_se above which a confidence
	// interval is considered too unreliable to report (spec.md §4.6).
	reliabilityFloor = 1.0
)

var standardNormal = distuv.Normal{Mu: 0, Sigma: 1}

// ThetaToIQ converts theta to the conventional IQ metric (mean 100, SD 15),
// clamped to [40, 200].
func ThetaToIQ(theta float64) int {
	iq := math.Round(iqMean + iqSD*theta)
	if iq < iqMin {
		iq = iqMin
	}
	if iq > iqMax {
		iq = iqMax
	}
	return int(iq)
}

// IQToPercentile returns the cumulative standard normal evaluated at
// (IQ-100)/15, multiplied by 100.
func IQToPercentile(iq int) float64 {
	z := (float64(iq) - iqMean) / iqSD
	return standardNormal.CDF(z) * 100
}

// ConfidenceInterval is the (low, high) IQ bound at a given confidence
// level. Ok is false when theta_se is non-finite or at/above the
// reliability floor, in which case the CI must be omitted entirely.
type ConfidenceInterval struct {
	Low  float64
	High float64
	Ok   bool
}

// ComputeConfidenceInterval implements spec.md §4.6: SE_IQ = 15*theta_se,
// z = Φ⁻¹((1+c)/2), CI = (IQ - z*SE_IQ, IQ + z*SE_IQ).
func ComputeConfidenceInterval(iq int, thetaSE, confidence float64) ConfidenceInterval {
	if math.IsNaN(thetaSE) || math.IsInf(thetaSE, 0) || thetaSE >= reliabilityFloor {
		return ConfidenceInterval{}
	}
	seIQ := iqSD * thetaSE
	z := standardNormal.Quantile((1 + confidence) / 2)
	f := float64(iq)
	return ConfidenceInterval{Low: f - z*seIQ, High: f + z*seIQ, Ok: true}
}
