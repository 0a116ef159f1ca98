package irt

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Response is one administered (a, b, correct?) triple as seen by the EAP
// estimator — deliberately independent of any item or domain identity so
// this package stays a pure numerical core.
type Response struct {
	A       float64
	B       float64
	Correct bool
}

const (
	quadratureMin   = -4.0
	quadratureMax   = 4.0
	quadratureNodes = 161 // odd node count for Simpson's rule, well above the spec's 40-node floor
)

// EAP computes the posterior mean and standard deviation of theta under a
// Normal(0,1) prior via fixed-grid (Simpson's rule) quadrature over
// [-4, +4], given the administered (a, b, correct?) triples (spec.md
// §4.1). For an empty response list it returns (priorTheta, 1.0) exactly
// as specified.
func EAP(priorTheta float64, responses []Response) (theta, thetaSE float64) {
	if len(responses) == 0 {
		return priorTheta, 1.0
	}

	prior := distuv.Normal{Mu: 0, Sigma: 1}
	weights := simpsonWeights(quadratureNodes, quadratureStep())

	nodes := make([]float64, quadratureNodes)
	posterior := make([]float64, quadratureNodes)
	var normConst float64

	for i := 0; i < quadratureNodes; i++ {
		x := quadratureMin + float64(i)*quadratureStep()
		nodes[i] = x

		likelihood := 1.0
		for _, r := range responses {
			p := Probability2PL(x, r.A, r.B)
			if r.Correct {
				likelihood *= p
			} else {
				likelihood *= 1.0 - p
			}
		}

		posterior[i] = prior.Prob(x) * likelihood
		normConst += weights[i] * posterior[i]
	}

	if normConst <= 0 || math.IsNaN(normConst) {
		// Degenerate posterior (e.g. all-extreme responses on a single
		// item): fall back to the prior rather than divide by zero.
		return priorTheta, 1.0
	}

	var mean float64
	for i := 0; i < quadratureNodes; i++ {
		mean += weights[i] * posterior[i] * nodes[i]
	}
	mean /= normConst

	var variance float64
	for i := 0; i < quadratureNodes; i++ {
		d := nodes[i] - mean
		variance += weights[i] * posterior[i] * d * d
	}
	variance /= normConst
	if variance < 0 {
		variance = 0
	}

	return mean, math.Sqrt(variance)
}

// FisherSE returns the frequentist standard error 1/sqrt(sum I(theta)),
// the "advisory" secondary check mentioned in spec.md §4.1's open
// question (i). It never overwrites the EAP posterior SD; callers that
// want to log or assert it do so independently of theta_se.
func FisherSE(theta float64, responses []Response) float64 {
	var totalInfo float64
	for _, r := range responses {
		info, err := FisherInformation(theta, r.A, r.B)
		if err != nil {
			continue
		}
		totalInfo += info
	}
	if totalInfo <= 0 {
		return math.Inf(1)
	}
	return 1.0 / math.Sqrt(totalInfo)
}

func quadratureStep() float64 {
	return (quadratureMax - quadratureMin) / float64(quadratureNodes-1)
}

// simpsonWeights returns the composite-Simpson's-rule weights for n nodes
// (n odd) spaced h apart.
func simpsonWeights(n int, h float64) []float64 {
	w := make([]float64, n)
	for i := range w {
		switch {
		case i == 0 || i == n-1:
			w[i] = h / 3
		case i%2 == 1:
			w[i] = 4 * h / 3
		default:
			w[i] = 2 * h / 3
		}
	}
	return w
}
