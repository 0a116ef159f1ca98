// Package irt implements the 2PL item-response primitives of spec.md §4.1:
// a numerically stable logistic probability, Fisher information, and the
// EAP ability estimator. It is CPU-only — no I/O, no logging, no state —
// per the §5 concurrency contract ("must not perform I/O").
package irt

import (
	"fmt"
	"math"
)

// Probability2PL returns P(correct | theta, a, b) under the 2PL model,
// using a sign-split logistic so logits of magnitude 50+ neither overflow
// nor underflow (spec.md §4.1).
func Probability2PL(theta, a, b float64) float64 {
	logit := a * (theta - b)
	return stableSigmoid(logit)
}

// stableSigmoid computes 1/(1+exp(-x)) without intermediate overflow by
// evaluating the algebraically equivalent form for negative x.
func stableSigmoid(x float64) float64 {
	if x >= 0 {
		z := math.Exp(-x)
		return 1.0 / (1.0 + z)
	}
	z := math.Exp(x)
	return z / (1.0 + z)
}

// FisherInformation returns I(theta; a, b) = a^2 * P * (1-P) under the 2PL
// model. It is non-negative, maximised at theta=b with value a^2/4,
// symmetric about b, and decays to zero as |theta-b| grows (spec.md §4.1).
// Rejects a <= 0 as an invalid input.
func FisherInformation(theta, a, b float64) (float64, error) {
	if a <= 0 {
		return 0, fmt.Errorf("irt: discrimination must be positive, got %v", a)
	}
	p := Probability2PL(theta, a, b)
	return a * a * p * (1.0 - p), nil
}
