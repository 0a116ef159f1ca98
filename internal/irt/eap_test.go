package irt

import (
	"math"
	"testing"
)

func TestEAPEmptyResponsesReturnsPrior(t *testing.T) {
	theta, se := EAP(0.42, nil)
	if theta != 0.42 {
		t.Errorf("expected theta = prior_theta = 0.42, got %v", theta)
	}
	if se != 1.0 {
		t.Errorf("expected theta_se = 1.0 for empty history, got %v", se)
	}
}

func TestEAPAllCorrectPullsThetaUp(t *testing.T) {
	responses := make([]Response, 10)
	for i := range responses {
		responses[i] = Response{A: 1.2, B: 0.0, Correct: true}
	}
	theta, se := EAP(0.0, responses)
	if theta <= 0 {
		t.Errorf("expected theta to move positive after all-correct responses, got %v", theta)
	}
	if se <= 0 || se >= 1.0 {
		t.Errorf("expected posterior SD to shrink below the prior's 1.0, got %v", se)
	}
}

func TestEAPAllIncorrectPullsThetaDown(t *testing.T) {
	responses := make([]Response, 10)
	for i := range responses {
		responses[i] = Response{A: 1.2, B: 0.0, Correct: false}
	}
	theta, _ := EAP(0.0, responses)
	if theta >= 0 {
		t.Errorf("expected theta to move negative after all-incorrect responses, got %v", theta)
	}
}

func TestEAPMixedResponsesNearDifficultyStaysNearZero(t *testing.T) {
	responses := []Response{
		{A: 1.0, B: 0.0, Correct: true},
		{A: 1.0, B: 0.0, Correct: false},
		{A: 1.0, B: 0.0, Correct: true},
		{A: 1.0, B: 0.0, Correct: false},
	}
	theta, _ := EAP(0.0, responses)
	if math.Abs(theta) > 0.6 {
		t.Errorf("expected theta to stay close to 0 for balanced responses at b=0, got %v", theta)
	}
}

func TestEAPStandardErrorShrinksWithMoreInformation(t *testing.T) {
	few := []Response{{A: 1.5, B: 0.0, Correct: true}}
	many := make([]Response, 10)
	for i := range many {
		many[i] = Response{A: 1.5, B: 0.0, Correct: true}
	}

	_, seFew := EAP(0.0, few)
	_, seMany := EAP(0.0, many)

	if seMany >= seFew {
		t.Errorf("expected SE to shrink with more items: seFew=%v seMany=%v", seFew, seMany)
	}
}

func TestFisherSEInfiniteWithNoResponses(t *testing.T) {
	se := FisherSE(0.0, nil)
	if !math.IsInf(se, 1) {
		t.Errorf("expected +Inf advisory SE with no responses, got %v", se)
	}
}
