package session

import (
	"context"
	"errors"
	"math"
	"testing"

	"catcore/internal/config"
	"catcore/internal/domain"
	"catcore/internal/events"
	"catcore/internal/pool"
	"catcore/internal/stopping"
)

func testCfg() config.CATConfig {
	return config.CATConfig{
		MinItems:                      8,
		MaxItems:                      15,
		SEThreshold:                   0.30,
		SEStabilizationThreshold:      0.35,
		DeltaThetaThreshold:           0.03,
		MinItemsPerDomain:             1,
		ContentBalanceWaiverThreshold: 10,
		MinDomainsForWaiver:           4,
	}
}

func testWeights() map[domain.Domain]float64 {
	return map[domain.Domain]float64{
		domain.DomainPattern: 0.22,
		domain.DomainLogic:   0.20,
		domain.DomainVerbal:  0.19,
		domain.DomainSpatial: 0.16,
		domain.DomainMath:    0.13,
		domain.DomainMemory:  0.10,
	}
}

func newTestEngine() *Engine {
	return New(stopping.New(testCfg()), testWeights(), nil, nil, nil)
}

func f(v float64) *float64 { return &v }

func TestInitializeSetsPriorThetaAndUnitSE(t *testing.T) {
	e := newTestEngine()
	s := e.Initialize("u1", "s1", 0.7)

	if s.Theta != 0.7 {
		t.Errorf("expected theta = prior_theta = 0.7, got %v", s.Theta)
	}
	if s.ThetaSE != 1.0 {
		t.Errorf("expected theta_se = 1.0, got %v", s.ThetaSE)
	}
	if len(s.Administered) != 0 || len(s.ThetaHistory) != 0 {
		t.Errorf("expected empty collections, got %+v", s)
	}
}

func TestProcessResponseRejectsDuplicateItem(t *testing.T) {
	e := newTestEngine()
	s := e.Initialize("u1", "s1", 0.0)

	if _, err := e.ProcessResponse(&s, "item-1", true, domain.DomainMath, f(1.0), f(0.0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := e.ProcessResponse(&s, "item-1", false, domain.DomainMath, f(1.0), f(0.0))
	if !errors.Is(err, ErrDuplicateItem) {
		t.Errorf("expected ErrDuplicateItem, got %v", err)
	}
}

func TestProcessResponseCalibrationGapUsesNeutralDefaults(t *testing.T) {
	e := newTestEngine()
	s := e.Initialize("u1", "s1", 0.0)

	result, err := e.ProcessResponse(&s, "item-1", true, domain.DomainMath, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ItemsAdministered != 1 {
		t.Errorf("expected the calibration-gap response to still be recorded, got %+v", result)
	}
	if s.Administered[0].Discrimination != 1.0 || s.Administered[0].Difficulty != 0.0 {
		t.Errorf("expected neutral defaults a=1.0 b=0.0, got %+v", s.Administered[0])
	}
}

func TestProcessResponseRejectsUnknownDomain(t *testing.T) {
	e := newTestEngine()
	s := e.Initialize("u1", "s1", 0.0)
	_, err := e.ProcessResponse(&s, "item-1", true, domain.Domain("nonsense"), f(1.0), f(0.0))
	if !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("expected ErrUnknownDomain, got %v", err)
	}
}

func TestAdministeredLengthMatchesThetaHistoryLength(t *testing.T) {
	e := newTestEngine()
	s := e.Initialize("u1", "s1", 0.0)

	ds := []domain.Domain{domain.DomainPattern, domain.DomainLogic, domain.DomainVerbal, domain.DomainSpatial, domain.DomainMath, domain.DomainMemory}
	for i := 0; i < 12; i++ {
		d := ds[i%len(ds)]
		itemID := string(rune('a' + i))
		if _, err := e.ProcessResponse(&s, itemID, i%2 == 0, d, f(1.2), f(0.0)); err != nil {
			t.Fatalf("unexpected error at step %d: %v", i, err)
		}
		if len(s.Administered) != len(s.ThetaHistory) {
			t.Fatalf("invariant violated at step %d: len(administered)=%d len(theta_history)=%d", i, len(s.Administered), len(s.ThetaHistory))
		}
	}
}

func TestProcessResponseRejectsOnFinalizedSession(t *testing.T) {
	e := newTestEngine()
	s := e.Initialize("u1", "s1", 0.0)
	if _, err := e.Finalize(&s, stopping.ReasonMaxItems); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := e.ProcessResponse(&s, "item-1", true, domain.DomainMath, f(1.0), f(0.0))
	if !errors.Is(err, ErrAlreadyFinal) {
		t.Errorf("expected ErrAlreadyFinal, got %v", err)
	}
}

func TestFinalizeIsNotIdempotent(t *testing.T) {
	e := newTestEngine()
	s := e.Initialize("u1", "s1", 0.0)
	if _, err := e.Finalize(&s, stopping.ReasonMaxItems); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := e.Finalize(&s, stopping.ReasonMaxItems)
	if !errors.Is(err, ErrAlreadyFinal) {
		t.Errorf("expected a second Finalize call to be an error, got %v", err)
	}
}

func TestFinalizeComputesDomainScores(t *testing.T) {
	e := newTestEngine()
	s := e.Initialize("u1", "s1", 0.0)
	e.ProcessResponse(&s, "i1", true, domain.DomainMath, f(1.0), f(0.0))
	e.ProcessResponse(&s, "i2", false, domain.DomainMath, f(1.0), f(0.0))
	e.ProcessResponse(&s, "i3", true, domain.DomainVerbal, f(1.0), f(0.0))

	final, err := e.Finalize(&s, stopping.ReasonMaxItems)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mathScore := final.DomainScores[domain.DomainMath]
	if mathScore.Correct != 1 || mathScore.Total != 2 || math.Abs(mathScore.Pct-0.5) > 1e-9 {
		t.Errorf("expected math domain score {1 2 0.5}, got %+v", mathScore)
	}
	if final.CorrectCount != 2 {
		t.Errorf("expected overall correct count 2, got %d", final.CorrectCount)
	}
}

func TestInitializeThenEmptyResponsesYieldsPriorTheta(t *testing.T) {
	e := newTestEngine()
	s := e.Initialize("u1", "s1", -0.85)
	if s.Theta != -0.85 {
		t.Errorf("expected theta == prior_theta with no responses, got %v", s.Theta)
	}
}

func TestReplayReproducesThetaHistoryAndCoverage(t *testing.T) {
	items := []domain.Item{
		{ID: "i1", Domain: domain.DomainMath, Discrimination: 1.1, Difficulty: 0.0, Active: true},
		{ID: "i2", Domain: domain.DomainVerbal, Discrimination: 1.3, Difficulty: -0.2, Active: true},
		{ID: "i3", Domain: domain.DomainMath, Discrimination: 0.9, Difficulty: 0.5, Active: true},
	}
	provider := pool.NewInMemoryProvider(items)

	e1 := newTestEngine()
	live := e1.Initialize("u1", "s1", 0.0)
	e1.ProcessResponse(&live, "i1", true, domain.DomainMath, f(1.1), f(0.0))
	e1.ProcessResponse(&live, "i2", false, domain.DomainVerbal, f(1.3), f(-0.2))
	e1.ProcessResponse(&live, "i3", true, domain.DomainMath, f(0.9), f(0.5))

	e2 := newTestEngine()
	log := []PersistedResponse{
		{Sequence: 0, ItemID: "i1", Correct: true},
		{Sequence: 1, ItemID: "i2", Correct: false},
		{Sequence: 2, ItemID: "i3", Correct: true},
	}
	replayed, err := e2.Replay(context.Background(), provider, "u1", "s1", 0.0, log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(replayed.ThetaHistory) != len(live.ThetaHistory) {
		t.Fatalf("theta_history length mismatch: live=%d replayed=%d", len(live.ThetaHistory), len(replayed.ThetaHistory))
	}
	for i := range live.ThetaHistory {
		if math.Abs(live.ThetaHistory[i]-replayed.ThetaHistory[i]) > 1e-12 {
			t.Errorf("theta_history[%d] mismatch: live=%v replayed=%v", i, live.ThetaHistory[i], replayed.ThetaHistory[i])
		}
	}
	if math.Abs(live.Theta-replayed.Theta) > 1e-12 || math.Abs(live.ThetaSE-replayed.ThetaSE) > 1e-12 {
		t.Errorf("final (theta, theta_se) mismatch: live=(%v,%v) replayed=(%v,%v)", live.Theta, live.ThetaSE, replayed.Theta, replayed.ThetaSE)
	}
	for d, n := range live.DomainCoverage {
		if replayed.DomainCoverage[d] != n {
			t.Errorf("domain_coverage[%s] mismatch: live=%d replayed=%d", d, n, replayed.DomainCoverage[d])
		}
	}
}

func TestFinalizePublishesSessionCompletedEvent(t *testing.T) {
	pub := &events.NoopPublisher{}
	e := New(stopping.New(testCfg()), testWeights(), nil, nil, pub)
	s := e.Initialize("u1", "s1", 0.0)
	e.ProcessResponse(&s, "i1", true, domain.DomainMath, f(1.0), f(0.0))

	if _, err := e.Finalize(&s, stopping.ReasonMaxItems); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.Published) != 1 || pub.Published[0].SessionID != "s1" {
		t.Errorf("expected a SessionCompleted event to be published, got %+v", pub.Published)
	}
}

func TestReplaySkipsItemsThatAreNoLongerResolvable(t *testing.T) {
	items := []domain.Item{
		{ID: "i1", Domain: domain.DomainMath, Discrimination: 1.1, Difficulty: 0.0, Active: true},
	}
	provider := pool.NewInMemoryProvider(items)

	e := newTestEngine()
	log := []PersistedResponse{
		{Sequence: 0, ItemID: "i1", Correct: true},
		{Sequence: 1, ItemID: "deleted-item", Correct: false},
	}
	replayed, err := e.Replay(context.Background(), provider, "u1", "s1", 0.0, log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replayed.Administered) != 1 {
		t.Errorf("expected the unresolvable item to be skipped, got %d administered", len(replayed.Administered))
	}
}
