package readiness

import (
	"testing"

	"catcore/internal/config"
	"catcore/internal/domain"
)

func testCfg() config.ReadinessConfig {
	return config.ReadinessConfig{
		MaxSEDiscrimination:         0.35,
		MaxSEDifficulty:             0.40,
		MinCalibratedItemsPerDomain: 6,
		MinItemsPerBand:             2,
	}
}

func calibrated(d domain.Domain, b, seA, seB float64) CalibratedItem {
	return CalibratedItem{Domain: d, Difficulty: &b, SEDiscrimination: &seA, SEDifficulty: &seB}
}

func fullyReadyMathItems() []CalibratedItem {
	var items []CalibratedItem
	for i := 0; i < 2; i++ {
		items = append(items, calibrated(domain.DomainMath, -1.5, 0.1, 0.1))
		items = append(items, calibrated(domain.DomainMath, 0.0, 0.1, 0.1))
		items = append(items, calibrated(domain.DomainMath, 1.5, 0.1, 0.1))
	}
	return items
}

func TestDomainReadyWhenThresholdsMet(t *testing.T) {
	e := New(testCfg())
	report := e.Evaluate(fullyReadyMathItems())

	dr := report.Domains[domain.DomainMath]
	if !dr.Ready {
		t.Errorf("expected math domain ready, got %+v", dr)
	}
	if dr.WellCalibrated != 6 {
		t.Errorf("expected 6 well-calibrated items, got %d", dr.WellCalibrated)
	}
}

func TestGlobalReadinessRequiresAllSixDomains(t *testing.T) {
	e := New(testCfg())
	report := e.Evaluate(fullyReadyMathItems()) // only math has any items

	if report.Ready {
		t.Error("expected global readiness false when only one domain has items")
	}
	if report.Domains[domain.DomainPattern].Ready {
		t.Error("expected pattern domain (zero items) to be not-ready")
	}
}

func TestItemsAboveSEThresholdExcluded(t *testing.T) {
	e := New(testCfg())
	items := fullyReadyMathItems()
	items = append(items, calibrated(domain.DomainMath, 0.0, 0.9, 0.1)) // se_a too high
	report := e.Evaluate(items)

	dr := report.Domains[domain.DomainMath]
	if dr.WellCalibrated != 6 {
		t.Errorf("expected the poorly-calibrated item to be excluded, got well_calibrated=%d", dr.WellCalibrated)
	}
}

func TestMissingDifficultyExcludesItem(t *testing.T) {
	e := New(testCfg())
	items := fullyReadyMathItems()
	items = append(items, CalibratedItem{Domain: domain.DomainMath, SEDiscrimination: f(0.1), SEDifficulty: f(0.1)})
	report := e.Evaluate(items)

	dr := report.Domains[domain.DomainMath]
	if dr.WellCalibrated != 6 {
		t.Errorf("expected item with nil difficulty to be excluded, got well_calibrated=%d", dr.WellCalibrated)
	}
}

func TestBandBoundariesMatchSpec(t *testing.T) {
	if bandFor(-1.01) != BandEasy {
		t.Error("expected b < -1 to be easy")
	}
	if bandFor(-1.0) != BandMedium {
		t.Error("expected b == -1 to be medium (inclusive)")
	}
	if bandFor(1.0) != BandMedium {
		t.Error("expected b == 1 to be medium (inclusive)")
	}
	if bandFor(1.01) != BandHard {
		t.Error("expected b > 1 to be hard")
	}
}

func f(v float64) *float64 { return &v }
