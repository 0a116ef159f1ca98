package store

import (
	"context"
	"fmt"
	"time"

	"catcore/internal/domain"
	"catcore/internal/readiness"
)

// LoadCalibratedItems reads every item row (active or not: calibration
// quality is a property of the whole bank, not just what is currently
// servable) and projects it into the view readiness.Evaluator needs.
func (db *DB) LoadCalibratedItems(ctx context.Context) ([]readiness.CalibratedItem, error) {
	var rows []ItemModel
	start := time.Now()
	err := db.WithContext(ctx).Find(&rows).Error
	db.RecordOperation("items.load_calibrated", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("store: failed to load calibrated items: %w", err)
	}

	out := make([]readiness.CalibratedItem, len(rows))
	for i, r := range rows {
		difficulty := r.Difficulty
		out[i] = readiness.CalibratedItem{
			Domain:           domain.Domain(r.Domain),
			Difficulty:       &difficulty,
			SEDiscrimination: r.SEDiscrimination,
			SEDifficulty:     r.SEDifficulty,
		}
	}
	return out, nil
}
