package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catcore/internal/cache"
	"catcore/internal/domain"
	"catcore/internal/pool"

	"gorm.io/gorm"
)

const (
	eligibilityTTL = 30 * time.Second
	itemTTL        = 10 * time.Minute
)

// GormItemProvider implements pool.ItemProvider against Postgres, with a
// Redis cache-then-db read pattern grounded on the teacher's IRTManager
// .GetState (services/scheduler-service/internal/state/irt_manager.go):
// check cache, fall through to the database on a miss, repopulate the
// cache, and treat a cache error as a miss rather than a failure.
type GormItemProvider struct {
	db    *DB
	cache *cache.RedisClient
}

// NewGormItemProvider builds a persistent ItemProvider. cache may be nil, in
// which case every read goes straight to Postgres.
func NewGormItemProvider(db *DB, c *cache.RedisClient) *GormItemProvider {
	return &GormItemProvider{db: db, cache: c}
}

var _ pool.ItemProvider = (*GormItemProvider)(nil)

// EligibleForUser implements pool.ItemProvider.
func (p *GormItemProvider) EligibleForUser(ctx context.Context, userID string) ([]domain.Item, error) {
	if p.cache != nil {
		var cached []domain.Item
		if err := p.cache.Get(ctx, cache.ItemEligibilityKey(userID), &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			p.db.logger.WithContext(ctx).WithError(err).Warn("store: cache read failed, falling through to database")
		}
	}

	var rows []ItemModel
	start := time.Now()
	err := p.db.WithContext(ctx).
		Where("active = ? AND low_quality = ?", true, false).
		Find(&rows).Error
	p.db.RecordOperation("items.eligible_for_user", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("store: failed to query eligible items: %w", err)
	}

	var seenIDs []string
	if err := p.db.WithContext(ctx).Model(&SeenItemModel{}).Where("user_id = ?", userID).Pluck("item_id", &seenIDs).Error; err != nil {
		return nil, fmt.Errorf("store: failed to query seen items for user %s: %w", userID, err)
	}
	seen := make(map[string]bool, len(seenIDs))
	for _, id := range seenIDs {
		seen[id] = true
	}

	items := make([]domain.Item, 0, len(rows))
	for _, r := range rows {
		if seen[r.ID] {
			continue
		}
		it := modelToItem(r)
		if !it.WellFormed() {
			continue
		}
		items = append(items, it)
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, cache.ItemEligibilityKey(userID), items, eligibilityTTL); err != nil {
			p.db.logger.WithContext(ctx).WithError(err).Warn("store: failed to populate eligibility cache")
		}
	}

	return items, nil
}

// ItemByID implements pool.ItemProvider.
func (p *GormItemProvider) ItemByID(ctx context.Context, id string) (domain.Item, error) {
	if p.cache != nil {
		var cached domain.Item
		if err := p.cache.Get(ctx, cache.ItemByIDKey(id), &cached); err == nil {
			return cached, nil
		}
	}

	var row ItemModel
	start := time.Now()
	err := p.db.WithContext(ctx).First(&row, "id = ?", id).Error
	p.db.RecordOperation("items.by_id", time.Since(start), err)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Item{}, fmt.Errorf("%w: %s", pool.ErrItemNotFound, id)
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("store: failed to query item %s: %w", id, err)
	}

	it := modelToItem(row)
	if p.cache != nil {
		if err := p.cache.Set(ctx, cache.ItemByIDKey(id), it, itemTTL); err != nil {
			p.db.logger.WithContext(ctx).WithError(err).Warn("store: failed to populate item cache")
		}
	}
	return it, nil
}

// MarkSeen records that userID has been administered itemID, for future
// EligibleForUser calls to exclude it; it also invalidates the user's
// cached eligibility set.
func (p *GormItemProvider) MarkSeen(ctx context.Context, userID, itemID string) error {
	row := SeenItemModel{UserID: userID, ItemID: itemID}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("store: failed to record seen item %s for user %s: %w", itemID, userID, err)
	}
	if p.cache != nil {
		_ = p.cache.Delete(ctx, cache.ItemEligibilityKey(userID))
	}
	return nil
}

func modelToItem(r ItemModel) domain.Item {
	return domain.Item{
		ID:               r.ID,
		Domain:           domain.Domain(r.Domain),
		Discrimination:   r.Discrimination,
		Difficulty:       r.Difficulty,
		SEDiscrimination: r.SEDiscrimination,
		SEDifficulty:     r.SEDifficulty,
		Active:           r.Active,
		LowQuality:       r.LowQuality,
	}
}
