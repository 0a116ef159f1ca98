package store

import (
	"context"
	"fmt"
	"time"

	"catcore/internal/session"

	"gorm.io/gorm"
)

// SessionStore is the persistence collaborator's view of a session: it owns
// the session row and the ordered response log, and is the source of truth
// consumed by session.Engine.Replay (spec.md §4.5's replay contract, §9's
// design note that persistence stays out of SessionState).
type SessionStore interface {
	CreateSession(ctx context.Context, sessionID, userID string, priorTheta float64) error
	AppendResponse(ctx context.Context, sessionID string, seq int, itemID string, correct bool, timeSpentMS *int64, thetaAfter float64) error
	FinalizeSession(ctx context.Context, sessionID string, finalTheta, finalSE float64, stopReason string) error
	LoadResponseLog(ctx context.Context, sessionID string) ([]session.PersistedResponse, string, float64, time.Time, error)
}

// GormSessionStore implements SessionStore against Postgres.
type GormSessionStore struct {
	db *DB
}

// NewGormSessionStore builds a persistent SessionStore.
func NewGormSessionStore(db *DB) *GormSessionStore {
	return &GormSessionStore{db: db}
}

var _ SessionStore = (*GormSessionStore)(nil)

// CreateSession inserts the initial session row.
func (s *GormSessionStore) CreateSession(ctx context.Context, sessionID, userID string, priorTheta float64) error {
	row := SessionModel{
		ID:         sessionID,
		UserID:     userID,
		PriorTheta: priorTheta,
		Status:     "in_progress",
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("store: failed to create session %s: %w", sessionID, err)
	}
	return nil
}

// AppendResponse appends one ordered entry to the session's response log.
// A duplicate (session_id, sequence) pair is rejected by the table's
// primary key. No database constraint covers (session_id, item_id); a
// repeated item is rejected earlier by session.Engine.ProcessResponse
// (ErrDuplicateItem), before this method is called.
func (s *GormSessionStore) AppendResponse(ctx context.Context, sessionID string, seq int, itemID string, correct bool, timeSpentMS *int64, thetaAfter float64) error {
	row := ResponseModel{
		SessionID:   sessionID,
		Sequence:    seq,
		ItemID:      itemID,
		Correct:     correct,
		TimeSpentMS: timeSpentMS,
		ThetaAfter:  thetaAfter,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("store: failed to append response for session %s: %w", sessionID, err)
	}
	return nil
}

// FinalizeSession freezes the session row with its terminal values.
func (s *GormSessionStore) FinalizeSession(ctx context.Context, sessionID string, finalTheta, finalSE float64, stopReason string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&SessionModel{}).Where("id = ? AND status = ?", sessionID, "in_progress").
		Updates(map[string]interface{}{
			"status":       "finalized",
			"final_theta":  finalTheta,
			"final_se":     finalSE,
			"stop_reason":  stopReason,
			"finalized_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("store: failed to finalize session %s: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: session %s not found or already finalized", sessionID)
	}
	return nil
}

// LoadResponseLog returns the ordered response log plus the session's user
// id, prior theta, and creation time, for session.Engine.Replay to
// reconstruct state from and for get_progress's elapsed-time field.
func (s *GormSessionStore) LoadResponseLog(ctx context.Context, sessionID string) ([]session.PersistedResponse, string, float64, time.Time, error) {
	var row SessionModel
	if err := s.db.WithContext(ctx).First(&row, "id = ?", sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, "", 0, time.Time{}, fmt.Errorf("store: session %s not found", sessionID)
		}
		return nil, "", 0, time.Time{}, fmt.Errorf("store: failed to load session %s: %w", sessionID, err)
	}

	var responses []ResponseModel
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("sequence asc").Find(&responses).Error; err != nil {
		return nil, "", 0, time.Time{}, fmt.Errorf("store: failed to load response log for session %s: %w", sessionID, err)
	}

	log := make([]session.PersistedResponse, len(responses))
	for i, r := range responses {
		log[i] = session.PersistedResponse{Sequence: r.Sequence, ItemID: r.ItemID, Correct: r.Correct}
	}
	return log, row.UserID, row.PriorTheta, row.CreatedAt, nil
}
