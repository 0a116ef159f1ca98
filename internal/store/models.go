// Package store is the GORM+Postgres persistence collaborator referenced
// throughout spec.md §6 and §9: it owns session rows and the response log,
// and backs an ItemProvider for the item catalogue. Grounded on the
// teacher's GORM model conventions (services/scheduler-service/internal
// /models/irt_state.go): table-tagged structs, a BeforeUpdate hook, and
// small derived-value methods.
package store

import (
	"time"

	"gorm.io/gorm"
)

// ItemModel is the catalogue row backing the persistent ItemProvider.
type ItemModel struct {
	ID               string   `gorm:"primaryKey;column:id;type:varchar(64)" json:"id"`
	Domain           string   `gorm:"column:domain;type:varchar(32);not null;index" json:"domain"`
	Discrimination   float64  `gorm:"column:discrimination;type:decimal(8,4);not null" json:"discrimination"`
	Difficulty       float64  `gorm:"column:difficulty;type:decimal(8,4);not null" json:"difficulty"`
	SEDiscrimination *float64 `gorm:"column:se_discrimination;type:decimal(8,4)" json:"se_discrimination,omitempty"`
	SEDifficulty     *float64 `gorm:"column:se_difficulty;type:decimal(8,4)" json:"se_difficulty,omitempty"`
	Active           bool     `gorm:"column:active;not null;default:true;index" json:"active"`
	LowQuality       bool     `gorm:"column:low_quality;not null;default:false" json:"low_quality"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

func (ItemModel) TableName() string { return "items" }

func (m *ItemModel) BeforeUpdate(tx *gorm.DB) error {
	m.UpdatedAt = time.Now()
	return nil
}

// SeenItemModel records that a user has been administered an item in some
// prior session, backing the item-pool view's "not previously seen" filter
// (spec.md §4.2).
type SeenItemModel struct {
	UserID string    `gorm:"primaryKey;column:user_id;type:varchar(64)" json:"user_id"`
	ItemID string    `gorm:"primaryKey;column:item_id;type:varchar(64)" json:"item_id"`
	SeenAt time.Time `gorm:"column:seen_at;not null;default:now()" json:"seen_at"`
}

func (SeenItemModel) TableName() string { return "seen_items" }

// SessionModel is the persisted session row (spec.md §6's "persisted state
// layout"): id, user id, prior theta, status, final theta/SE, stop reason.
// The ordered response log lives separately in ResponseModel.
type SessionModel struct {
	ID          string     `gorm:"primaryKey;column:id;type:varchar(64)" json:"id"`
	UserID      string     `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	PriorTheta  float64    `gorm:"column:prior_theta;type:decimal(8,4);not null" json:"prior_theta"`
	Status      string     `gorm:"column:status;type:varchar(16);not null" json:"status"`
	FinalTheta  *float64   `gorm:"column:final_theta;type:decimal(8,4)" json:"final_theta,omitempty"`
	FinalSE     *float64   `gorm:"column:final_se;type:decimal(8,4)" json:"final_se,omitempty"`
	StopReason  string     `gorm:"column:stop_reason;type:varchar(32)" json:"stop_reason,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	FinalizedAt *time.Time `gorm:"column:finalized_at" json:"finalized_at,omitempty"`
}

func (SessionModel) TableName() string { return "sessions" }

// ResponseModel is one ordered entry of a session's response log.
type ResponseModel struct {
	SessionID   string  `gorm:"primaryKey;column:session_id;type:varchar(64)" json:"session_id"`
	Sequence    int     `gorm:"primaryKey;column:sequence" json:"sequence"`
	ItemID      string  `gorm:"column:item_id;type:varchar(64);not null" json:"item_id"`
	Correct     bool    `gorm:"column:correct;not null" json:"correct"`
	TimeSpentMS *int64  `gorm:"column:time_spent_ms" json:"time_spent_ms,omitempty"`
	ThetaAfter  float64 `gorm:"column:theta_after;type:decimal(8,4);not null" json:"theta_after"`
}

func (ResponseModel) TableName() string { return "responses" }
