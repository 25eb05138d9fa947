package models

import (
	"time"
)

// Badge condition types. A condition compares one piece of account state
// against the badge's threshold.
const (
	BadgeConditionRecycleCount = "recycle_count"
	BadgeConditionPointTotal   = "point_total"
	BadgeConditionStreakLength = "streak_length"
	BadgeConditionLevel        = "level"
)

// Badge is an achievement definition. Static reference data; accounts
// earn a badge at most once.
type Badge struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Description   string    `gorm:"type:text" json:"description"`
	Icon          string    `gorm:"size:50" json:"icon"`
	Color         string    `gorm:"size:20" json:"color"`
	ConditionType string    `gorm:"not null;size:50" json:"condition_type"`
	Threshold     int       `gorm:"not null" json:"threshold"`
	Active        bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for Badge model.
func (Badge) TableName() string {
	return "badges"
}

// AccountBadge is a grant record. Unique per (account, badge) pair;
// created once by the evaluator and never mutated or deleted.
type AccountBadge struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"not null;index;uniqueIndex:uniq_account_badge" json:"account_id"`
	Account   Account   `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	BadgeID   uint      `gorm:"not null;uniqueIndex:uniq_account_badge" json:"badge_id"`
	Badge     Badge     `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
	EarnedAt  time.Time `gorm:"not null" json:"earned_at"`
}

// TableName specifies the table name for AccountBadge model.
func (AccountBadge) TableName() string {
	return "account_badges"
}
