package models

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// Reward is a catalog entry redeemable for points.
type Reward struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null;size:100" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	PointCost   int       `gorm:"not null" json:"point_cost"`
	Stock       int       `gorm:"not null;default:0" json:"stock"`
	Category    string    `gorm:"size:50;default:general" json:"category"`
	ImageURL    string    `gorm:"size:255" json:"image_url,omitempty"`
	Active      bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for Reward model.
func (Reward) TableName() string {
	return "rewards"
}

// Available reports whether the reward can currently be redeemed at all.
func (r *Reward) Available() bool {
	return r.Active && r.Stock > 0
}

// Redemption statuses. A redemption is created pending and fulfilled or
// cancelled later; cancellation is the only transition with side effects.
const (
	RedemptionStatusPending   = "pending"
	RedemptionStatusFulfilled = "fulfilled"
	RedemptionStatusCancelled = "cancelled"
)

// ValidRedemptionStatus reports whether s is one of the three statuses.
func ValidRedemptionStatus(s string) bool {
	switch s {
	case RedemptionStatusPending, RedemptionStatusFulfilled, RedemptionStatusCancelled:
		return true
	}
	return false
}

// Redemption records one exchange of points for a catalog entry. The core
// record is immutable; only Status may change after creation. PointsSpent
// snapshots the price actually charged so later catalog edits cannot alter
// history.
type Redemption struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AccountID   uint      `gorm:"not null;index" json:"account_id"`
	Account     Account   `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	RewardID    uint      `gorm:"not null;index" json:"reward_id"`
	Reward      Reward    `gorm:"foreignKey:RewardID" json:"reward,omitempty"`
	PointsSpent int       `gorm:"not null" json:"points_spent"`
	VoucherCode string    `gorm:"uniqueIndex;not null;size:20" json:"voucher_code"`
	Status      string    `gorm:"not null;size:20;default:pending" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for Redemption model.
func (Redemption) TableName() string {
	return "redemptions"
}

// GenerateVoucherCode returns a short, printable voucher identifier used
// for physical fulfillment (ECO- plus 8 hex characters).
func GenerateVoucherCode() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return "ECO-" + strings.ToUpper(hex.EncodeToString(buf))
}
