// Package models defines domain models for the recycling reward system.
package models

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// Account represents a registered participant with a point balance and
// gamification state.
type Account struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	CardUID        string     `gorm:"column:card_uid;uniqueIndex;not null;size:30" json:"card_uid"`
	VirtualCode    string     `gorm:"size:20" json:"virtual_code,omitempty"`
	FirstName      string     `gorm:"not null;size:100" json:"first_name"`
	LastName       string     `gorm:"not null;size:100" json:"last_name"`
	Email          string     `gorm:"uniqueIndex;not null;size:120" json:"email"`
	Points         int        `gorm:"not null;default:0" json:"points"`
	Level          int        `gorm:"not null;default:1" json:"level"`
	StreakDays     int        `gorm:"not null;default:0" json:"streak_days"`
	LastActivityAt *time.Time `json:"last_activity_at"`
	LastLoginAt    *time.Time `json:"last_login_at"`
	Active         bool       `gorm:"not null;default:true" json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Account model.
func (Account) TableName() string {
	return "accounts"
}

// PointsPerLevel is the fixed point width of a level tier.
const PointsPerLevel = 100

// LevelForPoints derives the level tier from a point total.
// Levels are never stored independently of points.
func LevelForPoints(points int) int {
	return points/PointsPerLevel + 1
}

// AddPoints credits the balance and recomputes the derived level.
func (a *Account) AddPoints(amount int) {
	a.Points += amount
	a.Level = LevelForPoints(a.Points)
}

// RefundPoints is AddPoints under a name that reads correctly at the
// redemption reversal call site.
func (a *Account) RefundPoints(amount int) {
	a.AddPoints(amount)
}

// UpdateStreak applies the consecutive-day rule using the last-activity
// value as it was before this event. The caller overwrites LastActivityAt
// afterwards.
//
// A whole-day delta of 1 extends the streak, more than 1 resets it to 1,
// and a same-day repeat leaves it unchanged. The first event ever starts
// the streak at 1.
func (a *Account) UpdateStreak(now time.Time) {
	if a.LastActivityAt == nil {
		a.StreakDays = 1
		return
	}
	days := int(now.Sub(*a.LastActivityAt).Hours() / 24)
	switch {
	case days == 1:
		a.StreakDays++
	case days > 1:
		a.StreakDays = 1
	}
}

// FullName returns the display name for the account holder.
func (a *Account) FullName() string {
	return a.FirstName + " " + a.LastName
}

// HasPhysicalCard reports whether a physical RFID card is linked.
// Machine-less accounts carry a generated UID with the VIRTUAL- prefix.
func (a *Account) HasPhysicalCard() bool {
	return a.CardUID != "" && !strings.HasPrefix(a.CardUID, "VIRTUAL-")
}

// LinkCard replaces the current (virtual) UID with a physical card UID.
// The UID is normalized the same way lookups normalize it.
func (a *Account) LinkCard(uid string) bool {
	uid = NormalizeCardUID(uid)
	if len(uid) < 8 {
		return false
	}
	a.CardUID = uid
	return true
}

// NormalizeCardUID canonicalizes a card tag as read from the machine.
func NormalizeCardUID(uid string) string {
	return strings.ToUpper(strings.TrimSpace(uid))
}

// keypad 4x4 alphabet: digits plus A-D
const keypadChars = "0123456789ABCD"

// GenerateVirtualCode returns a 6-character access code typeable on the
// machine's keypad.
func GenerateVirtualCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = keypadChars[int(b)%len(keypadChars)]
	}
	return string(buf)
}

// GenerateVirtualCardUID returns a simulated card UID for accounts
// registered without a physical card.
func GenerateVirtualCardUID() string {
	buf := make([]byte, 7)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return "VIRTUAL-" + strings.ToUpper(hex.EncodeToString(buf))
}
