package models

import "time"

// Member is a participant profile holding the running point total. Points
// is mutated only alongside a PointAward insert in the same transaction.
type Member struct {
	UserID      string `gorm:"primaryKey;size:64"`
	DisplayName string `gorm:"size:128"`
	Points      int    `gorm:"default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PointAward is the ledger entry behind every change to Member.Points.
// The (source_type, source_id) pair is unique, so replaying an approval
// can never credit the same source twice.
type PointAward struct {
	ID         string `gorm:"primaryKey;size:36"`
	UserID     string `gorm:"size:64;not null;index"`
	SourceType string `gorm:"size:16;not null;uniqueIndex:idx_award_source"`
	SourceID   string `gorm:"size:36;not null;uniqueIndex:idx_award_source"`
	Points     int    `gorm:"not null"`
	CreatedAt  time.Time
}

// Award source types.
const (
	AwardSourceObjective = "objective"
	AwardSourceQuest     = "quest"
)
