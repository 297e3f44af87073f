package models

import "time"

// UserQuestStatus is the lifecycle state of one participant's acceptance
// of a quest.
type UserQuestStatus string

const (
	UserQuestAccepted     UserQuestStatus = "accepted"
	UserQuestInProgress   UserQuestStatus = "in_progress"
	UserQuestReadyToClaim UserQuestStatus = "ready_to_claim"
	UserQuestCompleted    UserQuestStatus = "completed"
	UserQuestAbandoned    UserQuestStatus = "abandoned"
	UserQuestExpired      UserQuestStatus = "expired"
)

// Active reports whether the quest instance can still be worked on.
func (s UserQuestStatus) Active() bool {
	switch s {
	case UserQuestAccepted, UserQuestInProgress, UserQuestReadyToClaim:
		return true
	}
	return false
}

// UserObjectiveStatus is the per-participant state of one objective.
type UserObjectiveStatus string

const (
	ObjectiveLocked    UserObjectiveStatus = "locked"
	ObjectiveAvailable UserObjectiveStatus = "available"
	ObjectiveSubmitted UserObjectiveStatus = "submitted"
	ObjectiveApproved  UserObjectiveStatus = "approved"
	ObjectiveRejected  UserObjectiveStatus = "rejected"
)

// UserQuest is one participant's run of a quest. Deadline is derived from
// the quest's completion-day limit at acceptance; ExtendedDeadline, when
// set by a granted extension, takes precedence everywhere.
type UserQuest struct {
	ID                   string          `gorm:"primaryKey;size:36"`
	UserID               string          `gorm:"size:64;not null;index"`
	QuestID              string          `gorm:"size:32;not null;index"`
	Status               UserQuestStatus `gorm:"size:24;default:accepted;index"`
	AcceptedAt           time.Time
	Deadline             *time.Time
	ExtendedDeadline     *time.Time
	ExtensionRequested   bool   `gorm:"default:false"`
	ExtensionReason      string `gorm:"type:text"`
	ExtensionRequestedAt *time.Time
	ExtensionGranted     bool `gorm:"default:false"`
	ReadyToClaimAt       *time.Time
	CompletedAt          *time.Time
	FinalFeedback        string `gorm:"type:text"`
	CreatedAt            time.Time
	UpdatedAt            time.Time

	Quest      Quest           `gorm:"foreignKey:QuestID"`
	Objectives []UserObjective `gorm:"foreignKey:UserQuestID"`
}

// EffectiveDeadline returns the extended deadline when granted, otherwise
// the original. Nil means the quest has no time limit.
func (uq *UserQuest) EffectiveDeadline() *time.Time {
	if uq.ExtendedDeadline != nil {
		return uq.ExtendedDeadline
	}
	return uq.Deadline
}

// UserObjective is one participant's progress row for one objective,
// created for every objective of a quest at acceptance time.
type UserObjective struct {
	ID           string              `gorm:"primaryKey;size:36"`
	UserQuestID  string              `gorm:"size:36;not null;index"`
	ObjectiveID  string              `gorm:"size:32;not null;index"`
	Status       UserObjectiveStatus `gorm:"size:16;default:locked;index"`
	EvidenceText string              `gorm:"type:text"`
	EvidenceURL  string              `gorm:"size:2048"`
	SubmittedAt  *time.Time
	ReviewedAt   *time.Time
	ReviewedBy   string `gorm:"size:64"`
	Feedback     string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	UserQuest UserQuest `gorm:"foreignKey:UserQuestID"`
	Objective Objective `gorm:"foreignKey:ObjectiveID"`
}
