package models

import "time"

// QuestStatus is the lifecycle state of a quest definition.
type QuestStatus string

const (
	QuestDraft     QuestStatus = "draft"
	QuestPublished QuestStatus = "published"
	QuestArchived  QuestStatus = "archived"
)

// EvidenceType declares what a participant must attach when submitting
// an objective.
type EvidenceType string

const (
	EvidenceNone       EvidenceType = "none"
	EvidenceText       EvidenceType = "text"
	EvidenceLink       EvidenceType = "link"
	EvidenceTextOrLink EvidenceType = "text_or_link"
)

// Quest is a published multi-step task definition. Many participants may
// hold instances of the same quest concurrently.
type Quest struct {
	ID                    string      `gorm:"primaryKey;size:32"`
	Title                 string      `gorm:"not null"`
	Description           string      `gorm:"type:text"`
	Points                int         `gorm:"default:0"`
	CompletionDays        int         `gorm:"default:0"`
	RequiresFinalApproval bool        `gorm:"default:false"`
	ExclusivityCode       string      `gorm:"size:64;index"`
	Status                QuestStatus `gorm:"size:16;default:draft;index"`
	CreatedAt             time.Time
	UpdatedAt             time.Time

	Objectives []Objective `gorm:"foreignKey:QuestID"`
}

// Objective is one step of a quest. DependsOnID forms a single-parent
// dependency edge to another objective in the same quest; the graph is
// validated acyclic at definition time.
type Objective struct {
	ID               string       `gorm:"primaryKey;size:32"`
	QuestID          string       `gorm:"size:32;not null;index"`
	Title            string       `gorm:"not null"`
	Points           int          `gorm:"default:0"`
	DisplayOrder     int          `gorm:"default:0"`
	DependsOnID      *string      `gorm:"size:32"`
	EvidenceRequired bool         `gorm:"default:false"`
	EvidenceType     EvidenceType `gorm:"size:16;default:none"`
	CreatedAt        time.Time

	Quest     Quest      `gorm:"foreignKey:QuestID"`
	DependsOn *Objective `gorm:"foreignKey:DependsOnID"`
}
