package progression

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mkernan/questboard/internal/identity"
	"github.com/mkernan/questboard/internal/models"
	"gorm.io/gorm"
)

// ObjectiveView is the per-objective read model handed to presentation
// glue. LockedReason names the blocking dependency when status is locked.
type ObjectiveView struct {
	UserObjectiveID string                     `json:"user_objective_id"`
	ObjectiveID     string                     `json:"objective_id"`
	Title           string                     `json:"title"`
	Points          int                        `json:"points"`
	Status          models.UserObjectiveStatus `json:"status"`
	EvidenceType    models.EvidenceType        `json:"evidence_type"`
	LockedReason    string                     `json:"locked_reason,omitempty"`
	EvidenceText    string                     `json:"evidence_text,omitempty"`
	EvidenceURL     string                     `json:"evidence_url,omitempty"`
	Feedback        string                     `json:"feedback,omitempty"`
	SubmittedAt     *time.Time                 `json:"submitted_at,omitempty"`
	ReviewedAt      *time.Time                 `json:"reviewed_at,omitempty"`
}

// ProgressSummary is the per-quest read model: counts, percentage, and the
// effective deadline with days remaining.
type ProgressSummary struct {
	UserQuestID        string                 `json:"user_quest_id"`
	QuestID            string                 `json:"quest_id"`
	QuestTitle         string                 `json:"quest_title"`
	Status             models.UserQuestStatus `json:"status"`
	CompletedCount     int                    `json:"completed_count"`
	TotalCount         int                    `json:"total_count"`
	Percentage         int                    `json:"percentage"`
	EffectiveDeadline  *time.Time             `json:"effective_deadline,omitempty"`
	DaysRemaining      *int                   `json:"days_remaining,omitempty"`
	ExtensionRequested bool                   `json:"extension_requested"`
	ExtensionGranted   bool                   `json:"extension_granted"`
	FinalFeedback      string                 `json:"final_feedback,omitempty"`
}

// Progress builds the read models for one quest run. The owner and GMs may
// look; anyone else gets ErrForbidden.
func Progress(db *gorm.DB, actor identity.Actor, userQuestID string) (*ProgressSummary, []ObjectiveView, error) {
	var uq models.UserQuest
	err := db.Preload("Quest").
		Preload("Objectives", func(tx *gorm.DB) *gorm.DB { return tx.Preload("Objective") }).
		Where("id = ?", userQuestID).First(&uq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("progression: quest instance %s: %w", userQuestID, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("progression: load quest instance %s: %w", userQuestID, err)
	}
	if uq.UserID != actor.UserID && !actor.IsGM() {
		return nil, nil, fmt.Errorf("progression: quest instance %s is not owned by %s: %w", userQuestID, actor.UserID, ErrForbidden)
	}

	titles := make(map[string]string, len(uq.Objectives))
	for _, row := range uq.Objectives {
		titles[row.ObjectiveID] = row.Objective.Title
	}

	views := make([]ObjectiveView, 0, len(uq.Objectives))
	approved := 0
	for _, row := range uq.Objectives {
		v := ObjectiveView{
			UserObjectiveID: row.ID,
			ObjectiveID:     row.ObjectiveID,
			Title:           row.Objective.Title,
			Points:          row.Objective.Points,
			Status:          row.Status,
			EvidenceType:    row.Objective.EvidenceType,
			EvidenceText:    row.EvidenceText,
			EvidenceURL:     row.EvidenceURL,
			Feedback:        row.Feedback,
			SubmittedAt:     row.SubmittedAt,
			ReviewedAt:      row.ReviewedAt,
		}
		if row.Status == models.ObjectiveLocked && row.Objective.DependsOnID != nil {
			v.LockedReason = titles[*row.Objective.DependsOnID]
		}
		if row.Status == models.ObjectiveApproved {
			approved++
		}
		views = append(views, v)
	}

	// Present in the quest's display order.
	sortViews(views, uq.Objectives)

	summary := &ProgressSummary{
		UserQuestID:        uq.ID,
		QuestID:            uq.QuestID,
		QuestTitle:         uq.Quest.Title,
		Status:             uq.Status,
		CompletedCount:     approved,
		TotalCount:         len(uq.Objectives),
		Percentage:         100,
		ExtensionRequested: uq.ExtensionRequested,
		ExtensionGranted:   uq.ExtensionGranted,
		FinalFeedback:      uq.FinalFeedback,
	}
	if summary.TotalCount > 0 {
		summary.Percentage = approved * 100 / summary.TotalCount
	}
	if deadline := uq.EffectiveDeadline(); deadline != nil {
		summary.EffectiveDeadline = deadline
		days := int(math.Ceil(time.Until(*deadline).Hours() / 24))
		summary.DaysRemaining = &days
	}
	return summary, views, nil
}

// sortViews orders the views by the objective definitions' display order.
func sortViews(views []ObjectiveView, rows []models.UserObjective) {
	order := make(map[string]int, len(rows))
	for _, row := range rows {
		order[row.ObjectiveID] = row.Objective.DisplayOrder
	}
	for i := 1; i < len(views); i++ {
		for j := i; j > 0 && order[views[j].ObjectiveID] < order[views[j-1].ObjectiveID]; j-- {
			views[j], views[j-1] = views[j-1], views[j]
		}
	}
}

// ListMine returns progress summaries for every quest run of the actor,
// newest acceptance first.
func ListMine(db *gorm.DB, actor identity.Actor) ([]ProgressSummary, error) {
	var runs []models.UserQuest
	if err := db.Where("user_id = ?", actor.UserID).
		Order("accepted_at DESC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("progression: list quest instances: %w", err)
	}

	summaries := make([]ProgressSummary, 0, len(runs))
	for _, uq := range runs {
		summary, _, err := Progress(db, actor, uq.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

// ReviewQueueEntry is one submitted objective awaiting a GM decision.
type ReviewQueueEntry struct {
	UserObjectiveID string     `json:"user_objective_id"`
	UserQuestID     string     `json:"user_quest_id"`
	UserID          string     `json:"user_id"`
	QuestTitle      string     `json:"quest_title"`
	ObjectiveTitle  string     `json:"objective_title"`
	Points          int        `json:"points"`
	EvidenceText    string     `json:"evidence_text,omitempty"`
	EvidenceURL     string     `json:"evidence_url,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
}

// ReviewQueue returns every submitted objective, oldest submission first.
// GM only.
func ReviewQueue(db *gorm.DB, actor identity.Actor) ([]ReviewQueueEntry, error) {
	if !actor.IsGM() {
		return nil, fmt.Errorf("progression: the review queue requires the gm role: %w", ErrForbidden)
	}

	var rows []models.UserObjective
	err := db.Preload("Objective").
		Preload("UserQuest", func(tx *gorm.DB) *gorm.DB { return tx.Preload("Quest") }).
		Where("status = ?", models.ObjectiveSubmitted).
		Order("submitted_at ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("progression: load review queue: %w", err)
	}

	entries := make([]ReviewQueueEntry, len(rows))
	for i, row := range rows {
		entries[i] = ReviewQueueEntry{
			UserObjectiveID: row.ID,
			UserQuestID:     row.UserQuestID,
			UserID:          row.UserQuest.UserID,
			QuestTitle:      row.UserQuest.Quest.Title,
			ObjectiveTitle:  row.Objective.Title,
			Points:          row.Objective.Points,
			EvidenceText:    row.EvidenceText,
			EvidenceURL:     row.EvidenceURL,
			SubmittedAt:     row.SubmittedAt,
		}
	}
	return entries, nil
}
