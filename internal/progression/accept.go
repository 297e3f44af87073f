package progression

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mkernan/questboard/internal/identity"
	"github.com/mkernan/questboard/internal/models"
	"gorm.io/gorm"
)

// activeStatuses are the user-quest states that still hold a participant.
var activeStatuses = []models.UserQuestStatus{
	models.UserQuestAccepted,
	models.UserQuestInProgress,
	models.UserQuestReadyToClaim,
}

// Accept creates the actor's instance of a published quest: one UserQuest
// with the deadline derived from the quest's completion-day limit, one
// UserObjective per objective (locked, then resolved for the initial
// availability split), and a completion check so a zero-objective quest
// finishes immediately.
func Accept(db *gorm.DB, actor identity.Actor, questID string) (*models.UserQuest, error) {
	var created *models.UserQuest

	err := db.Transaction(func(tx *gorm.DB) error {
		var q models.Quest
		if err := tx.Where("id = ?", questID).First(&q).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("progression: quest %s: %w", questID, ErrNotFound)
			}
			return fmt.Errorf("progression: load quest %s: %w", questID, err)
		}
		if q.Status != models.QuestPublished {
			return fmt.Errorf("progression: quest %s is %s, only published quests can be accepted: %w", q.ID, q.Status, ErrInvalidState)
		}

		// No second active run of the same quest.
		var count int64
		if err := tx.Model(&models.UserQuest{}).
			Where("user_id = ? AND quest_id = ? AND status IN ?", actor.UserID, questID, activeStatuses).
			Count(&count).Error; err != nil {
			return fmt.Errorf("progression: check existing acceptance: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("progression: quest %s already accepted: %w", questID, ErrInvalidState)
		}

		// Exclusivity: only one active quest per non-empty code.
		if q.ExclusivityCode != "" {
			if err := tx.Model(&models.UserQuest{}).
				Joins("JOIN quests ON quests.id = user_quests.quest_id").
				Where("user_quests.user_id = ? AND user_quests.status IN ? AND quests.exclusivity_code = ?",
					actor.UserID, activeStatuses, q.ExclusivityCode).
				Count(&count).Error; err != nil {
				return fmt.Errorf("progression: check exclusivity: %w", err)
			}
			if count > 0 {
				return fmt.Errorf("progression: another %q quest is already active: %w", q.ExclusivityCode, ErrInvalidState)
			}
		}

		if err := ensureMember(tx, actor.UserID); err != nil {
			return err
		}

		now := time.Now()
		uq := models.UserQuest{
			ID:         uuid.NewString(),
			UserID:     actor.UserID,
			QuestID:    q.ID,
			Status:     models.UserQuestAccepted,
			AcceptedAt: now,
		}
		if q.CompletionDays > 0 {
			deadline := now.AddDate(0, 0, q.CompletionDays)
			uq.Deadline = &deadline
		}
		if err := tx.Create(&uq).Error; err != nil {
			return fmt.Errorf("progression: create quest instance: %w", err)
		}

		var objectives []models.Objective
		if err := tx.Where("quest_id = ?", q.ID).Find(&objectives).Error; err != nil {
			return fmt.Errorf("progression: load objectives: %w", err)
		}
		for _, obj := range objectives {
			row := models.UserObjective{
				ID:          uuid.NewString(),
				UserQuestID: uq.ID,
				ObjectiveID: obj.ID,
				Status:      models.ObjectiveLocked,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("progression: create objective instance: %w", err)
			}
		}

		if err := resync(tx, uq.ID); err != nil {
			return err
		}
		// A quest with zero objectives is immediately eligible.
		if err := checkCompletion(tx, uq.ID); err != nil {
			return err
		}

		var reloaded models.UserQuest
		if err := tx.Where("id = ?", uq.ID).First(&reloaded).Error; err != nil {
			return fmt.Errorf("progression: reload quest instance: %w", err)
		}
		created = &reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Abandon is the participant's exit from any pre-completion state.
func Abandon(db *gorm.DB, actor identity.Actor, userQuestID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		uq, err := loadOwnedUserQuest(tx, actor, userQuestID)
		if err != nil {
			return err
		}

		result := tx.Model(&models.UserQuest{}).
			Where("id = ? AND status IN ?", uq.ID, activeStatuses).
			Update("status", models.UserQuestAbandoned)
		if result.Error != nil {
			return fmt.Errorf("progression: abandon %s: %w", uq.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("progression: quest instance %s is %s: %w", uq.ID, uq.Status, ErrInvalidState)
		}
		return nil
	})
}

// loadOwnedUserQuest fetches a user quest and enforces ownership.
func loadOwnedUserQuest(tx *gorm.DB, actor identity.Actor, userQuestID string) (*models.UserQuest, error) {
	var uq models.UserQuest
	if err := tx.Where("id = ?", userQuestID).First(&uq).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("progression: quest instance %s: %w", userQuestID, ErrNotFound)
		}
		return nil, fmt.Errorf("progression: load quest instance %s: %w", userQuestID, err)
	}
	if uq.UserID != actor.UserID {
		return nil, fmt.Errorf("progression: quest instance %s is not owned by %s: %w", userQuestID, actor.UserID, ErrForbidden)
	}
	return &uq, nil
}
