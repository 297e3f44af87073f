package progression

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mkernan/questboard/internal/identity"
	"github.com/mkernan/questboard/internal/models"
	"gorm.io/gorm"
)

// checkCompletion inspects aggregate objective outcomes and advances the
// quest instance when every objective is approved. Runs inside the same
// transaction as the approval that may have finished the quest, and the
// count re-validates against the live rows, so two concurrent final
// approvals cannot both fire the transition.
func checkCompletion(tx *gorm.DB, userQuestID string) error {
	var uq models.UserQuest
	if err := tx.Where("id = ?", userQuestID).First(&uq).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("progression: quest instance %s: %w", userQuestID, ErrNotFound)
		}
		return fmt.Errorf("progression: load quest instance %s: %w", userQuestID, err)
	}
	switch uq.Status {
	case models.UserQuestAccepted, models.UserQuestInProgress:
	default:
		return nil
	}

	pending, err := countUnapproved(tx, uq.ID)
	if err != nil {
		return err
	}
	if pending > 0 {
		return nil
	}

	var q models.Quest
	if err := tx.Where("id = ?", uq.QuestID).First(&q).Error; err != nil {
		return fmt.Errorf("progression: load quest %s: %w", uq.QuestID, err)
	}

	now := time.Now()
	if q.RequiresFinalApproval {
		result := tx.Model(&models.UserQuest{}).
			Where("id = ? AND status IN ?", uq.ID, []models.UserQuestStatus{models.UserQuestAccepted, models.UserQuestInProgress}).
			Updates(map[string]interface{}{
				"status":            models.UserQuestReadyToClaim,
				"ready_to_claim_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("progression: mark ready to claim %s: %w", uq.ID, result.Error)
		}
		return nil
	}

	result := tx.Model(&models.UserQuest{}).
		Where("id = ? AND status IN ?", uq.ID, []models.UserQuestStatus{models.UserQuestAccepted, models.UserQuestInProgress}).
		Updates(map[string]interface{}{
			"status":       models.UserQuestCompleted,
			"completed_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("progression: complete %s: %w", uq.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		// Another transition won the race; nothing to award.
		return nil
	}

	return awardPoints(tx, uq.UserID, models.AwardSourceQuest, uq.ID, q.Points)
}

// ApproveCompletion is the GM sign-off for quests that require it. The
// all-approved precondition is re-counted at the moment of the transition,
// not trusted from the caller's view.
func ApproveCompletion(db *gorm.DB, actor identity.Actor, userQuestID, feedback string) (*models.UserQuest, error) {
	if !actor.IsGM() {
		return nil, fmt.Errorf("progression: final approval requires the gm role: %w", ErrForbidden)
	}

	var approved *models.UserQuest
	err := db.Transaction(func(tx *gorm.DB) error {
		var uq models.UserQuest
		if err := tx.Where("id = ?", userQuestID).First(&uq).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("progression: quest instance %s: %w", userQuestID, ErrNotFound)
			}
			return fmt.Errorf("progression: load quest instance %s: %w", userQuestID, err)
		}

		pending, err := countUnapproved(tx, uq.ID)
		if err != nil {
			return err
		}
		if pending > 0 {
			return fmt.Errorf("progression: %d objectives not yet approved: %w", pending, ErrInvalidState)
		}

		var q models.Quest
		if err := tx.Where("id = ?", uq.QuestID).First(&q).Error; err != nil {
			return fmt.Errorf("progression: load quest %s: %w", uq.QuestID, err)
		}

		now := time.Now()
		result := tx.Model(&models.UserQuest{}).
			Where("id = ? AND status = ?", uq.ID, models.UserQuestReadyToClaim).
			Updates(map[string]interface{}{
				"status":         models.UserQuestCompleted,
				"completed_at":   now,
				"final_feedback": strings.TrimSpace(feedback),
			})
		if result.Error != nil {
			return fmt.Errorf("progression: approve completion %s: %w", uq.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("progression: quest instance %s is %s, not ready to claim: %w", uq.ID, uq.Status, ErrInvalidState)
		}

		if err := awardPoints(tx, uq.UserID, models.AwardSourceQuest, uq.ID, q.Points); err != nil {
			return err
		}

		var reloaded models.UserQuest
		if err := tx.Where("id = ?", uq.ID).First(&reloaded).Error; err != nil {
			return fmt.Errorf("progression: reload quest instance: %w", err)
		}
		approved = &reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// RejectCompletion returns a ready-to-claim quest to in_progress without
// touching its approved objectives. The participant can ask for sign-off
// again with RequestClaim once the GM's feedback is addressed.
func RejectCompletion(db *gorm.DB, actor identity.Actor, userQuestID, feedback string) (*models.UserQuest, error) {
	if !actor.IsGM() {
		return nil, fmt.Errorf("progression: final rejection requires the gm role: %w", ErrForbidden)
	}
	if strings.TrimSpace(feedback) == "" {
		return nil, fmt.Errorf("progression: final rejection feedback must not be empty: %w", ErrValidation)
	}

	var rejected *models.UserQuest
	err := db.Transaction(func(tx *gorm.DB) error {
		var uq models.UserQuest
		if err := tx.Where("id = ?", userQuestID).First(&uq).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("progression: quest instance %s: %w", userQuestID, ErrNotFound)
			}
			return fmt.Errorf("progression: load quest instance %s: %w", userQuestID, err)
		}

		result := tx.Model(&models.UserQuest{}).
			Where("id = ? AND status = ?", uq.ID, models.UserQuestReadyToClaim).
			Updates(map[string]interface{}{
				"status":            models.UserQuestInProgress,
				"ready_to_claim_at": nil,
				"final_feedback":    strings.TrimSpace(feedback),
			})
		if result.Error != nil {
			return fmt.Errorf("progression: reject completion %s: %w", uq.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("progression: quest instance %s is %s, not ready to claim: %w", uq.ID, uq.Status, ErrInvalidState)
		}

		var reloaded models.UserQuest
		if err := tx.Where("id = ?", uq.ID).First(&reloaded).Error; err != nil {
			return fmt.Errorf("progression: reload quest instance: %w", err)
		}
		rejected = &reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

// RequestClaim lets the participant re-enter ready_to_claim after a final
// rejection, provided every objective is still approved.
func RequestClaim(db *gorm.DB, actor identity.Actor, userQuestID string) (*models.UserQuest, error) {
	var requested *models.UserQuest

	err := db.Transaction(func(tx *gorm.DB) error {
		uq, err := loadOwnedUserQuest(tx, actor, userQuestID)
		if err != nil {
			return err
		}

		pending, err := countUnapproved(tx, uq.ID)
		if err != nil {
			return err
		}
		if pending > 0 {
			return fmt.Errorf("progression: %d objectives not yet approved: %w", pending, ErrInvalidState)
		}

		result := tx.Model(&models.UserQuest{}).
			Where("id = ? AND status = ?", uq.ID, models.UserQuestInProgress).
			Updates(map[string]interface{}{
				"status":            models.UserQuestReadyToClaim,
				"ready_to_claim_at": time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("progression: request claim %s: %w", uq.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("progression: quest instance %s is %s: %w", uq.ID, uq.Status, ErrInvalidState)
		}

		var reloaded models.UserQuest
		if err := tx.Where("id = ?", uq.ID).First(&reloaded).Error; err != nil {
			return fmt.Errorf("progression: reload quest instance: %w", err)
		}
		requested = &reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return requested, nil
}

// countUnapproved returns how many objective instances of a quest run are
// not yet approved.
func countUnapproved(tx *gorm.DB, userQuestID string) (int64, error) {
	var pending int64
	err := tx.Model(&models.UserObjective{}).
		Where("user_quest_id = ? AND status != ?", userQuestID, models.ObjectiveApproved).
		Count(&pending).Error
	if err != nil {
		return 0, fmt.Errorf("progression: count unapproved for %s: %w", userQuestID, err)
	}
	return pending, nil
}
