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

// Extension reason length bounds.
const (
	minExtensionReason = 10
	maxExtensionReason = 500
)

// RequestExtension records a participant's plea for more time. It never
// changes the deadline itself; a GM decides. The extension_requested guard
// in the update predicate makes a duplicate request fail without touching
// the stored reason.
func RequestExtension(db *gorm.DB, actor identity.Actor, userQuestID, reason string) (*models.UserQuest, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) < minExtensionReason || len(reason) > maxExtensionReason {
		return nil, fmt.Errorf("progression: extension reason must be %d-%d characters: %w",
			minExtensionReason, maxExtensionReason, ErrValidation)
	}

	var requested *models.UserQuest
	err := db.Transaction(func(tx *gorm.DB) error {
		uq, err := loadOwnedUserQuest(tx, actor, userQuestID)
		if err != nil {
			return err
		}
		if !uq.Status.Active() {
			return fmt.Errorf("progression: quest instance is %s: %w", uq.Status, ErrInvalidState)
		}
		if uq.ExtensionRequested {
			return fmt.Errorf("progression: extension already requested: %w", ErrInvalidState)
		}

		result := tx.Model(&models.UserQuest{}).
			Where("id = ? AND extension_requested = ?", uq.ID, false).
			Updates(map[string]interface{}{
				"extension_requested":    true,
				"extension_reason":       reason,
				"extension_requested_at": time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("progression: request extension %s: %w", uq.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("progression: extension already requested: %w", ErrInvalidState)
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

// ApproveExtension grants the pending request and moves the effective
// deadline to newDeadline.
func ApproveExtension(db *gorm.DB, actor identity.Actor, userQuestID string, newDeadline time.Time) (*models.UserQuest, error) {
	if !actor.IsGM() {
		return nil, fmt.Errorf("progression: extension decisions require the gm role: %w", ErrForbidden)
	}
	if newDeadline.Before(time.Now()) {
		return nil, fmt.Errorf("progression: new deadline must be in the future: %w", ErrValidation)
	}

	var granted *models.UserQuest
	err := db.Transaction(func(tx *gorm.DB) error {
		var uq models.UserQuest
		if err := tx.Where("id = ?", userQuestID).First(&uq).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("progression: quest instance %s: %w", userQuestID, ErrNotFound)
			}
			return fmt.Errorf("progression: load quest instance %s: %w", userQuestID, err)
		}

		result := tx.Model(&models.UserQuest{}).
			Where("id = ? AND extension_requested = ?", uq.ID, true).
			Updates(map[string]interface{}{
				"extended_deadline":   newDeadline,
				"extension_granted":   true,
				"extension_requested": false,
			})
		if result.Error != nil {
			return fmt.Errorf("progression: approve extension %s: %w", uq.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("progression: no pending extension request: %w", ErrInvalidState)
		}

		var reloaded models.UserQuest
		if err := tx.Where("id = ?", uq.ID).First(&reloaded).Error; err != nil {
			return fmt.Errorf("progression: reload quest instance: %w", err)
		}
		granted = &reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return granted, nil
}

// DenyExtension clears the pending request, leaving the original deadline
// and any previously granted extension untouched.
func DenyExtension(db *gorm.DB, actor identity.Actor, userQuestID string) (*models.UserQuest, error) {
	if !actor.IsGM() {
		return nil, fmt.Errorf("progression: extension decisions require the gm role: %w", ErrForbidden)
	}

	var denied *models.UserQuest
	err := db.Transaction(func(tx *gorm.DB) error {
		var uq models.UserQuest
		if err := tx.Where("id = ?", userQuestID).First(&uq).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("progression: quest instance %s: %w", userQuestID, ErrNotFound)
			}
			return fmt.Errorf("progression: load quest instance %s: %w", userQuestID, err)
		}

		result := tx.Model(&models.UserQuest{}).
			Where("id = ? AND extension_requested = ?", uq.ID, true).
			Update("extension_requested", false)
		if result.Error != nil {
			return fmt.Errorf("progression: deny extension %s: %w", uq.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("progression: no pending extension request: %w", ErrInvalidState)
		}

		var reloaded models.UserQuest
		if err := tx.Where("id = ?", uq.ID).First(&reloaded).Error; err != nil {
			return fmt.Errorf("progression: reload quest instance: %w", err)
		}
		denied = &reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return denied, nil
}
