package progression

import (
	"fmt"
	"strings"
	"time"

	"github.com/mkernan/questboard/internal/identity"
	"github.com/mkernan/questboard/internal/models"
	"gorm.io/gorm"
)

// ReviewOutcome reports what a review decision did, so callers can fan out
// notifications without re-reading state.
type ReviewOutcome struct {
	UserObjective *models.UserObjective
	UserQuest     *models.UserQuest
	PointsAwarded int
}

// Approve is the GM decision that a submission passes. The status-guarded
// update makes the point award idempotent: a second approval of the same
// row finds zero rows in submitted status and fails with ErrInvalidState
// before any credit. Downstream unlock and the quest completion check run
// in the same transaction.
func Approve(db *gorm.DB, actor identity.Actor, userObjectiveID, feedback string) (*ReviewOutcome, error) {
	if !actor.IsGM() {
		return nil, fmt.Errorf("progression: approving requires the gm role: %w", ErrForbidden)
	}

	var outcome ReviewOutcome
	err := db.Transaction(func(tx *gorm.DB) error {
		uo, uq, obj, err := loadObjectiveInstance(tx, userObjectiveID)
		if err != nil {
			return err
		}

		now := time.Now()
		result := tx.Model(&models.UserObjective{}).
			Where("id = ? AND status = ?", uo.ID, models.ObjectiveSubmitted).
			Updates(map[string]interface{}{
				"status":      models.ObjectiveApproved,
				"reviewed_at": now,
				"reviewed_by": actor.UserID,
				"feedback":    strings.TrimSpace(feedback),
			})
		if result.Error != nil {
			return fmt.Errorf("progression: approve %s: %w", uo.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("progression: objective %q is not awaiting review: %w", obj.Title, ErrInvalidState)
		}

		if err := awardPoints(tx, uq.UserID, models.AwardSourceObjective, uo.ID, obj.Points); err != nil {
			return err
		}
		outcome.PointsAwarded = obj.Points

		if err := resync(tx, uq.ID); err != nil {
			return err
		}
		if err := checkCompletion(tx, uq.ID); err != nil {
			return err
		}

		return reloadOutcome(tx, uo.ID, uq.ID, &outcome)
	})
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

// Reject is the GM decision that a submission needs more work. Feedback is
// required; the objective keeps its evidence and re-enters through Submit.
// Nothing unlocks and no points move.
func Reject(db *gorm.DB, actor identity.Actor, userObjectiveID, feedback string) (*ReviewOutcome, error) {
	if !actor.IsGM() {
		return nil, fmt.Errorf("progression: rejecting requires the gm role: %w", ErrForbidden)
	}
	if strings.TrimSpace(feedback) == "" {
		return nil, fmt.Errorf("progression: rejection feedback must not be empty: %w", ErrValidation)
	}

	var outcome ReviewOutcome
	err := db.Transaction(func(tx *gorm.DB) error {
		uo, uq, obj, err := loadObjectiveInstance(tx, userObjectiveID)
		if err != nil {
			return err
		}

		now := time.Now()
		result := tx.Model(&models.UserObjective{}).
			Where("id = ? AND status = ?", uo.ID, models.ObjectiveSubmitted).
			Updates(map[string]interface{}{
				"status":      models.ObjectiveRejected,
				"reviewed_at": now,
				"reviewed_by": actor.UserID,
				"feedback":    strings.TrimSpace(feedback),
			})
		if result.Error != nil {
			return fmt.Errorf("progression: reject %s: %w", uo.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("progression: objective %q is not awaiting review: %w", obj.Title, ErrInvalidState)
		}

		return reloadOutcome(tx, uo.ID, uq.ID, &outcome)
	})
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

// MarkDone is the degenerate review for objectives that take no evidence:
// the participant flips an available objective straight to approved, with
// no reviewer and no feedback. Points, unlock and completion behave exactly
// as for a GM approval.
func MarkDone(db *gorm.DB, actor identity.Actor, userObjectiveID string) (*ReviewOutcome, error) {
	var outcome ReviewOutcome

	err := db.Transaction(func(tx *gorm.DB) error {
		uo, uq, obj, err := loadObjectiveInstance(tx, userObjectiveID)
		if err != nil {
			return err
		}
		if uq.UserID != actor.UserID {
			return fmt.Errorf("progression: objective instance %s is not owned by %s: %w", userObjectiveID, actor.UserID, ErrForbidden)
		}
		if obj.EvidenceType != models.EvidenceNone {
			return fmt.Errorf("progression: objective %q requires evidence: %w", obj.Title, ErrValidation)
		}

		switch uo.Status {
		case models.ObjectiveAvailable:
		case models.ObjectiveLocked:
			return fmt.Errorf("progression: objective %q is locked: %w", obj.Title, ErrObjectiveLocked)
		default:
			return fmt.Errorf("progression: objective %q is %s: %w", obj.Title, uo.Status, ErrInvalidState)
		}

		if !uq.Status.Active() {
			return fmt.Errorf("progression: quest instance is %s: %w", uq.Status, ErrInvalidState)
		}
		if deadline := uq.EffectiveDeadline(); deadline != nil && time.Now().After(*deadline) {
			return fmt.Errorf("progression: deadline %s has passed: %w", deadline.Format(time.RFC3339), ErrDeadlinePassed)
		}

		now := time.Now()
		result := tx.Model(&models.UserObjective{}).
			Where("id = ? AND status = ?", uo.ID, models.ObjectiveAvailable).
			Updates(map[string]interface{}{
				"status":      models.ObjectiveApproved,
				"reviewed_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("progression: mark done %s: %w", uo.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("progression: objective %q changed state: %w", obj.Title, ErrInvalidState)
		}

		if err := markInProgress(tx, uq.ID); err != nil {
			return err
		}
		if err := awardPoints(tx, uq.UserID, models.AwardSourceObjective, uo.ID, obj.Points); err != nil {
			return err
		}
		outcome.PointsAwarded = obj.Points

		if err := resync(tx, uq.ID); err != nil {
			return err
		}
		if err := checkCompletion(tx, uq.ID); err != nil {
			return err
		}

		return reloadOutcome(tx, uo.ID, uq.ID, &outcome)
	})
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

// reloadOutcome fills the outcome with post-transition rows.
func reloadOutcome(tx *gorm.DB, userObjectiveID, userQuestID string, outcome *ReviewOutcome) error {
	var uo models.UserObjective
	if err := tx.Where("id = ?", userObjectiveID).First(&uo).Error; err != nil {
		return fmt.Errorf("progression: reload objective instance: %w", err)
	}
	var uq models.UserQuest
	if err := tx.Where("id = ?", userQuestID).First(&uq).Error; err != nil {
		return fmt.Errorf("progression: reload quest instance: %w", err)
	}
	outcome.UserObjective = &uo
	outcome.UserQuest = &uq
	return nil
}
