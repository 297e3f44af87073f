package progression

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mkernan/questboard/internal/identity"
	"github.com/mkernan/questboard/internal/models"
	"gorm.io/gorm"
)

// Evidence is the participant-supplied proof attached to a submission.
type Evidence struct {
	Text string
	URL  string
}

// Submit records evidence against one objective instance and moves it to
// submitted. Preconditions are checked in order: existence, ownership,
// status, deadline, evidence fields. Rejected objectives re-enter through
// here as a fresh submission. No points move until review.
func Submit(db *gorm.DB, actor identity.Actor, userObjectiveID string, ev Evidence) (*models.UserObjective, error) {
	var submitted *models.UserObjective

	err := db.Transaction(func(tx *gorm.DB) error {
		uo, uq, obj, err := loadObjectiveInstance(tx, userObjectiveID)
		if err != nil {
			return err
		}
		if uq.UserID != actor.UserID {
			return fmt.Errorf("progression: objective instance %s is not owned by %s: %w", userObjectiveID, actor.UserID, ErrForbidden)
		}

		switch uo.Status {
		case models.ObjectiveAvailable, models.ObjectiveRejected:
			// submittable
		case models.ObjectiveLocked:
			return fmt.Errorf("progression: objective %q is locked: %w", obj.Title, ErrObjectiveLocked)
		default:
			return fmt.Errorf("progression: objective %q already submitted: %w", obj.Title, ErrInvalidState)
		}

		if !uq.Status.Active() {
			return fmt.Errorf("progression: quest instance is %s: %w", uq.Status, ErrInvalidState)
		}
		// The expiry sweep may not have run yet; the deadline gate holds
		// regardless.
		if deadline := uq.EffectiveDeadline(); deadline != nil && time.Now().After(*deadline) {
			return fmt.Errorf("progression: deadline %s has passed: %w", deadline.Format(time.RFC3339), ErrDeadlinePassed)
		}

		if err := validateEvidence(obj, ev); err != nil {
			return err
		}

		now := time.Now()
		result := tx.Model(&models.UserObjective{}).
			Where("id = ? AND status IN ?", uo.ID, []models.UserObjectiveStatus{models.ObjectiveAvailable, models.ObjectiveRejected}).
			Updates(map[string]interface{}{
				"status":        models.ObjectiveSubmitted,
				"submitted_at":  now,
				"evidence_text": strings.TrimSpace(ev.Text),
				"evidence_url":  strings.TrimSpace(ev.URL),
				"reviewed_at":   nil,
				"reviewed_by":   "",
				"feedback":      "",
			})
		if result.Error != nil {
			return fmt.Errorf("progression: submit %s: %w", uo.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			// Lost a race with a concurrent submit or review.
			return fmt.Errorf("progression: objective %q changed state: %w", obj.Title, ErrInvalidState)
		}

		if err := markInProgress(tx, uq.ID); err != nil {
			return err
		}

		var reloaded models.UserObjective
		if err := tx.Where("id = ?", uo.ID).First(&reloaded).Error; err != nil {
			return fmt.Errorf("progression: reload objective instance: %w", err)
		}
		submitted = &reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return submitted, nil
}

// validateEvidence enforces the objective's evidence requirement.
func validateEvidence(obj *models.Objective, ev Evidence) error {
	text := strings.TrimSpace(ev.Text)
	link := strings.TrimSpace(ev.URL)

	if link != "" {
		u, err := url.Parse(link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("progression: evidence url must be http(s): %w", ErrValidation)
		}
	}

	switch obj.EvidenceType {
	case models.EvidenceNone:
		return fmt.Errorf("progression: objective %q takes no evidence, mark it done instead: %w", obj.Title, ErrValidation)
	case models.EvidenceText:
		if text == "" {
			return fmt.Errorf("progression: objective %q requires text evidence: %w", obj.Title, ErrValidation)
		}
	case models.EvidenceLink:
		if link == "" {
			return fmt.Errorf("progression: objective %q requires a link: %w", obj.Title, ErrValidation)
		}
	case models.EvidenceTextOrLink:
		if text == "" && link == "" {
			return fmt.Errorf("progression: objective %q requires text or a link: %w", obj.Title, ErrValidation)
		}
	default:
		return fmt.Errorf("progression: objective %q has unknown evidence type %q: %w", obj.Title, obj.EvidenceType, ErrValidation)
	}
	return nil
}

// markInProgress flips a freshly accepted quest instance to in_progress on
// the first participant action. No-op once past accepted.
func markInProgress(tx *gorm.DB, userQuestID string) error {
	err := tx.Model(&models.UserQuest{}).
		Where("id = ? AND status = ?", userQuestID, models.UserQuestAccepted).
		Update("status", models.UserQuestInProgress).Error
	if err != nil {
		return fmt.Errorf("progression: mark in progress %s: %w", userQuestID, err)
	}
	return nil
}

// loadObjectiveInstance fetches a user objective with its owning quest
// instance and objective definition.
func loadObjectiveInstance(tx *gorm.DB, userObjectiveID string) (*models.UserObjective, *models.UserQuest, *models.Objective, error) {
	var uo models.UserObjective
	if err := tx.Where("id = ?", userObjectiveID).First(&uo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, fmt.Errorf("progression: objective instance %s: %w", userObjectiveID, ErrNotFound)
		}
		return nil, nil, nil, fmt.Errorf("progression: load objective instance %s: %w", userObjectiveID, err)
	}

	var uq models.UserQuest
	if err := tx.Where("id = ?", uo.UserQuestID).First(&uq).Error; err != nil {
		return nil, nil, nil, fmt.Errorf("progression: load quest instance %s: %w", uo.UserQuestID, err)
	}

	var obj models.Objective
	if err := tx.Where("id = ?", uo.ObjectiveID).First(&obj).Error; err != nil {
		return nil, nil, nil, fmt.Errorf("progression: load objective %s: %w", uo.ObjectiveID, err)
	}

	return &uo, &uq, &obj, nil
}
