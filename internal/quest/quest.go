// Package quest provides quest and objective definition operations.
package quest

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/mkernan/questboard/internal/models"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for creating a new quest definition.
type CreateOpts struct {
	Title                 string
	Description           string
	Points                int
	CompletionDays        int // 0 = no deadline
	RequiresFinalApproval bool
	ExclusivityCode       string
}

// ListFilters holds optional filters for listing quests.
type ListFilters struct {
	Status models.QuestStatus
}

// GenerateID creates a unique ID with the given prefix (5-char hex),
// e.g. qst-1a2b3 or obj-4c5d6.
func GenerateID(prefix string) (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("quest: generate ID: %w", err)
	}
	return prefix + "-" + hex.EncodeToString(b)[:5], nil
}

// Create creates a new draft quest with an auto-generated ID.
func Create(db *gorm.DB, opts CreateOpts) (*models.Quest, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("quest: title is required")
	}
	if opts.Points < 0 {
		return nil, fmt.Errorf("quest: points must not be negative")
	}
	if opts.CompletionDays < 0 {
		return nil, fmt.Errorf("quest: completion days must not be negative")
	}

	id, err := generateUniqueID(db, "qst", &models.Quest{})
	if err != nil {
		return nil, err
	}

	q := models.Quest{
		ID:                    id,
		Title:                 opts.Title,
		Description:           opts.Description,
		Points:                opts.Points,
		CompletionDays:        opts.CompletionDays,
		RequiresFinalApproval: opts.RequiresFinalApproval,
		ExclusivityCode:       opts.ExclusivityCode,
		Status:                models.QuestDraft,
	}

	if err := db.Create(&q).Error; err != nil {
		return nil, fmt.Errorf("quest: create: %w", err)
	}
	return &q, nil
}

// Get retrieves a quest by ID with its objectives in display order.
func Get(db *gorm.DB, id string) (*models.Quest, error) {
	var q models.Quest
	err := db.Preload("Objectives", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("display_order ASC, created_at ASC")
	}).Where("id = ?", id).First(&q).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("quest: not found: %s: %w", id, gorm.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("quest: get %s: %w", id, err)
	}
	return &q, nil
}

// List returns quests matching the given filters, newest first.
func List(db *gorm.DB, filters ListFilters) ([]models.Quest, error) {
	q := db.Model(&models.Quest{})
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}

	var quests []models.Quest
	if err := q.Order("created_at DESC").Find(&quests).Error; err != nil {
		return nil, fmt.Errorf("quest: list: %w", err)
	}
	return quests, nil
}

// Publish transitions a draft quest to published, making it acceptable by
// participants. The objective graph is re-validated first so a quest with a
// bad dependency edge can never go live.
func Publish(db *gorm.DB, id string) error {
	q, err := Get(db, id)
	if err != nil {
		return err
	}
	if err := ValidateGraph(q.Objectives); err != nil {
		return err
	}

	result := db.Model(&models.Quest{}).
		Where("id = ? AND status = ?", id, models.QuestDraft).
		Update("status", models.QuestPublished)
	if result.Error != nil {
		return fmt.Errorf("quest: publish %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("quest: publish %s: not in draft status", id)
	}
	return nil
}

// Archive transitions a published quest to archived. Existing acceptances
// keep running; no new acceptances are allowed.
func Archive(db *gorm.DB, id string) error {
	result := db.Model(&models.Quest{}).
		Where("id = ? AND status = ?", id, models.QuestPublished).
		Update("status", models.QuestArchived)
	if result.Error != nil {
		return fmt.Errorf("quest: archive %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("quest: archive %s: not in published status", id)
	}
	return nil
}

// generateUniqueID generates an ID and retries once on collision.
func generateUniqueID(db *gorm.DB, prefix string, model interface{}) (string, error) {
	for range 2 {
		id, err := GenerateID(prefix)
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
			return "", fmt.Errorf("quest: check ID uniqueness: %w", err)
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("quest: failed to generate unique ID after retries")
}
