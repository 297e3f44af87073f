package progression

import (
	"fmt"

	"github.com/mkernan/questboard/internal/models"
	"gorm.io/gorm"
)

// Resolve computes the correct status for every progress row from the
// dependency edges. Pure function: the inputs are not mutated, the returned
// slice carries the target statuses.
//
// Only locked and available rows are re-evaluated. Submitted, approved and
// rejected rows are left untouched, so active review and recorded outcomes
// are never rolled back. A row whose objective definition or dependency row
// cannot be found resolves to locked, never silently to available.
//
// The pass loops to a fixed point. Chains are single-parent, so each
// iteration can unlock at most one further hop down a chain.
func Resolve(objectives []models.Objective, progress []models.UserObjective) []models.UserObjective {
	defs := make(map[string]*models.Objective, len(objectives))
	for i := range objectives {
		defs[objectives[i].ID] = &objectives[i]
	}
	byObjective := make(map[string]int, len(progress))
	out := make([]models.UserObjective, len(progress))
	for i := range progress {
		out[i] = progress[i]
		byObjective[progress[i].ObjectiveID] = i
	}

	for {
		changed := false
		for i := range out {
			row := &out[i]
			if row.Status != models.ObjectiveLocked && row.Status != models.ObjectiveAvailable {
				continue
			}

			target := models.ObjectiveLocked
			if def, ok := defs[row.ObjectiveID]; ok {
				if def.DependsOnID == nil {
					target = models.ObjectiveAvailable
				} else if j, ok := byObjective[*def.DependsOnID]; ok && out[j].Status == models.ObjectiveApproved {
					target = models.ObjectiveAvailable
				}
			}

			if row.Status != target {
				row.Status = target
				changed = true
			}
		}
		if !changed {
			return out
		}
	}
}

// resync recomputes availability for a user quest and persists any rows
// whose status changed. Run inside the same transaction as the approval
// that may have unlocked downstream objectives.
func resync(tx *gorm.DB, userQuestID string) error {
	var uq models.UserQuest
	if err := tx.Where("id = ?", userQuestID).First(&uq).Error; err != nil {
		return fmt.Errorf("progression: resync load quest instance %s: %w", userQuestID, err)
	}

	var objectives []models.Objective
	if err := tx.Where("quest_id = ?", uq.QuestID).Find(&objectives).Error; err != nil {
		return fmt.Errorf("progression: resync load objectives: %w", err)
	}
	var progress []models.UserObjective
	if err := tx.Where("user_quest_id = ?", userQuestID).Find(&progress).Error; err != nil {
		return fmt.Errorf("progression: resync load progress: %w", err)
	}

	resolved := Resolve(objectives, progress)
	for i := range resolved {
		if resolved[i].Status == progress[i].Status {
			continue
		}
		// Guarded on the prior status so a concurrent submit wins over a
		// stale unlock.
		if err := tx.Model(&models.UserObjective{}).
			Where("id = ? AND status = ?", resolved[i].ID, progress[i].Status).
			Update("status", resolved[i].Status).Error; err != nil {
			return fmt.Errorf("progression: resync update %s: %w", resolved[i].ID, err)
		}
	}
	return nil
}
