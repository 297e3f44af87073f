package quest

import (
	"errors"
	"fmt"

	"github.com/mkernan/questboard/internal/models"
	"gorm.io/gorm"
)

// ObjectiveOpts holds parameters for adding an objective to a draft quest.
type ObjectiveOpts struct {
	QuestID      string
	Title        string
	Points       int
	DisplayOrder int
	DependsOnID  string // optional; must reference an objective of the same quest
	EvidenceType models.EvidenceType
}

// AddObjective appends an objective to a draft quest. Dependency edges are
// validated here, at definition time: the target must exist, belong to the
// same quest, not be the objective itself, and not close a cycle.
func AddObjective(db *gorm.DB, opts ObjectiveOpts) (*models.Objective, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("objective: title is required")
	}
	if opts.Points < 0 {
		return nil, fmt.Errorf("objective: points must not be negative")
	}

	evType := opts.EvidenceType
	if evType == "" {
		evType = models.EvidenceNone
	}
	switch evType {
	case models.EvidenceNone, models.EvidenceText, models.EvidenceLink, models.EvidenceTextOrLink:
	default:
		return nil, fmt.Errorf("objective: unknown evidence type %q", evType)
	}

	var q models.Quest
	if err := db.Where("id = ?", opts.QuestID).First(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("objective: quest not found: %s: %w", opts.QuestID, gorm.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("objective: check quest %s: %w", opts.QuestID, err)
	}
	if q.Status != models.QuestDraft {
		return nil, fmt.Errorf("objective: quest %s is %s, objectives can only be added to drafts", q.ID, q.Status)
	}

	if opts.DependsOnID != "" {
		var dep models.Objective
		if err := db.Where("id = ?", opts.DependsOnID).First(&dep).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("objective: dependency not found: %s: %w", opts.DependsOnID, gorm.ErrRecordNotFound)
			}
			return nil, fmt.Errorf("objective: check dependency %s: %w", opts.DependsOnID, err)
		}
		if dep.QuestID != opts.QuestID {
			return nil, fmt.Errorf("objective: dependency %s belongs to quest %s, not %s", dep.ID, dep.QuestID, opts.QuestID)
		}
	}

	id, err := generateUniqueID(db, "obj", &models.Objective{})
	if err != nil {
		return nil, err
	}

	obj := models.Objective{
		ID:               id,
		QuestID:          opts.QuestID,
		Title:            opts.Title,
		Points:           opts.Points,
		DisplayOrder:     opts.DisplayOrder,
		EvidenceRequired: evType != models.EvidenceNone,
		EvidenceType:     evType,
	}
	if opts.DependsOnID != "" {
		obj.DependsOnID = &opts.DependsOnID
	}

	if err := db.Create(&obj).Error; err != nil {
		return nil, fmt.Errorf("objective: create: %w", err)
	}
	return &obj, nil
}

// SetDependency points an existing objective at a new dependency, or clears
// it when dependsOnID is empty. Rejects self-references and edges that would
// close a cycle.
func SetDependency(db *gorm.DB, objectiveID, dependsOnID string) error {
	var obj models.Objective
	if err := db.Where("id = ?", objectiveID).First(&obj).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("objective: not found: %s: %w", objectiveID, gorm.ErrRecordNotFound)
		}
		return fmt.Errorf("objective: get %s: %w", objectiveID, err)
	}

	if dependsOnID == "" {
		if err := db.Model(&models.Objective{}).Where("id = ?", objectiveID).
			Update("depends_on_id", nil).Error; err != nil {
			return fmt.Errorf("objective: clear dependency on %s: %w", objectiveID, err)
		}
		return nil
	}

	if dependsOnID == objectiveID {
		return fmt.Errorf("objective: %s cannot depend on itself", objectiveID)
	}

	var dep models.Objective
	if err := db.Where("id = ?", dependsOnID).First(&dep).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("objective: dependency not found: %s: %w", dependsOnID, gorm.ErrRecordNotFound)
		}
		return fmt.Errorf("objective: check dependency %s: %w", dependsOnID, err)
	}
	if dep.QuestID != obj.QuestID {
		return fmt.Errorf("objective: dependency %s belongs to quest %s, not %s", dep.ID, dep.QuestID, obj.QuestID)
	}

	// Walk up from the proposed dependency; reaching objectiveID means the
	// new edge would close a cycle.
	if reaches(db, dependsOnID, objectiveID) {
		return fmt.Errorf("objective: %s → %s would create a cycle", objectiveID, dependsOnID)
	}

	if err := db.Model(&models.Objective{}).Where("id = ?", objectiveID).
		Update("depends_on_id", dependsOnID).Error; err != nil {
		return fmt.Errorf("objective: set dependency on %s: %w", objectiveID, err)
	}
	return nil
}

// reaches walks the single-parent dependency chain from 'current' and
// reports whether 'target' appears on it. The visited set bounds the walk
// even if stored data already contains a cycle.
func reaches(db *gorm.DB, current, target string) bool {
	visited := make(map[string]bool)
	for current != "" && !visited[current] {
		if current == target {
			return true
		}
		visited[current] = true

		var obj models.Objective
		if err := db.Where("id = ?", current).First(&obj).Error; err != nil {
			return false
		}
		if obj.DependsOnID == nil {
			return false
		}
		current = *obj.DependsOnID
	}
	return false
}

// ValidateGraph checks a quest's full objective set: every dependency must
// reference another objective of the same set and the chains must be
// acyclic. Run before publishing.
func ValidateGraph(objectives []models.Objective) error {
	byID := make(map[string]*models.Objective, len(objectives))
	for i := range objectives {
		byID[objectives[i].ID] = &objectives[i]
	}

	for i := range objectives {
		obj := &objectives[i]
		if obj.DependsOnID == nil {
			continue
		}
		if *obj.DependsOnID == obj.ID {
			return fmt.Errorf("objective: %s depends on itself", obj.ID)
		}
		if _, ok := byID[*obj.DependsOnID]; !ok {
			return fmt.Errorf("objective: %s depends on %s, which is not part of the quest", obj.ID, *obj.DependsOnID)
		}

		// Follow the chain with a visited set; revisiting means a cycle.
		visited := map[string]bool{obj.ID: true}
		cur := byID[*obj.DependsOnID]
		for cur != nil {
			if visited[cur.ID] {
				return fmt.Errorf("objective: dependency chain through %s contains a cycle", obj.ID)
			}
			visited[cur.ID] = true
			if cur.DependsOnID == nil {
				break
			}
			cur = byID[*cur.DependsOnID]
		}
	}
	return nil
}
