package progression

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mkernan/questboard/internal/models"
	"gorm.io/gorm"
)

// awardPoints writes a ledger entry and bumps the member total in one step.
// The unique (source_type, source_id) index is the backstop behind the
// status-guarded transitions: even a replayed approval cannot insert a
// second award for the same source row.
func awardPoints(tx *gorm.DB, userID, sourceType, sourceID string, points int) error {
	if points <= 0 {
		return nil
	}

	award := models.PointAward{
		ID:         uuid.NewString(),
		UserID:     userID,
		SourceType: sourceType,
		SourceID:   sourceID,
		Points:     points,
	}
	if err := tx.Create(&award).Error; err != nil {
		return fmt.Errorf("progression: record award for %s %s: %w", sourceType, sourceID, err)
	}

	result := tx.Model(&models.Member{}).
		Where("user_id = ?", userID).
		Update("points", gorm.Expr("points + ?", points))
	if result.Error != nil {
		return fmt.Errorf("progression: credit member %s: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("progression: credit member %s: no profile row", userID)
	}
	return nil
}

// ensureMember creates the participant's profile row if it doesn't exist.
func ensureMember(tx *gorm.DB, userID string) error {
	member := models.Member{UserID: userID}
	if err := tx.Where("user_id = ?", userID).FirstOrCreate(&member).Error; err != nil {
		return fmt.Errorf("progression: ensure member %s: %w", userID, err)
	}
	return nil
}
