package progression

import (
	"testing"

	"github.com/mkernan/questboard/internal/identity"
	"github.com/mkernan/questboard/internal/models"
	"github.com/mkernan/questboard/internal/quest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	alice = identity.Actor{UserID: "alice", Roles: []string{identity.RoleMember}}
	bob   = identity.Actor{UserID: "bob", Roles: []string{identity.RoleMember}}
	gm    = identity.Actor{UserID: "gm-1", Roles: []string{identity.RoleGM}}
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Quest{}, &models.Objective{},
		&models.UserQuest{}, &models.UserObjective{},
		&models.Member{}, &models.PointAward{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// seedQuest publishes a quest with the given objective specs and returns
// the quest plus objectives in creation order.
type objSpec struct {
	title     string
	points    int
	dependsOn int // index into previous specs, -1 for none
	evidence  models.EvidenceType
}

func seedQuest(t *testing.T, db *gorm.DB, opts quest.CreateOpts, specs []objSpec) (*models.Quest, []*models.Objective) {
	t.Helper()
	q, err := quest.Create(db, opts)
	if err != nil {
		t.Fatalf("seed quest: %v", err)
	}

	objs := make([]*models.Objective, len(specs))
	for i, spec := range specs {
		oo := quest.ObjectiveOpts{
			QuestID:      q.ID,
			Title:        spec.title,
			Points:       spec.points,
			DisplayOrder: i,
			EvidenceType: spec.evidence,
		}
		if spec.dependsOn >= 0 {
			oo.DependsOnID = objs[spec.dependsOn].ID
		}
		obj, err := quest.AddObjective(db, oo)
		if err != nil {
			t.Fatalf("seed objective %q: %v", spec.title, err)
		}
		objs[i] = obj
	}

	if err := quest.Publish(db, q.ID); err != nil {
		t.Fatalf("publish quest: %v", err)
	}
	return q, objs
}

// instanceFor returns the UserObjective row for a given objective definition.
func instanceFor(t *testing.T, db *gorm.DB, userQuestID, objectiveID string) *models.UserObjective {
	t.Helper()
	var uo models.UserObjective
	if err := db.Where("user_quest_id = ? AND objective_id = ?", userQuestID, objectiveID).First(&uo).Error; err != nil {
		t.Fatalf("load objective instance for %s: %v", objectiveID, err)
	}
	return &uo
}

func memberPoints(t *testing.T, db *gorm.DB, userID string) int {
	t.Helper()
	var m models.Member
	if err := db.Where("user_id = ?", userID).First(&m).Error; err != nil {
		t.Fatalf("load member %s: %v", userID, err)
	}
	return m.Points
}

func questStatus(t *testing.T, db *gorm.DB, userQuestID string) models.UserQuestStatus {
	t.Helper()
	var uq models.UserQuest
	if err := db.Where("id = ?", userQuestID).First(&uq).Error; err != nil {
		t.Fatalf("load quest instance: %v", err)
	}
	return uq.Status
}
