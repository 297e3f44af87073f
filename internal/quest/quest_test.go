package quest

import (
	"strings"
	"testing"

	"github.com/mkernan/questboard/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Quest{}, &models.Objective{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func TestGenerateID_Format(t *testing.T) {
	id, err := GenerateID("qst")
	if err != nil {
		t.Fatalf("GenerateID() error: %v", err)
	}
	if !strings.HasPrefix(id, "qst-") {
		t.Errorf("ID %q missing qst- prefix", id)
	}
	// qst- (4 chars) + 5 hex chars = 9 total
	if len(id) != 9 {
		t.Errorf("ID length = %d, want 9; id = %q", len(id), id)
	}
}

func TestGenerateID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := GenerateID("obj")
		if err != nil {
			t.Fatalf("GenerateID() iteration %d: %v", i, err)
		}
		if seen[id] {
			t.Fatalf("duplicate ID %q on iteration %d", id, i)
		}
		seen[id] = true
	}
}

func TestCreate(t *testing.T) {
	db := openTestDB(t)

	q, err := Create(db, CreateOpts{
		Title:                 "Onboarding gauntlet",
		Description:           "Finish every onboarding step",
		Points:                50,
		CompletionDays:        14,
		RequiresFinalApproval: true,
		ExclusivityCode:       "onboarding",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if q.Status != models.QuestDraft {
		t.Errorf("Status = %q, want draft", q.Status)
	}
	if !strings.HasPrefix(q.ID, "qst-") {
		t.Errorf("ID = %q, want qst- prefix", q.ID)
	}
	if !q.RequiresFinalApproval {
		t.Error("RequiresFinalApproval not persisted")
	}
}

func TestCreate_Validation(t *testing.T) {
	db := openTestDB(t)

	if _, err := Create(db, CreateOpts{}); err == nil {
		t.Error("expected error for missing title")
	}
	if _, err := Create(db, CreateOpts{Title: "x", Points: -1}); err == nil {
		t.Error("expected error for negative points")
	}
	if _, err := Create(db, CreateOpts{Title: "x", CompletionDays: -7}); err == nil {
		t.Error("expected error for negative completion days")
	}
}

func TestPublishAndArchive(t *testing.T) {
	db := openTestDB(t)

	q, err := Create(db, CreateOpts{Title: "t", Points: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := Publish(db, q.ID); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	// Publishing again must fail: the quest is no longer draft.
	if err := Publish(db, q.ID); err == nil {
		t.Error("expected error re-publishing a published quest")
	}

	if err := Archive(db, q.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := Archive(db, q.ID); err == nil {
		t.Error("expected error re-archiving an archived quest")
	}
}

func TestAddObjective(t *testing.T) {
	db := openTestDB(t)

	q, _ := Create(db, CreateOpts{Title: "t"})

	a, err := AddObjective(db, ObjectiveOpts{
		QuestID:      q.ID,
		Title:        "step one",
		Points:       5,
		EvidenceType: models.EvidenceText,
	})
	if err != nil {
		t.Fatalf("AddObjective: %v", err)
	}
	if !a.EvidenceRequired {
		t.Error("text evidence type should set EvidenceRequired")
	}

	b, err := AddObjective(db, ObjectiveOpts{
		QuestID:      q.ID,
		Title:        "step two",
		DependsOnID:  a.ID,
		EvidenceType: models.EvidenceLink,
	})
	if err != nil {
		t.Fatalf("AddObjective with dep: %v", err)
	}
	if b.DependsOnID == nil || *b.DependsOnID != a.ID {
		t.Errorf("DependsOnID = %v, want %s", b.DependsOnID, a.ID)
	}
}

func TestAddObjective_Validation(t *testing.T) {
	db := openTestDB(t)

	q, _ := Create(db, CreateOpts{Title: "t"})
	other, _ := Create(db, CreateOpts{Title: "other"})
	foreign, _ := AddObjective(db, ObjectiveOpts{QuestID: other.ID, Title: "foreign"})

	if _, err := AddObjective(db, ObjectiveOpts{QuestID: q.ID}); err == nil {
		t.Error("expected error for missing title")
	}
	if _, err := AddObjective(db, ObjectiveOpts{QuestID: "qst-nope1", Title: "x"}); err == nil {
		t.Error("expected error for missing quest")
	}
	if _, err := AddObjective(db, ObjectiveOpts{QuestID: q.ID, Title: "x", EvidenceType: "selfie"}); err == nil {
		t.Error("expected error for unknown evidence type")
	}
	if _, err := AddObjective(db, ObjectiveOpts{QuestID: q.ID, Title: "x", DependsOnID: foreign.ID}); err == nil {
		t.Error("expected error for cross-quest dependency")
	}

	if err := Publish(db, q.ID); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := AddObjective(db, ObjectiveOpts{QuestID: q.ID, Title: "late"}); err == nil {
		t.Error("expected error adding objective to published quest")
	}
}

func TestSetDependency_CycleRejected(t *testing.T) {
	db := openTestDB(t)

	q, _ := Create(db, CreateOpts{Title: "t"})
	a, _ := AddObjective(db, ObjectiveOpts{QuestID: q.ID, Title: "a"})
	b, _ := AddObjective(db, ObjectiveOpts{QuestID: q.ID, Title: "b", DependsOnID: a.ID})
	c, _ := AddObjective(db, ObjectiveOpts{QuestID: q.ID, Title: "c", DependsOnID: b.ID})

	// a → c would close a ← b ← c into a cycle.
	if err := SetDependency(db, a.ID, c.ID); err == nil {
		t.Fatal("expected cycle error for a depending on c")
	}
	// Self-reference.
	if err := SetDependency(db, a.ID, a.ID); err == nil {
		t.Fatal("expected error for self-dependency")
	}
	// Legal re-point: c from b to a.
	if err := SetDependency(db, c.ID, a.ID); err != nil {
		t.Fatalf("SetDependency c→a: %v", err)
	}
	// Clear.
	if err := SetDependency(db, c.ID, ""); err != nil {
		t.Fatalf("SetDependency clear: %v", err)
	}
	got, err := Get(db, q.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	for _, obj := range got.Objectives {
		if obj.ID == c.ID && obj.DependsOnID != nil {
			t.Errorf("objective c still has dependency %v after clear", *obj.DependsOnID)
		}
	}
}

func TestValidateGraph(t *testing.T) {
	id := func(s string) *string { return &s }

	tests := []struct {
		name    string
		objs    []models.Objective
		wantErr bool
	}{
		{
			name: "linear chain",
			objs: []models.Objective{
				{ID: "obj-aaaaa"},
				{ID: "obj-bbbbb", DependsOnID: id("obj-aaaaa")},
				{ID: "obj-ccccc", DependsOnID: id("obj-bbbbb")},
			},
		},
		{
			name: "self reference",
			objs: []models.Objective{
				{ID: "obj-aaaaa", DependsOnID: id("obj-aaaaa")},
			},
			wantErr: true,
		},
		{
			name: "two-node cycle",
			objs: []models.Objective{
				{ID: "obj-aaaaa", DependsOnID: id("obj-bbbbb")},
				{ID: "obj-bbbbb", DependsOnID: id("obj-aaaaa")},
			},
			wantErr: true,
		},
		{
			name: "dangling reference",
			objs: []models.Objective{
				{ID: "obj-aaaaa", DependsOnID: id("obj-zzzzz")},
			},
			wantErr: true,
		},
		{
			name: "empty set",
			objs: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGraph(tt.objs)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGraph() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublish_RejectsBadGraph(t *testing.T) {
	db := openTestDB(t)

	q, _ := Create(db, CreateOpts{Title: "t"})
	a, _ := AddObjective(db, ObjectiveOpts{QuestID: q.ID, Title: "a"})
	b, _ := AddObjective(db, ObjectiveOpts{QuestID: q.ID, Title: "b", DependsOnID: a.ID})

	// Corrupt the stored graph directly: a → b closes a cycle.
	if err := db.Model(&models.Objective{}).Where("id = ?", a.ID).
		Update("depends_on_id", b.ID).Error; err != nil {
		t.Fatalf("corrupt graph: %v", err)
	}

	if err := Publish(db, q.ID); err == nil {
		t.Fatal("expected publish to reject a cyclic graph")
	}
}

func TestList_FilterByStatus(t *testing.T) {
	db := openTestDB(t)

	q1, _ := Create(db, CreateOpts{Title: "one"})
	Create(db, CreateOpts{Title: "two"})
	if err := Publish(db, q1.ID); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	published, err := List(db, ListFilters{Status: models.QuestPublished})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(published) != 1 || published[0].ID != q1.ID {
		t.Errorf("published list = %v, want just %s", published, q1.ID)
	}

	all, err := List(db, ListFilters{})
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all list has %d quests, want 2", len(all))
	}
}
