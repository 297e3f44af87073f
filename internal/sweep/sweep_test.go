package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/mkernan/questboard/internal/db"
	"github.com/mkernan/questboard/internal/identity"
	"github.com/mkernan/questboard/internal/models"
	"github.com/mkernan/questboard/internal/notify"
	"github.com/mkernan/questboard/internal/progression"
	"github.com/mkernan/questboard/internal/quest"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	alice = identity.Actor{UserID: "alice", Roles: []string{identity.RoleMember}}
	bob   = identity.Actor{UserID: "bob", Roles: []string{identity.RoleMember}}
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(db.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func seedRun(t *testing.T, gdb *gorm.DB, actor identity.Actor, days int) *models.UserQuest {
	t.Helper()
	q, err := quest.Create(gdb, quest.CreateOpts{Title: "timed", CompletionDays: days})
	if err != nil {
		t.Fatalf("create quest: %v", err)
	}
	if _, err := quest.AddObjective(gdb, quest.ObjectiveOpts{
		QuestID: q.ID, Title: "a", EvidenceType: models.EvidenceText,
	}); err != nil {
		t.Fatalf("add objective: %v", err)
	}
	if err := quest.Publish(gdb, q.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	uq, err := progression.Accept(gdb, actor, q.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return uq
}

func backdate(t *testing.T, gdb *gorm.DB, uqID string, deadline time.Time) {
	t.Helper()
	if err := gdb.Model(&models.UserQuest{}).Where("id = ?", uqID).
		Update("deadline", deadline).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}
}

func status(t *testing.T, gdb *gorm.DB, uqID string) models.UserQuestStatus {
	t.Helper()
	var uq models.UserQuest
	if err := gdb.Where("id = ?", uqID).First(&uq).Error; err != nil {
		t.Fatalf("load run: %v", err)
	}
	return uq.Status
}

func TestRunOnce_ExpiresOverdueRuns(t *testing.T) {
	gdb := openTestDB(t)
	overdue := seedRun(t, gdb, alice, 1)
	current := seedRun(t, gdb, bob, 30)
	backdate(t, gdb, overdue.ID, time.Now().Add(-time.Hour))

	expired, err := RunOnce(gdb, time.Now())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != overdue.ID {
		t.Fatalf("expired = %v, want just the overdue run", expired)
	}
	if expired[0].Quest.Title != "timed" {
		t.Errorf("quest not preloaded: %+v", expired[0].Quest)
	}
	if got := status(t, gdb, overdue.ID); got != models.UserQuestExpired {
		t.Errorf("overdue run = %q, want expired", got)
	}
	if got := status(t, gdb, current.ID); got != models.UserQuestAccepted {
		t.Errorf("current run = %q, want untouched", got)
	}
}

func TestRunOnce_HonorsExtendedDeadline(t *testing.T) {
	gdb := openTestDB(t)
	uq := seedRun(t, gdb, alice, 1)
	backdate(t, gdb, uq.ID, time.Now().Add(-time.Hour))
	if err := gdb.Model(&models.UserQuest{}).Where("id = ?", uq.ID).
		Update("extended_deadline", time.Now().Add(24*time.Hour)).Error; err != nil {
		t.Fatalf("extend: %v", err)
	}

	expired, err := RunOnce(gdb, time.Now())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(expired) != 0 {
		t.Errorf("expired %d runs, extension should shield the run", len(expired))
	}
}

func TestRunOnce_SkipsRunsWithoutDeadline(t *testing.T) {
	gdb := openTestDB(t)
	seedRun(t, gdb, alice, 0)

	expired, err := RunOnce(gdb, time.Now())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(expired) != 0 {
		t.Errorf("expired %d runs, open-ended quests never expire", len(expired))
	}
}

func TestRunOnce_LeavesTerminalStatesAlone(t *testing.T) {
	gdb := openTestDB(t)
	uq := seedRun(t, gdb, alice, 1)
	backdate(t, gdb, uq.ID, time.Now().Add(-time.Hour))
	if err := progression.Abandon(gdb, alice, uq.ID); err != nil {
		t.Fatalf("abandon: %v", err)
	}

	expired, err := RunOnce(gdb, time.Now())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(expired) != 0 {
		t.Errorf("expired %d runs, abandoned runs are terminal", len(expired))
	}
	if got := status(t, gdb, uq.ID); got != models.UserQuestAbandoned {
		t.Errorf("run = %q, want still abandoned", got)
	}
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	gdb := openTestDB(t)
	if _, err := New(gdb, nil, "not a cron line", logrus.New()); err == nil {
		t.Error("invalid schedule accepted")
	}
	if _, err := New(gdb, nil, "*/10 * * * *", logrus.New()); err != nil {
		t.Errorf("valid schedule rejected: %v", err)
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	gdb := openTestDB(t)
	s, err := New(gdb, notify.NewDispatcher(logrus.New()), "* * * * *", logrus.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()
	// The loop exits on cancellation; nothing to assert beyond no panic.
	time.Sleep(10 * time.Millisecond)
}
