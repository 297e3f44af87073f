package models

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

func TestQuest_Fields(t *testing.T) {
	typ := reflect.TypeOf(Quest{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:32")
	assertGormTag(t, typ, "Title", "not null")
	assertGormTag(t, typ, "Description", "type:text")
	assertGormTag(t, typ, "Status", "default:draft")
	assertGormTag(t, typ, "Status", "index")
	assertGormTag(t, typ, "ExclusivityCode", "size:64")
}

func TestObjective_Fields(t *testing.T) {
	typ := reflect.TypeOf(Objective{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "QuestID", "not null")
	assertGormTag(t, typ, "QuestID", "index")
	assertGormTag(t, typ, "DependsOnID", "size:32")
	assertGormTag(t, typ, "EvidenceType", "default:none")
}

func TestUserQuest_Fields(t *testing.T) {
	typ := reflect.TypeOf(UserQuest{})

	assertGormTag(t, typ, "ID", "size:36")
	assertGormTag(t, typ, "UserID", "not null")
	assertGormTag(t, typ, "Status", "default:accepted")
	assertGormTag(t, typ, "Status", "index")
	assertGormTag(t, typ, "ExtensionReason", "type:text")
}

func TestUserObjective_Fields(t *testing.T) {
	typ := reflect.TypeOf(UserObjective{})

	assertGormTag(t, typ, "UserQuestID", "not null")
	assertGormTag(t, typ, "ObjectiveID", "not null")
	assertGormTag(t, typ, "Status", "default:locked")
	assertGormTag(t, typ, "EvidenceText", "type:text")
	assertGormTag(t, typ, "EvidenceURL", "size:2048")
}

func TestPointAward_SourceUnique(t *testing.T) {
	typ := reflect.TypeOf(PointAward{})

	assertGormTag(t, typ, "SourceType", "uniqueIndex:idx_award_source")
	assertGormTag(t, typ, "SourceID", "uniqueIndex:idx_award_source")
}

func TestUserQuestStatus_Active(t *testing.T) {
	tests := []struct {
		status UserQuestStatus
		want   bool
	}{
		{UserQuestAccepted, true},
		{UserQuestInProgress, true},
		{UserQuestReadyToClaim, true},
		{UserQuestCompleted, false},
		{UserQuestAbandoned, false},
		{UserQuestExpired, false},
	}
	for _, tt := range tests {
		if got := tt.status.Active(); got != tt.want {
			t.Errorf("%q.Active() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestEffectiveDeadline(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	extended := base.Add(7 * 24 * time.Hour)

	uq := UserQuest{}
	if uq.EffectiveDeadline() != nil {
		t.Error("no deadlines set: EffectiveDeadline() should be nil")
	}

	uq.Deadline = &base
	if got := uq.EffectiveDeadline(); got == nil || !got.Equal(base) {
		t.Errorf("EffectiveDeadline() = %v, want %v", got, base)
	}

	uq.ExtendedDeadline = &extended
	if got := uq.EffectiveDeadline(); got == nil || !got.Equal(extended) {
		t.Errorf("EffectiveDeadline() = %v, want extended %v", got, extended)
	}
}
