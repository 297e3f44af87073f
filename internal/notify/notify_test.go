package notify

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/mkernan/questboard/internal/config"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// recordingSink captures every event it is handed.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
	fail   error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Notify(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcher_FanOut(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	d := NewDispatcher(quietLogger(), a, b)

	d.EmitSync(context.Background(), Event{Kind: EventQuestCompleted, UserID: "alice", QuestTitle: "q"})

	if a.count() != 1 || b.count() != 1 {
		t.Errorf("deliveries = (%d, %d), want (1, 1)", a.count(), b.count())
	}
	if a.events[0].OccurredAt.IsZero() {
		t.Error("OccurredAt not stamped")
	}
}

func TestDispatcher_FailingSinkDoesNotBlockOthers(t *testing.T) {
	broken := &recordingSink{fail: errors.New("boom")}
	healthy := &recordingSink{}
	d := NewDispatcher(quietLogger(), broken, healthy)

	d.EmitSync(context.Background(), Event{Kind: EventObjectiveApproved, UserID: "alice"})

	if healthy.count() != 1 {
		t.Errorf("healthy sink deliveries = %d, want 1", healthy.count())
	}
}

func TestEvent_Headline(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{
			Event{Kind: EventObjectiveApproved, UserID: "alice", Points: 5, ObjectiveTitle: "report", QuestTitle: "audit"},
			"alice earned 5 points",
		},
		{
			Event{Kind: EventObjectiveRejected, UserID: "alice", ObjectiveTitle: "report", QuestTitle: "audit"},
			"sent back to alice",
		},
		{
			Event{Kind: EventQuestCompleted, UserID: "alice", QuestTitle: "audit", Points: 30},
			`completed "audit" for 30 points`,
		},
		{
			Event{Kind: EventQuestExpired, UserID: "alice", QuestTitle: "audit"},
			"ran out of time",
		},
		{
			Event{Kind: EventQuestReadyToClaim, UserID: "alice", QuestTitle: "audit"},
			"awaiting sign-off",
		},
	}
	for _, tt := range tests {
		got := tt.event.Headline()
		if !strings.Contains(got, tt.want) {
			t.Errorf("Headline(%s) = %q, want it to contain %q", tt.event.Kind, got, tt.want)
		}
	}
}

func TestEvent_Severity(t *testing.T) {
	if got := (Event{Kind: EventQuestCompleted}).Severity(); got != "success" {
		t.Errorf("completed severity = %q, want success", got)
	}
	if got := (Event{Kind: EventQuestExpired}).Severity(); got != "warning" {
		t.Errorf("expired severity = %q, want warning", got)
	}
	if got := (Event{Kind: EventEvidenceSubmitted}).Severity(); got != "info" {
		t.Errorf("submitted severity = %q, want info", got)
	}
}

func TestFromConfig_LogOnly(t *testing.T) {
	d, err := FromConfig(config.NotifyConfig{}, quietLogger())
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if len(d.sinks) != 1 {
		t.Errorf("sinks = %d, want just the log sink", len(d.sinks))
	}
}

func TestFromConfig_AllSinks(t *testing.T) {
	cfg := config.NotifyConfig{
		Slack:   config.SlackConfig{BotToken: "xoxb-test", Channel: "C123"},
		Discord: config.DiscordConfig{BotToken: "token", ChannelID: "456"},
	}
	d, err := FromConfig(cfg, quietLogger())
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if len(d.sinks) != 3 {
		t.Errorf("sinks = %d, want log+slack+discord", len(d.sinks))
	}
}
