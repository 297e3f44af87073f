// Package notify fans progression events out to chat platforms (Slack,
// Discord) and the log.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// EventKind names the progression moment an Event describes.
type EventKind string

const (
	EventQuestAccepted      EventKind = "quest_accepted"
	EventEvidenceSubmitted  EventKind = "evidence_submitted"
	EventObjectiveApproved  EventKind = "objective_approved"
	EventObjectiveRejected  EventKind = "objective_rejected"
	EventQuestReadyToClaim  EventKind = "quest_ready_to_claim"
	EventQuestCompleted     EventKind = "quest_completed"
	EventQuestExpired       EventKind = "quest_expired"
	EventExtensionRequested EventKind = "extension_requested"
	EventExtensionDecided   EventKind = "extension_decided"
)

// Event is one progression moment worth announcing.
type Event struct {
	Kind           EventKind
	UserID         string
	QuestTitle     string
	ObjectiveTitle string
	Points         int
	Feedback       string
	OccurredAt     time.Time
}

// Severity maps the event kind to a display tone understood by the sinks.
func (e Event) Severity() string {
	switch e.Kind {
	case EventObjectiveApproved, EventQuestCompleted:
		return "success"
	case EventObjectiveRejected, EventQuestExpired:
		return "warning"
	default:
		return "info"
	}
}

// Headline renders the one-line summary shown in chat.
func (e Event) Headline() string {
	switch e.Kind {
	case EventQuestAccepted:
		return fmt.Sprintf("%s accepted %q", e.UserID, e.QuestTitle)
	case EventEvidenceSubmitted:
		return fmt.Sprintf("%s submitted evidence for %q (%s)", e.UserID, e.ObjectiveTitle, e.QuestTitle)
	case EventObjectiveApproved:
		return fmt.Sprintf("%s earned %d points: %q approved (%s)", e.UserID, e.Points, e.ObjectiveTitle, e.QuestTitle)
	case EventObjectiveRejected:
		return fmt.Sprintf("%q sent back to %s (%s)", e.ObjectiveTitle, e.UserID, e.QuestTitle)
	case EventQuestReadyToClaim:
		return fmt.Sprintf("%s finished every objective of %q, awaiting sign-off", e.UserID, e.QuestTitle)
	case EventQuestCompleted:
		return fmt.Sprintf("%s completed %q for %d points", e.UserID, e.QuestTitle, e.Points)
	case EventQuestExpired:
		return fmt.Sprintf("%s ran out of time on %q", e.UserID, e.QuestTitle)
	case EventExtensionRequested:
		return fmt.Sprintf("%s asked for more time on %q", e.UserID, e.QuestTitle)
	case EventExtensionDecided:
		return fmt.Sprintf("extension decided for %s on %q", e.UserID, e.QuestTitle)
	default:
		return string(e.Kind)
	}
}

// Notifier is the interface every delivery sink implements.
type Notifier interface {
	// Notify delivers one event. Implementations own their retry policy.
	Notify(ctx context.Context, event Event) error

	// Name identifies the sink in logs.
	Name() string
}

// Dispatcher fans events out to every registered sink. Delivery is
// best-effort: a failing sink is logged and never blocks progression.
type Dispatcher struct {
	sinks   []Notifier
	log     *logrus.Logger
	timeout time.Duration
}

// NewDispatcher creates a Dispatcher over the given sinks.
func NewDispatcher(log *logrus.Logger, sinks ...Notifier) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{sinks: sinks, log: log, timeout: 10 * time.Second}
}

// Emit delivers the event to every sink in the background.
func (d *Dispatcher) Emit(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	for _, sink := range d.sinks {
		go func(sink Notifier) {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			if err := sink.Notify(ctx, event); err != nil {
				d.log.WithFields(logrus.Fields{
					"sink": sink.Name(),
					"kind": event.Kind,
				}).WithError(err).Warn("notification delivery failed")
			}
		}(sink)
	}
}

// EmitSync delivers the event to every sink before returning. Used by
// one-shot command paths where the process exits right after.
func (d *Dispatcher) EmitSync(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	for _, sink := range d.sinks {
		if err := sink.Notify(ctx, event); err != nil {
			d.log.WithFields(logrus.Fields{
				"sink": sink.Name(),
				"kind": event.Kind,
			}).WithError(err).Warn("notification delivery failed")
		}
	}
}

// LogNotifier writes events to the structured log. It is the sink of last
// resort when no chat platform is configured.
type LogNotifier struct {
	log *logrus.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(_ context.Context, event Event) error {
	n.log.WithFields(logrus.Fields{
		"kind":    event.Kind,
		"user_id": event.UserID,
		"quest":   event.QuestTitle,
	}).Info(event.Headline())
	return nil
}
