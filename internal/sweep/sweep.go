// Package sweep expires overdue quest runs on a cron schedule.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/mkernan/questboard/internal/models"
	"github.com/mkernan/questboard/internal/notify"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// activeStatuses are the quest run states the sweep considers.
var activeStatuses = []models.UserQuestStatus{
	models.UserQuestAccepted,
	models.UserQuestInProgress,
}

// Sweeper periodically expires quest runs whose effective deadline has
// passed. Expiry is advisory cleanup; the submission path enforces the
// deadline on its own, so a late sweep never admits late evidence.
type Sweeper struct {
	db         *gorm.DB
	dispatcher *notify.Dispatcher
	schedule   string
	log        *logrus.Logger
}

// New creates a Sweeper. The schedule is a 5-field cron expression.
func New(db *gorm.DB, dispatcher *notify.Dispatcher, schedule string, log *logrus.Logger) (*Sweeper, error) {
	if _, err := cronParser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("sweep: invalid schedule %q: %w", schedule, err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sweeper{db: db, dispatcher: dispatcher, schedule: schedule, log: log}, nil
}

// RunOnce performs a single expiry pass and returns the runs it expired.
func RunOnce(db *gorm.DB, now time.Time) ([]models.UserQuest, error) {
	var overdue []models.UserQuest
	err := db.Preload("Quest").
		Where("status IN ?", activeStatuses).
		Where("COALESCE(extended_deadline, deadline) < ?", now).
		Find(&overdue).Error
	if err != nil {
		return nil, fmt.Errorf("sweep: find overdue runs: %w", err)
	}

	expired := make([]models.UserQuest, 0, len(overdue))
	for _, uq := range overdue {
		// Guard on the prior status: a run approved or abandoned between
		// the read and this write is left alone.
		result := db.Model(&models.UserQuest{}).
			Where("id = ? AND status = ?", uq.ID, uq.Status).
			Update("status", models.UserQuestExpired)
		if result.Error != nil {
			return expired, fmt.Errorf("sweep: expire run %s: %w", uq.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			continue
		}
		uq.Status = models.UserQuestExpired
		expired = append(expired, uq)
	}
	return expired, nil
}

// runPass executes one pass, logging and announcing each expiry.
func (s *Sweeper) runPass() {
	expired, err := RunOnce(s.db, time.Now())
	if err != nil {
		s.log.WithError(err).Error("deadline sweep failed")
		return
	}
	for _, uq := range expired {
		s.log.WithFields(logrus.Fields{
			"user_quest_id": uq.ID,
			"user_id":       uq.UserID,
			"quest_id":      uq.QuestID,
		}).Info("quest run expired")
		if s.dispatcher != nil {
			s.dispatcher.Emit(notify.Event{
				Kind:       notify.EventQuestExpired,
				UserID:     uq.UserID,
				QuestTitle: uq.Quest.Title,
			})
		}
	}
	if len(expired) > 0 {
		s.log.WithField("count", len(expired)).Info("deadline sweep complete")
	}
}

// Start runs the sweep loop until the context is cancelled. It fires at
// each cron boundary, never immediately on startup.
func (s *Sweeper) Start(ctx context.Context) {
	sched, _ := cronParser.Parse(s.schedule)
	go func() {
		timer := time.NewTimer(time.Until(sched.Next(time.Now())))
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				s.runPass()
				timer.Reset(time.Until(sched.Next(time.Now())))
			}
		}
	}()
}
