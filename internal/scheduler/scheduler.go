package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pathakanu/memorymate/internal/model"
	"github.com/pathakanu/memorymate/internal/reminder"
	"github.com/pathakanu/memorymate/internal/session"
	"github.com/robfig/cron/v3"
)

// Reminders is the part of the reminder coordinator driven by cron.
type Reminders interface {
	Refresh(ctx context.Context) (reminder.RefreshResult, error)
	UpcomingReminders(ctx context.Context, after time.Time) ([]model.Reminder, error)
}

// MessageSender delivers the digest.
type MessageSender interface {
	Enabled() bool
	SendWhatsAppMessage(to, body string) (string, error)
}

// Config holds the cron specs and the digest recipient.
type Config struct {
	RefreshSpec string
	DigestSpec  string
	NotifyTo    string
	Location    *time.Location
}

// Scheduler triggers periodic refreshes and the daily digest.
type Scheduler struct {
	cron      *cron.Cron
	cfg       Config
	reminders Reminders
	sender    MessageSender
	logger    *log.Logger
	now       func() time.Time
}

// New creates a scheduler whose jobs run in cfg.Location, or the local zone
// when unset. Digests are sent through sender.
func New(cfg Config, reminders Reminders, sender MessageSender, logger *log.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(cfg.Location)),
		cfg:       cfg,
		reminders: reminders,
		sender:    sender,
		logger:    logger,
		now:       time.Now,
	}
}

// Start registers the jobs and starts the cron loop. Empty specs disable a job.
func (s *Scheduler) Start() error {
	if s.cfg.RefreshSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.RefreshSpec, func() { s.RunRefresh(context.Background()) }); err != nil {
			return fmt.Errorf("add refresh job: %w", err)
		}
	}
	if s.cfg.DigestSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.DigestSpec, func() { s.RunDigest(context.Background()) }); err != nil {
			return fmt.Errorf("add digest job: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Printf("scheduler: started (TZ: %s, refresh: %q, digest: %q)", s.cfg.Location, s.cfg.RefreshSpec, s.cfg.DigestSpec)
	return nil
}

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Printf("scheduler: stopped")
}

// RunRefresh runs one refresh cycle.
func (s *Scheduler) RunRefresh(ctx context.Context) {
	result, err := s.reminders.Refresh(ctx)
	if err != nil {
		s.logger.Printf("scheduler: refresh: %v", err)
		return
	}
	if !result.Skipped {
		s.logger.Printf("scheduler: refreshed %d reminders (%d native entries)", result.Reminders, result.NativeEntries)
	}
}

// RunDigest sends the upcoming reminders to the configured recipient. It
// reports whether a message was sent.
func (s *Scheduler) RunDigest(ctx context.Context) bool {
	if s.sender == nil || !s.sender.Enabled() || s.cfg.NotifyTo == "" {
		return false
	}

	upcoming, err := s.reminders.UpcomingReminders(ctx, s.now())
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			s.logger.Printf("scheduler: upcoming reminders: %v", err)
		}
		return false
	}
	if len(upcoming) == 0 {
		return false
	}

	if _, err := s.sender.SendWhatsAppMessage(s.cfg.NotifyTo, formatDigest(upcoming, s.cfg.Location)); err != nil {
		s.logger.Printf("scheduler: send digest: %v", err)
		return false
	}
	return true
}

func formatDigest(reminders []model.Reminder, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You have %d upcoming reminders:\n", len(reminders)))
	for i, r := range reminders {
		sb.WriteString(fmt.Sprintf("%d. %s", i+1, r.Title))
		if due := reminder.FormatDueDate(r.DueDate, loc); due != "" {
			sb.WriteString(" (" + due + ")")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
