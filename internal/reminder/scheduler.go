package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lexdesk/api/internal/outbox"
	"lexdesk/api/internal/store"
	"lexdesk/api/internal/util"
)

const (
	EventCalendarReminder = "CALENDAR_REMINDER"

	DefaultInterval  = time.Minute
	defaultBatchSize = 500
)

var ErrIntervalTooLong = errors.New("reminder interval must be shorter than the fire window")

type Store interface {
	ListReminderCandidates(ctx context.Context, now time.Time, limit int) ([]store.CalendarEvent, error)
	SaveReminderState(ctx context.Context, event store.CalendarEvent) (bool, error)
}

// TickResult counts what one pass did.
type TickResult struct {
	Events int
	Fired  int
	Missed int
}

// Scheduler polls for due reminders. Delivery is at most once: a lead-time is
// recorded as fired even when publishing it failed.
type Scheduler struct {
	store     Store
	publisher outbox.Publisher
	logger    *slog.Logger
	batchSize int
	newID     func(prefix string) string
}

func NewScheduler(st Store, publisher outbox.Publisher, logger *slog.Logger) *Scheduler {
	if publisher == nil {
		publisher = outbox.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:     st,
		publisher: publisher,
		logger:    logger,
		batchSize: defaultBatchSize,
		newID:     util.NewID,
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if interval >= FireWindow {
		return fmt.Errorf("%w: %s", ErrIntervalTooLong, interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("reminder scheduler started", "interval", interval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler stopped")
			return nil
		case tick := <-ticker.C:
			result, err := s.Tick(ctx, tick.UTC())
			if err != nil {
				s.logger.Error("reminder tick failed", "error", err)
				continue
			}
			if result.Fired > 0 || result.Missed > 0 {
				s.logger.Info("reminder tick", "events", result.Events, "fired", result.Fired, "missed", result.Missed)
			}
		}
	}
}

// Tick evaluates every lead-time of every candidate event at now.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	events, err := s.store.ListReminderCandidates(ctx, now, s.batchSize)
	if err != nil {
		return TickResult{}, fmt.Errorf("load reminder candidates: %w", err)
	}
	if len(events) == s.batchSize {
		s.logger.Warn("reminder batch full; remaining events wait for the next tick", "batch_size", s.batchSize)
	}

	var result TickResult
	for _, event := range events {
		changed := false
		for _, lead := range LeadTimes(event) {
			switch Evaluate(event, lead, now) {
			case Fire:
				s.fire(ctx, event, lead)
				MarkFired(&event, lead)
				result.Fired++
				changed = true
			case MarkFiredWithoutNotifying:
				if event.StartTime.After(now) {
					s.logger.WarnContext(ctx, "reminder window missed; dropping reminder",
						"org_id", event.OrganizationID,
						"event_id", event.ID,
						"lead_minutes", lead,
						"trigger_time", TriggerTime(event, lead),
					)
					result.Missed++
				}
				MarkFired(&event, lead)
				changed = true
			}
		}
		if !changed {
			continue
		}
		event.RemindersPending = Pending(event)
		result.Events++

		saved, err := s.store.SaveReminderState(ctx, event)
		if err != nil {
			return result, fmt.Errorf("save reminder state for %s: %w", event.ID, err)
		}
		if !saved {
			s.logger.InfoContext(ctx, "event rescheduled during reminder tick", "org_id", event.OrganizationID, "event_id", event.ID)
		}
	}
	return result, nil
}

func (s *Scheduler) fire(ctx context.Context, event store.CalendarEvent, lead int) {
	channels := outbox.Channels{InApp: event.NotifyPush, Email: event.NotifyEmail}
	if !channels.InApp && !channels.Email {
		return
	}
	payload := map[string]any{
		"eventId":     event.ID,
		"leadMinutes": lead,
		"startTime":   event.StartTime.UTC().Format(time.RFC3339),
	}
	if event.MatterID != "" {
		payload["matterId"] = event.MatterID
	}
	notification := outbox.Event{
		ID:             s.newID("evt"),
		OrganizationID: event.OrganizationID,
		RecipientID:    event.OwnerID,
		Type:           EventCalendarReminder,
		Title:          "Upcoming: " + event.Title,
		Message:        fmt.Sprintf("%s starts in %s", event.Title, humanizeMinutes(lead)),
		Payload:        payload,
		Channels:       channels,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, notification); err != nil {
		s.logger.WarnContext(ctx, "reminder notification failed",
			"org_id", event.OrganizationID,
			"event_id", event.ID,
			"lead_minutes", lead,
			"error", err,
		)
	}
}

func humanizeMinutes(minutes int) string {
	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case minutes%(24*60) == 0:
		return plural(minutes/(24*60), "day")
	case minutes%60 == 0:
		return plural(minutes/60, "hour")
	default:
		return plural(minutes, "minute")
	}
}
