package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"lexdesk/api/internal/reminder"
	"lexdesk/api/internal/store"
)

const (
	defaultEventWindow = 30 * 24 * time.Hour
	maxEventWindow     = 366 * 24 * time.Hour
)

type CreateEventInput struct {
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	Location            string     `json:"location"`
	EventType           string     `json:"eventType"`
	MatterID            string     `json:"matterId"`
	OwnerID             string     `json:"ownerId"`
	StartTime           time.Time  `json:"startTime"`
	EndTime             *time.Time `json:"endTime"`
	ReminderMinutes     *int       `json:"reminderMinutes"`
	AdditionalReminders []int      `json:"additionalReminders"`
	NotifyEmail         *bool      `json:"notifyEmail"`
	NotifyPush          *bool      `json:"notifyPush"`
}

// UpdateEventInput only changes the fields that are present. A reminderMinutes
// of 0 removes the primary reminder.
type UpdateEventInput struct {
	Title               *string    `json:"title"`
	Description         *string    `json:"description"`
	Location            *string    `json:"location"`
	EventType           *string    `json:"eventType"`
	MatterID            *string    `json:"matterId"`
	StartTime           *time.Time `json:"startTime"`
	EndTime             *time.Time `json:"endTime"`
	ReminderMinutes     *int       `json:"reminderMinutes"`
	AdditionalReminders *[]int     `json:"additionalReminders"`
	NotifyEmail         *bool      `json:"notifyEmail"`
	NotifyPush          *bool      `json:"notifyPush"`
}

func (s *Service) CreateEvent(ctx context.Context, orgID, actorID string, input CreateEventInput) (map[string]any, error) {
	problems := map[string]string{}
	if strings.TrimSpace(input.Title) == "" {
		problems["title"] = "is required"
	}
	if input.StartTime.IsZero() {
		problems["startTime"] = "is required"
	}
	if input.EndTime != nil && !input.EndTime.After(input.StartTime) {
		problems["endTime"] = "must be after startTime"
	}
	primary, additional := normalizeReminders(input.ReminderMinutes, input.AdditionalReminders, problems)
	if len(problems) > 0 {
		return nil, validationError("Invalid calendar event", map[string]any{"fields": problems})
	}

	ownerID := firstNonEmpty(input.OwnerID, actorID)
	if err := s.checkEventRefs(ctx, orgID, ownerID, input.MatterID); err != nil {
		return nil, err
	}

	now := s.now()
	event := store.CalendarEvent{
		ID:                  s.newID("evt"),
		OrganizationID:      orgID,
		OwnerID:             ownerID,
		MatterID:            input.MatterID,
		Title:               strings.TrimSpace(input.Title),
		Description:         input.Description,
		Location:            input.Location,
		EventType:           firstNonEmpty(strings.ToUpper(input.EventType), "MEETING"),
		StartTime:           input.StartTime.UTC(),
		EndTime:             utcPtr(input.EndTime),
		ReminderMinutes:     primary,
		AdditionalReminders: additional,
		NotifyEmail:         boolOr(input.NotifyEmail, true),
		NotifyPush:          boolOr(input.NotifyPush, true),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	reminder.Reset(&event)
	if err := s.store.InsertEvent(ctx, event); err != nil {
		return nil, err
	}
	s.audit(ctx, orgID, actorID, "calendar.create", "calendar_event", event.ID, map[string]any{
		"startTime": formatTime(event.StartTime),
		"reminders": reminder.LeadTimes(event),
	})
	return eventView(event), nil
}

func (s *Service) GetEvent(ctx context.Context, orgID, id string) (map[string]any, error) {
	event, err := s.store.GetEvent(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return eventView(event), nil
}

// ListEvents defaults to the next 30 days and caps the window at a year.
func (s *Service) ListEvents(ctx context.Context, orgID string, r store.EventRange) ([]map[string]any, error) {
	if r.From.IsZero() {
		r.From = s.now()
	}
	if r.To.IsZero() {
		r.To = r.From.Add(defaultEventWindow)
	}
	if !r.To.After(r.From) {
		return nil, validationError("to must be after from", nil)
	}
	if r.To.Sub(r.From) > maxEventWindow {
		return nil, validationError("The range may span at most one year", nil)
	}
	events, err := s.store.ListEvents(ctx, orgID, r)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(events))
	for _, event := range events {
		items = append(items, eventView(event))
	}
	return items, nil
}

// UpdateEvent applies a partial update. Rescheduling or changing the reminder
// configuration resets the fired bookkeeping so every lead-time can fire again
// against the new start time; other edits keep it.
func (s *Service) UpdateEvent(ctx context.Context, orgID, actorID, id string, input UpdateEventInput) (map[string]any, error) {
	event, err := s.store.GetEvent(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	before := event

	if input.Title != nil {
		event.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		event.Description = *input.Description
	}
	if input.Location != nil {
		event.Location = *input.Location
	}
	if input.EventType != nil {
		event.EventType = strings.ToUpper(*input.EventType)
	}
	if input.MatterID != nil {
		event.MatterID = *input.MatterID
	}
	if input.StartTime != nil {
		event.StartTime = input.StartTime.UTC()
	}
	if input.EndTime != nil {
		event.EndTime = utcPtr(input.EndTime)
	}
	if input.NotifyEmail != nil {
		event.NotifyEmail = *input.NotifyEmail
	}
	if input.NotifyPush != nil {
		event.NotifyPush = *input.NotifyPush
	}

	problems := map[string]string{}
	if event.Title == "" {
		problems["title"] = "is required"
	}
	if event.EndTime != nil && !event.EndTime.After(event.StartTime) {
		problems["endTime"] = "must be after startTime"
	}
	if input.ReminderMinutes != nil || input.AdditionalReminders != nil {
		primaryIn := event.ReminderMinutes
		if input.ReminderMinutes != nil {
			primaryIn = input.ReminderMinutes
		}
		additionalIn := event.AdditionalReminders
		if input.AdditionalReminders != nil {
			additionalIn = *input.AdditionalReminders
		}
		event.ReminderMinutes, event.AdditionalReminders = normalizeReminders(primaryIn, additionalIn, problems)
	}
	if len(problems) > 0 {
		return nil, validationError("Invalid calendar event", map[string]any{"fields": problems})
	}
	if input.MatterID != nil && event.MatterID != before.MatterID {
		if err := s.checkEventRefs(ctx, orgID, "", event.MatterID); err != nil {
			return nil, err
		}
	}

	rescheduled := !event.StartTime.Equal(before.StartTime) || !sameReminders(before, event)
	if rescheduled {
		reminder.Reset(&event)
	}
	event.UpdatedAt = s.now()
	if err := s.store.UpdateEvent(ctx, event, rescheduled); err != nil {
		return nil, err
	}
	s.audit(ctx, orgID, actorID, "calendar.update", "calendar_event", id, map[string]any{"rescheduled": rescheduled})
	return eventView(event), nil
}

func (s *Service) DeleteEvent(ctx context.Context, orgID, actorID, id string) error {
	if err := s.store.DeleteEvent(ctx, orgID, id); err != nil {
		return err
	}
	s.audit(ctx, orgID, actorID, "calendar.delete", "calendar_event", id, nil)
	return nil
}

func (s *Service) checkEventRefs(ctx context.Context, orgID, ownerID, matterID string) error {
	if ownerID != "" {
		if _, err := s.store.GetUser(ctx, orgID, ownerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return validationError("Event owner not found", nil)
			}
			return err
		}
	}
	if matterID != "" {
		if _, err := s.store.GetMatter(ctx, orgID, matterID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return validationError("Matter not found", nil)
			}
			return err
		}
	}
	return nil
}

// normalizeReminders validates lead-times and drops duplicates, including
// additional values equal to the primary one. A primary of 0 means none.
func normalizeReminders(primary *int, additional []int, problems map[string]string) (*int, []int) {
	var outPrimary *int
	if primary != nil && *primary != 0 {
		if !validLeadTime(*primary) {
			problems["reminderMinutes"] = fmt.Sprintf("must be between 1 and %d", reminder.MaxLeadMinutes)
		} else {
			value := *primary
			outPrimary = &value
		}
	}
	out := []int{}
	for _, minutes := range additional {
		if !validLeadTime(minutes) {
			problems["additionalReminders"] = fmt.Sprintf("each value must be between 1 and %d", reminder.MaxLeadMinutes)
			continue
		}
		if outPrimary != nil && *outPrimary == minutes {
			continue
		}
		if slices.Contains(out, minutes) {
			continue
		}
		out = append(out, minutes)
	}
	return outPrimary, out
}

func validLeadTime(minutes int) bool {
	return minutes > 0 && minutes <= reminder.MaxLeadMinutes
}

func sameReminders(a, b store.CalendarEvent) bool {
	switch {
	case a.ReminderMinutes == nil && b.ReminderMinutes != nil,
		a.ReminderMinutes != nil && b.ReminderMinutes == nil:
		return false
	case a.ReminderMinutes != nil && *a.ReminderMinutes != *b.ReminderMinutes:
		return false
	}
	return slices.Equal(a.AdditionalReminders, b.AdditionalReminders)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	value := t.UTC()
	return &value
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
