package reminder

import (
	"time"

	"lexdesk/api/internal/store"
)

// Decision is the outcome of evaluating one lead-time of one event.
type Decision int

const (
	Skip Decision = iota
	Fire
	MarkFiredWithoutNotifying
)

func (d Decision) String() string {
	switch d {
	case Fire:
		return "fire"
	case MarkFiredWithoutNotifying:
		return "mark_fired"
	default:
		return "skip"
	}
}

// FireWindow is how late a reminder may still be delivered. The scheduler must tick
// more often than this or reminders are dropped.
const FireWindow = 5 * time.Minute

// MaxLeadMinutes bounds a configured lead-time to 30 days.
const MaxLeadMinutes = 30 * 24 * 60

// Evaluate decides what to do with one lead-time of event at now.
func Evaluate(event store.CalendarEvent, leadTimeMinutes int, now time.Time) Decision {
	if HasFired(event, leadTimeMinutes) {
		return Skip
	}
	if event.StartTime.Before(now) {
		return MarkFiredWithoutNotifying
	}
	trigger := TriggerTime(event, leadTimeMinutes)
	if trigger.After(now) {
		return Skip
	}
	if !trigger.Before(now.Add(-FireWindow)) {
		return Fire
	}
	return MarkFiredWithoutNotifying
}

func TriggerTime(event store.CalendarEvent, leadTimeMinutes int) time.Time {
	return event.StartTime.Add(-time.Duration(leadTimeMinutes) * time.Minute)
}

// LeadTimes lists the distinct positive lead-times of event, primary first.
func LeadTimes(event store.CalendarEvent) []int {
	var leads []int
	seen := map[int]struct{}{}
	add := func(minutes int) {
		if minutes <= 0 {
			return
		}
		if _, ok := seen[minutes]; ok {
			return
		}
		seen[minutes] = struct{}{}
		leads = append(leads, minutes)
	}
	if event.ReminderMinutes != nil {
		add(*event.ReminderMinutes)
	}
	for _, minutes := range event.AdditionalReminders {
		add(minutes)
	}
	return leads
}

func HasFired(event store.CalendarEvent, leadTimeMinutes int) bool {
	if event.PrimaryReminderFired && event.ReminderMinutes != nil && *event.ReminderMinutes == leadTimeMinutes {
		return true
	}
	for _, fired := range event.FiredReminders {
		if fired == leadTimeMinutes {
			return true
		}
	}
	return false
}

// MarkFired records leadTimeMinutes as processed. Calling it twice is harmless.
func MarkFired(event *store.CalendarEvent, leadTimeMinutes int) {
	if event.ReminderMinutes != nil && *event.ReminderMinutes == leadTimeMinutes {
		event.PrimaryReminderFired = true
	}
	for _, fired := range event.FiredReminders {
		if fired == leadTimeMinutes {
			event.RemindersPending = Pending(*event)
			return
		}
	}
	event.FiredReminders = append(event.FiredReminders, leadTimeMinutes)
	event.RemindersPending = Pending(*event)
}

// Pending reports whether any lead-time of event has not been processed yet.
func Pending(event store.CalendarEvent) bool {
	for _, minutes := range LeadTimes(event) {
		if !HasFired(event, minutes) {
			return true
		}
	}
	return false
}

// Reset clears the fired bookkeeping, used when an event is rescheduled.
func Reset(event *store.CalendarEvent) {
	event.FiredReminders = nil
	event.PrimaryReminderFired = false
	event.RemindersPending = len(LeadTimes(*event)) > 0
}
