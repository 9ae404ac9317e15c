package reminder

import (
	"testing"
	"time"

	"lexdesk/api/internal/store"
)

func intPtr(v int) *int { return &v }

var now = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name  string
		event store.CalendarEvent
		lead  int
		at    time.Time
		want  Decision
	}{
		{
			name:  "trigger exactly now fires",
			event: store.CalendarEvent{StartTime: now.Add(60 * time.Minute)},
			lead:  60,
			at:    now,
			want:  Fire,
		},
		{
			name:  "ten minutes late is dropped",
			event: store.CalendarEvent{StartTime: now.Add(60 * time.Minute)},
			lead:  60,
			at:    now.Add(10 * time.Minute),
			want:  MarkFiredWithoutNotifying,
		},
		{
			name:  "window edge still fires",
			event: store.CalendarEvent{StartTime: now.Add(60 * time.Minute)},
			lead:  60,
			at:    now.Add(FireWindow),
			want:  Fire,
		},
		{
			name:  "just past the window is dropped",
			event: store.CalendarEvent{StartTime: now.Add(60 * time.Minute)},
			lead:  60,
			at:    now.Add(FireWindow + time.Second),
			want:  MarkFiredWithoutNotifying,
		},
		{
			name:  "not yet due",
			event: store.CalendarEvent{StartTime: now.Add(2 * time.Hour)},
			lead:  60,
			at:    now,
			want:  Skip,
		},
		{
			name:  "event already started",
			event: store.CalendarEvent{StartTime: now.Add(-time.Minute)},
			lead:  15,
			at:    now,
			want:  MarkFiredWithoutNotifying,
		},
		{
			name:  "already fired additional lead-time",
			event: store.CalendarEvent{StartTime: now.Add(60 * time.Minute), FiredReminders: []int{60}},
			lead:  60,
			at:    now,
			want:  Skip,
		},
		{
			name:  "already fired primary even for a past event",
			event: store.CalendarEvent{StartTime: now.Add(-time.Hour), ReminderMinutes: intPtr(30), PrimaryReminderFired: true},
			lead:  30,
			at:    now,
			want:  Skip,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Evaluate(tc.event, tc.lead, tc.at); got != tc.want {
				t.Fatalf("Evaluate = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestLeadTimesDeduplicatesPrimaryAndAdditional(t *testing.T) {
	event := store.CalendarEvent{ReminderMinutes: intPtr(60), AdditionalReminders: []int{1440, 60, 0, -5, 15, 1440}}
	got := LeadTimes(event)
	want := []int{60, 1440, 15}
	if len(got) != len(want) {
		t.Fatalf("LeadTimes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("LeadTimes = %v, want %v", got, want)
		}
	}
}

func TestMarkFiredIsIdempotentAndIndependent(t *testing.T) {
	event := store.CalendarEvent{StartTime: now.Add(time.Hour), ReminderMinutes: intPtr(60), AdditionalReminders: []int{15}}

	MarkFired(&event, 60)
	MarkFired(&event, 60)
	if len(event.FiredReminders) != 1 || !event.PrimaryReminderFired {
		t.Fatalf("expected single primary fire, got %+v", event)
	}
	if !event.RemindersPending {
		t.Fatal("15-minute reminder is still pending")
	}
	if Evaluate(event, 60, now) != Skip {
		t.Fatal("re-evaluating a fired lead-time must skip")
	}
	if HasFired(event, 15) {
		t.Fatal("firing one lead-time must not affect another")
	}

	MarkFired(&event, 15)
	if event.RemindersPending {
		t.Fatal("all lead-times processed, nothing should be pending")
	}
}

func TestResetClearsBookkeeping(t *testing.T) {
	event := store.CalendarEvent{ReminderMinutes: intPtr(30), FiredReminders: []int{30}, PrimaryReminderFired: true}
	Reset(&event)
	if event.PrimaryReminderFired || len(event.FiredReminders) != 0 || !event.RemindersPending {
		t.Fatalf("unexpected state after reset: %+v", event)
	}

	bare := store.CalendarEvent{}
	Reset(&bare)
	if bare.RemindersPending {
		t.Fatal("event without reminders must not be pending")
	}
}
