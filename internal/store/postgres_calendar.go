package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const eventColumns = `id, organization_id, owner_id, COALESCE(matter_id, ''), title, description, location, event_type, start_time, end_time, reminder_minutes, additional_reminders, fired_reminders, primary_reminder_fired, notify_email, notify_push, reminders_pending, created_at, updated_at`

func scanEvent(row rowScanner) (CalendarEvent, error) {
	var event CalendarEvent
	var endTime sql.NullTime
	var reminderMinutes sql.NullInt64
	var additionalRaw, firedRaw []byte
	err := row.Scan(
		&event.ID,
		&event.OrganizationID,
		&event.OwnerID,
		&event.MatterID,
		&event.Title,
		&event.Description,
		&event.Location,
		&event.EventType,
		&event.StartTime,
		&endTime,
		&reminderMinutes,
		&additionalRaw,
		&firedRaw,
		&event.PrimaryReminderFired,
		&event.NotifyEmail,
		&event.NotifyPush,
		&event.RemindersPending,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return CalendarEvent{}, err
	}
	if endTime.Valid {
		event.EndTime = &endTime.Time
	}
	if reminderMinutes.Valid {
		minutes := int(reminderMinutes.Int64)
		event.ReminderMinutes = &minutes
	}
	_ = json.Unmarshal(additionalRaw, &event.AdditionalReminders)
	_ = json.Unmarshal(firedRaw, &event.FiredReminders)
	return event, nil
}

// maxLeadMinutes is stored next to the event so the scheduler can find due rows by index.
func maxLeadMinutes(event CalendarEvent) int {
	longest := 0
	if event.ReminderMinutes != nil {
		longest = *event.ReminderMinutes
	}
	for _, minutes := range event.AdditionalReminders {
		if minutes > longest {
			longest = minutes
		}
	}
	return longest
}

func encodeInts(values []int) (string, error) {
	if values == nil {
		values = []int{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func (s *PostgresStore) InsertEvent(ctx context.Context, event CalendarEvent) error {
	additional, err := encodeInts(event.AdditionalReminders)
	if err != nil {
		return fmt.Errorf("encode additional reminders: %w", err)
	}
	fired, err := encodeInts(event.FiredReminders)
	if err != nil {
		return fmt.Errorf("encode fired reminders: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calendar_events (
			id, organization_id, owner_id, matter_id, title, description, location, event_type,
			start_time, end_time, reminder_minutes, additional_reminders, fired_reminders,
			primary_reminder_fired, notify_email, notify_push, reminders_pending, max_lead_minutes,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13::jsonb, $14, $15, $16, $17, $18, $19, $19)
	`,
		event.ID, event.OrganizationID, event.OwnerID, event.MatterID, event.Title, event.Description, event.Location, event.EventType,
		event.StartTime, event.EndTime, event.ReminderMinutes, additional, fired,
		event.PrimaryReminderFired, event.NotifyEmail, event.NotifyPush, event.RemindersPending, maxLeadMinutes(event),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert calendar event: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, orgID, id string) (CalendarEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE organization_id=$1 AND id=$2`, orgID, id)
	event, err := scanEvent(row)
	if err != nil {
		return CalendarEvent{}, notFound(err)
	}
	return event, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, orgID string, r EventRange) ([]CalendarEvent, error) {
	where := []string{"organization_id=$1"}
	args := []any{orgID}
	if !r.From.IsZero() {
		args = append(args, r.From)
		where = append(where, fmt.Sprintf("start_time >= $%d", len(args)))
	}
	if !r.To.IsZero() {
		args = append(args, r.To)
		where = append(where, fmt.Sprintf("start_time < $%d", len(args)))
	}
	if r.MatterID != "" {
		args = append(args, r.MatterID)
		where = append(where, fmt.Sprintf("matter_id=$%d", len(args)))
	}
	if r.OwnerID != "" {
		args = append(args, r.OwnerID)
		where = append(where, fmt.Sprintf("owner_id=$%d", len(args)))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM calendar_events
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY start_time ASC, id ASC
		LIMIT 1000
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]CalendarEvent, error) {
	var events []CalendarEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calendar event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// UpdateEvent writes the event details. With resetReminders the reminder
// configuration and the fired bookkeeping are replaced too; without it the
// bookkeeping columns are left to the scheduler.
func (s *PostgresStore) UpdateEvent(ctx context.Context, event CalendarEvent, resetReminders bool) error {
	var (
		result sql.Result
		err    error
	)
	if resetReminders {
		result, err = s.rescheduleEvent(ctx, event)
	} else {
		result, err = s.db.ExecContext(ctx, `
			UPDATE calendar_events
			SET matter_id=NULLIF($3, ''), title=$4, description=$5, location=$6, event_type=$7,
				end_time=$8, notify_email=$9, notify_push=$10, updated_at=$11
			WHERE organization_id=$1 AND id=$2
		`,
			event.OrganizationID, event.ID, event.MatterID, event.Title, event.Description, event.Location, event.EventType,
			event.EndTime, event.NotifyEmail, event.NotifyPush, event.UpdatedAt,
		)
	}
	if err != nil {
		return fmt.Errorf("update calendar event: %w", err)
	}
	ok, err := affectedOne(result, "update calendar event")
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) rescheduleEvent(ctx context.Context, event CalendarEvent) (sql.Result, error) {
	additional, err := encodeInts(event.AdditionalReminders)
	if err != nil {
		return nil, fmt.Errorf("encode additional reminders: %w", err)
	}
	fired, err := encodeInts(event.FiredReminders)
	if err != nil {
		return nil, fmt.Errorf("encode fired reminders: %w", err)
	}
	return s.db.ExecContext(ctx, `
		UPDATE calendar_events
		SET matter_id=NULLIF($3, ''), title=$4, description=$5, location=$6, event_type=$7,
			start_time=$8, end_time=$9, reminder_minutes=$10, additional_reminders=$11::jsonb,
			fired_reminders=$12::jsonb, primary_reminder_fired=$13, notify_email=$14, notify_push=$15,
			reminders_pending=$16, max_lead_minutes=$17, updated_at=$18
		WHERE organization_id=$1 AND id=$2
	`,
		event.OrganizationID, event.ID, event.MatterID, event.Title, event.Description, event.Location, event.EventType,
		event.StartTime, event.EndTime, event.ReminderMinutes, additional,
		fired, event.PrimaryReminderFired, event.NotifyEmail, event.NotifyPush,
		event.RemindersPending, maxLeadMinutes(event), event.UpdatedAt,
	)
}

func (s *PostgresStore) DeleteEvent(ctx context.Context, orgID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE organization_id=$1 AND id=$2`, orgID, id)
	if err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	ok, err := affectedOne(result, "delete calendar event")
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// ListReminderCandidates returns events across all organizations that still have an
// unfired lead-time whose earliest possible trigger is at or before now.
func (s *PostgresStore) ListReminderCandidates(ctx context.Context, now time.Time, limit int) ([]CalendarEvent, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM calendar_events
		WHERE reminders_pending
			AND start_time - make_interval(mins => max_lead_minutes) <= $1
		ORDER BY start_time ASC, id ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// SaveReminderState persists only the reminder bookkeeping, and only while the event
// still has the start time and lead-times the scheduler evaluated. A concurrent
// reschedule or reminder change wins.
func (s *PostgresStore) SaveReminderState(ctx context.Context, event CalendarEvent) (bool, error) {
	fired, err := encodeInts(event.FiredReminders)
	if err != nil {
		return false, fmt.Errorf("encode fired reminders: %w", err)
	}
	additional, err := encodeInts(event.AdditionalReminders)
	if err != nil {
		return false, fmt.Errorf("encode additional reminders: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE calendar_events
		SET fired_reminders=$3::jsonb, primary_reminder_fired=$4, reminders_pending=$5
		WHERE organization_id=$1 AND id=$2 AND start_time=$6
			AND reminder_minutes IS NOT DISTINCT FROM $7::integer
			AND additional_reminders=$8::jsonb
	`, event.OrganizationID, event.ID, fired, event.PrimaryReminderFired, event.RemindersPending,
		event.StartTime, event.ReminderMinutes, additional)
	if err != nil {
		return false, fmt.Errorf("save reminder state: %w", err)
	}
	return affectedOne(result, "save reminder state")
}
