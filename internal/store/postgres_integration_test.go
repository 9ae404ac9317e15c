package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func openTestStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	db, err := Open(ctx, databaseURL, DefaultPool(4))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db), ctx
}

func seedOrg(t *testing.T, ctx context.Context, s *PostgresStore, id string) {
	t.Helper()
	if err := s.CreateOrganization(ctx, Organization{ID: id, Name: id, Slug: id}); err != nil {
		t.Fatalf("create organization: %v", err)
	}
}

func TestMigrationsRollBackAndReapply(t *testing.T) {
	s, ctx := openTestStore(t)
	dir := filepath.Join("..", "..", "db", "migrations")

	if err := RollbackMigrations(ctx, s.DB(), dir); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if err := ApplyMigrations(ctx, s.DB(), dir); err != nil {
		t.Fatalf("reapply: %v", err)
	}
	version, err := MigrationVersion(ctx, s.DB())
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if version != 6 {
		t.Fatalf("expected schema version 6, got %d", version)
	}
}

func TestSubmissionReviewIsConditionalOnPriorStatus(t *testing.T) {
	s, ctx := openTestStore(t)
	seedOrg(t, ctx, s, "org_a")

	now := time.Now().UTC()
	sub := Submission{ID: "sub_1", OrganizationID: "org_a", Data: json.RawMessage(`{"name":"Ada"}`), Status: "PENDING", Priority: 50, CreatedAt: now}
	if err := s.InsertSubmission(ctx, sub); err != nil {
		t.Fatalf("insert submission: %v", err)
	}

	sub.Status = "SPAM"
	sub.ReviewedBy = "usr_1"
	sub.ReviewedAt = &now
	sub.UpdatedAt = now
	ok, err := s.UpdateSubmissionReview(ctx, sub, "PENDING")
	if err != nil || !ok {
		t.Fatalf("first update: ok=%v err=%v", ok, err)
	}

	sub.Status = "REJECTED"
	ok, err = s.UpdateSubmissionReview(ctx, sub, "PENDING")
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if ok {
		t.Fatal("expected stale update to report false")
	}

	got, err := s.GetSubmission(ctx, "org_a", "sub_1")
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if got.Status != "SPAM" {
		t.Fatalf("expected SPAM, got %s", got.Status)
	}
}

func TestSubmissionsAreInvisibleAcrossOrganizations(t *testing.T) {
	s, ctx := openTestStore(t)
	seedOrg(t, ctx, s, "org_a")
	seedOrg(t, ctx, s, "org_b")

	sub := Submission{ID: "sub_1", OrganizationID: "org_a", Data: json.RawMessage(`{}`), Status: "PENDING", Priority: 50, CreatedAt: time.Now().UTC()}
	if err := s.InsertSubmission(ctx, sub); err != nil {
		t.Fatalf("insert submission: %v", err)
	}

	if _, err := s.GetSubmission(ctx, "org_b", "sub_1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign org, got %v", err)
	}
	subs, err := s.ListSubmissionsByIDs(ctx, "org_b", []string{"sub_1"})
	if err != nil {
		t.Fatalf("list by ids: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("expected no rows for foreign org, got %d", len(subs))
	}
}

func TestConvertSubmissionLinksLeadAtomically(t *testing.T) {
	s, ctx := openTestStore(t)
	seedOrg(t, ctx, s, "org_a")

	now := time.Now().UTC()
	sub := Submission{ID: "sub_1", OrganizationID: "org_a", Data: json.RawMessage(`{}`), Status: "REVIEWED", Priority: 50, CreatedAt: now}
	if err := s.InsertSubmission(ctx, sub); err != nil {
		t.Fatalf("insert submission: %v", err)
	}

	sub.Status = "CONVERTED_TO_LEAD"
	sub.UpdatedAt = now
	lead := Lead{ID: "lead_1", OrganizationID: "org_a", SubmissionID: "sub_1", Name: "Ada", Email: "ada@example.com", Status: "NEW", CreatedAt: now}

	ok, err := s.ConvertSubmission(ctx, sub, "PENDING", lead)
	if err != nil {
		t.Fatalf("stale convert: %v", err)
	}
	if ok {
		t.Fatal("expected stale convert to report false")
	}
	if _, err := s.GetLead(ctx, "org_a", "lead_1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale convert must not insert the lead, got %v", err)
	}

	ok, err = s.ConvertSubmission(ctx, sub, "REVIEWED", lead)
	if err != nil || !ok {
		t.Fatalf("convert: ok=%v err=%v", ok, err)
	}
	got, err := s.GetSubmission(ctx, "org_a", "sub_1")
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if got.LeadID != "lead_1" || got.Status != "CONVERTED_TO_LEAD" {
		t.Fatalf("unexpected submission after convert: %+v", got)
	}
}

func TestListSubmissionsPaginatesWithCursor(t *testing.T) {
	s, ctx := openTestStore(t)
	seedOrg(t, ctx, s, "org_a")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"sub_1", "sub_2", "sub_3"} {
		sub := Submission{ID: id, OrganizationID: "org_a", Data: json.RawMessage(`{}`), Status: "PENDING", Priority: 50, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.InsertSubmission(ctx, sub); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	first, err := s.ListSubmissions(ctx, "org_a", SubmissionFilter{Limit: 2})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Items) != 2 || first.Items[0].ID != "sub_3" || first.NextCursor == "" {
		t.Fatalf("unexpected first page: %+v", first)
	}
	second, err := s.ListSubmissions(ctx, "org_a", SubmissionFilter{Limit: 2, Cursor: first.NextCursor})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Items) != 1 || second.Items[0].ID != "sub_1" || second.NextCursor != "" {
		t.Fatalf("unexpected second page: %+v", second)
	}
}

func TestReminderStateIsNotSavedAfterReschedule(t *testing.T) {
	s, ctx := openTestStore(t)
	seedOrg(t, ctx, s, "org_a")

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	primary := 60
	event := CalendarEvent{ID: "evt_1", OrganizationID: "org_a", OwnerID: "usr_1", Title: "Hearing", EventType: "COURT_DATE", StartTime: start, ReminderMinutes: &primary, RemindersPending: true, CreatedAt: time.Now().UTC()}
	if err := s.InsertEvent(ctx, event); err != nil {
		t.Fatalf("insert event: %v", err)
	}

	candidates, err := s.ListReminderCandidates(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("list candidates: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}

	stale := event
	stale.StartTime = start.Add(-time.Minute)
	stale.FiredReminders = []int{60}
	stale.PrimaryReminderFired = true
	ok, err := s.SaveReminderState(ctx, stale)
	if err != nil {
		t.Fatalf("save stale state: %v", err)
	}
	if ok {
		t.Fatal("expected save against a different start time to report false")
	}
}

func TestReminderStateIsNotSavedAfterReminderChange(t *testing.T) {
	s, ctx := openTestStore(t)
	seedOrg(t, ctx, s, "org_a")

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	primary := 60
	event := CalendarEvent{ID: "evt_1", OrganizationID: "org_a", OwnerID: "usr_1", Title: "Hearing", EventType: "COURT_DATE", StartTime: start, ReminderMinutes: &primary, RemindersPending: true, CreatedAt: time.Now().UTC()}
	if err := s.InsertEvent(ctx, event); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	stale := event

	changed := event
	changed.AdditionalReminders = []int{30}
	changed.UpdatedAt = time.Now().UTC()
	if err := s.UpdateEvent(ctx, changed, true); err != nil {
		t.Fatalf("update reminders: %v", err)
	}

	stale.FiredReminders = []int{60}
	stale.PrimaryReminderFired = true
	stale.RemindersPending = false
	ok, err := s.SaveReminderState(ctx, stale)
	if err != nil {
		t.Fatalf("save stale state: %v", err)
	}
	if ok {
		t.Fatal("expected save against different lead-times to report false")
	}
	got, err := s.GetEvent(ctx, "org_a", "evt_1")
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if !got.RemindersPending || len(got.FiredReminders) != 0 {
		t.Fatalf("expected added lead-time to stay pending, got %+v", got)
	}
}

func TestUpdateEventWithoutResetKeepsFiredReminders(t *testing.T) {
	s, ctx := openTestStore(t)
	seedOrg(t, ctx, s, "org_a")

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	primary := 60
	event := CalendarEvent{ID: "evt_1", OrganizationID: "org_a", OwnerID: "usr_1", Title: "Hearing", EventType: "COURT_DATE", StartTime: start, ReminderMinutes: &primary, RemindersPending: true, CreatedAt: time.Now().UTC()}
	if err := s.InsertEvent(ctx, event); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	read := event

	fired := event
	fired.FiredReminders = []int{60}
	fired.PrimaryReminderFired = true
	fired.RemindersPending = false
	if ok, err := s.SaveReminderState(ctx, fired); err != nil || !ok {
		t.Fatalf("save state: ok=%v err=%v", ok, err)
	}

	read.Title = "Final hearing"
	read.UpdatedAt = time.Now().UTC()
	if err := s.UpdateEvent(ctx, read, false); err != nil {
		t.Fatalf("update title: %v", err)
	}
	got, err := s.GetEvent(ctx, "org_a", "evt_1")
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got.Title != "Final hearing" || !got.PrimaryReminderFired || got.RemindersPending || len(got.FiredReminders) != 1 {
		t.Fatalf("expected title change to keep bookkeeping, got %+v", got)
	}
}

func TestAuditLogRejectsUpdateAndDelete(t *testing.T) {
	s, ctx := openTestStore(t)
	seedOrg(t, ctx, s, "org_a")

	entry := AuditEntry{ID: "aud_1", OrganizationID: "org_a", ActorID: "usr_1", Action: "intake.review", EntityType: "submission", EntityID: "sub_1", CreatedAt: time.Now().UTC()}
	if err := s.InsertAuditEntry(ctx, entry); err != nil {
		t.Fatalf("insert audit entry: %v", err)
	}

	for name, stmt := range map[string]string{
		"update": `UPDATE audit_log SET action='tampered' WHERE id='aud_1'`,
		"delete": `DELETE FROM audit_log WHERE id='aud_1'`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.DB().ExecContext(ctx, stmt)
			var pgErr *pgconn.PgError
			if !errors.As(err, &pgErr) {
				t.Fatalf("expected PostgreSQL error, got: %v", err)
			}
			if pgErr.SQLState() != "55000" {
				t.Fatalf("expected SQLSTATE 55000, got %s", pgErr.SQLState())
			}
		})
	}

	var count int
	if err := s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&count); err != nil && !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("count audit rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected audit entry to survive, got %d rows", count)
	}
}
