package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const submissionColumns = `id, organization_id, COALESCE(form_id, ''), data, status, priority, COALESCE(lead_id, ''), COALESCE(reviewed_by, ''), reviewed_at, review_notes, created_at, updated_at`

func scanSubmission(row rowScanner) (Submission, error) {
	var sub Submission
	var data []byte
	var reviewedAt sql.NullTime
	err := row.Scan(
		&sub.ID,
		&sub.OrganizationID,
		&sub.FormID,
		&data,
		&sub.Status,
		&sub.Priority,
		&sub.LeadID,
		&sub.ReviewedBy,
		&reviewedAt,
		&sub.ReviewNotes,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return Submission{}, err
	}
	sub.Data = data
	if reviewedAt.Valid {
		sub.ReviewedAt = &reviewedAt.Time
	}
	return sub, nil
}

func (s *PostgresStore) InsertSubmission(ctx context.Context, sub Submission) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO intake_submissions (id, organization_id, form_id, data, status, priority, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4::jsonb, $5, $6, $7, $7)
	`, sub.ID, sub.OrganizationID, sub.FormID, string(sub.Data), sub.Status, sub.Priority, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSubmission(ctx context.Context, orgID, id string) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+submissionColumns+`
		FROM intake_submissions
		WHERE organization_id=$1 AND id=$2
	`, orgID, id)
	sub, err := scanSubmission(row)
	if err != nil {
		return Submission{}, notFound(err)
	}
	return sub, nil
}

// ListSubmissionsByIDs loads the given ids in one query. Ids belonging to another
// organization or not existing are silently absent from the result.
func (s *PostgresStore) ListSubmissionsByIDs(ctx context.Context, orgID string, ids []string) ([]Submission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, orgID)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM intake_submissions
		WHERE organization_id=$1 AND id IN (`+placeholders(2, len(ids))+`)
		ORDER BY created_at ASC, id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions by ids: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *PostgresStore) ListSubmissions(ctx context.Context, orgID string, filter SubmissionFilter) (Page[Submission], error) {
	where := []string{"organization_id=$1"}
	args := []any{orgID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	where, args, err := keyset(where, args, "created_at", filter.Cursor)
	if err != nil {
		return Page[Submission]{}, err
	}
	limit := pageSize(filter.Limit)
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM intake_submissions
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, submissionColumns, strings.Join(where, " AND "), len(args)), args...)
	if err != nil {
		return Page[Submission]{}, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var page Page[Submission]
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return Page[Submission]{}, fmt.Errorf("scan submission: %w", err)
		}
		page.Items = append(page.Items, sub)
	}
	if err := rows.Err(); err != nil {
		return Page[Submission]{}, fmt.Errorf("list submissions rows: %w", err)
	}
	if len(page.Items) > limit {
		page.Items = page.Items[:limit]
		last := page.Items[limit-1]
		page.NextCursor = EncodeCursor(last.CreatedAt, last.ID)
	}
	return page, nil
}

// UpdateSubmissionReview persists the review fields of sub only while the stored
// status still equals expectedStatus. It reports false when the row moved on.
func (s *PostgresStore) UpdateSubmissionReview(ctx context.Context, sub Submission, expectedStatus string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE intake_submissions
		SET status=$3, reviewed_by=NULLIF($4, ''), reviewed_at=$5, review_notes=$6, updated_at=$7
		WHERE organization_id=$1 AND id=$2 AND status=$8
	`, sub.OrganizationID, sub.ID, sub.Status, sub.ReviewedBy, sub.ReviewedAt, sub.ReviewNotes, sub.UpdatedAt, expectedStatus)
	if err != nil {
		return false, fmt.Errorf("update submission review: %w", err)
	}
	return affectedOne(result, "update submission review")
}

func (s *PostgresStore) UpdateSubmissionData(ctx context.Context, sub Submission, expectedStatus string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE intake_submissions
		SET data=$3::jsonb, priority=$4, updated_at=$5
		WHERE organization_id=$1 AND id=$2 AND status=$6
	`, sub.OrganizationID, sub.ID, string(sub.Data), sub.Priority, sub.UpdatedAt, expectedStatus)
	if err != nil {
		return false, fmt.Errorf("update submission data: %w", err)
	}
	return affectedOne(result, "update submission data")
}

// ConvertSubmission inserts lead and links it onto sub in one transaction. Nothing is
// written when the submission is no longer in expectedStatus.
func (s *PostgresStore) ConvertSubmission(ctx context.Context, sub Submission, expectedStatus string, lead Lead) (bool, error) {
	converted := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, `
			SELECT status FROM intake_submissions
			WHERE organization_id=$1 AND id=$2
			FOR UPDATE
		`, sub.OrganizationID, sub.ID).Scan(&current)
		if err != nil {
			return fmt.Errorf("lock submission: %w", notFound(err))
		}
		if current != expectedStatus {
			return nil
		}

		if err := insertLead(ctx, tx, lead); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE intake_submissions
			SET status=$3, lead_id=$4, reviewed_by=NULLIF($5, ''), reviewed_at=$6, review_notes=$7, updated_at=$8
			WHERE organization_id=$1 AND id=$2
		`, sub.OrganizationID, sub.ID, sub.Status, lead.ID, sub.ReviewedBy, sub.ReviewedAt, sub.ReviewNotes, sub.UpdatedAt); err != nil {
			return fmt.Errorf("link lead to submission: %w", err)
		}
		converted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return converted, nil
}

func (s *PostgresStore) DeleteSubmission(ctx context.Context, orgID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM intake_submissions WHERE organization_id=$1 AND id=$2`, orgID, id)
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	ok, err := affectedOne(result, "delete submission")
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

const leadColumns = `id, organization_id, COALESCE(submission_id, ''), name, email, phone, practice_area, description, urgency, status, COALESCE(matter_id, ''), created_at, updated_at`

func scanLead(row rowScanner) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID,
		&lead.OrganizationID,
		&lead.SubmissionID,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&lead.PracticeArea,
		&lead.Description,
		&lead.Urgency,
		&lead.Status,
		&lead.MatterID,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	return lead, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertLead(ctx context.Context, db execer, lead Lead) error {
	createdAt := lead.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO leads (id, organization_id, submission_id, name, email, phone, practice_area, description, urgency, status, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`, lead.ID, lead.OrganizationID, lead.SubmissionID, lead.Name, lead.Email, lead.Phone, lead.PracticeArea, lead.Description, lead.Urgency, lead.Status, createdAt)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertLead(ctx context.Context, lead Lead) error {
	return insertLead(ctx, s.db, lead)
}

func (s *PostgresStore) GetLead(ctx context.Context, orgID, id string) (Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE organization_id=$1 AND id=$2`, orgID, id)
	lead, err := scanLead(row)
	if err != nil {
		return Lead{}, notFound(err)
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, orgID string, filter LeadFilter) (Page[Lead], error) {
	where := []string{"organization_id=$1"}
	args := []any{orgID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	where, args, err := keyset(where, args, "created_at", filter.Cursor)
	if err != nil {
		return Page[Lead]{}, err
	}
	limit := pageSize(filter.Limit)
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM leads
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, leadColumns, strings.Join(where, " AND "), len(args)), args...)
	if err != nil {
		return Page[Lead]{}, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var page Page[Lead]
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return Page[Lead]{}, fmt.Errorf("scan lead: %w", err)
		}
		page.Items = append(page.Items, lead)
	}
	if err := rows.Err(); err != nil {
		return Page[Lead]{}, fmt.Errorf("list leads rows: %w", err)
	}
	if len(page.Items) > limit {
		page.Items = page.Items[:limit]
		last := page.Items[limit-1]
		page.NextCursor = EncodeCursor(last.CreatedAt, last.ID)
	}
	return page, nil
}

// UpdateLeadStatus never touches converted leads; it reports false for them.
func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, orgID, id, status string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE leads SET status=$3, updated_at=NOW()
		WHERE organization_id=$1 AND id=$2 AND status <> 'CONVERTED'
	`, orgID, id, status)
	if err != nil {
		return false, fmt.Errorf("update lead status: %w", err)
	}
	return affectedOne(result, "update lead status")
}
