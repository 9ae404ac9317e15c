package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const matterColumns = `id, organization_id, title, client_name, opposing_parties, practice_area, description, status, COALESCE(lead_id, ''), COALESCE(responsible_attorney_id, ''), opened_at, closed_at, updated_at`

func scanMatter(row rowScanner) (Matter, error) {
	var matter Matter
	var partiesRaw []byte
	var closedAt sql.NullTime
	err := row.Scan(
		&matter.ID,
		&matter.OrganizationID,
		&matter.Title,
		&matter.ClientName,
		&partiesRaw,
		&matter.PracticeArea,
		&matter.Description,
		&matter.Status,
		&matter.LeadID,
		&matter.ResponsibleAttorneyID,
		&matter.OpenedAt,
		&closedAt,
		&matter.UpdatedAt,
	)
	if err != nil {
		return Matter{}, err
	}
	_ = json.Unmarshal(partiesRaw, &matter.OpposingParties)
	if closedAt.Valid {
		matter.ClosedAt = &closedAt.Time
	}
	return matter, nil
}

func insertMatter(ctx context.Context, db execer, matter Matter) error {
	parties := matter.OpposingParties
	if parties == nil {
		parties = []string{}
	}
	encoded, err := json.Marshal(parties)
	if err != nil {
		return fmt.Errorf("encode opposing parties: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO matters (id, organization_id, title, client_name, opposing_parties, practice_area, description, status, lead_id, responsible_attorney_id, opened_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $11)
	`, matter.ID, matter.OrganizationID, matter.Title, matter.ClientName, string(encoded), matter.PracticeArea, matter.Description, matter.Status, matter.LeadID, matter.ResponsibleAttorneyID, matter.OpenedAt)
	if err != nil {
		return fmt.Errorf("insert matter: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertMatter(ctx context.Context, matter Matter) error {
	return insertMatter(ctx, s.db, matter)
}

// ConvertLeadToMatter creates matter and marks its lead CONVERTED atomically. It
// reports false, writing nothing, when the lead was already converted.
func (s *PostgresStore) ConvertLeadToMatter(ctx context.Context, matter Matter) (bool, error) {
	converted := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertMatter(ctx, tx, matter); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE leads SET status='CONVERTED', matter_id=$3, updated_at=NOW()
			WHERE organization_id=$1 AND id=$2 AND status <> 'CONVERTED'
		`, matter.OrganizationID, matter.LeadID, matter.ID)
		if err != nil {
			return fmt.Errorf("mark lead converted: %w", err)
		}
		ok, err := affectedOne(result, "mark lead converted")
		if err != nil {
			return err
		}
		if !ok {
			return errLeadAlreadyConverted
		}
		converted = true
		return nil
	})
	if errors.Is(err, errLeadAlreadyConverted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return converted, nil
}

var errLeadAlreadyConverted = errors.New("lead already converted")

func (s *PostgresStore) GetMatter(ctx context.Context, orgID, id string) (Matter, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+matterColumns+` FROM matters WHERE organization_id=$1 AND id=$2`, orgID, id)
	matter, err := scanMatter(row)
	if err != nil {
		return Matter{}, notFound(err)
	}
	return matter, nil
}

func (s *PostgresStore) ListMatters(ctx context.Context, orgID string, filter MatterFilter) (Page[Matter], error) {
	where := []string{"organization_id=$1"}
	args := []any{orgID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	where, args, err := keyset(where, args, "opened_at", filter.Cursor)
	if err != nil {
		return Page[Matter]{}, err
	}
	limit := pageSize(filter.Limit)
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM matters
		WHERE %s
		ORDER BY opened_at DESC, id DESC
		LIMIT $%d
	`, matterColumns, strings.Join(where, " AND "), len(args)), args...)
	if err != nil {
		return Page[Matter]{}, fmt.Errorf("list matters: %w", err)
	}
	defer rows.Close()

	var page Page[Matter]
	for rows.Next() {
		matter, err := scanMatter(rows)
		if err != nil {
			return Page[Matter]{}, fmt.Errorf("scan matter: %w", err)
		}
		page.Items = append(page.Items, matter)
	}
	if err := rows.Err(); err != nil {
		return Page[Matter]{}, fmt.Errorf("list matters rows: %w", err)
	}
	if len(page.Items) > limit {
		page.Items = page.Items[:limit]
		last := page.Items[limit-1]
		page.NextCursor = EncodeCursor(last.OpenedAt, last.ID)
	}
	return page, nil
}

// UpdateMatterStatus stamps closed_at when the matter closes and clears it on reopen.
func (s *PostgresStore) UpdateMatterStatus(ctx context.Context, orgID, id, status string) (Matter, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE matters
		SET status=$3,
			closed_at=CASE WHEN $3='CLOSED' THEN COALESCE(closed_at, NOW()) ELSE NULL END,
			updated_at=NOW()
		WHERE organization_id=$1 AND id=$2
		RETURNING `+matterColumns, orgID, id, status)
	matter, err := scanMatter(row)
	if err != nil {
		return Matter{}, notFound(err)
	}
	return matter, nil
}

const conflictCheckColumns = `id, organization_id, subject_type, subject_id, search_terms, status, result, run_by, COALESCE(resolved_by, ''), resolved_at, resolution_notes, created_at`

func scanConflictCheck(row rowScanner) (ConflictCheck, error) {
	var check ConflictCheck
	var termsRaw, resultRaw []byte
	var resolvedAt sql.NullTime
	err := row.Scan(
		&check.ID,
		&check.OrganizationID,
		&check.SubjectType,
		&check.SubjectID,
		&termsRaw,
		&check.Status,
		&resultRaw,
		&check.RunBy,
		&check.ResolvedBy,
		&resolvedAt,
		&check.ResolutionNotes,
		&check.CreatedAt,
	)
	if err != nil {
		return ConflictCheck{}, err
	}
	_ = json.Unmarshal(termsRaw, &check.SearchTerms)
	_ = json.Unmarshal(resultRaw, &check.Result)
	if resolvedAt.Valid {
		check.ResolvedAt = &resolvedAt.Time
	}
	return check, nil
}

// ReplaceConflictCheck discards every unresolved check of the same subject and stores check.
func (s *PostgresStore) ReplaceConflictCheck(ctx context.Context, check ConflictCheck) error {
	terms := check.SearchTerms
	if terms == nil {
		terms = []string{}
	}
	encodedTerms, err := json.Marshal(terms)
	if err != nil {
		return fmt.Errorf("encode search terms: %w", err)
	}
	hits := check.Result
	if hits == nil {
		hits = []ConflictHit{}
	}
	encodedResult, err := json.Marshal(hits)
	if err != nil {
		return fmt.Errorf("encode conflict result: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM conflict_checks
			WHERE organization_id=$1 AND subject_type=$2 AND subject_id=$3 AND status <> 'RESOLVED'
		`, check.OrganizationID, check.SubjectType, check.SubjectID); err != nil {
			return fmt.Errorf("discard unresolved conflict checks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conflict_checks (id, organization_id, subject_type, subject_id, search_terms, status, result, run_by, created_at)
			VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7::jsonb, $8, $9)
		`, check.ID, check.OrganizationID, check.SubjectType, check.SubjectID, string(encodedTerms), check.Status, string(encodedResult), check.RunBy, check.CreatedAt); err != nil {
			return fmt.Errorf("insert conflict check: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetConflictCheck(ctx context.Context, orgID, id string) (ConflictCheck, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conflictCheckColumns+` FROM conflict_checks WHERE organization_id=$1 AND id=$2`, orgID, id)
	check, err := scanConflictCheck(row)
	if err != nil {
		return ConflictCheck{}, notFound(err)
	}
	return check, nil
}

func (s *PostgresStore) LatestConflictCheck(ctx context.Context, orgID, subjectType, subjectID string) (ConflictCheck, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conflictCheckColumns+`
		FROM conflict_checks
		WHERE organization_id=$1 AND subject_type=$2 AND subject_id=$3
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, orgID, subjectType, subjectID)
	check, err := scanConflictCheck(row)
	if err != nil {
		return ConflictCheck{}, notFound(err)
	}
	return check, nil
}

func (s *PostgresStore) ListConflictChecks(ctx context.Context, orgID, subjectType, subjectID string) ([]ConflictCheck, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conflictCheckColumns+`
		FROM conflict_checks
		WHERE organization_id=$1 AND subject_type=$2 AND subject_id=$3
		ORDER BY created_at DESC, id DESC
	`, orgID, subjectType, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list conflict checks: %w", err)
	}
	defer rows.Close()

	var checks []ConflictCheck
	for rows.Next() {
		check, err := scanConflictCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conflict check: %w", err)
		}
		checks = append(checks, check)
	}
	return checks, rows.Err()
}

// ResolveConflictCheck only resolves checks still in CONFLICT_FOUND.
func (s *PostgresStore) ResolveConflictCheck(ctx context.Context, orgID, id, resolvedBy, notes string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE conflict_checks
		SET status='RESOLVED', resolved_by=$3, resolved_at=NOW(), resolution_notes=$4
		WHERE organization_id=$1 AND id=$2 AND status='CONFLICT_FOUND'
	`, orgID, id, resolvedBy, notes)
	if err != nil {
		return false, fmt.Errorf("resolve conflict check: %w", err)
	}
	return affectedOne(result, "resolve conflict check")
}
