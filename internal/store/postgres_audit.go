package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

func encodeMap(values map[string]any) (string, error) {
	if values == nil {
		values = map[string]any{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func (s *PostgresStore) InsertAuditEntry(ctx context.Context, entry AuditEntry) error {
	details, err := encodeMap(entry.Details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, organization_id, actor_id, action, entity_type, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
	`, entry.ID, entry.OrganizationID, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID, details, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAuditEntries(ctx context.Context, orgID string, filter AuditFilter) (Page[AuditEntry], error) {
	where := []string{"organization_id=$1"}
	args := []any{orgID}
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		where = append(where, fmt.Sprintf("entity_type=$%d", len(args)))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		where = append(where, fmt.Sprintf("entity_id=$%d", len(args)))
	}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		where = append(where, fmt.Sprintf("actor_id=$%d", len(args)))
	}
	where, args, err := keyset(where, args, "created_at", filter.Cursor)
	if err != nil {
		return Page[AuditEntry]{}, err
	}
	limit := pageSize(filter.Limit)
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, organization_id, actor_id, action, entity_type, entity_id, details, created_at
		FROM audit_log
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, strings.Join(where, " AND "), len(args)), args...)
	if err != nil {
		return Page[AuditEntry]{}, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var page Page[AuditEntry]
	for rows.Next() {
		var entry AuditEntry
		var detailsRaw []byte
		if err := rows.Scan(&entry.ID, &entry.OrganizationID, &entry.ActorID, &entry.Action, &entry.EntityType, &entry.EntityID, &detailsRaw, &entry.CreatedAt); err != nil {
			return Page[AuditEntry]{}, fmt.Errorf("scan audit entry: %w", err)
		}
		_ = json.Unmarshal(detailsRaw, &entry.Details)
		page.Items = append(page.Items, entry)
	}
	if err := rows.Err(); err != nil {
		return Page[AuditEntry]{}, fmt.Errorf("list audit entries rows: %w", err)
	}
	if len(page.Items) > limit {
		page.Items = page.Items[:limit]
		last := page.Items[limit-1]
		page.NextCursor = EncodeCursor(last.CreatedAt, last.ID)
	}
	return page, nil
}

func (s *PostgresStore) InsertNotification(ctx context.Context, n Notification) error {
	payload, err := encodeMap(n.Payload)
	if err != nil {
		return fmt.Errorf("encode notification payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, organization_id, recipient_id, type, title, message, payload, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7::jsonb, $8)
		ON CONFLICT (id) DO NOTHING
	`, n.ID, n.OrganizationID, n.RecipientID, n.Type, n.Title, n.Message, payload, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, orgID, recipientID string, unreadOnly bool, limit int) ([]Notification, error) {
	query := `
		SELECT id, organization_id, COALESCE(recipient_id, ''), type, title, message, payload, read_at, created_at
		FROM notifications
		WHERE organization_id=$1 AND recipient_id=$2`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += `
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, orgID, recipientID, pageSize(limit))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var items []Notification
	for rows.Next() {
		var n Notification
		var payloadRaw []byte
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.OrganizationID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &payloadRaw, &readAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		_ = json.Unmarshal(payloadRaw, &n.Payload)
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, orgID, recipientID, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at=COALESCE(read_at, NOW())
		WHERE organization_id=$1 AND recipient_id=$2 AND id=$3
	`, orgID, recipientID, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	ok, err := affectedOne(result, "mark notification read")
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, orgID, recipientID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at=NOW()
		WHERE organization_id=$1 AND recipient_id=$2 AND read_at IS NULL
	`, orgID, recipientID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read rows: %w", err)
	}
	return affected, nil
}
