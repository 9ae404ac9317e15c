package app

import (
	"context"

	"lexdesk/api/internal/store"
)

const defaultNotificationLimit = 50

func (s *Service) ListAuditEntries(ctx context.Context, orgID string, filter store.AuditFilter) (map[string]any, error) {
	result, err := s.store.ListAuditEntries(ctx, orgID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(result.Items))
	for _, entry := range result.Items {
		items = append(items, auditView(entry))
	}
	return page(items, result.NextCursor), nil
}

func (s *Service) ListNotifications(ctx context.Context, orgID, userID string, unreadOnly bool, limit int) ([]map[string]any, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultNotificationLimit
	}
	notifications, err := s.store.ListNotifications(ctx, orgID, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(notifications))
	for _, n := range notifications {
		items = append(items, notificationView(n))
	}
	return items, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, orgID, userID, id string) error {
	return s.store.MarkNotificationRead(ctx, orgID, userID, id)
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, orgID, userID string) (int64, error) {
	return s.store.MarkAllNotificationsRead(ctx, orgID, userID)
}
