package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lexdesk/api/internal/outbox"
	"lexdesk/api/internal/search"
	"lexdesk/api/internal/store"
)

const (
	matterOpen    = "OPEN"
	matterPending = "PENDING"
	matterClosed  = "CLOSED"

	EventMatterOpened        = "MATTER_OPENED"
	EventMatterStatusChanged = "MATTER_STATUS_CHANGED"
)

var matterStatuses = map[string]struct{}{
	matterOpen:    {},
	matterPending: {},
	matterClosed:  {},
}

type CreateMatterInput struct {
	Title                 string   `json:"title"`
	ClientName            string   `json:"clientName"`
	OpposingParties       []string `json:"opposingParties"`
	PracticeArea          string   `json:"practiceArea"`
	Description           string   `json:"description"`
	ResponsibleAttorneyID string   `json:"responsibleAttorneyId"`
}

func (s *Service) CreateMatter(ctx context.Context, orgID, actorID string, input CreateMatterInput) (map[string]any, error) {
	problems := map[string]string{}
	if strings.TrimSpace(input.Title) == "" {
		problems["title"] = "is required"
	}
	if strings.TrimSpace(input.ClientName) == "" {
		problems["clientName"] = "is required"
	}
	if len(problems) > 0 {
		return nil, validationError("Invalid matter", map[string]any{"fields": problems})
	}
	if input.ResponsibleAttorneyID != "" {
		if _, err := s.store.GetUser(ctx, orgID, input.ResponsibleAttorneyID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, validationError("Responsible attorney not found", nil)
			}
			return nil, err
		}
	}

	now := s.now()
	matter := store.Matter{
		ID:                    s.newID("mat"),
		OrganizationID:        orgID,
		Title:                 strings.TrimSpace(input.Title),
		ClientName:            strings.TrimSpace(input.ClientName),
		OpposingParties:       normalizeTerms(input.OpposingParties),
		PracticeArea:          strings.TrimSpace(input.PracticeArea),
		Description:           strings.TrimSpace(input.Description),
		Status:                matterOpen,
		ResponsibleAttorneyID: input.ResponsibleAttorneyID,
		OpenedAt:              now,
		UpdatedAt:             now,
	}
	if err := s.store.InsertMatter(ctx, matter); err != nil {
		return nil, err
	}
	s.indexParties(ctx, search.MatterParties(matter))
	s.audit(ctx, orgID, actorID, "matter.create", "matter", matter.ID, map[string]any{"title": matter.Title})
	s.publishMatterOpened(ctx, matter)
	return matterView(matter), nil
}

func (s *Service) GetMatter(ctx context.Context, orgID, id string) (map[string]any, error) {
	matter, err := s.store.GetMatter(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return matterView(matter), nil
}

func (s *Service) ListMatters(ctx context.Context, orgID string, filter store.MatterFilter) (map[string]any, error) {
	if filter.Status != "" {
		filter.Status = strings.ToUpper(filter.Status)
		if _, ok := matterStatuses[filter.Status]; !ok {
			return nil, validationError("Unknown matter status", map[string]any{"status": filter.Status})
		}
	}
	result, err := s.store.ListMatters(ctx, orgID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(result.Items))
	for _, matter := range result.Items {
		items = append(items, matterView(matter))
	}
	return page(items, result.NextCursor), nil
}

func (s *Service) UpdateMatterStatus(ctx context.Context, orgID, actorID, id, status string) (map[string]any, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if _, ok := matterStatuses[status]; !ok {
		return nil, validationError("Matter status must be OPEN, PENDING or CLOSED", map[string]any{"status": status})
	}
	before, err := s.store.GetMatter(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	matter, err := s.store.UpdateMatterStatus(ctx, orgID, id, status)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, orgID, actorID, "matter.status", "matter", id, map[string]any{"from": before.Status, "to": status})
	if before.Status != status {
		s.publish(ctx, outbox.Event{
			OrganizationID: orgID,
			RecipientID:    matter.ResponsibleAttorneyID,
			Type:           EventMatterStatusChanged,
			Title:          "Matter status changed",
			Message:        fmt.Sprintf("%s is now %s", matter.Title, status),
			Payload:        map[string]any{"matterId": matter.ID, "from": before.Status, "to": status},
			Channels:       outbox.Channels{InApp: true},
		})
	}
	return matterView(matter), nil
}

func (s *Service) publishMatterOpened(ctx context.Context, matter store.Matter) {
	s.publish(ctx, outbox.Event{
		OrganizationID: matter.OrganizationID,
		RecipientID:    matter.ResponsibleAttorneyID,
		Type:           EventMatterOpened,
		Title:          "Matter opened",
		Message:        fmt.Sprintf("%s was opened for %s", matter.Title, matter.ClientName),
		Payload:        map[string]any{"matterId": matter.ID, "leadId": matter.LeadID},
		Channels:       outbox.AllChannels,
	})
}
