package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"lexdesk/api/internal/search"
	"lexdesk/api/internal/store"
)

const (
	leadStatusNew       = "NEW"
	leadStatusContacted = "CONTACTED"
	leadStatusQualified = "QUALIFIED"
	leadStatusLost      = "LOST"
	leadStatusConverted = "CONVERTED"

	conflictNone     = "NO_CONFLICT"
	conflictFound    = "CONFLICT_FOUND"
	conflictResolved = "RESOLVED"

	conflictSearchLimit = 20
)

var settableLeadStatuses = map[string]struct{}{
	leadStatusNew:       {},
	leadStatusContacted: {},
	leadStatusQualified: {},
	leadStatusLost:      {},
}

type ConvertLeadInput struct {
	Title                 string   `json:"title"`
	OpposingParties       []string `json:"opposingParties"`
	PracticeArea          string   `json:"practiceArea"`
	Description           string   `json:"description"`
	ResponsibleAttorneyID string   `json:"responsibleAttorneyId"`
}

func (s *Service) ListLeads(ctx context.Context, orgID string, filter store.LeadFilter) (map[string]any, error) {
	if filter.Status != "" {
		if _, ok := settableLeadStatuses[filter.Status]; !ok && filter.Status != leadStatusConverted {
			return nil, validationError("Unknown lead status", map[string]any{"status": filter.Status})
		}
	}
	result, err := s.store.ListLeads(ctx, orgID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(result.Items))
	for _, lead := range result.Items {
		items = append(items, leadView(lead))
	}
	return page(items, result.NextCursor), nil
}

func (s *Service) GetLead(ctx context.Context, orgID, id string) (map[string]any, error) {
	lead, err := s.store.GetLead(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	view := leadView(lead)
	check, err := s.store.LatestConflictCheck(ctx, orgID, search.EntityLead, id)
	switch {
	case err == nil:
		view["conflictCheck"] = conflictCheckView(check)
	case errors.Is(err, store.ErrNotFound):
		view["conflictCheck"] = nil
	default:
		return nil, err
	}
	return view, nil
}

// UpdateLeadStatus moves a lead through its manual statuses. CONVERTED is only
// reachable through ConvertLeadToMatter.
func (s *Service) UpdateLeadStatus(ctx context.Context, orgID, actorID, id, status string) (map[string]any, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if _, ok := settableLeadStatuses[status]; !ok {
		return nil, validationError("Lead status must be NEW, CONTACTED, QUALIFIED or LOST", map[string]any{"status": status})
	}
	lead, err := s.store.GetLead(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.UpdateLeadStatus(ctx, orgID, id, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainError(http.StatusConflict, codeIllegalTransition, "Converted leads cannot change status", nil)
	}
	s.audit(ctx, orgID, actorID, "lead.status", "lead", id, map[string]any{"from": lead.Status, "to": status})
	lead.Status = status
	lead.UpdatedAt = s.now()
	return leadView(lead), nil
}

// RunConflictCheck searches the party index for every term and stores a fresh
// check for the lead, discarding its unresolved predecessors. With no terms the
// lead's own name is searched. The lead itself never counts as a hit.
func (s *Service) RunConflictCheck(ctx context.Context, orgID, actorID, leadID string, terms []string) (map[string]any, error) {
	lead, err := s.store.GetLead(ctx, orgID, leadID)
	if err != nil {
		return nil, err
	}
	terms = normalizeTerms(terms)
	if len(terms) == 0 {
		terms = normalizeTerms([]string{lead.Name})
	}
	if len(terms) == 0 {
		return nil, validationError("At least one search term is required", nil)
	}

	hits := []store.ConflictHit{}
	seen := map[string]struct{}{}
	for _, term := range terms {
		matches, err := s.search.SearchParties(ctx, orgID, term, conflictSearchLimit)
		if err != nil {
			s.logger.Error("conflict search failed", "org_id", orgID, "lead_id", leadID, "error", err)
			return nil, domainError(http.StatusBadGateway, codeExternal, "Conflict search unavailable", nil)
		}
		for _, match := range matches {
			if match.EntityType == search.EntityLead && match.EntityID == lead.ID {
				continue
			}
			key := match.EntityType + "|" + match.EntityID + "|" + match.Role + "|" + strings.ToLower(match.Name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			hits = append(hits, store.ConflictHit{
				Term:       term,
				EntityType: match.EntityType,
				EntityID:   match.EntityID,
				Name:       match.Name,
				Role:       match.Role,
			})
		}
	}

	status := conflictNone
	if len(hits) > 0 {
		status = conflictFound
	}
	check := store.ConflictCheck{
		ID:             s.newID("cfc"),
		OrganizationID: orgID,
		SubjectType:    search.EntityLead,
		SubjectID:      lead.ID,
		SearchTerms:    terms,
		Status:         status,
		Result:         hits,
		RunBy:          actorID,
		CreatedAt:      s.now(),
	}
	if err := s.store.ReplaceConflictCheck(ctx, check); err != nil {
		return nil, err
	}
	s.audit(ctx, orgID, actorID, "conflict_check.run", "lead", lead.ID, map[string]any{
		"checkId": check.ID,
		"status":  status,
		"hits":    len(hits),
	})
	return conflictCheckView(check), nil
}

func (s *Service) ListConflictChecks(ctx context.Context, orgID, leadID string) ([]map[string]any, error) {
	if _, err := s.store.GetLead(ctx, orgID, leadID); err != nil {
		return nil, err
	}
	checks, err := s.store.ListConflictChecks(ctx, orgID, search.EntityLead, leadID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(checks))
	for _, check := range checks {
		items = append(items, conflictCheckView(check))
	}
	return items, nil
}

// ResolveConflictCheck clears a CONFLICT_FOUND check after review.
func (s *Service) ResolveConflictCheck(ctx context.Context, orgID, actorID, checkID, notes string) (map[string]any, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, validationError("Resolution notes are required", nil)
	}
	check, err := s.store.GetConflictCheck(ctx, orgID, checkID)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.ResolveConflictCheck(ctx, orgID, checkID, actorID, notes)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainError(http.StatusConflict, codeIllegalTransition,
			fmt.Sprintf("Only %s checks can be resolved", conflictFound), map[string]any{"status": check.Status})
	}
	s.audit(ctx, orgID, actorID, "conflict_check.resolve", check.SubjectType, check.SubjectID, map[string]any{"checkId": checkID})

	resolved, err := s.store.GetConflictCheck(ctx, orgID, checkID)
	if err != nil {
		return nil, err
	}
	return conflictCheckView(resolved), nil
}

// ConvertLeadToMatter opens a matter for a lead whose latest conflict check is
// clear or resolved, and marks the lead CONVERTED in the same transaction.
func (s *Service) ConvertLeadToMatter(ctx context.Context, orgID, actorID, leadID string, input ConvertLeadInput) (map[string]any, error) {
	lead, err := s.store.GetLead(ctx, orgID, leadID)
	if err != nil {
		return nil, err
	}
	if lead.Status == leadStatusConverted {
		return nil, domainError(http.StatusConflict, codeIllegalTransition, "Lead is already converted", map[string]any{"matterId": lead.MatterID})
	}

	check, err := s.store.LatestConflictCheck(ctx, orgID, search.EntityLead, leadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, validationError("Run a conflict check before converting this lead", nil)
	}
	if err != nil {
		return nil, err
	}
	if check.Status != conflictNone && check.Status != conflictResolved {
		return nil, validationError("The latest conflict check has unresolved conflicts", map[string]any{
			"checkId": check.ID,
			"status":  check.Status,
		})
	}

	if input.ResponsibleAttorneyID != "" {
		if _, err := s.store.GetUser(ctx, orgID, input.ResponsibleAttorneyID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, validationError("Responsible attorney not found", nil)
			}
			return nil, err
		}
	}

	practiceArea := firstNonEmpty(input.PracticeArea, lead.PracticeArea)
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = lead.Name
		if practiceArea != "" {
			title += " - " + practiceArea
		}
	}
	now := s.now()
	matter := store.Matter{
		ID:                    s.newID("mat"),
		OrganizationID:        orgID,
		Title:                 title,
		ClientName:            lead.Name,
		OpposingParties:       normalizeTerms(input.OpposingParties),
		PracticeArea:          practiceArea,
		Description:           firstNonEmpty(input.Description, lead.Description),
		Status:                matterOpen,
		LeadID:                lead.ID,
		ResponsibleAttorneyID: input.ResponsibleAttorneyID,
		OpenedAt:              now,
		UpdatedAt:             now,
	}
	ok, err := s.store.ConvertLeadToMatter(ctx, matter)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainError(http.StatusConflict, codeIllegalTransition, "Lead is already converted", nil)
	}

	s.indexParties(ctx, search.MatterParties(matter))
	s.audit(ctx, orgID, actorID, "lead.convert", "lead", lead.ID, map[string]any{"matterId": matter.ID, "checkId": check.ID})
	s.publishMatterOpened(ctx, matter)
	return matterView(matter), nil
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := map[string]struct{}{}
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, term)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
