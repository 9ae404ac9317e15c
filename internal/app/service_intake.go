package app

import (
	"context"
	"errors"
	"strings"

	"lexdesk/api/internal/intake"
	"lexdesk/api/internal/search"
	"lexdesk/api/internal/store"
)

// IntakeAction names a lifecycle transition requested over the API.
type IntakeAction string

const (
	IntakeReview  IntakeAction = "review"
	IntakeConvert IntakeAction = "convert"
	IntakeReject  IntakeAction = "reject"
	IntakeSpam    IntakeAction = "spam"
)

func ParseIntakeAction(value string) (IntakeAction, bool) {
	switch action := IntakeAction(strings.ToLower(strings.TrimSpace(value))); action {
	case IntakeReview, IntakeConvert, IntakeReject, IntakeSpam:
		return action, true
	default:
		return "", false
	}
}

type singleTransition func(ctx context.Context, orgID, id, actorID, notes string) (store.Submission, error)
type bulkTransition func(ctx context.Context, orgID string, ids []string, actorID, notes string) ([]store.Submission, error)

func (s *Service) intakeOps(action IntakeAction) (singleTransition, bulkTransition) {
	switch action {
	case IntakeReview:
		return s.intake.Review, s.intake.BulkReview
	case IntakeConvert:
		return s.intake.ConvertToLead, s.intake.BulkConvertToLead
	case IntakeReject:
		return s.intake.Reject, s.intake.BulkReject
	default:
		return s.intake.MarkSpam, s.intake.BulkMarkSpam
	}
}

func (s *Service) CreateIntakeForm(ctx context.Context, orgID, actorID, name string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("Form name is required", nil)
	}
	form := store.IntakeForm{
		ID:             s.newID("form"),
		OrganizationID: orgID,
		Name:           name,
		Active:         true,
		CreatedAt:      s.now(),
	}
	if err := s.store.InsertIntakeForm(ctx, form); err != nil {
		return nil, err
	}
	s.audit(ctx, orgID, actorID, "intake_form.create", "intake_form", form.ID, map[string]any{"name": name})
	return intakeFormView(form), nil
}

func (s *Service) ListIntakeForms(ctx context.Context, orgID string) ([]map[string]any, error) {
	forms, err := s.store.ListIntakeForms(ctx, orgID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(forms))
	for _, form := range forms {
		items = append(items, intakeFormView(form))
	}
	return items, nil
}

// SubmitIntake is the public entry point. The form id resolves the organization;
// unknown and inactive forms both read as not found.
func (s *Service) SubmitIntake(ctx context.Context, formID string, raw []byte) (map[string]any, error) {
	form, err := s.store.GetIntakeForm(ctx, formID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError("Form")
		}
		return nil, err
	}
	if !form.Active {
		return nil, notFoundError("Form")
	}
	sub, err := s.intake.Submit(ctx, form.OrganizationID, form.ID, raw)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": sub.ID, "status": sub.Status}, nil
}

func (s *Service) ListSubmissions(ctx context.Context, orgID string, filter store.SubmissionFilter) (map[string]any, error) {
	result, err := s.intake.List(ctx, orgID, filter)
	if err != nil {
		return nil, err
	}
	return page(submissionViews(result.Items), result.NextCursor), nil
}

func (s *Service) GetSubmission(ctx context.Context, orgID, id string) (map[string]any, error) {
	sub, err := s.intake.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return submissionView(sub), nil
}

func (s *Service) UpdateSubmissionData(ctx context.Context, orgID, actorID, id string, raw []byte) (map[string]any, error) {
	sub, err := s.intake.UpdateData(ctx, orgID, id, raw)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, orgID, actorID, "intake.update", "submission", id, map[string]any{"priority": sub.Priority})
	return submissionView(sub), nil
}

func (s *Service) DeleteSubmission(ctx context.Context, orgID, actorID, id string) error {
	if err := s.intake.Delete(ctx, orgID, id); err != nil {
		return err
	}
	s.audit(ctx, orgID, actorID, "intake.delete", "submission", id, nil)
	return nil
}

func (s *Service) TransitionSubmission(ctx context.Context, orgID, actorID, id string, action IntakeAction, notes string) (map[string]any, error) {
	single, _ := s.intakeOps(action)
	sub, err := single(ctx, orgID, id, actorID, notes)
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, orgID, actorID, action, sub)
	return submissionView(sub), nil
}

// BulkTransitionSubmissions returns only the submissions that moved; illegal
// items are skipped.
func (s *Service) BulkTransitionSubmissions(ctx context.Context, orgID, actorID string, ids []string, action IntakeAction, notes string) (map[string]any, error) {
	ids = intake.UniqueIDs(ids)
	if len(ids) == 0 {
		return nil, validationError("ids must not be empty", nil)
	}
	_, bulk := s.intakeOps(action)
	updated, err := bulk(ctx, orgID, ids, actorID, notes)
	if err != nil {
		return nil, err
	}
	for _, sub := range updated {
		s.afterTransition(ctx, orgID, actorID, action, sub)
	}
	return map[string]any{
		"updated":   submissionViews(updated),
		"requested": len(ids),
		"skipped":   len(ids) - len(updated),
	}, nil
}

func (s *Service) afterTransition(ctx context.Context, orgID, actorID string, action IntakeAction, sub store.Submission) {
	details := map[string]any{"status": sub.Status}
	if sub.LeadID != "" {
		details["leadId"] = sub.LeadID
	}
	s.audit(ctx, orgID, actorID, "intake."+string(action), "submission", sub.ID, details)

	if sub.Status != string(intake.StatusConvertedToLead) || sub.LeadID == "" {
		return
	}
	lead, err := s.store.GetLead(ctx, orgID, sub.LeadID)
	if err != nil {
		s.logger.Warn("load converted lead for indexing", "org_id", orgID, "lead_id", sub.LeadID, "error", err)
		return
	}
	s.indexParties(ctx, search.LeadParties(lead))
}
