package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lexdesk/api/internal/outbox"
	"lexdesk/api/internal/store"
	"lexdesk/api/internal/util"
)

var (
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrLeadFieldsMissing = errors.New("submission lacks the fields required for a lead")
	ErrInvalidStatus     = errors.New("unknown submission status")
)

// TransitionError reports a status change the transition table does not allow.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move submission from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}

type LeadValidationError struct {
	Missing []string
}

func (e *LeadValidationError) Error() string {
	return "lead requires " + strings.Join(e.Missing, " and ")
}

func (e *LeadValidationError) Unwrap() error {
	return ErrLeadFieldsMissing
}

const (
	EventSubmitted  = "INTAKE_SUBMITTED"
	EventReviewed   = "INTAKE_REVIEWED"
	EventConverted  = "INTAKE_CONVERTED"
	EventRejected   = "INTAKE_REJECTED"
	EventMarkedSpam = "INTAKE_MARKED_SPAM"
)

type Store interface {
	GetSubmission(ctx context.Context, orgID, id string) (store.Submission, error)
	ListSubmissionsByIDs(ctx context.Context, orgID string, ids []string) ([]store.Submission, error)
	ListSubmissions(ctx context.Context, orgID string, filter store.SubmissionFilter) (store.Page[store.Submission], error)
	InsertSubmission(ctx context.Context, sub store.Submission) error
	UpdateSubmissionReview(ctx context.Context, sub store.Submission, expectedStatus string) (bool, error)
	UpdateSubmissionData(ctx context.Context, sub store.Submission, expectedStatus string) (bool, error)
	ConvertSubmission(ctx context.Context, sub store.Submission, expectedStatus string, lead store.Lead) (bool, error)
	DeleteSubmission(ctx context.Context, orgID, id string) error
}

// Manager drives submissions through their lifecycle. Every call is scoped to one
// organization; rows of other organizations behave as if absent.
type Manager struct {
	store     Store
	publisher outbox.Publisher
	logger    *slog.Logger
	now       func() time.Time
	newID     func(prefix string) string
}

func NewManager(st Store, publisher outbox.Publisher, logger *slog.Logger) *Manager {
	if publisher == nil {
		publisher = outbox.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     st,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     util.NewID,
	}
}

// Submit validates and scores a new payload and stores it as PENDING.
func (m *Manager) Submit(ctx context.Context, orgID, formID string, raw []byte) (store.Submission, error) {
	data, fields, err := ValidatePayload(raw)
	if err != nil {
		return store.Submission{}, err
	}
	now := m.now()
	sub := store.Submission{
		ID:             m.newID("sub"),
		OrganizationID: orgID,
		FormID:         formID,
		Data:           data,
		Status:         string(StatusPending),
		Priority:       Score(fields),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.store.InsertSubmission(ctx, sub); err != nil {
		return store.Submission{}, err
	}

	name := fields.Text(KeyName)
	if name == "" {
		name = "Anonymous"
	}
	m.publish(ctx, sub, EventSubmitted, "New intake submission",
		fmt.Sprintf("%s submitted an intake form (priority %d)", name, sub.Priority))
	return sub, nil
}

func (m *Manager) Get(ctx context.Context, orgID, id string) (store.Submission, error) {
	return m.store.GetSubmission(ctx, orgID, id)
}

func (m *Manager) List(ctx context.Context, orgID string, filter store.SubmissionFilter) (store.Page[store.Submission], error) {
	if filter.Status != "" {
		if _, ok := ParseStatus(filter.Status); !ok {
			return store.Page[store.Submission]{}, fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
		}
	}
	return m.store.ListSubmissions(ctx, orgID, filter)
}

// UpdateData replaces the payload of an open submission and re-scores it.
func (m *Manager) UpdateData(ctx context.Context, orgID, id string, raw []byte) (store.Submission, error) {
	data, fields, err := ValidatePayload(raw)
	if err != nil {
		return store.Submission{}, err
	}
	sub, err := m.store.GetSubmission(ctx, orgID, id)
	if err != nil {
		return store.Submission{}, err
	}
	if IsTerminal(Status(sub.Status)) {
		return store.Submission{}, fmt.Errorf("submission is %s and closed to edits: %w", sub.Status, ErrIllegalTransition)
	}

	sub.Data = data
	sub.Priority = Score(fields)
	sub.UpdatedAt = m.now()
	ok, err := m.store.UpdateSubmissionData(ctx, sub, sub.Status)
	if err != nil {
		return store.Submission{}, err
	}
	if !ok {
		return store.Submission{}, fmt.Errorf("submission %s changed concurrently: %w", id, ErrIllegalTransition)
	}
	return sub, nil
}

// Delete physically removes a submission. Reserved for administrative cleanup.
func (m *Manager) Delete(ctx context.Context, orgID, id string) error {
	return m.store.DeleteSubmission(ctx, orgID, id)
}

func (m *Manager) Review(ctx context.Context, orgID, id, actorID, notes string) (store.Submission, error) {
	return m.transition(ctx, orgID, id, actorID, notes, StatusReviewed)
}

// ConvertToLead creates a lead from the submission payload and links it back.
func (m *Manager) ConvertToLead(ctx context.Context, orgID, id, actorID, notes string) (store.Submission, error) {
	return m.transition(ctx, orgID, id, actorID, notes, StatusConvertedToLead)
}

func (m *Manager) Reject(ctx context.Context, orgID, id, actorID, notes string) (store.Submission, error) {
	return m.transition(ctx, orgID, id, actorID, notes, StatusRejected)
}

func (m *Manager) MarkSpam(ctx context.Context, orgID, id, actorID, notes string) (store.Submission, error) {
	return m.transition(ctx, orgID, id, actorID, notes, StatusSpam)
}

func (m *Manager) BulkReview(ctx context.Context, orgID string, ids []string, actorID, notes string) ([]store.Submission, error) {
	return m.bulk(ctx, orgID, ids, actorID, notes, StatusReviewed)
}

func (m *Manager) BulkConvertToLead(ctx context.Context, orgID string, ids []string, actorID, notes string) ([]store.Submission, error) {
	return m.bulk(ctx, orgID, ids, actorID, notes, StatusConvertedToLead)
}

func (m *Manager) BulkReject(ctx context.Context, orgID string, ids []string, actorID, notes string) ([]store.Submission, error) {
	return m.bulk(ctx, orgID, ids, actorID, notes, StatusRejected)
}

func (m *Manager) BulkMarkSpam(ctx context.Context, orgID string, ids []string, actorID, notes string) ([]store.Submission, error) {
	return m.bulk(ctx, orgID, ids, actorID, notes, StatusSpam)
}

func (m *Manager) transition(ctx context.Context, orgID, id, actorID, notes string, target Status) (store.Submission, error) {
	sub, err := m.store.GetSubmission(ctx, orgID, id)
	if err != nil {
		return store.Submission{}, err
	}
	return m.apply(ctx, sub, actorID, notes, target)
}

// bulk skips items that are illegal to move or fail lead validation. A store error
// aborts the batch; items already written stay written and are returned.
func (m *Manager) bulk(ctx context.Context, orgID string, ids []string, actorID, notes string, target Status) ([]store.Submission, error) {
	subs, err := m.store.ListSubmissionsByIDs(ctx, orgID, UniqueIDs(ids))
	if err != nil {
		return nil, err
	}

	updated := make([]store.Submission, 0, len(subs))
	for _, sub := range subs {
		next, err := m.apply(ctx, sub, actorID, notes, target)
		switch {
		case err == nil:
			updated = append(updated, next)
		case errors.Is(err, ErrIllegalTransition), errors.Is(err, ErrLeadFieldsMissing):
			m.logger.DebugContext(ctx, "bulk intake item skipped",
				"org_id", orgID,
				"submission_id", sub.ID,
				"target", string(target),
				"reason", err.Error(),
			)
		default:
			return updated, err
		}
	}
	return updated, nil
}

func (m *Manager) apply(ctx context.Context, sub store.Submission, actorID, notes string, target Status) (store.Submission, error) {
	from := Status(sub.Status)
	if !CanTransition(from, target) {
		return store.Submission{}, &TransitionError{From: from, To: target}
	}

	now := m.now()
	next := sub
	next.Status = string(target)
	next.ReviewedBy = actorID
	next.ReviewedAt = &now
	next.ReviewNotes = notes
	next.UpdatedAt = now

	var ok bool
	var err error
	if target == StatusConvertedToLead {
		var lead store.Lead
		lead, err = m.buildLead(next)
		if err != nil {
			return store.Submission{}, err
		}
		ok, err = m.store.ConvertSubmission(ctx, next, string(from), lead)
		next.LeadID = lead.ID
	} else {
		ok, err = m.store.UpdateSubmissionReview(ctx, next, string(from))
	}
	if err != nil {
		return store.Submission{}, err
	}
	if !ok {
		return store.Submission{}, fmt.Errorf("submission %s changed concurrently: %w", sub.ID, ErrIllegalTransition)
	}

	eventType, title, message := describe(next, target)
	m.publish(ctx, next, eventType, title, message)
	return next, nil
}

func (m *Manager) buildLead(sub store.Submission) (store.Lead, error) {
	fields, err := ParseFields(sub.Data)
	if err != nil {
		return store.Lead{}, &LeadValidationError{Missing: []string{"a readable payload"}}
	}
	description := fields.Text(KeyDescription)
	if description == "" {
		description = fields.Text(KeyIncidentDescription)
	}
	lead := store.Lead{
		ID:             m.newID("lead"),
		OrganizationID: sub.OrganizationID,
		SubmissionID:   sub.ID,
		Name:           fields.Text(KeyName),
		Email:          fields.Text(KeyEmail),
		Phone:          fields.Text(KeyPhone),
		PracticeArea:   fields.Text(KeyPracticeArea),
		Description:    description,
		Urgency:        fields.Text(KeyUrgency),
		Status:         "NEW",
		CreatedAt:      sub.UpdatedAt,
	}

	var missing []string
	if lead.Name == "" {
		missing = append(missing, "a name")
	}
	if lead.Email == "" && lead.Phone == "" {
		missing = append(missing, "an email or phone")
	}
	if len(missing) > 0 {
		return store.Lead{}, &LeadValidationError{Missing: missing}
	}
	return lead, nil
}

func describe(sub store.Submission, target Status) (eventType, title, message string) {
	switch target {
	case StatusReviewed:
		return EventReviewed, "Intake reviewed", fmt.Sprintf("Submission %s was reviewed", sub.ID)
	case StatusConvertedToLead:
		return EventConverted, "Intake converted to lead", fmt.Sprintf("Submission %s became lead %s", sub.ID, sub.LeadID)
	case StatusRejected:
		return EventRejected, "Intake rejected", fmt.Sprintf("Submission %s was rejected", sub.ID)
	default:
		return EventMarkedSpam, "Intake marked as spam", fmt.Sprintf("Submission %s was marked as spam", sub.ID)
	}
}

// publish never fails the caller; delivery problems are logged.
func (m *Manager) publish(ctx context.Context, sub store.Submission, eventType, title, message string) {
	payload := map[string]any{
		"submissionId": sub.ID,
		"status":       sub.Status,
		"priority":     sub.Priority,
	}
	if sub.LeadID != "" {
		payload["leadId"] = sub.LeadID
	}
	if sub.ReviewedBy != "" {
		payload["reviewedBy"] = sub.ReviewedBy
	}
	event := outbox.Event{
		ID:             m.newID("evt"),
		OrganizationID: sub.OrganizationID,
		Type:           eventType,
		Title:          title,
		Message:        message,
		Payload:        payload,
		Channels:       outbox.Channels{InApp: true, Email: eventType == EventSubmitted},
		CreatedAt:      m.now(),
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.WarnContext(ctx, "intake notification failed",
			"org_id", sub.OrganizationID,
			"submission_id", sub.ID,
			"event_type", eventType,
			"error", err,
		)
	}
}

// UniqueIDs trims ids and drops blanks and repeats, keeping first-seen order.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
