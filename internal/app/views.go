package app

import (
	"encoding/json"
	"time"

	"lexdesk/api/internal/store"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func userView(user store.User) map[string]any {
	return map[string]any{
		"id":                 user.ID,
		"email":              user.Email,
		"displayName":        user.DisplayName,
		"role":               user.Role,
		"emailNotifications": user.EmailNotifications,
		"createdAt":          formatTime(user.CreatedAt),
	}
}

func intakeFormView(form store.IntakeForm) map[string]any {
	return map[string]any{
		"id":        form.ID,
		"name":      form.Name,
		"active":    form.Active,
		"createdAt": formatTime(form.CreatedAt),
	}
}

func submissionView(sub store.Submission) map[string]any {
	data := json.RawMessage(`{}`)
	if len(sub.Data) > 0 {
		data = sub.Data
	}
	return map[string]any{
		"id":          sub.ID,
		"formId":      sub.FormID,
		"data":        data,
		"status":      sub.Status,
		"priority":    sub.Priority,
		"leadId":      sub.LeadID,
		"reviewedBy":  sub.ReviewedBy,
		"reviewedAt":  formatTimePtr(sub.ReviewedAt),
		"reviewNotes": sub.ReviewNotes,
		"createdAt":   formatTime(sub.CreatedAt),
		"updatedAt":   formatTime(sub.UpdatedAt),
	}
}

func submissionViews(subs []store.Submission) []map[string]any {
	items := make([]map[string]any, 0, len(subs))
	for _, sub := range subs {
		items = append(items, submissionView(sub))
	}
	return items
}

func leadView(lead store.Lead) map[string]any {
	return map[string]any{
		"id":           lead.ID,
		"submissionId": lead.SubmissionID,
		"name":         lead.Name,
		"email":        lead.Email,
		"phone":        lead.Phone,
		"practiceArea": lead.PracticeArea,
		"description":  lead.Description,
		"urgency":      lead.Urgency,
		"status":       lead.Status,
		"matterId":     lead.MatterID,
		"createdAt":    formatTime(lead.CreatedAt),
		"updatedAt":    formatTime(lead.UpdatedAt),
	}
}

func conflictCheckView(check store.ConflictCheck) map[string]any {
	hits := check.Result
	if hits == nil {
		hits = []store.ConflictHit{}
	}
	return map[string]any{
		"id":              check.ID,
		"subjectType":     check.SubjectType,
		"subjectId":       check.SubjectID,
		"searchTerms":     check.SearchTerms,
		"status":          check.Status,
		"hits":            hits,
		"runBy":           check.RunBy,
		"resolvedBy":      check.ResolvedBy,
		"resolvedAt":      formatTimePtr(check.ResolvedAt),
		"resolutionNotes": check.ResolutionNotes,
		"createdAt":       formatTime(check.CreatedAt),
	}
}

func matterView(matter store.Matter) map[string]any {
	parties := matter.OpposingParties
	if parties == nil {
		parties = []string{}
	}
	return map[string]any{
		"id":                    matter.ID,
		"title":                 matter.Title,
		"clientName":            matter.ClientName,
		"opposingParties":       parties,
		"practiceArea":          matter.PracticeArea,
		"description":           matter.Description,
		"status":                matter.Status,
		"leadId":                matter.LeadID,
		"responsibleAttorneyId": matter.ResponsibleAttorneyID,
		"openedAt":              formatTime(matter.OpenedAt),
		"closedAt":              formatTimePtr(matter.ClosedAt),
		"updatedAt":             formatTime(matter.UpdatedAt),
	}
}

func eventView(event store.CalendarEvent) map[string]any {
	additional := event.AdditionalReminders
	if additional == nil {
		additional = []int{}
	}
	fired := event.FiredReminders
	if fired == nil {
		fired = []int{}
	}
	return map[string]any{
		"id":                   event.ID,
		"ownerId":              event.OwnerID,
		"matterId":             event.MatterID,
		"title":                event.Title,
		"description":          event.Description,
		"location":             event.Location,
		"eventType":            event.EventType,
		"startTime":            formatTime(event.StartTime),
		"endTime":              formatTimePtr(event.EndTime),
		"reminderMinutes":      event.ReminderMinutes,
		"additionalReminders":  additional,
		"firedReminders":       fired,
		"primaryReminderFired": event.PrimaryReminderFired,
		"notifyEmail":          event.NotifyEmail,
		"notifyPush":           event.NotifyPush,
		"createdAt":            formatTime(event.CreatedAt),
		"updatedAt":            formatTime(event.UpdatedAt),
	}
}

func templateView(tmpl store.PromptTemplate) map[string]any {
	variables := tmpl.Variables
	if variables == nil {
		variables = []string{}
	}
	return map[string]any{
		"id":           tmpl.ID,
		"name":         tmpl.Name,
		"description":  tmpl.Description,
		"documentType": tmpl.DocumentType,
		"body":         tmpl.Body,
		"variables":    variables,
		"createdBy":    tmpl.CreatedBy,
		"createdAt":    formatTime(tmpl.CreatedAt),
		"updatedAt":    formatTime(tmpl.UpdatedAt),
	}
}

func documentView(doc store.GeneratedDocument) map[string]any {
	return map[string]any{
		"id":         doc.ID,
		"matterId":   doc.MatterID,
		"templateId": doc.TemplateID,
		"title":      doc.Title,
		"status":     doc.Status,
		"content":    doc.Content,
		"error":      doc.Error,
		"commitHash": doc.CommitHash,
		"createdBy":  doc.CreatedBy,
		"createdAt":  formatTime(doc.CreatedAt),
		"updatedAt":  formatTime(doc.UpdatedAt),
	}
}

func damageCalculationView(calc store.DamageCalculation) map[string]any {
	return map[string]any{
		"id":        calc.ID,
		"matterId":  calc.MatterID,
		"input":     calc.Input,
		"result":    calc.Result,
		"total":     calc.Total,
		"createdBy": calc.CreatedBy,
		"createdAt": formatTime(calc.CreatedAt),
	}
}

func auditView(entry store.AuditEntry) map[string]any {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	return map[string]any{
		"id":         entry.ID,
		"actorId":    entry.ActorID,
		"action":     entry.Action,
		"entityType": entry.EntityType,
		"entityId":   entry.EntityID,
		"details":    details,
		"createdAt":  formatTime(entry.CreatedAt),
	}
}

func notificationView(n store.Notification) map[string]any {
	payload := n.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return map[string]any{
		"id":        n.ID,
		"type":      n.Type,
		"title":     n.Title,
		"message":   n.Message,
		"payload":   payload,
		"read":      n.ReadAt != nil,
		"readAt":    formatTimePtr(n.ReadAt),
		"createdAt": formatTime(n.CreatedAt),
	}
}

// page wraps list results with the cursor of the next page.
func page(items []map[string]any, nextCursor string) map[string]any {
	if items == nil {
		items = []map[string]any{}
	}
	result := map[string]any{"items": items}
	if nextCursor != "" {
		result["nextCursor"] = nextCursor
	} else {
		result["nextCursor"] = nil
	}
	return result
}
