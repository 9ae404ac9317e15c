package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"lexdesk/api/internal/ai"
	"lexdesk/api/internal/blob"
	"lexdesk/api/internal/export"
	"lexdesk/api/internal/outbox"
	"lexdesk/api/internal/store"
)

const (
	documentDraft  = "DRAFT"
	documentFailed = "FAILED"

	EventDocumentGenerated = "DOCUMENT_GENERATED"
	EventDocumentFailed    = "DOCUMENT_GENERATION_FAILED"

	defaultHistoryLimit = 50
)

var placeholderPattern = regexp.MustCompile(`\{\{-?\s*\.([A-Za-z_][A-Za-z0-9_]*)\s*-?\}\}`)

type TemplateInput struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	DocumentType string   `json:"documentType"`
	Body         string   `json:"body"`
	Variables    []string `json:"variables"`
}

type GenerateDocumentInput struct {
	MatterID   string            `json:"matterId"`
	TemplateID string            `json:"templateId"`
	Title      string            `json:"title"`
	Variables  map[string]string `json:"variables"`
}

type UpdateDocumentInput struct {
	Title   *string `json:"title"`
	Content string  `json:"content"`
	Message string  `json:"message"`
}

// ExportOutput holds either an uploaded object with a download URL or, without
// object storage, the rendered file itself.
type ExportOutput struct {
	Object *blob.Object
	File   *export.Result
}

func (s *Service) CreateTemplate(ctx context.Context, orgID, actorID string, input TemplateInput) (map[string]any, error) {
	now := s.now()
	tmpl := store.PromptTemplate{
		ID:             s.newID("tpl"),
		OrganizationID: orgID,
		CreatedBy:      actorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := applyTemplateInput(&tmpl, input); err != nil {
		return nil, err
	}
	if err := s.store.InsertPromptTemplate(ctx, tmpl); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, domainError(http.StatusConflict, codeConflict, "A template with this name already exists", nil)
		}
		return nil, err
	}
	s.audit(ctx, orgID, actorID, "template.create", "prompt_template", tmpl.ID, map[string]any{"name": tmpl.Name})
	return templateView(tmpl), nil
}

func (s *Service) UpdateTemplate(ctx context.Context, orgID, actorID, id string, input TemplateInput) (map[string]any, error) {
	tmpl, err := s.store.GetPromptTemplate(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := applyTemplateInput(&tmpl, input); err != nil {
		return nil, err
	}
	tmpl.UpdatedAt = s.now()
	if err := s.store.UpdatePromptTemplate(ctx, tmpl); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, domainError(http.StatusConflict, codeConflict, "A template with this name already exists", nil)
		}
		return nil, err
	}
	s.invalidateTemplate(ctx, orgID, id)
	s.audit(ctx, orgID, actorID, "template.update", "prompt_template", id, nil)
	return templateView(tmpl), nil
}

func (s *Service) DeleteTemplate(ctx context.Context, orgID, actorID, id string) error {
	if err := s.store.DeletePromptTemplate(ctx, orgID, id); err != nil {
		return err
	}
	s.invalidateTemplate(ctx, orgID, id)
	s.audit(ctx, orgID, actorID, "template.delete", "prompt_template", id, nil)
	return nil
}

func (s *Service) GetTemplate(ctx context.Context, orgID, id string) (map[string]any, error) {
	tmpl, err := s.loadTemplate(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return templateView(tmpl), nil
}

func (s *Service) ListTemplates(ctx context.Context, orgID string) ([]map[string]any, error) {
	templates, err := s.store.ListPromptTemplates(ctx, orgID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(templates))
	for _, tmpl := range templates {
		items = append(items, templateView(tmpl))
	}
	return items, nil
}

// loadTemplate reads through the Redis cache. Cache errors fall back to the database.
func (s *Service) loadTemplate(ctx context.Context, orgID, id string) (store.PromptTemplate, error) {
	if s.templates != nil {
		tmpl, ok, err := s.templates.Get(ctx, orgID, id)
		if err != nil {
			s.logger.Warn("template cache read failed", "org_id", orgID, "template_id", id, "error", err)
		} else if ok {
			return tmpl, nil
		}
	}
	tmpl, err := s.store.GetPromptTemplate(ctx, orgID, id)
	if err != nil {
		return store.PromptTemplate{}, err
	}
	if s.templates != nil {
		if err := s.templates.Set(ctx, tmpl); err != nil {
			s.logger.Warn("template cache write failed", "org_id", orgID, "template_id", id, "error", err)
		}
	}
	return tmpl, nil
}

func (s *Service) invalidateTemplate(ctx context.Context, orgID, id string) {
	if s.templates == nil {
		return
	}
	if err := s.templates.Invalidate(ctx, orgID, id); err != nil {
		s.logger.Warn("template cache invalidate failed", "org_id", orgID, "template_id", id, "error", err)
	}
}

func applyTemplateInput(tmpl *store.PromptTemplate, input TemplateInput) error {
	problems := map[string]string{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		problems["name"] = "is required"
	}
	if strings.TrimSpace(input.Body) == "" {
		problems["body"] = "is required"
	} else if _, err := template.New("prompt").Parse(input.Body); err != nil {
		problems["body"] = "is not a valid template: " + err.Error()
	}
	if len(problems) > 0 {
		return validationError("Invalid template", map[string]any{"fields": problems})
	}

	tmpl.Name = name
	tmpl.Description = strings.TrimSpace(input.Description)
	tmpl.DocumentType = strings.TrimSpace(input.DocumentType)
	tmpl.Body = input.Body
	tmpl.Variables = templateVariables(input.Body, input.Variables)
	return nil
}

// templateVariables merges declared variables with the {{.name}} placeholders
// found in body, sorted.
func templateVariables(body string, declared []string) []string {
	set := map[string]struct{}{}
	for _, name := range declared {
		if name = strings.TrimSpace(name); name != "" {
			set[name] = struct{}{}
		}
	}
	for _, match := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		set[match[1]] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// renderPrompt fills the template body. Every declared variable must have a
// non-blank value.
func renderPrompt(tmpl store.PromptTemplate, vars map[string]string) (string, error) {
	var missing []string
	for _, name := range tmpl.Variables {
		if strings.TrimSpace(vars[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", validationError("Missing template variables", map[string]any{"missing": missing})
	}

	parsed, err := template.New(tmpl.ID).Option("missingkey=error").Parse(tmpl.Body)
	if err != nil {
		return "", validationError("Template body is invalid", map[string]any{"error": err.Error()})
	}
	var out strings.Builder
	if err := parsed.Execute(&out, vars); err != nil {
		return "", validationError("Template could not be rendered", map[string]any{"error": err.Error()})
	}
	return out.String(), nil
}

// GenerateDocument renders the template prompt and asks the completion API for a
// draft. A failed completion is stored as a FAILED document and logged; the
// caller still receives the document.
func (s *Service) GenerateDocument(ctx context.Context, orgID, actorID, actorName string, input GenerateDocumentInput) (map[string]any, error) {
	matter, err := s.store.GetMatter(ctx, orgID, input.MatterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError("Matter")
		}
		return nil, err
	}
	tmpl, err := s.loadTemplate(ctx, orgID, input.TemplateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError("Template")
		}
		return nil, err
	}

	vars := matterVariables(matter)
	for key, value := range input.Variables {
		vars[key] = value
	}
	prompt, err := renderPrompt(tmpl, vars)
	if err != nil {
		return nil, err
	}

	now := s.now()
	doc := store.GeneratedDocument{
		ID:             s.newID("doc"),
		OrganizationID: orgID,
		MatterID:       matter.ID,
		TemplateID:     tmpl.ID,
		Title:          firstNonEmpty(input.Title, tmpl.Name+" - "+matter.Title),
		CreatedBy:      actorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	completion, err := s.complete(ctx, prompt)
	if err != nil {
		s.logger.Error("document generation failed",
			"org_id", orgID,
			"matter_id", matter.ID,
			"template_id", tmpl.ID,
			"document_id", doc.ID,
			"error_kind", codeExternal,
			"error", err,
		)
		doc.Status = documentFailed
		doc.Error = err.Error()
	} else {
		doc.Status = documentDraft
		doc.Content = completion.Text
		version, err := s.drafts.Commit(matter.ID, doc.ID, doc.Content, actorName, "Generate "+doc.Title)
		if err != nil {
			s.logger.Error("draft commit failed", "org_id", orgID, "document_id", doc.ID, "error", err)
		} else {
			doc.CommitHash = version.Hash
		}
	}

	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return nil, err
	}
	details := map[string]any{"templateId": tmpl.ID, "status": doc.Status}
	if completion.Model != "" {
		details["model"] = completion.Model
		details["promptTokens"] = completion.PromptTokens
		details["completionTokens"] = completion.CompletionTokens
	}
	s.audit(ctx, orgID, actorID, "document.generate", "document", doc.ID, details)
	s.publishDocumentResult(ctx, doc)
	return documentView(doc), nil
}

func (s *Service) complete(ctx context.Context, prompt string) (ai.Completion, error) {
	if s.ai == nil {
		return ai.Completion{}, ai.ErrNotConfigured
	}
	return s.ai.Complete(ctx, prompt)
}

func (s *Service) publishDocumentResult(ctx context.Context, doc store.GeneratedDocument) {
	event := outbox.Event{
		OrganizationID: doc.OrganizationID,
		RecipientID:    doc.CreatedBy,
		Type:           EventDocumentGenerated,
		Title:          "Document ready",
		Message:        fmt.Sprintf("%s is ready for review", doc.Title),
		Payload:        map[string]any{"documentId": doc.ID, "matterId": doc.MatterID},
		Channels:       outbox.Channels{InApp: true},
	}
	if doc.Status == documentFailed {
		event.Type = EventDocumentFailed
		event.Title = "Document generation failed"
		event.Message = fmt.Sprintf("%s could not be generated", doc.Title)
	}
	s.publish(ctx, event)
}

func matterVariables(matter store.Matter) map[string]string {
	return map[string]string{
		"matterTitle":     matter.Title,
		"clientName":      matter.ClientName,
		"practiceArea":    matter.PracticeArea,
		"opposingParties": strings.Join(matter.OpposingParties, ", "),
		"description":     matter.Description,
	}
}

func (s *Service) GetDocument(ctx context.Context, orgID, id string) (map[string]any, error) {
	doc, err := s.store.GetDocument(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return documentView(doc), nil
}

func (s *Service) ListDocuments(ctx context.Context, orgID, matterID string) ([]map[string]any, error) {
	if _, err := s.store.GetMatter(ctx, orgID, matterID); err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocuments(ctx, orgID, matterID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		items = append(items, documentView(doc))
	}
	return items, nil
}

// UpdateDocumentContent commits the edited text as a new draft version.
func (s *Service) UpdateDocumentContent(ctx context.Context, orgID, actorID, actorName, id string, input UpdateDocumentInput) (map[string]any, error) {
	if strings.TrimSpace(input.Content) == "" {
		return nil, validationError("Content is required", nil)
	}
	doc, err := s.store.GetDocument(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) != "" {
		doc.Title = strings.TrimSpace(*input.Title)
	}
	message := firstNonEmpty(input.Message, "Edit "+doc.Title)
	version, err := s.drafts.Commit(doc.MatterID, doc.ID, input.Content, actorName, message)
	if err != nil {
		return nil, fmt.Errorf("commit draft: %w", err)
	}
	doc.Content = input.Content
	doc.CommitHash = version.Hash
	doc.Status = documentDraft
	doc.Error = ""
	doc.UpdatedAt = s.now()
	if err := s.store.UpdateDocumentContent(ctx, doc); err != nil {
		return nil, err
	}
	s.audit(ctx, orgID, actorID, "document.update", "document", id, map[string]any{"commitHash": version.Hash})
	return documentView(doc), nil
}

func (s *Service) DocumentHistory(ctx context.Context, orgID, id string, limit int) ([]map[string]any, error) {
	doc, err := s.store.GetDocument(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	versions, err := s.drafts.History(doc.MatterID, doc.ID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(versions))
	for _, v := range versions {
		items = append(items, map[string]any{
			"hash":      v.Hash,
			"message":   v.Message,
			"author":    v.Author,
			"createdAt": formatTime(v.CreatedAt),
		})
	}
	return items, nil
}

func (s *Service) DocumentVersion(ctx context.Context, orgID, id, hash string) (map[string]any, error) {
	doc, err := s.store.GetDocument(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	content, err := s.drafts.Read(doc.MatterID, doc.ID, hash)
	if err != nil {
		return nil, err
	}
	return map[string]any{"documentId": doc.ID, "hash": hash, "content": content}, nil
}

// ExportDocument renders the document, or one of its versions, to PDF or DOCX.
// With object storage configured the file is uploaded and a presigned URL returned.
func (s *Service) ExportDocument(ctx context.Context, orgID, actorID, actorName, id, format, hash string) (ExportOutput, error) {
	parsed, ok := export.ParseFormat(format)
	if !ok {
		return ExportOutput{}, fmt.Errorf("%w: %q", export.ErrUnsupportedFormat, format)
	}
	doc, err := s.store.GetDocument(ctx, orgID, id)
	if err != nil {
		return ExportOutput{}, err
	}
	content := doc.Content
	version := doc.CommitHash
	if hash != "" {
		content, err = s.drafts.Read(doc.MatterID, doc.ID, hash)
		if err != nil {
			return ExportOutput{}, err
		}
		version = hash
	}
	if strings.TrimSpace(content) == "" {
		return ExportOutput{}, validationError("Document has no content to export", map[string]any{"status": doc.Status})
	}

	matter, err := s.store.GetMatter(ctx, orgID, doc.MatterID)
	if err != nil {
		return ExportOutput{}, err
	}
	documentType := ""
	if doc.TemplateID != "" {
		if tmpl, err := s.loadTemplate(ctx, orgID, doc.TemplateID); err == nil {
			documentType = tmpl.DocumentType
		}
	}

	file, err := s.exporter.Export(ctx, export.Request{
		Format:       parsed,
		Title:        doc.Title,
		MatterTitle:  matter.Title,
		ClientName:   matter.ClientName,
		DocumentType: documentType,
		Author:       actorName,
		UpdatedAt:    doc.UpdatedAt,
		Version:      version,
		Content:      content,
	})
	if err != nil {
		return ExportOutput{}, err
	}
	s.audit(ctx, orgID, actorID, "document.export", "document", doc.ID, map[string]any{"format": string(parsed), "version": version})

	if s.blobs == nil {
		return ExportOutput{File: file}, nil
	}
	key := blob.ExportKey(orgID, doc.ID, version, file.Filename)
	object, err := s.blobs.Put(ctx, key, file.Filename, file.MimeType, file.Data)
	if err != nil {
		s.logger.Error("export upload failed", "org_id", orgID, "document_id", doc.ID, "error", err)
		return ExportOutput{}, domainError(http.StatusBadGateway, codeExternal, "Export storage unavailable", nil)
	}
	return ExportOutput{Object: &object}, nil
}
