package app

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lexdesk/api/internal/rbac"
)

func (s *HTTPServer) documentRoutes(r chi.Router) {
	r.Route("/api/templates", func(r chi.Router) {
		r.With(s.require(rbac.ActionRead)).Get("/", s.handleListTemplates)
		r.With(s.require(rbac.ActionGenerateDocuments)).Post("/", s.handleCreateTemplate)
		r.With(s.require(rbac.ActionRead)).Get("/{id}", s.handleGetTemplate)
		r.With(s.require(rbac.ActionGenerateDocuments)).Put("/{id}", s.handleUpdateTemplate)
		r.With(s.require(rbac.ActionGenerateDocuments)).Delete("/{id}", s.handleDeleteTemplate)
	})

	r.Route("/api/documents", func(r chi.Router) {
		r.With(s.require(rbac.ActionGenerateDocuments)).Post("/", s.handleGenerateDocument)
		r.With(s.require(rbac.ActionRead)).Get("/{id}", s.handleGetDocument)
		r.With(s.require(rbac.ActionGenerateDocuments)).Put("/{id}", s.handleUpdateDocument)
		r.With(s.require(rbac.ActionRead)).Get("/{id}/history", s.handleDocumentHistory)
		r.With(s.require(rbac.ActionRead)).Get("/{id}/versions/{hash}", s.handleDocumentVersion)
		r.With(s.require(rbac.ActionRead)).Post("/{id}/export", s.handleExportDocument)
	})
}

func (s *HTTPServer) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	templates, err := s.service.ListTemplates(r.Context(), session.OrganizationID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": templates})
}

func (s *HTTPServer) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var body TemplateInput
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.CreateTemplate(r.Context(), session.OrganizationID, session.UserID, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	result, err := s.service.GetTemplate(r.Context(), session.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var body TemplateInput
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.UpdateTemplate(r.Context(), session.OrganizationID, session.UserID, chi.URLParam(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	if err := s.service.DeleteTemplate(r.Context(), session.OrganizationID, session.UserID, chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleGenerateDocument(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var body GenerateDocumentInput
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.GenerateDocument(r.Context(), session.OrganizationID, session.UserID, session.UserName, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	result, err := s.service.GetDocument(r.Context(), session.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var body UpdateDocumentInput
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.UpdateDocumentContent(r.Context(), session.OrganizationID, session.UserID, session.UserName, chi.URLParam(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleDocumentHistory(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	versions, err := s.service.DocumentHistory(r.Context(), session.OrganizationID, chi.URLParam(r, "id"), queryInt(r, "limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": versions})
}

func (s *HTTPServer) handleDocumentVersion(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	result, err := s.service.DocumentVersion(r.Context(), session.OrganizationID, chi.URLParam(r, "id"), chi.URLParam(r, "hash"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleExportDocument answers with a download URL when the file was stored,
// otherwise it streams the rendered file.
func (s *HTTPServer) handleExportDocument(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var body struct {
		Format  string `json:"format"`
		Version string `json:"version"`
	}
	if !decodeOrFail(w, r, &body) {
		return
	}
	out, err := s.service.ExportDocument(r.Context(), session.OrganizationID, session.UserID, session.UserName, chi.URLParam(r, "id"), body.Format, body.Version)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if out.Object != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"key":       out.Object.Key,
			"url":       out.Object.URL,
			"size":      out.Object.Size,
			"expiresAt": formatTime(out.Object.ExpiresAt),
		})
		return
	}

	header := w.Header()
	header.Set("Content-Type", out.File.MimeType)
	header.Set("Content-Length", strconv.Itoa(len(out.File.Data)))
	header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.File.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.File.Data)
}
