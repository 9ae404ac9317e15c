package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"lexdesk/api/internal/rbac"
	"lexdesk/api/internal/store"
)

func (s *HTTPServer) leadRoutes(r chi.Router) {
	r.Route("/api/leads", func(r chi.Router) {
		r.With(s.require(rbac.ActionRead)).Get("/", s.handleListLeads)
		r.With(s.require(rbac.ActionRead)).Get("/{id}", s.handleGetLead)
		r.With(s.require(rbac.ActionReviewIntake)).Put("/{id}/status", s.handleUpdateLeadStatus)
		r.With(s.require(rbac.ActionRead)).Get("/{id}/conflict-checks", s.handleListConflictChecks)
		r.With(s.require(rbac.ActionConvertIntake)).Post("/{id}/conflict-checks", s.handleRunConflictCheck)
		r.With(s.require(rbac.ActionManageMatters)).Post("/{id}/convert", s.handleConvertLead)
	})
	r.With(s.require(rbac.ActionManageMatters)).Post("/api/conflict-checks/{id}/resolve", s.handleResolveConflictCheck)
}

func (s *HTTPServer) handleListLeads(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	query := r.URL.Query()
	result, err := s.service.ListLeads(r.Context(), session.OrganizationID, store.LeadFilter{
		Status: query.Get("status"),
		Cursor: query.Get("cursor"),
		Limit:  queryInt(r, "limit"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleGetLead(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	result, err := s.service.GetLead(r.Context(), session.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleUpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var body struct {
		Status string `json:"status"`
	}
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.UpdateLeadStatus(r.Context(), session.OrganizationID, session.UserID, chi.URLParam(r, "id"), body.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleRunConflictCheck(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var body struct {
		Terms []string `json:"terms"`
	}
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.RunConflictCheck(r.Context(), session.OrganizationID, session.UserID, chi.URLParam(r, "id"), body.Terms)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleListConflictChecks(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	checks, err := s.service.ListConflictChecks(r.Context(), session.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": checks})
}

func (s *HTTPServer) handleResolveConflictCheck(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var body struct {
		Notes string `json:"notes"`
	}
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.ResolveConflictCheck(r.Context(), session.OrganizationID, session.UserID, chi.URLParam(r, "id"), body.Notes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleConvertLead(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var body ConvertLeadInput
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.ConvertLeadToMatter(r.Context(), session.OrganizationID, session.UserID, chi.URLParam(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
