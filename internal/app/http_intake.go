package app

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lexdesk/api/internal/rbac"
	"lexdesk/api/internal/store"
)

func (s *HTTPServer) intakeRoutes(r chi.Router) {
	r.Route("/api/intake", func(r chi.Router) {
		r.With(s.require(rbac.ActionRead)).Get("/forms", s.handleListIntakeForms)
		r.With(s.require(rbac.ActionAdmin)).Post("/forms", s.handleCreateIntakeForm)

		r.With(s.require(rbac.ActionRead)).Get("/submissions", s.handleListSubmissions)
		r.With(s.require(rbac.ActionRead)).Get("/submissions/{id}", s.handleGetSubmission)
		r.With(s.require(rbac.ActionReviewIntake)).Put("/submissions/{id}", s.handleUpdateSubmission)
		r.With(s.require(rbac.ActionAdmin)).Delete("/submissions/{id}", s.handleDeleteSubmission)
		r.Post("/submissions/{id}/{action}", s.handleTransitionSubmission)
		r.Post("/submissions/bulk/{action}", s.handleBulkTransition)
	})
}

// intakeActionPermission maps a lifecycle action to the permission it needs.
func intakeActionPermission(action IntakeAction) rbac.Action {
	if action == IntakeConvert {
		return rbac.ActionConvertIntake
	}
	return rbac.ActionReviewIntake
}

func (s *HTTPServer) handlePublicSubmit(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidBody, "Request body too large or unreadable", nil)
		return
	}
	result, err := s.service.SubmitIntake(r.Context(), chi.URLParam(r, "formID"), raw)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleListIntakeForms(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	forms, err := s.service.ListIntakeForms(r.Context(), session.OrganizationID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": forms})
}

func (s *HTTPServer) handleCreateIntakeForm(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var body struct {
		Name string `json:"name"`
	}
	if !decodeOrFail(w, r, &body) {
		return
	}
	form, err := s.service.CreateIntakeForm(r.Context(), session.OrganizationID, session.UserID, body.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, form)
}

func (s *HTTPServer) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	query := r.URL.Query()
	result, err := s.service.ListSubmissions(r.Context(), session.OrganizationID, store.SubmissionFilter{
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

func (s *HTTPServer) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	result, err := s.service.GetSubmission(r.Context(), session.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleUpdateSubmission(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidBody, "Request body too large or unreadable", nil)
		return
	}
	result, err := s.service.UpdateSubmissionData(r.Context(), session.OrganizationID, session.UserID, chi.URLParam(r, "id"), raw)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleDeleteSubmission(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	if err := s.service.DeleteSubmission(r.Context(), session.OrganizationID, session.UserID, chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleTransitionSubmission(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	action, ok := ParseIntakeAction(chi.URLParam(r, "action"))
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "Not found", nil)
		return
	}
	if !s.service.Can(session.Role, intakeActionPermission(action)) {
		s.forbid(w, r, session, string(intakeActionPermission(action)))
		return
	}
	var body struct {
		Notes string `json:"notes"`
	}
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.TransitionSubmission(r.Context(), session.OrganizationID, session.UserID, chi.URLParam(r, "id"), action, body.Notes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleBulkTransition(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	action, ok := ParseIntakeAction(chi.URLParam(r, "action"))
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "Not found", nil)
		return
	}
	if !s.service.Can(session.Role, intakeActionPermission(action)) {
		s.forbid(w, r, session, string(intakeActionPermission(action)))
		return
	}
	var body struct {
		IDs   []string `json:"ids"`
		Notes string   `json:"notes"`
	}
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.BulkTransitionSubmissions(r.Context(), session.OrganizationID, session.UserID, body.IDs, action, body.Notes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
