package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"lexdesk/api/internal/damages"
	"lexdesk/api/internal/rbac"
	"lexdesk/api/internal/store"
)

func (s *HTTPServer) matterRoutes(r chi.Router) {
	r.Route("/api/matters", func(r chi.Router) {
		r.With(s.require(rbac.ActionRead)).Get("/", s.handleListMatters)
		r.With(s.require(rbac.ActionManageMatters)).Post("/", s.handleCreateMatter)
		r.With(s.require(rbac.ActionRead)).Get("/{id}", s.handleGetMatter)
		r.With(s.require(rbac.ActionManageMatters)).Put("/{id}/status", s.handleUpdateMatterStatus)
		r.With(s.require(rbac.ActionRead)).Get("/{id}/documents", s.handleListMatterDocuments)
		r.With(s.require(rbac.ActionRead)).Get("/{id}/damages", s.handleListDamageCalculations)
		r.With(s.require(rbac.ActionManageMatters)).Post("/{id}/damages", s.handleSaveDamageCalculation)
	})

	r.With(s.require(rbac.ActionRead)).Post("/api/calculators/damages", s.handleCalculateDamages)
	r.With(s.require(rbac.ActionRead)).Post("/api/calculators/sentencing", s.handleCalculateSentencing)
}

func (s *HTTPServer) handleListMatters(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	query := r.URL.Query()
	result, err := s.service.ListMatters(r.Context(), session.OrganizationID, store.MatterFilter{
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

func (s *HTTPServer) handleCreateMatter(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var body CreateMatterInput
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.CreateMatter(r.Context(), session.OrganizationID, session.UserID, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleGetMatter(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	result, err := s.service.GetMatter(r.Context(), session.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleUpdateMatterStatus(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var body struct {
		Status string `json:"status"`
	}
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.UpdateMatterStatus(r.Context(), session.OrganizationID, session.UserID, chi.URLParam(r, "id"), body.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleListMatterDocuments(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	docs, err := s.service.ListDocuments(r.Context(), session.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": docs})
}

func (s *HTTPServer) handleListDamageCalculations(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	calcs, err := s.service.ListDamageCalculations(r.Context(), session.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": calcs})
}

func (s *HTTPServer) handleSaveDamageCalculation(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var body damages.Input
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.SaveDamageCalculation(r.Context(), session.OrganizationID, session.UserID, chi.URLParam(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleCalculateDamages(w http.ResponseWriter, r *http.Request) {
	var body damages.Input
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.CalculateDamages(body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleCalculateSentencing(w http.ResponseWriter, r *http.Request) {
	var body damages.SentencingInput
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.CalculateOffenseLevel(body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) calendarRoutes(r chi.Router) {
	r.Route("/api/calendar/events", func(r chi.Router) {
		r.With(s.require(rbac.ActionRead)).Get("/", s.handleListEvents)
		r.With(s.require(rbac.ActionManageCalendar)).Post("/", s.handleCreateEvent)
		r.With(s.require(rbac.ActionRead)).Get("/{id}", s.handleGetEvent)
		r.With(s.require(rbac.ActionManageCalendar)).Put("/{id}", s.handleUpdateEvent)
		r.With(s.require(rbac.ActionManageCalendar)).Delete("/{id}", s.handleDeleteEvent)
	})
}

func (s *HTTPServer) handleListEvents(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	from, err := queryTime(r, "from")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	query := r.URL.Query()
	events, err := s.service.ListEvents(r.Context(), session.OrganizationID, store.EventRange{
		From:     from,
		To:       to,
		MatterID: query.Get("matterId"),
		OwnerID:  query.Get("ownerId"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": events})
}

func (s *HTTPServer) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var body CreateEventInput
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.CreateEvent(r.Context(), session.OrganizationID, session.UserID, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	result, err := s.service.GetEvent(r.Context(), session.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var body UpdateEventInput
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.UpdateEvent(r.Context(), session.OrganizationID, session.UserID, chi.URLParam(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	if err := s.service.DeleteEvent(r.Context(), session.OrganizationID, session.UserID, chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
