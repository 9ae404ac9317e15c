package app

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lexdesk/api/internal/rbac"
	"lexdesk/api/internal/store"
)

func (s *HTTPServer) adminRoutes(r chi.Router) {
	r.Route("/api/users", func(r chi.Router) {
		r.With(s.require(rbac.ActionRead)).Get("/", s.handleListUsers)
		r.With(s.require(rbac.ActionAdmin)).Post("/", s.handleCreateUser)
		r.With(s.require(rbac.ActionAdmin)).Put("/{id}/role", s.handleUpdateUserRole)
	})

	r.With(s.require(rbac.ActionViewAudit)).Get("/api/audit", s.handleListAudit)

	// Notifications belong to the caller, so every role may read its own.
	r.Route("/api/notifications", func(r chi.Router) {
		r.Get("/", s.handleListNotifications)
		r.Post("/read-all", s.handleMarkAllNotificationsRead)
		r.Post("/{id}/read", s.handleMarkNotificationRead)
	})
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	users, err := s.service.ListUsers(r.Context(), session.OrganizationID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users})
}

func (s *HTTPServer) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var body CreateUserInput
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.CreateUser(r.Context(), session.OrganizationID, session.UserID, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var body struct {
		Role string `json:"role"`
	}
	if !decodeOrFail(w, r, &body) {
		return
	}
	result, err := s.service.UpdateUserRole(r.Context(), session.OrganizationID, session.UserID, chi.URLParam(r, "id"), body.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleListAudit(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	query := r.URL.Query()
	result, err := s.service.ListAuditEntries(r.Context(), session.OrganizationID, store.AuditFilter{
		EntityType: query.Get("entityType"),
		EntityID:   query.Get("entityId"),
		ActorID:    query.Get("actorId"),
		Cursor:     query.Get("cursor"),
		Limit:      queryInt(r, "limit"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	items, err := s.service.ListNotifications(r.Context(), session.OrganizationID, session.UserID, unread, queryInt(r, "limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	if err := s.service.MarkNotificationRead(r.Context(), session.OrganizationID, session.UserID, chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	updated, err := s.service.MarkAllNotificationsRead(r.Context(), session.OrganizationID, session.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}
