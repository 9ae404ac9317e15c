package app

import (
	"net/http"
)

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"token":          session.Token,
		"refreshToken":   session.RefreshToken,
		"expiresAt":      formatTime(session.ExpiresAt),
		"userId":         session.UserID,
		"userName":       session.UserName,
		"organizationId": session.OrganizationID,
		"role":           session.Role,
	}
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeOrFail(w, r, &body) {
		return
	}
	session, err := s.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeOrFail(w, r, &body) {
		return
	}
	session, err := s.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeOrFail(w, r, &body) {
		return
	}
	if err := s.service.Logout(r.Context(), sessionFrom(r.Context()), body.RefreshToken); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleSession never fails; an invalid token reads as signed out.
func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
		return
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated":  true,
		"userName":       session.UserName,
		"userId":         session.UserID,
		"organizationId": session.OrganizationID,
		"role":           session.Role,
	})
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"userId":         session.UserID,
		"userName":       session.UserName,
		"organizationId": session.OrganizationID,
		"role":           session.Role,
		"expiresAt":      formatTime(session.ExpiresAt),
	})
}
