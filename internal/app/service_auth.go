package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"lexdesk/api/internal/auth"
	"lexdesk/api/internal/rbac"
	"lexdesk/api/internal/session"
	"lexdesk/api/internal/store"
)

type CreateUserInput struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

// Login checks email and password. Unknown emails and deactivated users fail
// the same way as a wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, auth.ErrInvalidCredentials
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if user.DeactivatedAt != nil {
		return Session{}, auth.ErrInvalidCredentials
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return Session{}, err
	}

	sess, err := s.issueSession(ctx, user)
	if err != nil {
		return Session{}, err
	}
	s.audit(ctx, user.OrganizationID, user.ID, "auth.login", "user", user.ID, nil)
	return sess, nil
}

// Refresh rotates a refresh token: the presented token is consumed and a new
// pair is issued for the user's current role.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, session.ErrSessionNotFound
	}
	stored, err := s.sessions.Consume(ctx, auth.HashToken(refreshToken))
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUser(ctx, stored.OrganizationID, stored.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, session.ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if user.DeactivatedAt != nil {
		return Session{}, session.ErrSessionNotFound
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	token, claims, err := s.tokens.Issue(user.ID, user.OrganizationID, user.DisplayName, user.Role)
	if err != nil {
		return Session{}, err
	}
	refresh, err := auth.NewRefreshToken()
	if err != nil {
		return Session{}, err
	}
	now := s.now()
	if err := s.sessions.Save(ctx, auth.HashToken(refresh), session.Session{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		DisplayName:    user.DisplayName,
		Role:           user.Role,
		CreatedAt:      now,
	}, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, fmt.Errorf("save refresh session: %w", err)
	}

	return Session{
		Token:          token,
		RefreshToken:   refresh,
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		UserName:       user.DisplayName,
		Role:           user.Role,
		ExpiresAt:      claims.ExpiresAt.Time,
	}, nil
}

// SessionFromToken validates an access token and reloads the user so role
// changes and deactivation apply immediately.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUser(ctx, claims.OrganizationID, claims.UserID())
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	if user.DeactivatedAt != nil {
		return Session{}, auth.ErrInvalidToken
	}

	sess := Session{
		Token:          token,
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		UserName:       user.DisplayName,
		Role:           user.Role,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

func (s *Service) Logout(ctx context.Context, sess Session, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, auth.HashToken(refreshToken)); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	s.audit(ctx, sess.OrganizationID, sess.UserID, "auth.logout", "user", sess.UserID, nil)
	return nil
}

// Bootstrap creates the first organization, its admin and a default intake form
// when configured. It does nothing once the organization exists.
func (s *Service) Bootstrap(ctx context.Context) error {
	name := strings.TrimSpace(s.cfg.BootstrapOrgName)
	email := strings.TrimSpace(s.cfg.BootstrapAdminEmail)
	if name == "" || email == "" {
		return nil
	}
	slug := slugify(name)
	if _, err := s.store.GetOrganizationBySlug(ctx, slug); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("lookup organization: %w", err)
	}

	hash, err := auth.HashPassword(s.cfg.BootstrapAdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap admin password: %w", err)
	}
	org := store.Organization{ID: s.newID("org"), Name: name, Slug: slug}
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	admin := store.User{
		ID:                 s.newID("usr"),
		OrganizationID:     org.ID,
		Email:              strings.ToLower(email),
		DisplayName:        "Administrator",
		PasswordHash:       hash,
		Role:               string(rbac.RoleAdmin),
		EmailNotifications: true,
	}
	if err := s.store.InsertUser(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	form := store.IntakeForm{ID: s.newID("form"), OrganizationID: org.ID, Name: "General intake", Active: true}
	if err := s.store.InsertIntakeForm(ctx, form); err != nil {
		return fmt.Errorf("create intake form: %w", err)
	}
	s.logger.Info("bootstrapped organization", "org_id", org.ID, "slug", slug, "admin_email", admin.Email, "form_id", form.ID)
	return nil
}

func (s *Service) CreateUser(ctx context.Context, orgID, actorID string, input CreateUserInput) (map[string]any, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	displayName := strings.TrimSpace(input.DisplayName)
	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = string(rbac.RoleViewer)
	}

	problems := map[string]string{}
	if !strings.Contains(email, "@") {
		problems["email"] = "must be a valid email address"
	}
	if displayName == "" {
		problems["displayName"] = "is required"
	}
	if !rbac.Valid(role) {
		problems["role"] = "must be one of viewer, intake, paralegal, attorney, admin"
	}
	if len(problems) > 0 {
		return nil, validationError("Invalid user", map[string]any{"fields": problems})
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := store.User{
		ID:                 s.newID("usr"),
		OrganizationID:     orgID,
		Email:              email,
		DisplayName:        displayName,
		PasswordHash:       hash,
		Role:               role,
		EmailNotifications: true,
		CreatedAt:          s.now(),
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, domainError(http.StatusConflict, codeConflict, "A user with this email already exists", nil)
		}
		return nil, err
	}
	s.audit(ctx, orgID, actorID, "user.create", "user", user.ID, map[string]any{"email": email, "role": role})
	return userView(user), nil
}

func (s *Service) ListUsers(ctx context.Context, orgID string) ([]map[string]any, error) {
	users, err := s.store.ListUsers(ctx, orgID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, userView(user))
	}
	return items, nil
}

// UpdateUserRole changes a role and revokes the user's refresh sessions so the
// new role is picked up on next login.
func (s *Service) UpdateUserRole(ctx context.Context, orgID, actorID, userID, role string) (map[string]any, error) {
	if !rbac.Valid(role) {
		return nil, validationError("Unknown role", map[string]any{"role": role})
	}
	if userID == actorID {
		return nil, validationError("You cannot change your own role", nil)
	}
	if err := s.store.UpdateUserRole(ctx, orgID, userID, role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError("User")
		}
		return nil, err
	}
	if err := s.sessions.RevokeUser(ctx, userID); err != nil {
		s.logger.Warn("revoke sessions after role change", "org_id", orgID, "user_id", userID, "error", err)
	}
	user, err := s.store.GetUser(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, orgID, actorID, "user.role_change", "user", userID, map[string]any{"role": role})
	return userView(user), nil
}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
