package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"lexdesk/api/internal/auth"
	"lexdesk/api/internal/store"
)

func userStore(role string) *fakeStore {
	return &fakeStore{
		getUserFn: func(_ context.Context, orgID, id string) (store.User, error) {
			return store.User{ID: id, OrganizationID: orgID, DisplayName: "Ada", Role: role}, nil
		},
	}
}

func bearerFor(t *testing.T, svc *Service, role string) string {
	t.Helper()
	token, _, err := svc.tokens.Issue("user-1", "org-1", "Ada", role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + token
}

func doRequest(t *testing.T, svc *Service, method, path, authHeader string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	NewHTTPServer(svc, "*").Handler().ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
	return response
}

func TestHealthEndpoint(t *testing.T) {
	svc := newTestService(&fakeStore{})

	rr := doRequest(t, svc, http.MethodGet, "/api/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ok := decodeResponse(t, rr)["ok"]; ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS origin=*, got %v", origin)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantCode   int
		wantStatus string
	}{
		{name: "database healthy", wantCode: http.StatusOK, wantStatus: "ready"},
		{name: "database down", pingErr: errors.New("connection refused"), wantCode: http.StatusServiceUnavailable, wantStatus: "not_ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&fakeStore{pingFn: func(context.Context) error { return tt.pingErr }})

			rr := doRequest(t, svc, http.MethodGet, "/api/ready", "", nil)
			if rr.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rr.Code)
			}
			if status := decodeResponse(t, rr)["status"]; status != tt.wantStatus {
				t.Errorf("expected status=%s, got %v", tt.wantStatus, status)
			}
		})
	}
}

func TestOptionsRequest(t *testing.T) {
	svc := newTestService(&fakeStore{})

	rr := doRequest(t, svc, http.MethodOptions, "/api/matters", "", nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204 for OPTIONS, got %d", rr.Code)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	svc := newTestService(userStore("admin"))

	for _, header := range []string{"", "Bearer not-a-jwt"} {
		rr := doRequest(t, svc, http.MethodGet, "/api/matters", header, nil)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rr.Code)
		}
		if code := decodeResponse(t, rr)["code"]; code != codeUnauthorized {
			t.Fatalf("expected %s, got %v", codeUnauthorized, code)
		}
	}
}

func TestLoginIssuesSession(t *testing.T) {
	hash, err := auth.HashPassword("correct-horse-battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	fs := userStore("attorney")
	fs.getUserByEmailFn = func(context.Context, string) (store.User, error) {
		return store.User{ID: "user-1", OrganizationID: "org-1", DisplayName: "Ada", Role: "attorney", PasswordHash: hash}, nil
	}
	svc := newTestService(fs)

	rr := doRequest(t, svc, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "wrong-password",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a wrong password, got %d", rr.Code)
	}

	rr = doRequest(t, svc, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "correct-horse-battery",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	response := decodeResponse(t, rr)
	token, _ := response["token"].(string)
	if token == "" || response["refreshToken"] == "" {
		t.Fatalf("expected tokens, got %v", response)
	}

	rr = doRequest(t, svc, http.MethodGet, "/api/me", "Bearer "+token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /api/me, got %d", rr.Code)
	}
	if role := decodeResponse(t, rr)["role"]; role != "attorney" {
		t.Fatalf("expected role attorney, got %v", role)
	}
}

func TestSessionEndpointSignedOut(t *testing.T) {
	svc := newTestService(&fakeStore{})

	rr := doRequest(t, svc, http.MethodGet, "/api/session", "Bearer garbage", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if authenticated := decodeResponse(t, rr)["authenticated"]; authenticated != false {
		t.Fatalf("expected authenticated=false, got %v", authenticated)
	}
}

func TestRBACDeniesWrites(t *testing.T) {
	tests := []struct {
		name   string
		role   string
		method string
		path   string
	}{
		{name: "viewer creates matter", role: "viewer", method: http.MethodPost, path: "/api/matters"},
		{name: "viewer reviews intake", role: "viewer", method: http.MethodPost, path: "/api/intake/submissions/sub-1/review"},
		{name: "intake converts lead", role: "intake", method: http.MethodPost, path: "/api/leads/lead-1/convert"},
		{name: "intake schedules event", role: "intake", method: http.MethodPost, path: "/api/calendar/events"},
		{name: "paralegal reads audit", role: "paralegal", method: http.MethodGet, path: "/api/audit"},
		{name: "attorney creates user", role: "attorney", method: http.MethodPost, path: "/api/users"},
		{name: "viewer generates document", role: "viewer", method: http.MethodPost, path: "/api/documents"},
		{name: "viewer bulk converts", role: "viewer", method: http.MethodPost, path: "/api/intake/submissions/bulk/convert"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(userStore(tt.role))

			rr := doRequest(t, svc, tt.method, tt.path, bearerFor(t, svc, tt.role), map[string]any{})
			if rr.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d: %s", rr.Code, rr.Body.String())
			}
			if code := decodeResponse(t, rr)["code"]; code != codeForbidden {
				t.Fatalf("expected %s, got %v", codeForbidden, code)
			}
		})
	}
}

func TestIntakeIllegalTransition(t *testing.T) {
	fs := userStore("paralegal")
	fs.getSubmissionFn = func(_ context.Context, orgID, id string) (store.Submission, error) {
		return store.Submission{ID: id, OrganizationID: orgID, Status: "REJECTED", Data: json.RawMessage(`{"name":"Jane"}`)}, nil
	}
	fs.updateSubmissionFn = func(context.Context, store.Submission, string) (bool, error) {
		t.Fatal("terminal submissions must not be written")
		return false, nil
	}
	svc := newTestService(fs)

	rr := doRequest(t, svc, http.MethodPost, "/api/intake/submissions/sub-1/review", bearerFor(t, svc, "paralegal"), map[string]string{"notes": "again"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
	response := decodeResponse(t, rr)
	if response["code"] != codeIllegalTransition {
		t.Fatalf("expected %s, got %v", codeIllegalTransition, response["code"])
	}
	details, _ := response["details"].(map[string]any)
	if details["from"] != "REJECTED" || details["to"] != "REVIEWED" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestIntakeReviewRecordsAudit(t *testing.T) {
	fs := userStore("intake")
	fs.getSubmissionFn = func(_ context.Context, orgID, id string) (store.Submission, error) {
		return store.Submission{ID: id, OrganizationID: orgID, Status: "PENDING", Data: json.RawMessage(`{"name":"Jane"}`)}, nil
	}
	svc := newTestService(fs)

	rr := doRequest(t, svc, http.MethodPost, "/api/intake/submissions/sub-1/review", bearerFor(t, svc, "intake"), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if status := decodeResponse(t, rr)["status"]; status != "REVIEWED" {
		t.Fatalf("expected REVIEWED, got %v", status)
	}
	if actions := fs.auditActions(); len(actions) != 1 || actions[0] != "intake.review" {
		t.Fatalf("expected intake.review audit entry, got %v", actions)
	}
}

func TestUnknownIntakeActionIsNotFound(t *testing.T) {
	svc := newTestService(userStore("admin"))

	rr := doRequest(t, svc, http.MethodPost, "/api/intake/submissions/sub-1/archive", bearerFor(t, svc, "admin"), nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	svc := newTestService(userStore("attorney"))

	req := httptest.NewRequest(http.MethodPost, "/api/matters", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", bearerFor(t, svc, "attorney"))
	rr := httptest.NewRecorder()
	NewHTTPServer(svc, "*").Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if code := decodeResponse(t, rr)["code"]; code != codeInvalidBody {
		t.Fatalf("expected %s, got %v", codeInvalidBody, code)
	}
}

func TestDamagesCalculatorEndpoint(t *testing.T) {
	svc := newTestService(userStore("viewer"))

	rr := doRequest(t, svc, http.MethodPost, "/api/calculators/damages", bearerFor(t, svc, "viewer"), map[string]any{
		"pastMedical":             "10000",
		"multiplier":              "2",
		"comparativeFaultPercent": "10",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if net := decodeResponse(t, rr)["netDamages"]; net != "27000" {
		t.Fatalf("expected netDamages 27000, got %v", net)
	}

	rr = doRequest(t, svc, http.MethodPost, "/api/calculators/damages", bearerFor(t, svc, "viewer"), map[string]any{
		"pastMedical": "-1",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for negative input, got %d", rr.Code)
	}
}

func TestConvertLeadBlockedByConflict(t *testing.T) {
	fs := userStore("attorney")
	fs.getLeadFn = func(context.Context, string, string) (store.Lead, error) { return testLead(), nil }
	fs.latestConflictCheckFn = func(context.Context, string, string, string) (store.ConflictCheck, error) {
		return store.ConflictCheck{ID: "cfc-1", Status: conflictFound}, nil
	}
	svc := newTestService(fs)

	rr := doRequest(t, svc, http.MethodPost, "/api/leads/lead-1/convert", bearerFor(t, svc, "attorney"), map[string]any{})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestListEventsRejectsBadRange(t *testing.T) {
	svc := newTestService(userStore("viewer"))

	rr := doRequest(t, svc, http.MethodGet, "/api/calendar/events?from=yesterday", bearerFor(t, svc, "viewer"), nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for an unparsable time, got %d", rr.Code)
	}

	rr = doRequest(t, svc, http.MethodGet, "/api/calendar/events?from=2026-01-01T00:00:00Z&to=2027-06-01T00:00:00Z", bearerFor(t, svc, "viewer"), nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a range over a year, got %d", rr.Code)
	}
}
