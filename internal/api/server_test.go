package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/db"
	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/repository"
)

// stubSender records test sends instead of talking to an SMTP relay.
type stubSender struct {
	sent []sentMail
	err  error
}

type sentMail struct {
	to      string
	subject string
	html    string
}

func (s *stubSender) Send(to, subject, html string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{to: to, subject: subject, html: html})
	return nil
}

type testServer struct {
	srv    *Server
	sender *stubSender
	users  map[models.Role]*models.User
	keys   map[models.Role]string
}

// setupTestServer builds a server over a temp database with one user and
// token per role.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	users := repository.NewUserRepository(database.DB)
	tokens := repository.NewTokenRepository(database.DB)

	ts := &testServer{
		sender: &stubSender{},
		users:  map[models.Role]*models.User{},
		keys:   map[models.Role]string{},
	}

	for _, role := range models.Roles() {
		u := &models.User{
			Name:     string(role) + " User",
			Email:    string(role) + "@example.com",
			Role:     role,
			IsActive: true,
		}
		if err := users.Create(u, ""); err != nil {
			t.Fatalf("failed to create %s user: %v", role, err)
		}
		result, err := tokens.Create(u.ID, "test", nil)
		if err != nil {
			t.Fatalf("failed to create %s token: %v", role, err)
		}
		ts.users[role] = u
		ts.keys[role] = result.Key
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts.srv = NewServer(config.Default(), database, ts.sender, logger)

	return ts
}

// do performs a request as the given role. An empty role sends no token.
func (ts *testServer) do(t *testing.T, role models.Role, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reqBody)
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+ts.keys[role])
	}

	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v (body: %s)", err, rec.Body.String())
	}
	return out
}

func (ts *testServer) createTemplate(t *testing.T, name string) models.EmailTemplate {
	t.Helper()
	rec := ts.do(t, models.RoleAdmin, http.MethodPost, "/api/v1/email-templates", TemplateCreateRequest{
		Name:    name,
		Type:    "welcome",
		Subject: "Welcome, {{.FirstName}}!",
		Body:    "<h1>Hello {{.FirstName}}</h1>",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create template: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[models.EmailTemplate](t, rec)
}

func TestHealthNoAuth(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, "", http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	health := decodeBody[HealthResponse](t, rec)
	if health.Status != "ok" {
		t.Errorf("Status = %q, want ok", health.Status)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, "", http.MethodGet, "/api/v1/email-templates", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/email-templates", nil)
	req.Header.Set("Authorization", "Bearer odk_bogus")
	rec2 := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec2, req)
	if rec2.Code != http.StatusUnauthorized {
		t.Fatalf("bogus token status = %d, want 401", rec2.Code)
	}
}

func TestDeactivatedUserRejected(t *testing.T) {
	ts := setupTestServer(t)

	viewer := ts.users[models.RoleViewer]

	rec := ts.do(t, models.RoleAdmin, http.MethodPut, "/api/v1/users/"+viewer.ID+"/status", map[string]any{"is_active": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, models.RoleViewer, http.MethodGet, "/api/v1/email-templates", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("deactivated user status = %d, want 403", rec.Code)
	}
}

func TestXAPIKeyHeader(t *testing.T) {
	ts := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/email-templates", nil)
	req.Header.Set("X-API-Key", ts.keys[models.RoleAdmin])
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestRolePermissionMatrix(t *testing.T) {
	ts := setupTestServer(t)
	target := ts.users[models.RoleAgent]

	cases := []struct {
		name   string
		role   models.Role
		method string
		path   string
		body   any
		want   int
	}{
		{"viewer lists templates", models.RoleViewer, http.MethodGet, "/api/v1/email-templates", nil, http.StatusOK},
		{"viewer creates template", models.RoleViewer, http.MethodPost, "/api/v1/email-templates", TemplateCreateRequest{Name: "x", Type: "welcome", Subject: "s", Body: "b"}, http.StatusForbidden},
		{"agent creates template", models.RoleAgent, http.MethodPost, "/api/v1/email-templates", TemplateCreateRequest{Name: "x", Type: "welcome", Subject: "s", Body: "b"}, http.StatusForbidden},
		{"viewer lists users", models.RoleViewer, http.MethodGet, "/api/v1/users", nil, http.StatusForbidden},
		{"agent lists users", models.RoleAgent, http.MethodGet, "/api/v1/users", nil, http.StatusForbidden},
		{"manager lists users", models.RoleManager, http.MethodGet, "/api/v1/users", nil, http.StatusOK},
		{"manager changes role", models.RoleManager, http.MethodPut, "/api/v1/users/" + target.ID + "/role", UserRoleRequest{Role: models.RoleViewer}, http.StatusForbidden},
		{"manager changes status", models.RoleManager, http.MethodPut, "/api/v1/users/" + target.ID + "/status", map[string]any{"is_active": false}, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, tc.role, tc.method, tc.path, tc.body)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestUserListForbiddenMessage(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, models.RoleViewer, http.MethodGet, "/api/v1/users", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	resp := decodeBody[ErrorResponse](t, rec)
	if resp.Error != "Access denied" {
		t.Errorf("error = %q, want Access denied", resp.Error)
	}
}

func TestSelfRoleChangeForbidden(t *testing.T) {
	ts := setupTestServer(t)
	admin := ts.users[models.RoleAdmin]

	rec := ts.do(t, models.RoleAdmin, http.MethodPut, "/api/v1/users/"+admin.ID+"/role", UserRoleRequest{Role: models.RoleViewer})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 (body %s)", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, models.RoleAdmin, http.MethodPut, "/api/v1/users/"+admin.ID+"/status", map[string]any{"is_active": false})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("self status change = %d, want 403", rec.Code)
	}

	// Still an active admin afterwards
	rec = ts.do(t, models.RoleAdmin, http.MethodGet, "/api/v1/users", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin lost access after refused self change: %d", rec.Code)
	}
}

func TestUserRoleChange(t *testing.T) {
	ts := setupTestServer(t)
	target := ts.users[models.RoleAgent]

	rec := ts.do(t, models.RoleAdmin, http.MethodPut, "/api/v1/users/"+target.ID+"/role", UserRoleRequest{Role: models.RoleManager})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	updated := decodeBody[models.User](t, rec)
	if updated.Role != models.RoleManager {
		t.Errorf("Role = %q, want MANAGER", updated.Role)
	}

	rec = ts.do(t, models.RoleAdmin, http.MethodPut, "/api/v1/users/"+target.ID+"/role", UserRoleRequest{Role: "WIZARD"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown role status = %d, want 400", rec.Code)
	}

	rec = ts.do(t, models.RoleAdmin, http.MethodPut, "/api/v1/users/nonexistent/role", UserRoleRequest{Role: models.RoleViewer})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing user status = %d, want 404", rec.Code)
	}
}

func TestTemplateValidation(t *testing.T) {
	ts := setupTestServer(t)

	cases := []struct {
		name string
		req  TemplateCreateRequest
		want string
	}{
		{"missing name", TemplateCreateRequest{Type: "welcome", Subject: "s", Body: "b"}, "name is required"},
		{"missing type", TemplateCreateRequest{Name: "n", Subject: "s", Body: "b"}, "type is required"},
		{"missing subject", TemplateCreateRequest{Name: "n", Type: "welcome", Body: "b"}, "subject is required"},
		{"missing body", TemplateCreateRequest{Name: "n", Type: "welcome", Subject: "s"}, "body is required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, models.RoleAdmin, http.MethodPost, "/api/v1/email-templates", tc.req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			resp := decodeBody[ErrorResponse](t, rec)
			if resp.Error != tc.want {
				t.Errorf("error = %q, want %q", resp.Error, tc.want)
			}
		})
	}

	rec := ts.do(t, models.RoleAdmin, http.MethodPost, "/api/v1/email-templates", TemplateCreateRequest{
		Name: "n", Type: "nonsense", Subject: "s", Body: "b",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want 400", rec.Code)
	}

	rec = ts.do(t, models.RoleAdmin, http.MethodPost, "/api/v1/email-templates", TemplateCreateRequest{
		Name: "n", Type: "welcome", Subject: "{{.Broken", Body: "b",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("broken syntax status = %d, want 400", rec.Code)
	}
}

func TestTemplateCreateAndGet(t *testing.T) {
	ts := setupTestServer(t)

	created := ts.createTemplate(t, "Welcome Email")
	if created.Version != 1 {
		t.Errorf("Version = %d, want 1", created.Version)
	}

	rec := ts.do(t, models.RoleViewer, http.MethodGet, "/api/v1/email-templates/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	got := decodeBody[models.EmailTemplate](t, rec)
	if got.Name != "Welcome Email" {
		t.Errorf("Name = %q", got.Name)
	}

	rec = ts.do(t, models.RoleViewer, http.MethodGet, "/api/v1/email-templates/nonexistent", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing template status = %d, want 404", rec.Code)
	}
}

func TestTemplateDuplicateName(t *testing.T) {
	ts := setupTestServer(t)
	ts.createTemplate(t, "Welcome Email")

	rec := ts.do(t, models.RoleAdmin, http.MethodPost, "/api/v1/email-templates", TemplateCreateRequest{
		Name: "Welcome Email", Type: "welcome", Subject: "s", Body: "b",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate name status = %d, want 409", rec.Code)
	}
}

func TestTemplateUpdate(t *testing.T) {
	ts := setupTestServer(t)
	created := ts.createTemplate(t, "Welcome Email")

	rec := ts.do(t, models.RoleManager, http.MethodPut, "/api/v1/email-templates/"+created.ID, TemplateUpdateRequest{
		Subject:    "Welcome aboard, {{.FirstName}}!",
		ChangeNote: "friendlier subject",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}

	updated := decodeBody[models.EmailTemplate](t, rec)
	if updated.Version != 2 {
		t.Errorf("Version = %d, want 2", updated.Version)
	}
	if updated.Subject != "Welcome aboard, {{.FirstName}}!" {
		t.Errorf("Subject = %q", updated.Subject)
	}

	// Type is immutable
	rec = ts.do(t, models.RoleManager, http.MethodPut, "/api/v1/email-templates/"+created.ID, TemplateUpdateRequest{
		Type: "invoice",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("type change status = %d, want 400", rec.Code)
	}

	rec = ts.do(t, models.RoleManager, http.MethodPut, "/api/v1/email-templates/nonexistent", TemplateUpdateRequest{
		Subject: "s",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing template status = %d, want 404", rec.Code)
	}
}

func TestTemplateVersionHistory(t *testing.T) {
	ts := setupTestServer(t)
	created := ts.createTemplate(t, "Welcome Email")

	for i := 0; i < 2; i++ {
		rec := ts.do(t, models.RoleAdmin, http.MethodPut, "/api/v1/email-templates/"+created.ID, TemplateUpdateRequest{
			Subject: fmt.Sprintf("Subject rev %d", i+2),
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("update %d status = %d", i, rec.Code)
		}
	}

	rec := ts.do(t, models.RoleViewer, http.MethodGet, "/api/v1/email-templates/"+created.ID+"/versions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("versions status = %d", rec.Code)
	}

	resp := decodeBody[TemplateVersionsResponse](t, rec)
	if resp.Total != 3 {
		t.Fatalf("Total = %d, want 3", resp.Total)
	}
	if resp.Versions[0].Version != 3 {
		t.Errorf("first version = %d, want 3 (newest first)", resp.Versions[0].Version)
	}
}

func TestTemplateDeleteDefault(t *testing.T) {
	ts := setupTestServer(t)

	isDefault := true
	rec := ts.do(t, models.RoleAdmin, http.MethodPost, "/api/v1/email-templates", TemplateCreateRequest{
		Name: "Default Welcome", Type: "welcome", Subject: "s", Body: "b", IsDefault: &isDefault,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	created := decodeBody[models.EmailTemplate](t, rec)

	rec = ts.do(t, models.RoleAdmin, http.MethodDelete, "/api/v1/email-templates/"+created.ID, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("delete default status = %d, want 409 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestTemplateDelete(t *testing.T) {
	ts := setupTestServer(t)
	created := ts.createTemplate(t, "Welcome Email")

	rec := ts.do(t, models.RoleAdmin, http.MethodDelete, "/api/v1/email-templates/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}

	rec = ts.do(t, models.RoleAdmin, http.MethodGet, "/api/v1/email-templates/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestTemplateDuplicate(t *testing.T) {
	ts := setupTestServer(t)
	created := ts.createTemplate(t, "Welcome Email")

	rec := ts.do(t, models.RoleAdmin, http.MethodPost, "/api/v1/email-templates/"+created.ID+"/duplicate", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("duplicate status = %d, body %s", rec.Code, rec.Body.String())
	}

	clone := decodeBody[models.EmailTemplate](t, rec)
	if clone.Name != "Welcome Email (Copy)" {
		t.Errorf("clone Name = %q", clone.Name)
	}

	rec = ts.do(t, models.RoleAdmin, http.MethodPost, "/api/v1/email-templates/nonexistent/duplicate", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing template status = %d, want 404", rec.Code)
	}
}

func TestTemplatePreview(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, models.RoleViewer, http.MethodPost, "/api/v1/email-templates/preview", TemplatePreviewRequest{
		Subject: "Welcome, {{.first_name}}!",
		Body:    "<p>Hi {{.first_name}}</p>",
		Type:    "welcome",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[struct {
		Subject string `json:"subject"`
		HTML    string `json:"html"`
	}](t, rec)
	if resp.Subject == "Welcome, !" || resp.Subject == "" {
		t.Errorf("sample data not substituted into subject: %q", resp.Subject)
	}

	rec = ts.do(t, models.RoleViewer, http.MethodPost, "/api/v1/email-templates/preview", TemplatePreviewRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty preview status = %d, want 400", rec.Code)
	}
}

func TestTemplateTestSend(t *testing.T) {
	ts := setupTestServer(t)
	created := ts.createTemplate(t, "Welcome Email")

	rec := ts.do(t, models.RoleAgent, http.MethodPost, "/api/v1/email-templates/"+created.ID+"/test", TemplateTestRequest{To: "qa@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("test send status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[TemplateTestResponse](t, rec)
	if resp.To != "qa@example.com" {
		t.Errorf("To = %q, want qa@example.com", resp.To)
	}
	if len(ts.sender.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(ts.sender.sent))
	}

	// Empty address falls back to the caller
	rec = ts.do(t, models.RoleAgent, http.MethodPost, "/api/v1/email-templates/"+created.ID+"/test", TemplateTestRequest{})
	if rec.Code != http.StatusOK {
		t.Fatalf("fallback test send status = %d", rec.Code)
	}
	resp = decodeBody[TemplateTestResponse](t, rec)
	if resp.To != ts.users[models.RoleAgent].Email {
		t.Errorf("fallback To = %q, want %q", resp.To, ts.users[models.RoleAgent].Email)
	}

	// Test counter advanced
	rec = ts.do(t, models.RoleAgent, http.MethodGet, "/api/v1/email-templates/"+created.ID, nil)
	got := decodeBody[models.EmailTemplate](t, rec)
	if got.TestCount != 2 {
		t.Errorf("TestCount = %d, want 2", got.TestCount)
	}
}

func TestTemplateTestSendFailure(t *testing.T) {
	ts := setupTestServer(t)
	created := ts.createTemplate(t, "Welcome Email")
	ts.sender.err = fmt.Errorf("relay unreachable")

	rec := ts.do(t, models.RoleAgent, http.MethodPost, "/api/v1/email-templates/"+created.ID+"/test", TemplateTestRequest{To: "qa@example.com"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	// Failed sends do not count
	rec = ts.do(t, models.RoleAgent, http.MethodGet, "/api/v1/email-templates/"+created.ID, nil)
	got := decodeBody[models.EmailTemplate](t, rec)
	if got.TestCount != 0 {
		t.Errorf("TestCount = %d, want 0", got.TestCount)
	}
}

func TestTemplateTypeCatalog(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, models.RoleViewer, http.MethodGet, "/api/v1/email-templates/meta/types", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	resp := decodeBody[TemplateTypesResponse](t, rec)
	if len(resp.Types) == 0 {
		t.Fatal("empty type catalog")
	}

	keys := map[string]bool{}
	for _, tt := range resp.Types {
		keys[tt.Key] = true
	}
	for _, want := range []string{"welcome", "password_reset", "invoice", "custom"} {
		if !keys[want] {
			t.Errorf("catalog missing type %q", want)
		}
	}
}

func TestTemplateListFilters(t *testing.T) {
	ts := setupTestServer(t)
	ts.createTemplate(t, "Welcome Email")

	rec := ts.do(t, models.RoleAdmin, http.MethodPost, "/api/v1/email-templates", TemplateCreateRequest{
		Name: "Invoice Reminder", Type: "invoice", Subject: "s", Body: "b",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	rec = ts.do(t, models.RoleViewer, http.MethodGet, "/api/v1/email-templates?type=invoice", nil)
	resp := decodeBody[TemplateListResponse](t, rec)
	if resp.Total != 1 || resp.Templates[0].Name != "Invoice Reminder" {
		t.Errorf("type filter returned %+v", resp)
	}

	rec = ts.do(t, models.RoleViewer, http.MethodGet, "/api/v1/email-templates?search=welcome", nil)
	resp = decodeBody[TemplateListResponse](t, rec)
	if resp.Total != 1 || resp.Templates[0].Name != "Welcome Email" {
		t.Errorf("search filter returned %+v", resp)
	}
}
