package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// ErrForbidden matches API errors with status 403 via errors.Is.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound matches API errors with status 404 via errors.Is.
var ErrNotFound = errors.New("not found")

// APIError is an error response from the API with its HTTP status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return e.Message
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Client is an OpsDesk API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new OpsDesk API client.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BaseURLFromEnv returns the API base URL from OPSDESK_API_URL, with a
// localhost default.
func BaseURLFromEnv() string {
	if v := os.Getenv("OPSDESK_API_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

// request performs an HTTP request against the API.
func (c *Client) request(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			apiErr.Message = errResp.Error
		}
		return apiErr
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// Health checks server health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.request(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTemplates lists email templates, optionally filtered by a search
// string and a type key.
func (c *Client) ListTemplates(ctx context.Context, search, templateType string) (*TemplateListResponse, error) {
	path := "/api/v1/email-templates"
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	if templateType != "" {
		q.Set("type", templateType)
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp TemplateListResponse
	if err := c.request(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTemplate gets a template by ID.
func (c *Client) GetTemplate(ctx context.Context, id string) (*EmailTemplate, error) {
	var resp EmailTemplate
	if err := c.request(ctx, http.MethodGet, "/api/v1/email-templates/"+id, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateTemplate creates a new template.
func (c *Client) CreateTemplate(ctx context.Context, req *TemplateCreateRequest) (*EmailTemplate, error) {
	var resp EmailTemplate
	if err := c.request(ctx, http.MethodPost, "/api/v1/email-templates", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateTemplate updates an existing template, creating a new version.
func (c *Client) UpdateTemplate(ctx context.Context, id string, req *TemplateUpdateRequest) (*EmailTemplate, error) {
	var resp EmailTemplate
	if err := c.request(ctx, http.MethodPut, "/api/v1/email-templates/"+id, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteTemplate deletes a template.
func (c *Client) DeleteTemplate(ctx context.Context, id string) error {
	return c.request(ctx, http.MethodDelete, "/api/v1/email-templates/"+id, nil, nil)
}

// DuplicateTemplate clones a template.
func (c *Client) DuplicateTemplate(ctx context.Context, id string) (*EmailTemplate, error) {
	var resp EmailTemplate
	if err := c.request(ctx, http.MethodPost, "/api/v1/email-templates/"+id+"/duplicate", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PreviewTemplate renders a draft subject and body with sample data.
func (c *Client) PreviewTemplate(ctx context.Context, req *TemplatePreviewRequest) (*PreviewResponse, error) {
	var resp PreviewResponse
	if err := c.request(ctx, http.MethodPost, "/api/v1/email-templates/preview", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendTest sends a rendered test email. An empty address sends to the
// token owner's own email.
func (c *Client) SendTest(ctx context.Context, id, to string) (*TestSendResponse, error) {
	var resp TestSendResponse
	req := TemplateTestRequest{To: to}
	if err := c.request(ctx, http.MethodPost, "/api/v1/email-templates/"+id+"/test", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTemplateTypes lists the template type catalog.
func (c *Client) ListTemplateTypes(ctx context.Context) (*TemplateTypesResponse, error) {
	var resp TemplateTypesResponse
	if err := c.request(ctx, http.MethodGet, "/api/v1/email-templates/meta/types", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTemplateVersions lists a template's version history, newest first.
func (c *Client) ListTemplateVersions(ctx context.Context, id string) (*TemplateVersionsResponse, error) {
	var resp TemplateVersionsResponse
	if err := c.request(ctx, http.MethodGet, "/api/v1/email-templates/"+id+"/versions", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListUsers lists all users.
func (c *Client) ListUsers(ctx context.Context) (*UserListResponse, error) {
	var resp UserListResponse
	if err := c.request(ctx, http.MethodGet, "/api/v1/users", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateUserRole changes a user's role.
func (c *Client) UpdateUserRole(ctx context.Context, id, role string) (*User, error) {
	var resp User
	req := UserRoleRequest{Role: role}
	if err := c.request(ctx, http.MethodPut, "/api/v1/users/"+id+"/role", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateUserStatus activates or deactivates a user.
func (c *Client) UpdateUserStatus(ctx context.Context, id string, active bool) (*User, error) {
	var resp User
	req := UserStatusRequest{IsActive: &active}
	if err := c.request(ctx, http.MethodPut, "/api/v1/users/"+id+"/status", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
