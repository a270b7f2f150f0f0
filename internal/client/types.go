package client

import "time"

// Variable describes a placeholder available to a template.
type Variable struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Example     string `json:"example,omitempty"`
	Required    bool   `json:"required"`
}

// EmailTemplate is a template as returned by the API.
type EmailTemplate struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Subject     string     `json:"subject"`
	Body        string     `json:"body"`
	Variables   []Variable `json:"variables"`
	IsActive    bool       `json:"is_active"`
	IsDefault   bool       `json:"is_default"`
	Version     int        `json:"version"`
	UsageCount  int        `json:"usage_count"`
	TestCount   int        `json:"test_count"`
	CreatedBy   string     `json:"created_by,omitempty"`
	UpdatedBy   string     `json:"updated_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TemplateVersion is an immutable snapshot from a template's history.
type TemplateVersion struct {
	ID         int64     `json:"id"`
	TemplateID string    `json:"template_id"`
	Version    int       `json:"version"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ChangeNote string    `json:"change_note"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// TemplateType is a catalog entry describing a template type.
type TemplateType struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	Variables []Variable `json:"variables,omitempty"`
}

// User is a console user as returned by the API.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TemplateCreateRequest creates a template.
type TemplateCreateRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Type        string     `json:"type"`
	Subject     string     `json:"subject"`
	Body        string     `json:"body"`
	Variables   []Variable `json:"variables,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
	IsDefault   *bool      `json:"is_default,omitempty"`
}

// TemplateUpdateRequest updates a template. Omitted fields keep their
// current values.
type TemplateUpdateRequest struct {
	Name        string     `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Subject     string     `json:"subject,omitempty"`
	Body        string     `json:"body,omitempty"`
	Variables   []Variable `json:"variables,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
	IsDefault   *bool      `json:"is_default,omitempty"`
	ChangeNote  string     `json:"change_notes,omitempty"`
}

// TemplatePreviewRequest renders a draft with sample data.
type TemplatePreviewRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Type    string `json:"type"`
}

// TemplateTestRequest sends a test email.
type TemplateTestRequest struct {
	To string `json:"to,omitempty"`
}

// UserRoleRequest changes a user's role.
type UserRoleRequest struct {
	Role string `json:"role"`
}

// UserStatusRequest activates or deactivates a user.
type UserStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// TemplateListResponse is the template list payload.
type TemplateListResponse struct {
	Templates []*EmailTemplate `json:"templates"`
	Total     int              `json:"total"`
}

// TemplateVersionsResponse is the version history payload.
type TemplateVersionsResponse struct {
	Versions []TemplateVersion `json:"versions"`
	Total    int               `json:"total"`
}

// TemplateTypesResponse is the type catalog payload.
type TemplateTypesResponse struct {
	Types []TemplateType `json:"types"`
}

// PreviewResponse is a rendered preview.
type PreviewResponse struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// TestSendResponse reports the outcome of a test send.
type TestSendResponse struct {
	Status string `json:"status"`
	To     string `json:"to"`
}

// UserListResponse is the user list payload.
type UserListResponse struct {
	Users []*User `json:"users"`
	Total int     `json:"total"`
}

// HealthResponse reports server health.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}
