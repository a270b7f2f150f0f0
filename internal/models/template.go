package models

import "time"

// Variable describes a placeholder a template expects.
type Variable struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Example     string `json:"example,omitempty"`
	Required    bool   `json:"required"`
}

type EmailTemplate struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Subject     string     `json:"subject"`
	Body        string     `json:"body"` // HTML
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

// TemplateVersion is an immutable snapshot recorded on every create/update.
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

// TemplateType is an entry of the server-provided type catalog.
type TemplateType struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	Variables []Variable `json:"variables,omitempty"`
}

// TemplateTypes is the fixed catalog served by GET /email-templates/meta/types.
// The key of a template is immutable after creation.
func TemplateTypes() []TemplateType {
	return []TemplateType{
		{
			Key:   "welcome",
			Label: "Welcome",
			Variables: []Variable{
				{Name: "first_name", Description: "Recipient first name", Example: "Priya", Required: true},
				{Name: "company", Description: "Account company name", Example: "Acme Corp"},
			},
		},
		{
			Key:   "password_reset",
			Label: "Password Reset",
			Variables: []Variable{
				{Name: "first_name", Example: "Priya", Required: true},
				{Name: "reset_link", Description: "One-time reset URL", Example: "https://app.example.com/reset/abc123", Required: true},
			},
		},
		{
			Key:   "invoice",
			Label: "Invoice",
			Variables: []Variable{
				{Name: "first_name", Example: "Priya", Required: true},
				{Name: "invoice_number", Example: "INV-1042", Required: true},
				{Name: "amount", Description: "Formatted total", Example: "$420.00", Required: true},
				{Name: "due_date", Example: "2025-02-28"},
			},
		},
		{
			Key:   "campaign",
			Label: "Campaign",
			Variables: []Variable{
				{Name: "first_name", Example: "Priya"},
				{Name: "unsubscribe_link", Example: "https://app.example.com/unsubscribe/abc123", Required: true},
			},
		},
		{
			Key:   "follow_up",
			Label: "Follow Up",
			Variables: []Variable{
				{Name: "first_name", Example: "Priya", Required: true},
				{Name: "last_contact_date", Example: "2025-01-15"},
			},
		},
		{
			Key:   "meeting_reminder",
			Label: "Meeting Reminder",
			Variables: []Variable{
				{Name: "first_name", Example: "Priya", Required: true},
				{Name: "meeting_time", Example: "2025-02-03 14:00", Required: true},
				{Name: "meeting_link", Example: "https://meet.example.com/xyz"},
			},
		},
		{
			Key:   "custom",
			Label: "Custom",
		},
	}
}

// TemplateTypeByKey returns the catalog entry for key, or nil.
func TemplateTypeByKey(key string) *TemplateType {
	for _, t := range TemplateTypes() {
		if t.Key == key {
			return &t
		}
	}
	return nil
}

// ValidTemplateType reports whether key is in the catalog.
func ValidTemplateType(key string) bool {
	return TemplateTypeByKey(key) != nil
}
