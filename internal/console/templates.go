package console

import (
	"context"
	"errors"
	"strings"

	"github.com/opsdesk/opsdesk/internal/client"
)

// TemplateAPI is the slice of the API client the template screen uses.
type TemplateAPI interface {
	ListTemplates(ctx context.Context, search, templateType string) (*client.TemplateListResponse, error)
	ListTemplateTypes(ctx context.Context) (*client.TemplateTypesResponse, error)
	GetTemplate(ctx context.Context, id string) (*client.EmailTemplate, error)
	CreateTemplate(ctx context.Context, req *client.TemplateCreateRequest) (*client.EmailTemplate, error)
	UpdateTemplate(ctx context.Context, id string, req *client.TemplateUpdateRequest) (*client.EmailTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error
	DuplicateTemplate(ctx context.Context, id string) (*client.EmailTemplate, error)
	PreviewTemplate(ctx context.Context, req *client.TemplatePreviewRequest) (*client.PreviewResponse, error)
	SendTest(ctx context.Context, id, to string) (*client.TestSendResponse, error)
	ListTemplateVersions(ctx context.Context, id string) (*client.TemplateVersionsResponse, error)
}

// TemplateManager drives the email template screen.
type TemplateManager struct {
	api    TemplateAPI
	notify Notifier

	Templates []*client.EmailTemplate
	Types     []client.TemplateType
	Versions  []client.TemplateVersion

	// Unauthorized is set when the list endpoint rejects the caller; the
	// screen shows an empty state without raising a notice.
	Unauthorized bool

	SearchQuery string
	TypeFilter  string

	Loading     bool
	Saving      bool
	Deleting    bool
	Duplicating bool
	Sending     bool
	Previewing  bool
}

// NewTemplateManager creates a template screen controller.
func NewTemplateManager(api TemplateAPI, notify Notifier) *TemplateManager {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &TemplateManager{api: api, notify: notify}
}

// Load fetches the template list and the type catalog. A forbidden
// response clears the list silently.
func (m *TemplateManager) Load(ctx context.Context) error {
	if m.Loading {
		return nil
	}
	m.Loading = true
	defer func() { m.Loading = false }()

	resp, err := m.api.ListTemplates(ctx, "", "")
	if err != nil {
		if errors.Is(err, client.ErrForbidden) {
			m.Unauthorized = true
			m.Templates = nil
			return nil
		}
		m.notify.Error("Failed to load templates")
		return err
	}
	m.Unauthorized = false
	m.Templates = resp.Templates

	types, err := m.api.ListTemplateTypes(ctx)
	if err != nil {
		m.notify.Error("Failed to load template types")
		return err
	}
	m.Types = types.Types

	return nil
}

// Filtered returns the loaded templates matching the current search query
// and type filter. The search is a case-insensitive substring match over
// name and description; the type filter is exact.
func (m *TemplateManager) Filtered() []*client.EmailTemplate {
	q := strings.ToLower(strings.TrimSpace(m.SearchQuery))

	var out []*client.EmailTemplate
	for _, t := range m.Templates {
		if m.TypeFilter != "" && t.Type != m.TypeFilter {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(t.Name), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Create submits a new template and refetches the list.
func (m *TemplateManager) Create(ctx context.Context, req *client.TemplateCreateRequest) error {
	if m.Saving {
		return nil
	}
	m.Saving = true
	defer func() { m.Saving = false }()

	if _, err := m.api.CreateTemplate(ctx, req); err != nil {
		m.notify.Error(err.Error())
		return err
	}

	m.notify.Success("Template created")
	return m.refetch(ctx)
}

// Update submits changes to a template and refetches the list. Every
// successful update advances the template's version.
func (m *TemplateManager) Update(ctx context.Context, id string, req *client.TemplateUpdateRequest) error {
	if m.Saving {
		return nil
	}
	m.Saving = true
	defer func() { m.Saving = false }()

	if _, err := m.api.UpdateTemplate(ctx, id, req); err != nil {
		m.notify.Error(err.Error())
		return err
	}

	m.notify.Success("Template updated")
	return m.refetch(ctx)
}

// Delete removes a template and refetches the list. Default templates are
// refused locally before any request is made.
func (m *TemplateManager) Delete(ctx context.Context, id string) error {
	if m.Deleting {
		return nil
	}

	for _, t := range m.Templates {
		if t.ID == id && t.IsDefault {
			m.notify.Error("Default templates cannot be deleted")
			return nil
		}
	}

	m.Deleting = true
	defer func() { m.Deleting = false }()

	if err := m.api.DeleteTemplate(ctx, id); err != nil {
		m.notify.Error(err.Error())
		return err
	}

	m.notify.Success("Template deleted")
	return m.refetch(ctx)
}

// Duplicate clones a template and refetches the list.
func (m *TemplateManager) Duplicate(ctx context.Context, id string) error {
	if m.Duplicating {
		return nil
	}
	m.Duplicating = true
	defer func() { m.Duplicating = false }()

	clone, err := m.api.DuplicateTemplate(ctx, id)
	if err != nil {
		m.notify.Error(err.Error())
		return err
	}

	m.notify.Success("Created " + clone.Name)
	return m.refetch(ctx)
}

// Preview renders the current editor draft with sample data.
func (m *TemplateManager) Preview(ctx context.Context, subject, body, templateType string) (*client.PreviewResponse, error) {
	if m.Previewing {
		return nil, nil
	}
	m.Previewing = true
	defer func() { m.Previewing = false }()

	resp, err := m.api.PreviewTemplate(ctx, &client.TemplatePreviewRequest{
		Subject: subject,
		Body:    body,
		Type:    templateType,
	})
	if err != nil {
		m.notify.Error(err.Error())
		return nil, err
	}
	return resp, nil
}

// SendTest sends a test email for a template. An empty address falls back
// to the caller's own address server-side.
func (m *TemplateManager) SendTest(ctx context.Context, id, to string) error {
	if m.Sending {
		return nil
	}
	m.Sending = true
	defer func() { m.Sending = false }()

	resp, err := m.api.SendTest(ctx, id, to)
	if err != nil {
		m.notify.Error(err.Error())
		return err
	}

	m.notify.Success("Test email sent to " + resp.To)
	return m.refetch(ctx)
}

// LoadVersions fetches a template's version history.
func (m *TemplateManager) LoadVersions(ctx context.Context, id string) error {
	resp, err := m.api.ListTemplateVersions(ctx, id)
	if err != nil {
		m.notify.Error(err.Error())
		return err
	}
	m.Versions = resp.Versions
	return nil
}

// refetch reloads the list after a mutation so the screen always reflects
// server state rather than a locally patched copy.
func (m *TemplateManager) refetch(ctx context.Context) error {
	resp, err := m.api.ListTemplates(ctx, "", "")
	if err != nil {
		if errors.Is(err, client.ErrForbidden) {
			m.Unauthorized = true
			m.Templates = nil
			return nil
		}
		m.notify.Error("Failed to reload templates")
		return err
	}
	m.Unauthorized = false
	m.Templates = resp.Templates
	return nil
}
