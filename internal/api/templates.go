package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/opsdesk/opsdesk/internal/metrics"
	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/repository"
	"github.com/opsdesk/opsdesk/internal/template"
)

// TemplateCreateRequest is the request for creating a template.
type TemplateCreateRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Type        string            `json:"type"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	Variables   []models.Variable `json:"variables,omitempty"`
	IsActive    *bool             `json:"is_active,omitempty"`
	IsDefault   *bool             `json:"is_default,omitempty"`
}

// TemplateUpdateRequest is the request for updating a template. The type of
// a template is immutable; sending a different type fails.
type TemplateUpdateRequest struct {
	Name        string            `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Type        string            `json:"type,omitempty"`
	Subject     string            `json:"subject,omitempty"`
	Body        string            `json:"body,omitempty"`
	Variables   []models.Variable `json:"variables,omitempty"`
	IsActive    *bool             `json:"is_active,omitempty"`
	IsDefault   *bool             `json:"is_default,omitempty"`
	ChangeNote  string            `json:"change_notes,omitempty"`
}

// TemplateListResponse is the response for listing templates.
type TemplateListResponse struct {
	Templates []*models.EmailTemplate `json:"templates"`
	Total     int                     `json:"total"`
}

// TemplateVersionsResponse is the response for listing version history.
type TemplateVersionsResponse struct {
	Versions []models.TemplateVersion `json:"versions"`
	Total    int                      `json:"total"`
}

// TemplateTypesResponse is the response for the type catalog.
type TemplateTypesResponse struct {
	Types []models.TemplateType `json:"types"`
}

// TemplatePreviewRequest is the request for previewing a template draft.
type TemplatePreviewRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Type    string `json:"type"`
}

// TemplateTestRequest is the request for sending a test email. An empty
// address falls back to the caller's own email.
type TemplateTestRequest struct {
	To string `json:"to,omitempty"`
}

// TemplateTestResponse is the response for a test send.
type TemplateTestResponse struct {
	Status string `json:"status"`
	To     string `json:"to"`
}

// handleTemplateList handles GET /api/v1/email-templates
func (s *Server) handleTemplateList(w http.ResponseWriter, r *http.Request) {
	filter := repository.TemplateListFilter{
		Search: r.URL.Query().Get("search"),
		Type:   r.URL.Query().Get("type"),
	}

	templates, err := s.templates.List(filter)
	if err != nil {
		s.logger.Error("failed to list templates", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}

	s.sendJSON(w, http.StatusOK, TemplateListResponse{
		Templates: templates,
		Total:     len(templates),
	})
}

// handleTemplateTypes handles GET /api/v1/email-templates/meta/types
func (s *Server) handleTemplateTypes(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, TemplateTypesResponse{Types: models.TemplateTypes()})
}

// handleTemplateGet handles GET /api/v1/email-templates/{id}
func (s *Server) handleTemplateGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tmpl, err := s.templates.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get template", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}
	if tmpl == nil {
		s.sendError(w, http.StatusNotFound, "Template not found")
		return
	}

	s.sendJSON(w, http.StatusOK, tmpl)
}

// handleTemplateCreate handles POST /api/v1/email-templates
func (s *Server) handleTemplateCreate(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	if !user.Role.CanWriteTemplates() {
		s.sendError(w, http.StatusForbidden, "Insufficient permissions")
		return
	}

	var req TemplateCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name == "" {
		s.sendError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Type == "" {
		s.sendError(w, http.StatusBadRequest, "type is required")
		return
	}
	if req.Subject == "" {
		s.sendError(w, http.StatusBadRequest, "subject is required")
		return
	}
	if req.Body == "" {
		s.sendError(w, http.StatusBadRequest, "body is required")
		return
	}
	if !models.ValidTemplateType(req.Type) {
		s.sendError(w, http.StatusBadRequest, fmt.Sprintf("unknown template type %q", req.Type))
		return
	}

	if err := s.engine.Validate(req.Subject, req.Body); err != nil {
		s.sendError(w, http.StatusBadRequest, fmt.Sprintf("Invalid template syntax: %v", err))
		return
	}

	tmpl := &models.EmailTemplate{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Subject:     req.Subject,
		Body:        req.Body,
		Variables:   req.Variables,
		IsActive:    true,
	}
	if req.IsActive != nil {
		tmpl.IsActive = *req.IsActive
	}
	if req.IsDefault != nil {
		tmpl.IsDefault = *req.IsDefault
	}

	if err := s.templates.Create(tmpl, user.Email); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			s.sendError(w, http.StatusConflict, fmt.Sprintf("template %q already exists", req.Name))
			return
		}
		s.logger.Error("failed to create template", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to create template")
		return
	}

	s.recordAudit(user, "template.create", "template", tmpl.ID, tmpl.Name)
	if m := metrics.Global(); m != nil {
		m.TemplateMutationsTotal.WithLabelValues("create").Inc()
	}

	s.sendJSON(w, http.StatusCreated, tmpl)
}

// handleTemplateUpdate handles PUT /api/v1/email-templates/{id}
func (s *Server) handleTemplateUpdate(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	if !user.Role.CanWriteTemplates() {
		s.sendError(w, http.StatusForbidden, "Insufficient permissions")
		return
	}

	id := chi.URLParam(r, "id")

	var req TemplateUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tmpl, err := s.templates.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get template", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}
	if tmpl == nil {
		s.sendError(w, http.StatusNotFound, "Template not found")
		return
	}

	if req.Type != "" && req.Type != tmpl.Type {
		s.sendError(w, http.StatusBadRequest, "type cannot be changed after creation")
		return
	}

	if req.Name != "" {
		tmpl.Name = req.Name
	}
	if req.Description != nil {
		tmpl.Description = *req.Description
	}
	if req.Subject != "" {
		tmpl.Subject = req.Subject
	}
	if req.Body != "" {
		tmpl.Body = req.Body
	}
	if req.Variables != nil {
		tmpl.Variables = req.Variables
	}
	if req.IsActive != nil {
		tmpl.IsActive = *req.IsActive
	}
	if req.IsDefault != nil {
		tmpl.IsDefault = *req.IsDefault
	}

	if err := s.engine.Validate(tmpl.Subject, tmpl.Body); err != nil {
		s.sendError(w, http.StatusBadRequest, fmt.Sprintf("Invalid template syntax: %v", err))
		return
	}

	if err := s.templates.Update(tmpl, req.ChangeNote, user.Email); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			s.sendError(w, http.StatusConflict, fmt.Sprintf("template %q already exists", tmpl.Name))
			return
		}
		s.logger.Error("failed to update template", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update template")
		return
	}

	s.recordAudit(user, "template.update", "template", tmpl.ID, req.ChangeNote)
	if m := metrics.Global(); m != nil {
		m.TemplateMutationsTotal.WithLabelValues("update").Inc()
	}

	s.sendJSON(w, http.StatusOK, tmpl)
}

// handleTemplateDelete handles DELETE /api/v1/email-templates/{id}
func (s *Server) handleTemplateDelete(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	if !user.Role.CanWriteTemplates() {
		s.sendError(w, http.StatusForbidden, "Insufficient permissions")
		return
	}

	id := chi.URLParam(r, "id")

	if err := s.templates.Delete(id); err != nil {
		if errors.Is(err, repository.ErrDefaultTemplate) {
			s.sendError(w, http.StatusConflict, "Default templates cannot be deleted")
			return
		}
		s.logger.Error("failed to delete template", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to delete template")
		return
	}

	s.recordAudit(user, "template.delete", "template", id, "")
	if m := metrics.Global(); m != nil {
		m.TemplateMutationsTotal.WithLabelValues("delete").Inc()
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleTemplateDuplicate handles POST /api/v1/email-templates/{id}/duplicate
func (s *Server) handleTemplateDuplicate(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	if !user.Role.CanWriteTemplates() {
		s.sendError(w, http.StatusForbidden, "Insufficient permissions")
		return
	}

	id := chi.URLParam(r, "id")

	clone, err := s.templates.Duplicate(id, user.Email)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			s.sendError(w, http.StatusConflict, "A copy with that name already exists")
			return
		}
		s.logger.Error("failed to duplicate template", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to duplicate template")
		return
	}
	if clone == nil {
		s.sendError(w, http.StatusNotFound, "Template not found")
		return
	}

	s.recordAudit(user, "template.duplicate", "template", clone.ID, "copied from "+id)
	if m := metrics.Global(); m != nil {
		m.TemplateMutationsTotal.WithLabelValues("duplicate").Inc()
	}

	s.sendJSON(w, http.StatusCreated, clone)
}

// handleTemplatePreview handles POST /api/v1/email-templates/preview
//
// Rendering happens server-side; the console only displays the result.
func (s *Server) handleTemplatePreview(w http.ResponseWriter, r *http.Request) {
	var req TemplatePreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Subject == "" && req.Body == "" {
		s.sendError(w, http.StatusBadRequest, "subject or body is required")
		return
	}

	result, err := s.engine.Render(req.Subject, req.Body, template.SampleData(req.Type))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, fmt.Sprintf("Failed to render template: %v", err))
		return
	}

	s.sendJSON(w, http.StatusOK, result)
}

// handleTemplateTest handles POST /api/v1/email-templates/{id}/test
func (s *Server) handleTemplateTest(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	id := chi.URLParam(r, "id")

	var req TemplateTestRequest
	if r.Body != nil {
		// Body is optional; ignore decode errors on empty bodies
		json.NewDecoder(r.Body).Decode(&req)
	}

	tmpl, err := s.templates.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get template", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}
	if tmpl == nil {
		s.sendError(w, http.StatusNotFound, "Template not found")
		return
	}

	to := strings.TrimSpace(req.To)
	if to == "" {
		to = user.Email
	}

	result, err := s.engine.Render(tmpl.Subject, tmpl.Body, template.SampleData(tmpl.Type))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, fmt.Sprintf("Failed to render template: %v", err))
		return
	}

	subject := "[TEST] " + result.Subject
	if err := s.mailer.Send(to, subject, result.HTML); err != nil {
		s.logger.Error("failed to send test email", "id", id, "to", to, "error", err)
		s.sendError(w, http.StatusBadGateway, "Failed to send test email")
		return
	}

	if err := s.templates.IncrementTestCount(id); err != nil {
		s.logger.Warn("failed to increment test count", "id", id, "error", err)
	}

	s.recordAudit(user, "template.test", "template", id, "sent to "+to)
	if m := metrics.Global(); m != nil {
		m.TestSendsTotal.Inc()
	}

	s.sendJSON(w, http.StatusOK, TemplateTestResponse{Status: "sent", To: to})
}

// handleTemplateVersions handles GET /api/v1/email-templates/{id}/versions
func (s *Server) handleTemplateVersions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tmpl, err := s.templates.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get template", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}
	if tmpl == nil {
		s.sendError(w, http.StatusNotFound, "Template not found")
		return
	}

	versions, err := s.templates.GetVersions(id)
	if err != nil {
		s.logger.Error("failed to get versions", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get versions")
		return
	}

	s.sendJSON(w, http.StatusOK, TemplateVersionsResponse{
		Versions: versions,
		Total:    len(versions),
	})
}
