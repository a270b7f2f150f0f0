package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opsdesk/opsdesk/internal/metrics"
	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/repository"
)

// UserListResponse is the response for listing users.
type UserListResponse struct {
	Users []*models.User `json:"users"`
	Total int            `json:"total"`
}

// UserRoleRequest is the request for changing a user's role.
type UserRoleRequest struct {
	Role models.Role `json:"role"`
}

// UserStatusRequest is the request for activating or deactivating a user.
type UserStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// handleUserList handles GET /api/v1/users
func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	if !user.Role.CanViewUsers() {
		s.sendError(w, http.StatusForbidden, "Access denied")
		return
	}

	users, err := s.users.List()
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	s.sendJSON(w, http.StatusOK, UserListResponse{Users: users, Total: len(users)})
}

// handleUserRole handles PUT /api/v1/users/{id}/role
func (s *Server) handleUserRole(w http.ResponseWriter, r *http.Request) {
	actor := userFromContext(r)
	if !actor.Role.CanManageRoles() {
		s.sendError(w, http.StatusForbidden, "Insufficient permissions")
		return
	}

	id := chi.URLParam(r, "id")

	var req UserRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Role == "" {
		s.sendError(w, http.StatusBadRequest, "role is required")
		return
	}
	if !req.Role.Valid() {
		s.sendError(w, http.StatusBadRequest, fmt.Sprintf("unknown role %q", req.Role))
		return
	}

	if err := s.users.UpdateRole(id, req.Role, actor.ID); err != nil {
		if errors.Is(err, repository.ErrSelfChange) {
			s.sendError(w, http.StatusForbidden, "You cannot change your own role")
			return
		}
		if errors.Is(err, sql.ErrNoRows) {
			s.sendError(w, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("failed to update role", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update role")
		return
	}

	updated, err := s.users.GetByID(id)
	if err != nil || updated == nil {
		s.logger.Error("failed to reload user", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update role")
		return
	}

	s.recordAudit(actor, "user.role", "user", id, string(req.Role))
	if m := metrics.Global(); m != nil {
		m.UserMutationsTotal.WithLabelValues("role").Inc()
	}

	s.sendJSON(w, http.StatusOK, updated)
}

// handleUserStatus handles PUT /api/v1/users/{id}/status
func (s *Server) handleUserStatus(w http.ResponseWriter, r *http.Request) {
	actor := userFromContext(r)
	if !actor.Role.CanUpdateUsers() {
		s.sendError(w, http.StatusForbidden, "Insufficient permissions")
		return
	}

	id := chi.URLParam(r, "id")

	var req UserStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.IsActive == nil {
		s.sendError(w, http.StatusBadRequest, "is_active is required")
		return
	}

	if err := s.users.UpdateStatus(id, *req.IsActive, actor.ID); err != nil {
		if errors.Is(err, repository.ErrSelfChange) {
			s.sendError(w, http.StatusForbidden, "You cannot change your own status")
			return
		}
		if errors.Is(err, sql.ErrNoRows) {
			s.sendError(w, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("failed to update status", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update status")
		return
	}

	updated, err := s.users.GetByID(id)
	if err != nil || updated == nil {
		s.logger.Error("failed to reload user", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update status")
		return
	}

	action := "user.deactivate"
	if *req.IsActive {
		action = "user.activate"
	}
	s.recordAudit(actor, action, "user", id, "")
	if m := metrics.Global(); m != nil {
		m.UserMutationsTotal.WithLabelValues("status").Inc()
	}

	s.sendJSON(w, http.StatusOK, updated)
}
