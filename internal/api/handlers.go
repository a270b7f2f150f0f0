package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/opsdesk/opsdesk/internal/models"
)

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the response for the health check.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}

// recordAudit writes an audit log entry. Failures are logged, not surfaced.
func (s *Server) recordAudit(user *models.User, action, entityType, entityID, detail string) {
	if err := s.audit.Record(user.ID, user.Email, action, entityType, entityID, detail); err != nil {
		s.logger.Warn("failed to record audit entry", "action", action, "error", err)
	}
}
