package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/repository"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"bytes", ww.BytesWritten(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// authMiddleware authenticates requests with a bearer token and attaches the
// token's user to the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			auth = r.Header.Get("X-API-Key")
		}
		if strings.HasPrefix(auth, "Bearer ") {
			auth = strings.TrimPrefix(auth, "Bearer ")
		}

		if auth == "" {
			s.sendError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		token, err := s.tokens.GetByHash(repository.HashKey(auth))
		if err != nil {
			s.logger.Error("token lookup failed", "error", err)
			s.sendError(w, http.StatusInternalServerError, "Authentication failed")
			return
		}
		if token == nil {
			s.sendError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		if token.ExpiresAt != nil && time.Now().After(*token.ExpiresAt) {
			s.sendError(w, http.StatusUnauthorized, "Token expired")
			return
		}

		user, err := s.users.GetByID(token.UserID)
		if err != nil {
			s.logger.Error("user lookup failed", "user_id", token.UserID, "error", err)
			s.sendError(w, http.StatusInternalServerError, "Authentication failed")
			return
		}
		if user == nil {
			s.sendError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		if !user.IsActive {
			s.sendError(w, http.StatusForbidden, "User is deactivated")
			return
		}

		// Update last used (async to not slow down the request)
		go func(id string) {
			if err := s.tokens.UpdateLastUsed(id); err != nil {
				s.logger.Warn("failed to update token last used", "error", err)
			}
		}(token.ID)

		ctx := context.WithValue(r.Context(), ctxKeyUser, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userFromContext returns the authenticated user, or nil.
func userFromContext(r *http.Request) *models.User {
	if u, ok := r.Context().Value(ctxKeyUser).(*models.User); ok {
		return u
	}
	return nil
}
