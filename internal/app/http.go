package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"symposium/api/internal/auth"
	"symposium/api/internal/authpw"
	"symposium/api/internal/completion"
	"symposium/api/internal/export"
	"symposium/api/internal/sequence"
	"symposium/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *zap.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: logger.Named("http")}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && (r.URL.Path == "/api/auth/register" || r.URL.Path == "/api/auth/login") {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		register := r.URL.Path == "/api/auth/register"
		authenticate := s.service.Login
		if register {
			authenticate = s.service.Register
		}
		user, session, err := authenticate(r.Context(), body.Email, body.Password)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		status := http.StatusOK
		if register {
			status = http.StatusCreated
		}
		writeJSON(w, status, map[string]any{
			"user":         userPayload(user),
			"token":        session.Token,
			"refreshToken": session.RefreshToken,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
				return
			}
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":        session.Token,
			"refreshToken": session.RefreshToken,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		if err := s.service.Logout(r.Context(), body.RefreshToken); err != nil {
			s.logger.Warn("revoke refresh session", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/auth/me" {
		user, err := s.service.CurrentUser(r.Context(), session.UserID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, userPayload(user))
		return
	}

	if r.Method == http.MethodPut && r.URL.Path == "/api/user/api-key" {
		var body struct {
			APIKey string `json:"apiKey"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetAPIKey(r.Context(), session.UserID, body.APIKey); err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "hasApiKey": strings.TrimSpace(body.APIKey) != ""})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/openrouter/models" {
		models, err := s.service.ListModels(r.Context(), session.UserID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"models": models})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/openrouter/credits" {
		credits, err := s.service.Credits(r.Context(), session.UserID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, credits)
		return
	}

	if r.URL.Path == "/api/projects" {
		s.handleProjectCollection(w, r, session)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/projects/generate" {
		var body struct {
			Description string `json:"description"`
			Model       string `json:"model"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		project, plan, err := s.service.GenerateProject(r.Context(), session.UserID, body.Description, body.Model)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"project": project, "structure": plan})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/content-cards/search" {
		s.handleCardSearch(w, r, session)
		return
	}

	if r.URL.Path == "/api/content-cards" {
		s.handleCardCollection(w, r, session)
		return
	}

	if r.URL.Path == "/api/tags" {
		s.handleTagCollection(w, r, session)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 3 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid id", nil)
		return
	}

	switch parts[1] {
	case "projects":
		s.handleProject(w, r, session, id, parts[3:])
	case "objectives":
		s.handleObjective(w, r, session, id, parts[3:])
	case "tasks":
		s.handleTask(w, r, session, id, parts[3:])
	case "messages":
		s.handleMessage(w, r, session, id, parts[3:])
	case "content-cards":
		s.handleCard(w, r, session, id, parts[3:])
	case "tags":
		s.handleTag(w, r, session, id, parts[3:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		s.logger.Error("session lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Duration("duration", time.Since(started)),
		)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

// respondError maps err to a response. Server-side failures are logged with
// the request id; their text is not sent to the client.
func (s *HTTPServer) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var upstream *completion.Error
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, sequence.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, store.ErrConflict), errors.Is(err, authpw.ErrEmailTaken):
		return http.StatusConflict, "CONFLICT", conflictMessage(err), nil
	case errors.Is(err, authpw.ErrMissingCredentials), errors.Is(err, authpw.ErrPasswordTooShort):
		return http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil
	case errors.Is(err, sequence.ErrInvalidPosition):
		return http.StatusBadRequest, "INVALID_INPUT", invalidOrderMessage, nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil
	case errors.As(err, &upstream), errors.Is(err, completion.ErrTimeout):
		return http.StatusBadGateway, "UPSTREAM_ERROR", err.Error(), nil
	}
	return http.StatusInternalServerError, "INTERNAL", "Internal server error", nil
}

func conflictMessage(err error) string {
	if errors.Is(err, authpw.ErrEmailTaken) {
		return err.Error()
	}
	return "Conflict"
}
