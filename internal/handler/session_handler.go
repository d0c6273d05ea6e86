package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"session-service/internal/auth"
	"session-service/internal/models"
	"session-service/internal/service"
	"session-service/internal/util"
)

// SessionHandler handles HTTP requests for session operations.
type SessionHandler struct {
	sessions *service.SessionService
	logger   *zap.Logger
}

func NewSessionHandler(sessions *service.SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

type registerRequest struct {
	SessionID  string `json:"session_id"`
	DeviceInfo string `json:"device_info"`
}

type logoutRequest struct {
	SessionID string `json:"session_id"`
}

type statusMessage struct {
	Status        string                  `json:"status"`
	Message       string                  `json:"message,omitempty"`
	ActiveDevices []*models.ActiveSession `json:"active_devices,omitempty"`
}

func errorBody(message string) statusMessage {
	return statusMessage{Status: "error", Message: message}
}

// RegisterRoutes registers all session routes. Every route requires a
// verified bearer credential.
func (h *SessionHandler) RegisterRoutes(router chi.Router) {
	router.Post("/session/register", h.RegisterSession)
	router.Post("/session/logout", h.LogoutSession)
	router.Get("/session/status", h.GetSessionStatus)
	router.Delete("/session/{sessionID}", h.ForceLogoutSession)
	router.Get("/sessions", h.ListSessions)
}

// RegisterSession admits a new device session for the caller. A
// limit_reached outcome is a normal 200 response carrying the caller's
// current device list.
func (h *SessionHandler) RegisterSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserIDFrom(ctx)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	result, err := h.sessions.Register(ctx, userID, req.SessionID, req.DeviceInfo, clientIP(r))
	if err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, "Failed to register session")
		return
	}

	if result.Status == service.RegistrationLimitReached {
		respondWithJSON(w, http.StatusOK, statusMessage{
			Status:        string(result.Status),
			Message:       "Device limit reached.",
			ActiveDevices: result.ActiveDevices,
		})
		return
	}

	respondWithJSON(w, http.StatusOK, statusMessage{
		Status:  string(result.Status),
		Message: "Session registered successfully.",
	})
}

// LogoutSession removes the caller's session record. Idempotent: the
// response is success whether or not a record existed.
func (h *SessionHandler) LogoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserIDFrom(ctx)

	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := h.sessions.Logout(ctx, userID, req.SessionID); err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, "Failed to delete session")
		return
	}

	respondWithJSON(w, http.StatusOK, statusMessage{
		Status:  "ok",
		Message: "Session successfully deleted.",
	})
}

// ListSessions returns the caller's active session records.
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserIDFrom(ctx)

	sessions, err := h.sessions.ListSessions(ctx, userID)
	if err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, "Failed to list sessions")
		return
	}

	if sessions == nil {
		sessions = []*models.ActiveSession{}
	}
	respondWithJSON(w, http.StatusOK, sessions)
}

// ForceLogoutSession terminates one of the caller's sessions and
// triggers the termination broadcast. 404 when the target doesn't exist
// or belongs to someone else.
func (h *SessionHandler) ForceLogoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserIDFrom(ctx)

	sessionID := chi.URLParam(r, "sessionID")

	if err := h.sessions.ForceLogout(ctx, userID, sessionID); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			h.respondWithError(w, http.StatusNotFound, err,
				"Session not found or you do not have permission to delete it.")
			return
		}
		h.respondWithError(w, h.getStatusCode(err), err, "Failed to terminate session")
		return
	}

	respondWithJSON(w, http.StatusOK, statusMessage{
		Status:  "ok",
		Message: fmt.Sprintf("Session %s terminated.", sessionID),
	})
}

// GetSessionStatus reports whether the session_id query parameter names
// an active session owned by the caller.
func (h *SessionHandler) GetSessionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserIDFrom(ctx)

	sessionID := r.URL.Query().Get("session_id")

	active, err := h.sessions.IsActive(ctx, userID, sessionID)
	if err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, "Failed to check session status")
		return
	}

	status := "inactive"
	if active {
		status = "active"
	}
	respondWithJSON(w, http.StatusOK, statusMessage{Status: status})
}

// Helper Methods

func respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		util.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

func (h *SessionHandler) respondWithError(w http.ResponseWriter, statusCode int, err error, message string) {
	h.logger.Warn("HTTP error response",
		util.ErrorField(err),
		util.Int("status_code", statusCode),
		util.String("message", message),
	)
	respondWithJSON(w, statusCode, errorBody(message))
}

// getStatusCode maps service errors to HTTP status codes.
func (h *SessionHandler) getStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrDuplicateSession):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// clientIP returns the originating address of the request. RealIP
// middleware has already folded X-Forwarded-For into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
