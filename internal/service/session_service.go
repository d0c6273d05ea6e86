package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"session-service/internal/models"
	"session-service/internal/repository/postgres"
	"session-service/internal/util"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateSession = errors.New("session already registered")
)

// RegistrationStatus is the outcome of an admission decision.
type RegistrationStatus string

const (
	RegistrationSuccess      RegistrationStatus = "success"
	RegistrationLimitReached RegistrationStatus = "limit_reached"
)

// RegistrationResult carries the admission outcome. On LimitReached,
// ActiveDevices holds the user's current sessions so the caller can
// offer device eviction.
type RegistrationResult struct {
	Status        RegistrationStatus
	ActiveDevices []*models.ActiveSession
}

// SessionService enforces the per-user device limit and manages the
// lifecycle of active session records.
type SessionService struct {
	repo        postgres.SessionRepository
	notifier    TerminationNotifier
	audit       *AuditEmitter
	deviceLimit int
	logger      *zap.Logger
}

// NewSessionService creates a session service. notifier may not be nil;
// audit may be a nil emitter when the event stream is disabled.
func NewSessionService(
	repo postgres.SessionRepository,
	notifier TerminationNotifier,
	audit *AuditEmitter,
	deviceLimit int,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		repo:        repo,
		notifier:    notifier,
		audit:       audit,
		deviceLimit: deviceLimit,
		logger:      logger,
	}
}

// Register admits a new session for the user unless the device limit is
// already reached.
//
// The count and the insert are not one transaction: two racing
// registrations for the same user can both observe count < limit and
// both commit, transiently exceeding the limit. The unique index on
// session_id still holds; only the per-user count is racy.
func (s *SessionService) Register(ctx context.Context, userID, sessionID, deviceInfo, ipAddress string) (*RegistrationResult, error) {
	if sessionID == "" {
		return nil, ErrInvalidInput
	}

	deviceInfo = util.SanitizeDeviceInfo(deviceInfo)
	if deviceInfo == "" {
		deviceInfo = models.DefaultDeviceInfo
	}

	current, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(current) >= s.deviceLimit {
		s.logger.Info("Session registration rejected, device limit reached",
			util.String("user_id", userID),
			util.Int("active_sessions", len(current)),
			util.Int("device_limit", s.deviceLimit))
		s.audit.Emit(ctx, models.EventLimitRejected, userID, sessionID, deviceInfo, ipAddress)
		return &RegistrationResult{
			Status:        RegistrationLimitReached,
			ActiveDevices: current,
		}, nil
	}

	session := &models.ActiveSession{
		UserID:     userID,
		SessionID:  sessionID,
		DeviceInfo: deviceInfo,
		IPAddress:  ipAddress,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		if errors.Is(err, postgres.ErrDuplicateSession) {
			return nil, ErrDuplicateSession
		}
		return nil, err
	}

	s.logger.Info("Session registered",
		util.String("user_id", userID),
		util.String("session_id", sessionID),
		util.String("device_info", deviceInfo))
	s.audit.Emit(ctx, models.EventSessionRegistered, userID, sessionID, deviceInfo, ipAddress)

	return &RegistrationResult{Status: RegistrationSuccess}, nil
}

// Logout deletes the caller's session record. Idempotent: a missing
// record is a no-op success.
func (s *SessionService) Logout(ctx context.Context, userID, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidInput
	}

	deleted, err := s.repo.Delete(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	if deleted {
		s.logger.Info("Session logged out",
			util.String("user_id", userID),
			util.String("session_id", sessionID))
		s.audit.Emit(ctx, models.EventSessionLoggedOut, userID, sessionID, "", "")
	}

	return nil
}

// ListSessions returns all of the caller's active session records.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]*models.ActiveSession, error) {
	return s.repo.ListByUser(ctx, userID)
}

// IsActive reports whether the caller owns an active record with the
// given session_id.
func (s *SessionService) IsActive(ctx context.Context, userID, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, ErrInvalidInput
	}
	return s.repo.Exists(ctx, userID, sessionID)
}

// ForceLogout terminates one of the caller's sessions and broadcasts a
// termination notice to the user's other connected clients. Returns
// ErrSessionNotFound when no owned record matches; since userID always
// comes from the caller's verified identity, this also covers records
// owned by other users.
//
// The deletion commits before the notice goes out. Notification
// failures are logged by the notifier and never surface here.
func (s *SessionService) ForceLogout(ctx context.Context, userID, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidInput
	}

	deleted, err := s.repo.Delete(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrSessionNotFound
	}

	s.logger.Info("Session force-logged out",
		util.String("user_id", userID),
		util.String("session_id", sessionID))
	s.audit.Emit(ctx, models.EventSessionForceRevoked, userID, sessionID, "", "")

	s.notifier.Notify(ctx, userID, sessionID)

	return nil
}
