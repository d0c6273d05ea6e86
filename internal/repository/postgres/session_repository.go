package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"session-service/internal/client"
	"session-service/internal/models"
	"session-service/internal/util"
)

const uniqueViolationCode = "23505"

// PostgresSessionRepository implements SessionRepository over the
// active_sessions table.
type PostgresSessionRepository struct {
	client *client.PostgresClient
}

func NewSessionRepository(client *client.PostgresClient, logger *zap.Logger) *PostgresSessionRepository {
	return &PostgresSessionRepository{
		client: client,
	}
}

// EnsureSchema creates the active_sessions table and its user index if
// they do not exist. Run once at startup.
func (r *PostgresSessionRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.client.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS active_sessions (
			id            BIGSERIAL PRIMARY KEY,
			user_id       VARCHAR(255) NOT NULL,
			session_id    VARCHAR(255) NOT NULL UNIQUE,
			device_info   TEXT,
			ip_address    VARCHAR(50),
			logged_in_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create active_sessions table: %w", err)
	}

	_, err = r.client.Pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_active_sessions_user_id
		ON active_sessions (user_id)
	`)
	if err != nil {
		return fmt.Errorf("failed to create user_id index: %w", err)
	}

	util.Info("Session store schema ensured")
	return nil
}

func (r *PostgresSessionRepository) Create(ctx context.Context, session *models.ActiveSession) error {
	err := r.client.Pool.QueryRow(ctx, `
		INSERT INTO active_sessions (user_id, session_id, device_info, ip_address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, logged_in_at
	`, session.UserID, session.SessionID, session.DeviceInfo, session.IPAddress).
		Scan(&session.ID, &session.LoggedInAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrDuplicateSession
		}
		util.Error("Failed to create session record",
			zap.String("user_id", session.UserID),
			zap.String("session_id", session.SessionID),
			zap.Error(err))
		return fmt.Errorf("failed to create session record: %w", err)
	}

	return nil
}

func (r *PostgresSessionRepository) ListByUser(ctx context.Context, userID string) ([]*models.ActiveSession, error) {
	rows, err := r.client.Pool.Query(ctx, `
		SELECT id, user_id, session_id, device_info, ip_address, logged_in_at
		FROM active_sessions
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		util.Error("Failed to list user sessions",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list user sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.ActiveSession
	for rows.Next() {
		var s models.ActiveSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.SessionID, &s.DeviceInfo, &s.IPAddress, &s.LoggedInAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session rows: %w", err)
	}

	return sessions, nil
}

func (r *PostgresSessionRepository) Exists(ctx context.Context, userID, sessionID string) (bool, error) {
	var one int
	err := r.client.Pool.QueryRow(ctx, `
		SELECT 1 FROM active_sessions
		WHERE user_id = $1 AND session_id = $2
	`, userID, sessionID).Scan(&one)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}
	return true, nil
}

func (r *PostgresSessionRepository) Delete(ctx context.Context, userID, sessionID string) (bool, error) {
	tag, err := r.client.Pool.Exec(ctx, `
		DELETE FROM active_sessions
		WHERE user_id = $1 AND session_id = $2
	`, userID, sessionID)
	if err != nil {
		util.Error("Failed to delete session record",
			zap.String("user_id", userID),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return false, fmt.Errorf("failed to delete session record: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
