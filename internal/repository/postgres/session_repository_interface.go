package postgres

import (
	"context"
	"errors"

	"session-service/internal/models"
)

// ErrDuplicateSession is returned when an insert collides with an
// existing session_id. session_id is globally unique across all users.
var ErrDuplicateSession = errors.New("session_id already registered")

// SessionRepository is the durable store for active session records.
type SessionRepository interface {
	// Create inserts a new record and fills in the server-assigned
	// ID and LoggedInAt. Returns ErrDuplicateSession on a session_id
	// collision.
	Create(ctx context.Context, session *models.ActiveSession) error

	// ListByUser returns all records for the user in insertion order.
	ListByUser(ctx context.Context, userID string) ([]*models.ActiveSession, error)

	// Exists reports whether a record matching both user_id and
	// session_id is present.
	Exists(ctx context.Context, userID, sessionID string) (bool, error)

	// Delete removes the record matching both user_id and session_id.
	// Returns whether a row was actually deleted.
	Delete(ctx context.Context, userID, sessionID string) (bool, error)
}
