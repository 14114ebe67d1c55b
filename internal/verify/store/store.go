package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/stepauth/internal/verify/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Drivers expose sub-repositories so
// callers cannot open a transaction from inside another one.
type Store interface {
	Users() Users
	Challenges() Challenges
	Sessions() Sessions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn within a transaction. It commits when fn returns nil and
	// rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user. ErrAlreadyExists when the username is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID, hash string) error

	// UpdateChatID changes the delivery chat and bumps updated_at.
	UpdateChatID(ctx context.Context, userID, chatID string) error

	// DeleteUser cascades to challenges and sessions.
	DeleteUser(ctx context.Context, userID string) error

	ListUsers(ctx context.Context) ([]domain.User, error)
}

type Challenges interface {
	CreateChallenge(ctx context.Context, c domain.Challenge) error
	GetChallenge(ctx context.Context, id string) (domain.Challenge, error)

	// IncrementAttempts records a failed verify and returns the updated row.
	IncrementAttempts(ctx context.Context, id string) (domain.Challenge, error)

	// Rotate bumps the HOTP counter, resets attempts and moves the expiry.
	Rotate(ctx context.Context, id string, expiresAt time.Time) (domain.Challenge, error)

	DeleteChallenge(ctx context.Context, id string) error

	// DeleteExpiredChallenges removes challenges whose window closed before
	// now and returns how many were removed.
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error
	GetSession(ctx context.Context, id string) (domain.Session, error)

	// RevokeSession marks the session revoked. Revoking twice is not an error.
	RevokeSession(ctx context.Context, id string, at time.Time) error

	// DeleteStaleSessions removes sessions that expired or were revoked
	// before now.
	DeleteStaleSessions(ctx context.Context, now time.Time) (int64, error)
}
