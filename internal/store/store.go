package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateUsername is returned when the username unique constraint is violated.
	ErrDuplicateUsername = errors.New("duplicate username")
)

// Role is the participation level of a user.
type Role string

const (
	RoleStudent   Role = "STUDENT"
	RoleModerator Role = "MODERATOR"
	RoleGuest     Role = "GUEST"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleModerator, RoleGuest:
		return true
	default:
		return false
	}
}

// CanChat reports whether the role may read and post chat messages.
func (r Role) CanChat() bool {
	return r == RoleStudent || r == RoleModerator
}

// User represents a registered user.
type User struct {
	ID           int64
	Name         string
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Identity is the public projection of a user: id, display name and role.
type Identity struct {
	ID   int64
	Name string
	Role Role
}

// Author is the author snapshot joined onto a message at read time.
type Author struct {
	Name string
	Role Role
}

// Message represents a persisted chat message.
type Message struct {
	ID        int64
	Content   string
	UserID    int64
	CreatedAt time.Time
	Author    Author
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser inserts a user. Returns ErrDuplicateUsername if the username is taken.
	CreateUser(ctx context.Context, name, username, passwordHash string, role Role) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetIdentity retrieves only the id, name and role of a user.
	GetIdentity(ctx context.Context, id int64) (*Identity, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// AppendMessage persists a message and returns it joined with its author.
	AppendMessage(ctx context.Context, content string, authorID int64) (*Message, error)

	// ListMessages returns all messages ordered by creation time ascending.
	ListMessages(ctx context.Context) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
