package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/vovakirdan/campuschat-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("username already in use")
	// ErrInvalidName is returned when the display name is missing or too long.
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidRole is returned for roles other than STUDENT, MODERATOR or GUEST.
	ErrInvalidRole = errors.New("invalid role: must be STUDENT, MODERATOR or GUEST")
)

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Name     string
	Username string
	Password string
	Role     store.Role
}

// Service provides authentication operations.
type Service struct {
	store  store.UserStore
	tokens *TokenService

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, tokens *TokenService) *Service {
	return &Service{
		store:  userStore,
		tokens: tokens,
	}
}

// Register validates the input, hashes the password and creates the user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*store.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > 64 {
		return nil, ErrInvalidName
	}
	username := strings.TrimSpace(in.Username)
	if len(username) < 3 || len(username) > 32 {
		return nil, ErrInvalidUsername
	}
	if len(in.Password) < 6 {
		return nil, ErrInvalidPassword
	}
	if !in.Role.Valid() {
		return nil, ErrInvalidRole
	}

	hashedPassword, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	// The unique constraint decides duplicates; no read-before-write.
	user, err := s.store.CreateUser(ctx, name, username, hashedPassword, in.Role)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Login validates credentials and returns a session token with the user.
func (s *Service) Login(ctx context.Context, username, password string) (string, *store.User, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn the same bcrypt work as a real comparison.
			_ = ComparePassword(s.placeholderHash(), password)
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("lookup user: %w", err)
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, user, nil
}

// ValidateToken validates a session token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return s.tokens.Verify(tokenString)
}

func (s *Service) placeholderHash() string {
	s.dummyOnce.Do(func() {
		hash, err := HashPassword("campuschat-placeholder")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
