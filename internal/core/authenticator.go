package core

import (
	"context"
	"errors"
	"strings"

	"github.com/vovakirdan/campuschat-server/internal/auth"
	"github.com/vovakirdan/campuschat-server/internal/store"
)

// TokenVerifier validates session tokens.
type TokenVerifier interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// IdentityFinder resolves a user id to its public identity.
type IdentityFinder interface {
	GetIdentity(ctx context.Context, id int64) (*store.Identity, error)
}

// Authenticator gates incoming real-time connections.
type Authenticator struct {
	tokens TokenVerifier
	users  IdentityFinder
}

// NewAuthenticator builds the connection gate.
func NewAuthenticator(tokens TokenVerifier, users IdentityFinder) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate verifies the token, resolves the user and checks that the role
// may join the chat. Failures are returned as *CoreError.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Participant, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Participant{}, coreError(ErrCodeAuthRequired, "authentication required: no token provided")
	}

	claims, err := a.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return Participant{}, coreError(ErrCodeTokenExpired, "session expired, please log in again")
		}
		return Participant{}, coreError(ErrCodeInvalidToken, "invalid token, please log in again")
	}

	identity, err := a.users.GetIdentity(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Participant{}, coreError(ErrCodeUserNotFound, "user not found")
		}
		return Participant{}, coreError(ErrCodeInternal, "could not verify user")
	}

	if !identity.Role.CanChat() {
		return Participant{}, coreError(ErrCodeRoleNotAuthorized, "access denied: role not authorized")
	}

	return Participant{ID: identity.ID, Name: identity.Name, Role: identity.Role}, nil
}
