package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/campuschat-server/internal/store"
	"github.com/vovakirdan/campuschat-server/internal/store/sqlite"
)

func newTestAuthService(t *testing.T) (*Service, *sqlite.SQLiteStore) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	tokens := NewTokenService(JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})

	return NewService(st, tokens), st
}

func registerInput(username string, role store.Role) RegisterInput {
	return RegisterInput{Name: "Alice", Username: username, Password: "password123", Role: role}
}

func TestRegister_RejectsInvalidInput(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input RegisterInput
		want  error
	}{
		{"short username", registerInput("ab", store.RoleStudent), ErrInvalidUsername},
		{"short username after trim", registerInput(" ab ", store.RoleStudent), ErrInvalidUsername},
		{"missing name", RegisterInput{Username: "alice", Password: "password123", Role: store.RoleStudent}, ErrInvalidName},
		{"short password", RegisterInput{Name: "A", Username: "alice", Password: "12345", Role: store.RoleStudent}, ErrInvalidPassword},
		{"unknown role", registerInput("alice", store.Role("ADMIN")), ErrInvalidRole},
		{"empty role", registerInput("alice", ""), ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.input); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRegister_CreatesUserAndRejectsDuplicate(t *testing.T) {
	svc, st := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerInput(" alice ", store.RoleStudent))
	if err != nil {
		t.Fatalf("expected registration success, got %v", err)
	}
	if user.Username != "alice" || user.Role != store.RoleStudent {
		t.Fatalf("unexpected user: %+v", user)
	}

	found, err := st.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("lookup registered user: %v", err)
	}
	if found.ID != user.ID || found.PasswordHash == "password123" {
		t.Fatalf("unexpected stored user: %+v", found)
	}

	for _, role := range []store.Role{store.RoleStudent, store.RoleModerator, store.RoleGuest} {
		if _, err := svc.Register(ctx, registerInput("alice", role)); !errors.Is(err, ErrUserExists) {
			t.Fatalf("role %s: expected ErrUserExists, got %v", role, err)
		}
	}
}

func TestLogin_IssuesVerifiableToken(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerInput("bob", store.RoleModerator))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	token, loggedIn, err := svc.Login(ctx, "bob", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Fatalf("expected user %d, got %d", user.ID, loggedIn.ID)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != store.RoleModerator {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestLogin_SameErrorForWrongPasswordAndUnknownUser(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, registerInput("carol", store.RoleStudent)); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, _, wrongPwd := svc.Login(ctx, "carol", "nope-nope")
	_, _, unknown := svc.Login(ctx, "nobody", "password123")

	if !errors.Is(wrongPwd, ErrInvalidCredentials) || !errors.Is(unknown, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", wrongPwd, unknown)
	}
	if wrongPwd.Error() != unknown.Error() {
		t.Fatalf("error messages differ: %q vs %q", wrongPwd, unknown)
	}
}
