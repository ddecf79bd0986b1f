package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/campuschat-server/internal/auth"
	"github.com/vovakirdan/campuschat-server/internal/config"
	"github.com/vovakirdan/campuschat-server/internal/core"
	"github.com/vovakirdan/campuschat-server/internal/service/messages"
	"github.com/vovakirdan/campuschat-server/internal/store"
	"github.com/vovakirdan/campuschat-server/internal/store/sqlite"
)

const testSecret = "test-secret"

func testJWTConfig() auth.JWTConfig {
	return auth.JWTConfig{
		Secret:   []byte(testSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
}

type testEnv struct {
	ts          *httptest.Server
	store       *sqlite.SQLiteStore
	authService *auth.Service
}

// startTestServer wires the full stack over an in-memory database. Options
// adjust the config before the server is built.
func startTestServer(t *testing.T, opts ...func(*config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	disabledLogger := zerolog.Nop()
	authService := auth.NewService(st, auth.NewTokenService(testJWTConfig()))
	messageService := messages.NewService(st)
	hub := core.NewHub(core.NewRegistry(), authService, messageService, &disabledLogger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = testSecret
	cfg.MessagesPerSecond = 0
	for _, opt := range opts {
		opt(&cfg)
	}

	server := NewServer(hub, core.NewAuthenticator(authService, st), authService, messageService, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, authService: authService}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := stdhttp.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, buf.Bytes()
}

// registerAndLogin creates a user and returns its session token.
func (e *testEnv) registerAndLogin(t *testing.T, name, username string, role store.Role) string {
	t.Helper()

	status, body := e.do(t, stdhttp.MethodPost, "/api/auth/register", "", RegisterRequest{
		Name: name, Username: username, Password: "password123", Role: string(role),
	})
	if status != stdhttp.StatusCreated {
		t.Fatalf("register %s: status %d: %s", username, status, body)
	}

	status, body = e.do(t, stdhttp.MethodPost, "/api/auth/login", "", LoginRequest{
		Username: username, Password: "password123",
	})
	if status != stdhttp.StatusOK {
		t.Fatalf("login %s: status %d: %s", username, status, body)
	}

	var resp LoginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal login response: %v", err)
	}
	return resp.Token
}

func (e *testEnv) wsURL(token string) string {
	u := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, token string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, e.wsURL(token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) frame {
	t.Helper()

	var f frame
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// readUntil skips frames until one with the given event arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) frame {
	t.Helper()

	for {
		f := readFrame(t, ctx, conn)
		if f.Event == event {
			return f
		}
	}
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, event string, data any) {
	t.Helper()

	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal data: %v", err)
		}
		raw = b
	}
	if err := wsjson.Write(ctx, conn, struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data,omitempty"`
	}{event, raw}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}
