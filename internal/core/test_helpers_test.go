package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/campuschat-server/internal/auth"
	"github.com/vovakirdan/campuschat-server/internal/service/messages"
	"github.com/vovakirdan/campuschat-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
			return nil
		}
	}
}

// expectNoEvent fails if any event of kind arrives within a short window.
func expectNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.After(150 * time.Millisecond)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event %v: %+v", kind, ev)
			}
		case <-deadline:
			return
		}
	}
}

func waitClosed(t *testing.T, c *Client) {
	t.Helper()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s was not closed", c.ID)
	}
}

// fakeTokens maps token strings to verification outcomes.
type fakeTokens struct {
	mu      sync.Mutex
	expired map[string]bool
	revoked map[string]bool
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{expired: make(map[string]bool), revoked: make(map[string]bool)}
}

// revoke makes token fail verification for a reason other than expiry.
func (f *fakeTokens) revoke(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[token] = true
}

func (f *fakeTokens) expire(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired[token] = true
}

func (f *fakeTokens) ValidateToken(token string) (*auth.Claims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case token == "bad", f.revoked[token]:
		return nil, auth.ErrInvalidToken
	case f.expired[token]:
		return nil, auth.ErrTokenExpired
	}
	return &auth.Claims{}, nil
}

// fakeSender validates like the real service and stores in memory.
type fakeSender struct {
	mu     sync.Mutex
	nextID int64
	sent   []*store.Message
	fail   bool
}

func (f *fakeSender) Send(_ context.Context, author store.Identity, content string) (*store.Message, error) {
	text, err := messages.ValidateContent(content)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("database is locked")
	}
	f.nextID++
	msg := &store.Message{
		ID:        f.nextID,
		Content:   text,
		UserID:    author.ID,
		CreatedAt: time.Now(),
		Author:    store.Author{Name: author.Name, Role: author.Role},
	}
	f.sent = append(f.sent, msg)
	return msg, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type testHub struct {
	hub    *Hub
	tokens *fakeTokens
	sender *fakeSender
}

func startTestHub(t *testing.T) *testHub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	tokens := newFakeTokens()
	sender := &fakeSender{}
	hub := NewHub(NewRegistry(), tokens, sender, nil)
	go hub.Run(ctx)

	return &testHub{hub: hub, tokens: tokens, sender: sender}
}

// connect registers an authenticated client and consumes its initial roster push.
func (th *testHub) connect(t *testing.T, connID string, p Participant) *Client {
	t.Helper()

	c := NewClient(connID)
	if !c.Transition(StateAuthenticating) {
		t.Fatalf("client %s: cannot enter authenticating", connID)
	}
	c.Authenticated(p, "token-"+connID)
	if !th.hub.RegisterClient(c) {
		t.Fatalf("hub refused client %s", connID)
	}
	mustEvent(t, c.Events, EventParticipants)
	return c
}

func rosterIDs(roster []Participant) []int64 {
	ids := make([]int64, 0, len(roster))
	for _, p := range roster {
		ids = append(ids, p.ID)
	}
	return ids
}
