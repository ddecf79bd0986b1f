package core

import (
	"reflect"
	"strings"
	"testing"

	"github.com/vovakirdan/campuschat-server/internal/store"
)

var (
	alice = Participant{ID: 1, Name: "Alice", Role: store.RoleStudent}
	bob   = Participant{ID: 2, Name: "Bob", Role: store.RoleModerator}
)

func TestHubJoinPushesRosterToNewcomerAndPeers(t *testing.T) {
	th := startTestHub(t)

	a := th.connect(t, "a", alice)
	b := NewClient("b")
	b.Transition(StateAuthenticating)
	b.Authenticated(bob, "token-b")
	th.hub.RegisterClient(b)

	pushed := mustEvent(t, b.Events, EventParticipants)
	if got := rosterIDs(pushed.Participants); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Fatalf("newcomer roster: expected [1 2], got %v", got)
	}

	broadcast := mustEvent(t, a.Events, EventParticipants)
	if got := rosterIDs(broadcast.Participants); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Fatalf("peer roster: expected [1 2], got %v", got)
	}
	expectNoEvent(t, a.Events, EventParticipants)
	expectNoEvent(t, b.Events, EventParticipants)

	if b.State() != StateActive {
		t.Fatalf("expected active state, got %v", b.State())
	}
}

func TestHubRequestParticipantsRepliesOnlyToRequester(t *testing.T) {
	th := startTestHub(t)

	a := th.connect(t, "a", alice)
	b := th.connect(t, "b", bob)
	mustEvent(t, a.Events, EventParticipants) // bob joined

	b.Commands <- &Command{Kind: CommandRequestParticipants}

	ev := mustEvent(t, b.Events, EventParticipants)
	if len(ev.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %+v", ev.Participants)
	}
	expectNoEvent(t, a.Events, EventParticipants)
}

func TestHubTypingSkipsSender(t *testing.T) {
	th := startTestHub(t)

	a := th.connect(t, "a", alice)
	b := th.connect(t, "b", bob)

	a.Commands <- &Command{Kind: CommandTyping}
	ev := mustEvent(t, b.Events, EventUserTyping)
	if ev.User != "Alice" {
		t.Fatalf("expected typing from Alice, got %q", ev.User)
	}
	expectNoEvent(t, a.Events, EventUserTyping)

	a.Commands <- &Command{Kind: CommandStopTyping}
	ev = mustEvent(t, b.Events, EventUserStopTyping)
	if ev.User != "Alice" {
		t.Fatalf("expected stop typing from Alice, got %q", ev.User)
	}
	expectNoEvent(t, a.Events, EventUserStopTyping)
}

func TestHubMessageFansOutToEveryoneIncludingSender(t *testing.T) {
	th := startTestHub(t)

	a := th.connect(t, "a", alice)
	b := th.connect(t, "b", bob)

	a.Commands <- &Command{Kind: CommandSendMessage, Content: "  hi  "}

	for _, c := range []*Client{a, b} {
		ev := mustEvent(t, c.Events, EventMessage)
		if ev.Message.Content != "hi" || ev.Message.Author.Name != "Alice" || ev.Message.Author.Role != store.RoleStudent {
			t.Fatalf("client %s: unexpected message %+v", c.ID, ev.Message)
		}
	}
	if th.sender.count() != 1 {
		t.Fatalf("expected 1 stored message, got %d", th.sender.count())
	}
}

func TestHubMessagesKeepPerConnectionOrder(t *testing.T) {
	th := startTestHub(t)

	a := th.connect(t, "a", alice)
	b := th.connect(t, "b", bob)

	want := []string{"one", "two", "three", "four"}
	for _, text := range want {
		a.Commands <- &Command{Kind: CommandSendMessage, Content: text}
	}

	for _, text := range want {
		ev := mustEvent(t, b.Events, EventMessage)
		if ev.Message.Content != text {
			t.Fatalf("expected %q, got %q", text, ev.Message.Content)
		}
	}
}

func TestHubRejectsInvalidMessages(t *testing.T) {
	th := startTestHub(t)

	a := th.connect(t, "a", alice)
	b := th.connect(t, "b", bob)

	tests := []struct {
		content string
		code    string
	}{
		{"", ErrCodeEmptyMessage},
		{"   ", ErrCodeEmptyMessage},
		{strings.Repeat("x", 81), ErrCodeMessageTooLong},
		{"bell\x07", ErrCodeInvalidContent},
	}
	for _, tt := range tests {
		a.Commands <- &Command{Kind: CommandSendMessage, Content: tt.content}
		ev := mustEvent(t, a.Events, EventError)
		if ev.Error.Code != tt.code {
			t.Fatalf("content %q: expected %s, got %s", tt.content, tt.code, ev.Error.Code)
		}
	}

	expectNoEvent(t, b.Events, EventMessage)
	if a.State() != StateActive {
		t.Fatalf("validation errors must keep the connection active, got %v", a.State())
	}
}

func TestHubStoreFailureReportsGenericError(t *testing.T) {
	th := startTestHub(t)
	th.sender.fail = true

	a := th.connect(t, "a", alice)
	b := th.connect(t, "b", bob)

	a.Commands <- &Command{Kind: CommandSendMessage, Content: "hi"}

	ev := mustEvent(t, a.Events, EventError)
	if ev.Error.Code != ErrCodeMessageSendFailed {
		t.Fatalf("expected %s, got %s", ErrCodeMessageSendFailed, ev.Error.Code)
	}
	if strings.Contains(ev.Error.Message, "locked") {
		t.Fatalf("internal detail leaked to client: %q", ev.Error.Message)
	}
	expectNoEvent(t, b.Events, EventMessage)
	expectNoEvent(t, a.Events, EventMessage)
}

func TestHubExpiredTokenForceClosesSender(t *testing.T) {
	th := startTestHub(t)

	a := th.connect(t, "a", alice)
	b := th.connect(t, "b", bob)
	mustEvent(t, a.Events, EventParticipants) // bob joined

	th.tokens.expire(a.Token)
	a.Commands <- &Command{Kind: CommandSendMessage, Content: "hi"}

	ev := mustEvent(t, a.Events, EventError)
	if ev.Error.Code != ErrCodeTokenExpired {
		t.Fatalf("expected %s, got %s", ErrCodeTokenExpired, ev.Error.Code)
	}
	waitClosed(t, a)
	if a.State() != StateClosed {
		t.Fatalf("expected closed state, got %v", a.State())
	}
	if reason := a.CloseReason(); reason == nil || reason.Code != ErrCodeTokenExpired {
		t.Fatalf("unexpected close reason: %+v", reason)
	}

	roster := mustEvent(t, b.Events, EventParticipants)
	if got := rosterIDs(roster.Participants); !reflect.DeepEqual(got, []int64{2}) {
		t.Fatalf("expected roster [2], got %v", got)
	}
	expectNoEvent(t, b.Events, EventMessage)
	if th.sender.count() != 0 {
		t.Fatalf("expired session must not persist messages")
	}
}

func TestHubDisconnectIsIdempotent(t *testing.T) {
	th := startTestHub(t)

	a := th.connect(t, "a", alice)
	b := th.connect(t, "b", bob)

	th.hub.UnregisterClient(a)
	th.hub.UnregisterClient(a)

	roster := mustEvent(t, b.Events, EventParticipants)
	if got := rosterIDs(roster.Participants); !reflect.DeepEqual(got, []int64{2}) {
		t.Fatalf("expected roster [2], got %v", got)
	}
	expectNoEvent(t, b.Events, EventParticipants)
	waitClosed(t, a)
	if a.CloseReason() != nil {
		t.Fatalf("regular disconnect should have no close reason")
	}
}

func TestHubSameUserSeveralConnections(t *testing.T) {
	th := startTestHub(t)

	first := th.connect(t, "a1", alice)
	second := th.connect(t, "a2", alice)
	// A second tab does not change the roster, so the first tab hears nothing.
	expectNoEvent(t, first.Events, EventParticipants)
	b := th.connect(t, "b", bob)

	b.Commands <- &Command{Kind: CommandRequestParticipants}
	ev := mustEvent(t, b.Events, EventParticipants)
	if got := rosterIDs(ev.Participants); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Fatalf("expected unique users [1 2], got %v", got)
	}

	// Typing from one tab is not echoed to the same user's other tab.
	first.Commands <- &Command{Kind: CommandTyping}
	mustEvent(t, b.Events, EventUserTyping)
	expectNoEvent(t, second.Events, EventUserTyping)

	th.hub.UnregisterClient(first)
	waitClosed(t, first)
	expectNoEvent(t, b.Events, EventParticipants)

	b.Commands <- &Command{Kind: CommandRequestParticipants}
	ev = mustEvent(t, b.Events, EventParticipants)
	if got := rosterIDs(ev.Participants); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Fatalf("user with a remaining connection must stay, got %v", got)
	}

	th.hub.UnregisterClient(second)
	ev = mustEvent(t, b.Events, EventParticipants)
	if got := rosterIDs(ev.Participants); !reflect.DeepEqual(got, []int64{2}) {
		t.Fatalf("expected roster [2], got %v", got)
	}
}

func TestHubRefusesClientThatSkippedAuthentication(t *testing.T) {
	th := startTestHub(t)
	b := th.connect(t, "b", bob)

	c := NewClient("raw")
	th.hub.RegisterClient(c)

	waitClosed(t, c)
	expectNoEvent(t, b.Events, EventParticipants)
}

func TestHubFailedTokenRecheckKeepsConnection(t *testing.T) {
	th := startTestHub(t)

	a := th.connect(t, "a", alice)
	b := th.connect(t, "b", bob)

	th.tokens.revoke(a.Token)
	a.Commands <- &Command{Kind: CommandSendMessage, Content: "hi"}

	ev := mustEvent(t, a.Events, EventError)
	if ev.Error.Code != ErrCodeMessageSendFailed {
		t.Fatalf("expected %s, got %s", ErrCodeMessageSendFailed, ev.Error.Code)
	}
	if a.State() != StateActive || a.CloseReason() != nil {
		t.Fatalf("connection must stay active, got %v reason %+v", a.State(), a.CloseReason())
	}
	expectNoEvent(t, b.Events, EventParticipants)
	expectNoEvent(t, b.Events, EventMessage)
	if th.sender.count() != 0 {
		t.Fatalf("unverified token must not persist messages")
	}
}
