package core

import "github.com/vovakirdan/campuschat-server/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventParticipants delivers the current roster.
	EventParticipants EventKind = iota
	// EventUserTyping notifies that another user started typing.
	EventUserTyping
	// EventUserStopTyping notifies that another user stopped typing.
	EventUserStopTyping
	// EventMessage delivers a persisted chat message.
	EventMessage
	// EventError notifies the client about a domain error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventParticipants:
		return "participants"
	case EventUserTyping:
		return "user_typing"
	case EventUserStopTyping:
		return "user_stop_typing"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind         EventKind
	Participants []Participant // EventParticipants
	User         string        // display name for typing events
	Message      *store.Message
	Error        *CoreError
}

func participantsEvent(roster []Participant) *Event {
	return &Event{Kind: EventParticipants, Participants: roster}
}

func errorEvent(err *CoreError) *Event {
	return &Event{Kind: EventError, Error: err}
}
