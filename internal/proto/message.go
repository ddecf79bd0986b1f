package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

const (
	// Client -> server.
	EventRequestParticipants = "chat:requestParticipants"
	EventTyping              = "chat:typing"
	EventStopTyping          = "chat:stopTyping"
	EventMessage             = "chat:message"

	// Server -> client. chat:message is shared with the inbound direction.
	EventUpdateParticipants = "chat:updateParticipants"
	EventUserTyping         = "chat:userTyping"
	EventUserStopTyping     = "chat:userStopTyping"
	EventError              = "chat:error"
)

// MessageData is a chat message submitted by the client.
type MessageData struct {
	Content string `json:"content"`
}

// Participant is a roster entry.
type Participant struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// TypingData names the user who is (or stopped) typing.
type TypingData struct {
	User string `json:"user"`
}

// Author is the author snapshot embedded in a message.
type Author struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Message is a persisted chat message as sent over REST and the real-time channel.
type Message struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	User      Author    `json:"user"`
}

// Error describes a protocol-level error.
type Error struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
