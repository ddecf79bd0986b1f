package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandRequestParticipants asks for the current roster.
	CommandRequestParticipants CommandKind = iota
	// CommandTyping announces the client started typing.
	CommandTyping
	// CommandStopTyping announces the client stopped typing.
	CommandStopTyping
	// CommandSendMessage submits a chat message for persistence and fan-out.
	CommandSendMessage
)

// Command represents an action requested by a client.
type Command struct {
	Kind    CommandKind
	Content string
}
