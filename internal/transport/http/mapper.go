package http

import (
	"encoding/json"

	"github.com/vovakirdan/campuschat-server/internal/core"
	"github.com/vovakirdan/campuschat-server/internal/proto"
	"github.com/vovakirdan/campuschat-server/internal/store"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Event {
	case proto.EventRequestParticipants:
		return &core.Command{Kind: core.CommandRequestParticipants}, nil
	case proto.EventTyping:
		return &core.Command{Kind: core.CommandTyping}, nil
	case proto.EventStopTyping:
		return &core.Command{Kind: core.CommandStopTyping}, nil
	case proto.EventMessage:
		var msg proto.MessageData
		if len(inbound.Data) > 0 {
			if err := json.Unmarshal(inbound.Data, &msg); err != nil {
				return nil, &proto.Error{Code: core.ErrCodeBadRequest, Error: "malformed message payload"}
			}
		}
		return &core.Command{Kind: core.CommandSendMessage, Content: msg.Content}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Error: "unknown event"}
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventParticipants:
		roster := make([]proto.Participant, 0, len(event.Participants))
		for _, p := range event.Participants {
			roster = append(roster, proto.Participant{ID: p.ID, Name: p.Name, Role: string(p.Role)})
		}
		return proto.Outbound{Event: proto.EventUpdateParticipants, Data: roster}
	case core.EventUserTyping:
		return proto.Outbound{Event: proto.EventUserTyping, Data: proto.TypingData{User: event.User}}
	case core.EventUserStopTyping:
		return proto.Outbound{Event: proto.EventUserStopTyping, Data: proto.TypingData{User: event.User}}
	case core.EventMessage:
		return proto.Outbound{Event: proto.EventMessage, Data: messageToProto(event.Message)}
	case core.EventError:
		return errorOutbound(event.Error)
	default:
		return errorOutbound(nil)
	}
}

func errorOutbound(err *core.CoreError) proto.Outbound {
	if err == nil {
		return proto.Outbound{Event: proto.EventError, Data: proto.Error{Code: core.ErrCodeInternal, Error: "unknown error"}}
	}
	return proto.Outbound{Event: proto.EventError, Data: proto.Error{Code: err.Code, Error: err.Message}}
}

func messageToProto(msg *store.Message) proto.Message {
	if msg == nil {
		return proto.Message{}
	}
	return proto.Message{
		ID:        msg.ID,
		Content:   msg.Content,
		UserID:    msg.UserID,
		CreatedAt: msg.CreatedAt,
		User:      proto.Author{Name: msg.Author.Name, Role: string(msg.Author.Role)},
	}
}

func messagesToProto(messages []*store.Message) []proto.Message {
	out := make([]proto.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, messageToProto(msg))
	}
	return out
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func userToResponse(u *store.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Username: u.Username, Role: string(u.Role)}
}
