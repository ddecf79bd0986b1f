package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/campuschat-server/internal/auth"
	"github.com/vovakirdan/campuschat-server/internal/service/messages"
	"github.com/vovakirdan/campuschat-server/internal/store"
)

// MessageSender validates and persists a chat message.
type MessageSender interface {
	Send(ctx context.Context, author store.Identity, content string) (*store.Message, error)
}

type actionKind int

const (
	actionParticipants actionKind = iota
	actionTyping
	actionStopTyping
	actionBroadcastMessage
)

// action is a unit of work for the hub loop.
type action struct {
	kind    actionKind
	client  *Client
	message *store.Message
}

// Hub is the chat session manager. All roster mutations and broadcasts run on
// the single goroutine started by Run; each registered client also gets a
// command pump that performs blocking work (token checks, persistence) off
// the loop and hands the results back in order.
type Hub struct {
	registry *Registry
	tokens   TokenVerifier
	messages MessageSender
	log      *zerolog.Logger

	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	actions    chan action
	stopped    chan struct{}
}

// NewHub creates a hub over an explicitly owned registry.
func NewHub(registry *Registry, tokens TokenVerifier, sender MessageSender, logger *zerolog.Logger) *Hub {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		registry:   registry,
		tokens:     tokens,
		messages:   sender,
		log:        logger,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		actions:    make(chan action, 64),
		stopped:    make(chan struct{}),
	}
}

// Run processes hub events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.handleRegister(ctx, c)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case a := <-h.actions:
			h.handleAction(a)
		}
	}
}

// RegisterClient hands an authenticated client to the hub. Returns false if
// the hub is no longer running.
func (h *Hub) RegisterClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stopped:
		c.close()
		return false
	}
}

// UnregisterClient removes a client. Safe to call more than once.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
		c.close()
	}
}

func (h *Hub) handleRegister(ctx context.Context, c *Client) {
	if c == nil {
		return
	}
	if !c.Transition(StateActive) {
		h.log.Warn().Str("client_id", c.ID).Str("state", c.State().String()).Msg("refusing to register client")
		c.close()
		return
	}

	h.clients[c.ID] = c
	joined := h.registry.Upsert(c.ID, c.Identity)

	// One snapshot for both audiences. Peers only hear about users who
	// were not on the roster yet.
	roster := participantsEvent(h.registry.Snapshot())
	h.send(c, roster)
	if joined {
		h.broadcast(roster, c)
	}

	go h.pump(ctx, c)

	h.log.Info().
		Str("client_id", c.ID).
		Int64("user_id", c.Identity.ID).
		Str("role", string(c.Identity.Role)).
		Int("participants", h.registry.Len()).
		Msg("client connected")
}

func (h *Hub) handleUnregister(c *Client) {
	if c == nil {
		return
	}
	if _, ok := h.clients[c.ID]; !ok {
		c.close()
		return
	}

	delete(h.clients, c.ID)
	c.close()
	if left := h.registry.Remove(c.Identity.ID, c.ID); left {
		h.broadcast(participantsEvent(h.registry.Snapshot()), nil)
	}

	h.log.Info().
		Str("client_id", c.ID).
		Int64("user_id", c.Identity.ID).
		Int("participants", h.registry.Len()).
		Msg("client disconnected")
}

func (h *Hub) handleAction(a action) {
	switch a.kind {
	case actionBroadcastMessage:
		// Persisted already; fan out even if the sender has gone.
		h.broadcast(&Event{Kind: EventMessage, Message: a.message}, nil)
		return
	}

	if _, ok := h.clients[a.client.ID]; !ok {
		return
	}

	switch a.kind {
	case actionParticipants:
		h.send(a.client, participantsEvent(h.registry.Snapshot()))
	case actionTyping:
		h.broadcastOthers(&Event{Kind: EventUserTyping, User: a.client.Identity.Name}, a.client)
	case actionStopTyping:
		h.broadcastOthers(&Event{Kind: EventUserStopTyping, User: a.client.Identity.Name}, a.client)
	}
}

// pump serializes one client's commands.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			return
		case cmd := <-c.Commands:
			if cmd != nil {
				h.handleCommand(ctx, c, cmd)
			}
		}
	}
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandRequestParticipants:
		h.post(ctx, action{kind: actionParticipants, client: c})
	case CommandTyping:
		h.post(ctx, action{kind: actionTyping, client: c})
	case CommandStopTyping:
		h.post(ctx, action{kind: actionStopTyping, client: c})
	case CommandSendMessage:
		h.submitMessage(ctx, c, cmd.Content)
	default:
		h.send(c, errorEvent(coreError(ErrCodeBadRequest, "unknown command")))
	}
}

func (h *Hub) submitMessage(ctx context.Context, c *Client, content string) {
	// Only expiry ends the session; any other verification failure is
	// reported like a failed send and the connection stays open.
	if _, err := h.tokens.ValidateToken(c.Token); err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			h.terminate(c, coreError(ErrCodeTokenExpired, "session expired, please log in again"))
			return
		}
		h.log.Warn().Err(err).Str("client_id", c.ID).Int64("user_id", c.Identity.ID).Msg("token re-check failed on send")
		h.send(c, errorEvent(coreError(ErrCodeMessageSendFailed, "error sending the message")))
		return
	}

	author := store.Identity{ID: c.Identity.ID, Name: c.Identity.Name, Role: c.Identity.Role}
	msg, err := h.messages.Send(ctx, author, content)
	if err != nil {
		h.send(c, errorEvent(h.sendError(c, err)))
		return
	}

	h.post(ctx, action{kind: actionBroadcastMessage, client: c, message: msg})
}

func (h *Hub) sendError(c *Client, err error) *CoreError {
	switch {
	case errors.Is(err, messages.ErrEmptyMessage):
		return coreError(ErrCodeEmptyMessage, messages.ErrEmptyMessage.Error())
	case errors.Is(err, messages.ErrMessageTooLong):
		return coreError(ErrCodeMessageTooLong, messages.ErrMessageTooLong.Error())
	case errors.Is(err, messages.ErrInvalidContent):
		return coreError(ErrCodeInvalidContent, messages.ErrInvalidContent.Error())
	case errors.Is(err, messages.ErrForbidden):
		return coreError(ErrCodeRoleNotAuthorized, "you are not allowed to send messages")
	default:
		h.log.Error().Err(err).Str("client_id", c.ID).Int64("user_id", c.Identity.ID).Msg("failed to send message")
		return coreError(ErrCodeMessageSendFailed, "error sending the message")
	}
}

// terminate reports err to the client and force-closes it.
func (h *Hub) terminate(c *Client, err *CoreError) {
	h.log.Info().Str("client_id", c.ID).Int64("user_id", c.Identity.ID).Str("code", err.Code).Msg("terminating session")
	c.setReason(err)
	h.send(c, errorEvent(err))
	h.UnregisterClient(c)
}

func (h *Hub) post(ctx context.Context, a action) {
	select {
	case h.actions <- a:
	case <-h.stopped:
	case <-ctx.Done():
	}
}

func (h *Hub) send(c *Client, event *Event) {
	if !c.deliver(event) {
		h.log.Warn().Str("client_id", c.ID).Str("event", event.Kind.String()).Msg("dropping event for slow client")
	}
}

// broadcast delivers event to every registered client except skip.
func (h *Hub) broadcast(event *Event, skip *Client) {
	for id, c := range h.clients {
		if skip != nil && id == skip.ID {
			continue
		}
		h.send(c, event)
	}
}

// broadcastOthers delivers event to every client of a different user than sender.
func (h *Hub) broadcastOthers(event *Event, sender *Client) {
	for _, c := range h.clients {
		if c.Identity.ID == sender.Identity.ID {
			continue
		}
		h.send(c, event)
	}
}

func (h *Hub) shutdown() {
	left := 0
	for id, c := range h.clients {
		c.close()
		if h.registry.Remove(c.Identity.ID, id) {
			left++
		}
		delete(h.clients, id)
	}
	h.log.Info().Int("participants", left).Msg("hub stopped")
}
