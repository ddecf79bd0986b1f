package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/campuschat-server/internal/service/messages"
)

// ChatHandlers serves the REST view of the chat history.
type ChatHandlers struct {
	messages *messages.Service
	log      *zerolog.Logger
}

// NewChatHandlers creates chat handlers.
func NewChatHandlers(messageService *messages.Service, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{messages: messageService, log: logger}
}

// PostMessageRequest is the body of POST /api/chat.
type PostMessageRequest struct {
	Content string `json:"content"`
}

// List returns the full history, oldest first.
// GET /api/chat
func (h *ChatHandlers) List(c *gin.Context) {
	viewer := identityFromContext(c)

	list, err := h.messages.List(c.Request.Context(), viewer)
	if err != nil {
		if errors.Is(err, messages.ErrForbidden) {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "you are not allowed to view messages"})
			return
		}
		h.log.Error().Err(err).Int64("user_id", viewer.ID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "error fetching messages"})
		return
	}

	c.JSON(http.StatusOK, messagesToProto(list))
}

// Create persists a message.
// POST /api/chat
func (h *ChatHandlers) Create(c *gin.Context) {
	author := identityFromContext(c)

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), author, req.Content)
	if err != nil {
		switch {
		case messages.IsValidationError(err):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.Is(err, messages.ErrForbidden):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "you are not allowed to send messages"})
		default:
			h.log.Error().Err(err).Int64("user_id", author.ID).Msg("failed to create message")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "error sending the message"})
		}
		return
	}

	c.JSON(http.StatusCreated, messageToProto(msg))
}
