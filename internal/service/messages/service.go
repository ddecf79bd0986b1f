// Package messages validates, persists and lists chat messages. Both the REST
// handlers and the real-time hub submit through it.
package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vovakirdan/campuschat-server/internal/store"
)

// MaxContentLength is the maximum message length in characters, after trimming.
const MaxContentLength = 80

var (
	// ErrEmptyMessage is returned for empty or whitespace-only content.
	ErrEmptyMessage = errors.New("message cannot be empty")
	// ErrMessageTooLong is returned when content exceeds MaxContentLength.
	ErrMessageTooLong = errors.New("message cannot be longer than 80 characters")
	// ErrInvalidContent is returned when content holds non-printable characters.
	ErrInvalidContent = errors.New("message contains non-printable characters")
	// ErrForbidden is returned when the caller's role may not use the chat.
	ErrForbidden = errors.New("role is not allowed to use the chat")
)

// IsValidationError reports whether err is a user-correctable content error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrMessageTooLong) ||
		errors.Is(err, ErrInvalidContent)
}

// ValidateContent trims content and checks it against the message rules.
// Every remaining rune must satisfy unicode.IsPrint, so the only space allowed
// inside a message is U+0020; tabs, newlines and no-break spaces are rejected.
func ValidateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(trimmed) > MaxContentLength {
		return "", ErrMessageTooLong
	}
	for _, r := range trimmed {
		if r == utf8.RuneError || !unicode.IsPrint(r) {
			return "", ErrInvalidContent
		}
	}
	return trimmed, nil
}

// Service provides message operations.
type Service struct {
	store store.MessageStore
}

// NewService creates a message service over the given store.
func NewService(messageStore store.MessageStore) *Service {
	return &Service{store: messageStore}
}

// Send validates content and appends it on behalf of author.
func (s *Service) Send(ctx context.Context, author store.Identity, content string) (*store.Message, error) {
	if !author.Role.CanChat() {
		return nil, ErrForbidden
	}

	text, err := ValidateContent(content)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.AppendMessage(ctx, text, author.ID)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// List returns the full history, oldest first, for a viewer allowed to read it.
func (s *Service) List(ctx context.Context, viewer store.Identity) ([]*store.Message, error) {
	if !viewer.Role.CanChat() {
		return nil, ErrForbidden
	}

	messages, err := s.store.ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}
