package core

// Error codes for domain errors.
const (
	ErrCodeAuthRequired      = "auth_required"
	ErrCodeInvalidToken      = "invalid_token"
	ErrCodeTokenExpired      = "token_expired"
	ErrCodeUserNotFound      = "user_not_found"
	ErrCodeRoleNotAuthorized = "role_not_authorized"

	ErrCodeEmptyMessage      = "empty_message"
	ErrCodeMessageTooLong    = "message_too_long"
	ErrCodeInvalidContent    = "invalid_content"
	ErrCodeMessageSendFailed = "message_send_failed"

	ErrCodeBadRequest  = "bad_request"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeInternal    = "internal_error"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// NewError builds a CoreError for the transport layer.
func NewError(code, msg string) *CoreError {
	return coreError(code, msg)
}
