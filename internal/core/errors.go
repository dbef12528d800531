package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeDuplicateIdentity = "duplicate_identity"
	ErrCodeUnknownIdentity   = "unknown_identity"
	ErrCodeAlreadyJoined     = "already_joined"
	ErrCodeNotJoined         = "not_joined"
	ErrCodeBadRequest        = "bad_request"
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeUnavailable       = "unavailable"
)

var (
	// ErrRejectedJoin is the parent of every join rejection.
	ErrRejectedJoin = errors.New("join rejected")
	// ErrDuplicateIdentity is returned when the identity already has an active session.
	ErrDuplicateIdentity = &CoreError{Code: ErrCodeDuplicateIdentity, Message: "该用户已在线"}
	// ErrUnknownIdentity is returned when the identity reference does not resolve.
	ErrUnknownIdentity = &CoreError{Code: ErrCodeUnknownIdentity, Message: "用户不存在或凭证无效"}
	// ErrSessionExists is returned when a session id is registered twice.
	ErrSessionExists = &CoreError{Code: ErrCodeAlreadyJoined, Message: "已加入聊天室"}
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// Unwrap ties join rejections to ErrRejectedJoin.
func (e *CoreError) Unwrap() error {
	switch e.Code {
	case ErrCodeDuplicateIdentity, ErrCodeUnknownIdentity, ErrCodeAlreadyJoined:
		return ErrRejectedJoin
	default:
		return nil
	}
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
