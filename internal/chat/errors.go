package chat

import "errors"

var (
	ErrUsernameTaken     = errors.New("username already registered")
	ErrSessionClosed     = errors.New("session closed")
	ErrSendBufferFull    = errors.New("send buffer full")
	ErrProtocolViolation = errors.New("protocol violation")
	ErrUnknownKind       = errors.New("unknown message kind")
	ErrServerClosed      = errors.New("server closed")
)
