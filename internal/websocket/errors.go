package websocket

import "errors"

var (
	ErrClientQueueFull    = errors.New("client message queue is full")
	ErrInvalidMessage     = errors.New("invalid message format")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrUserNotInRoom      = errors.New("user not in room")
)
