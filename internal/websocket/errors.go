package websocket

import "errors"

var (
	// ErrConnectionClosed is returned by Send after Close.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrSendBufferFull is returned when the outbound buffer is saturated.
	// The caller treats the connection as unresponsive.
	ErrSendBufferFull = errors.New("send buffer full")
)
