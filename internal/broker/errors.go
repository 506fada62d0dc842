package broker

import "errors"

var (
	ErrAlreadyRunning   = errors.New("broker is already running")
	ErrNotRunning       = errors.New("broker is not running")
	ErrEventChannelFull = errors.New("event channel is full")
	ErrNilConnection    = errors.New("connection cannot be nil")
)
