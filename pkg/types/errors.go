package types

import "errors"

var (
	ErrMalformedEnvelope = errors.New("malformed event envelope")
	ErrUnknownEvent      = errors.New("unknown event name")
	ErrInvalidPayload    = errors.New("invalid event payload")
)
