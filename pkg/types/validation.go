package types

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator instance shared across decode calls; validator.Validate caches
// struct metadata and is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeClientEvent parses an inbound frame into the envelope and its typed
// payload. Structurally malformed frames are rejected here so that handler
// logic never sees a partially coerced payload. The returned payload is one of
// JoinPayload, MessagePayload, DirectMessagePayload or PurgePayload; the scan
// event carries no payload and returns nil.
func DecodeClientEvent(raw []byte) (string, any, error) {
	var env ClientEvent
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	switch env.Event {
	case EventJoin:
		var p JoinPayload
		if err := decodePayload(env.Data, &p); err != nil {
			return env.Event, nil, err
		}
		return env.Event, p, nil
	case EventMessage:
		var p MessagePayload
		if err := decodePayload(env.Data, &p); err != nil {
			return env.Event, nil, err
		}
		return env.Event, p, nil
	case EventScan:
		return env.Event, nil, nil
	case EventDirectMessage:
		var p DirectMessagePayload
		if err := decodePayload(env.Data, &p); err != nil {
			return env.Event, nil, err
		}
		return env.Event, p, nil
	case EventPurge:
		var p PurgePayload
		if err := decodePayload(env.Data, &p); err != nil {
			return env.Event, nil, err
		}
		return env.Event, p, nil
	default:
		return env.Event, nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func decodePayload(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
